package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/interfaces/http/dto"
	"z-writer-api/pkg/logger"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	projects repository.ProjectRepository
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(projects repository.ProjectRepository) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// ListProjects 获取项目列表
// @Summary 获取项目列表
// @Tags Projects
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.ProjectListResponse]
// @Router /v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	page := dto.BindPagination(c)
	result, err := h.projects.List(c.Request.Context(), page)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToProjectListResponse(result.Items), dto.PageMetaOf(result))
}

// CreateProject 创建项目
// @Summary 创建项目
// @Tags Projects
// @Accept json
// @Produce json
// @Param body body dto.CreateProjectRequest true "项目信息"
// @Success 201 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		dto.BadRequest(c, "title is required")
		return
	}
	kind, err := entity.ParseProjectKind(req.Kind)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	project := entity.NewProject(title, req.Description, kind)
	if err := h.projects.Create(ctx, project); err != nil {
		dto.Fail(c, err)
		return
	}
	logger.Info(ctx, "project created", "project_id", project.ID, "kind", string(kind))
	dto.Created(c, dto.ToProjectResponse(project))
}

// GetProject 获取项目详情
// @Summary 获取项目详情
// @Tags Projects
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := loadProject(c.Request.Context(), h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToProjectResponse(project))
}

// UpdateProject 更新项目
// @Summary 更新项目
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.UpdateProjectRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			dto.BadRequest(c, "title must not be blank")
			return
		}
		project.Title = title
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Kind != nil {
		kind, err := entity.ParseProjectKind(*req.Kind)
		if err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
		project.Kind = kind
	}

	if err := h.projects.Update(ctx, project); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToProjectResponse(project))
}

// DeleteProject 删除项目及其章节、对话与事实
// @Summary 删除项目
// @Tags Projects
// @Param pid path string true "项目 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := h.projects.Delete(ctx, project.ID); err != nil {
		dto.Fail(c, err)
		return
	}
	logger.Info(ctx, "project deleted", "project_id", project.ID)
	dto.NoContent(c)
}

