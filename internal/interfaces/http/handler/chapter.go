package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/interfaces/http/dto"
	apperrors "z-writer-api/pkg/errors"
)

// ChapterHandler 章节处理器
type ChapterHandler struct {
	projects repository.ProjectRepository
	chapters repository.ChapterRepository
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(projects repository.ProjectRepository, chapters repository.ChapterRepository) *ChapterHandler {
	return &ChapterHandler{projects: projects, chapters: chapters}
}

// ListChapters 获取项目章节列表（按 order_index 升序，不含正文）
// @Summary 获取章节列表
// @Tags Chapters
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ChapterListResponse]
// @Router /v1/projects/{pid}/chapters [get]
func (h *ChapterHandler) ListChapters(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	chapters, err := h.chapters.ListByProject(ctx, project.ID)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToChapterListResponse(chapters))
}

// CreateChapter 创建空章节
// @Summary 创建章节
// @Tags Chapters
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.CreateChapterRequest true "章节信息"
// @Success 201 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters [post]
func (h *ChapterHandler) CreateChapter(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if !project.Profile().Capabilities.ChapterWriting {
		dto.Fail(c, apperrors.Validation("project kind %s does not support chapters", project.Kind))
		return
	}

	chapter := entity.NewChapter(project.ID, req.Title, req.OrderIndex)
	if err := h.chapters.Create(ctx, chapter); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, dto.ToChapterResponse(chapter, true))
}

// GetChapter 获取章节详情（含正文）
// @Summary 获取章节详情
// @Tags Chapters
// @Produce json
// @Param pid path string true "项目 ID"
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{cid} [get]
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	chapter, err := loadChapter(c.Request.Context(), h.chapters, dto.BindProjectID(c), dto.BindChapterID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToChapterResponse(chapter, true))
}

// UpdateChapter 修改标题或排序
// @Summary 更新章节
// @Tags Chapters
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param cid path string true "章节 ID"
// @Param body body dto.UpdateChapterRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Router /v1/projects/{pid}/chapters/{cid} [put]
func (h *ChapterHandler) UpdateChapter(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpdateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	chapter, err := loadChapter(ctx, h.chapters, dto.BindProjectID(c), dto.BindChapterID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if req.Title != nil {
		chapter.Title = strings.TrimSpace(*req.Title)
	}
	if req.OrderIndex != nil {
		chapter.OrderIndex = *req.OrderIndex
	}
	if err := h.chapters.Update(ctx, chapter); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToChapterResponse(chapter, true))
}

// DeleteChapter 删除章节
// @Summary 删除章节
// @Tags Chapters
// @Param pid path string true "项目 ID"
// @Param cid path string true "章节 ID"
// @Success 204
// @Router /v1/projects/{pid}/chapters/{cid} [delete]
func (h *ChapterHandler) DeleteChapter(c *gin.Context) {
	ctx := c.Request.Context()
	chapter, err := loadChapter(ctx, h.chapters, dto.BindProjectID(c), dto.BindChapterID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := h.chapters.Delete(ctx, chapter.ID); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}
