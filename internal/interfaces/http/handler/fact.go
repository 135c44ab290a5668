package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/interfaces/http/dto"
	apperrors "z-writer-api/pkg/errors"
	"z-writer-api/pkg/logger"
)

// FactHandler 上下文事实处理器
type FactHandler struct {
	projects repository.ProjectRepository
	facts    repository.ContextFactRepository
}

// NewFactHandler 创建事实处理器
func NewFactHandler(projects repository.ProjectRepository, facts repository.ContextFactRepository) *FactHandler {
	return &FactHandler{projects: projects, facts: facts}
}

// ListFacts 获取项目全部事实
// @Summary 获取上下文事实
// @Tags Facts
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.FactListResponse]
// @Router /v1/projects/{pid}/facts [get]
func (h *FactHandler) ListFacts(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	facts, err := h.facts.ListByProject(ctx, project.ID)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToFactListResponse(facts))
}

// UpsertFact 手动写入或覆盖一条事实
// @Summary 写入上下文事实
// @Tags Facts
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.UpsertFactRequest true "事实"
// @Success 200 {object} dto.Response[dto.FactResponse]
// @Router /v1/projects/{pid}/facts [put]
func (h *FactHandler) UpsertFact(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpsertFactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	key := strings.TrimSpace(req.Key)
	value := strings.TrimSpace(req.Value)
	if key == "" || value == "" {
		dto.BadRequest(c, "key and value must not be blank")
		return
	}

	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	contextType := strings.TrimSpace(req.ContextType)
	if contextType == "" {
		contextType = project.Profile().ContextType
	}

	fact := entity.NewContextFact(project.ID, contextType, key, value)
	if err := h.facts.Upsert(ctx, fact); err != nil {
		dto.Fail(c, err)
		return
	}
	logger.Info(ctx, "context fact written manually", "project_id", project.ID, "key", key)
	dto.Success(c, dto.ToFactResponse(fact))
}

// DeleteFact 删除事实
// @Summary 删除上下文事实
// @Tags Facts
// @Param pid path string true "项目 ID"
// @Param fid path string true "事实 ID"
// @Success 204
// @Router /v1/projects/{pid}/facts/{fid} [delete]
func (h *FactHandler) DeleteFact(c *gin.Context) {
	ctx := c.Request.Context()
	fact, err := h.facts.GetByID(ctx, dto.BindFactID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if fact == nil || fact.ProjectID != dto.BindProjectID(c) {
		dto.Fail(c, apperrors.ErrFactNotFound)
		return
	}
	if err := h.facts.Delete(ctx, fact.ID); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}
