package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"z-writer-api/internal/application/story/contextbuilder"
	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/interfaces/http/dto"
)

// WindowBuilder 上下文窗口构建
type WindowBuilder interface {
	Build(ctx context.Context, project *entity.Project) (*contextbuilder.Window, error)
}

// ContextHandler 上下文预览处理器
type ContextHandler struct {
	projects repository.ProjectRepository
	builder  WindowBuilder
}

// NewContextHandler 创建上下文预览处理器
func NewContextHandler(projects repository.ProjectRepository, builder WindowBuilder) *ContextHandler {
	return &ContextHandler{projects: projects, builder: builder}
}

// GetContext 返回下一次生成将使用的上下文窗口
// @Summary 预览上下文窗口
// @Tags Context
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ContextResponse]
// @Router /v1/projects/{pid}/context [get]
func (h *ContextHandler) GetContext(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	window, err := h.builder.Build(ctx, project)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToContextResponse(window))
}
