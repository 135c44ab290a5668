package handler

import (
	"github.com/gin-gonic/gin"

	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/interfaces/http/dto"
	apperrors "z-writer-api/pkg/errors"
)

// ConversationHandler 对话轮次处理器，轮次只读
type ConversationHandler struct {
	projects repository.ProjectRepository
	turns    repository.ConversationTurnRepository
}

// NewConversationHandler 创建对话轮次处理器
func NewConversationHandler(projects repository.ProjectRepository, turns repository.ConversationTurnRepository) *ConversationHandler {
	return &ConversationHandler{projects: projects, turns: turns}
}

// ListTurns 按时间正序分页获取对话
// @Summary 获取对话轮次
// @Tags Conversation
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.TurnListResponse]
// @Router /v1/projects/{pid}/turns [get]
func (h *ConversationHandler) ListTurns(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := loadProject(ctx, h.projects, dto.BindProjectID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	result, err := h.turns.ListByProject(ctx, project.ID, dto.BindPagination(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToTurnListResponse(result.Items), dto.PageMetaOf(result))
}

// GetTurn 获取单个轮次
// @Summary 获取对话轮次详情
// @Tags Conversation
// @Produce json
// @Param pid path string true "项目 ID"
// @Param tid path string true "轮次 ID"
// @Success 200 {object} dto.Response[dto.TurnResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/turns/{tid} [get]
func (h *ConversationHandler) GetTurn(c *gin.Context) {
	turn, err := h.turns.GetByID(c.Request.Context(), dto.BindTurnID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if turn == nil || turn.ProjectID != dto.BindProjectID(c) {
		dto.Fail(c, apperrors.ErrTurnNotFound)
		return
	}
	dto.Success(c, dto.ToTurnResponse(turn))
}

// DeleteTurn 删除单个轮次，不影响已写入的章节正文与事实
// @Summary 删除对话轮次
// @Tags Conversation
// @Param pid path string true "项目 ID"
// @Param tid path string true "轮次 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/turns/{tid} [delete]
func (h *ConversationHandler) DeleteTurn(c *gin.Context) {
	ctx := c.Request.Context()
	turn, err := h.turns.GetByID(ctx, dto.BindTurnID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if turn == nil || turn.ProjectID != dto.BindProjectID(c) {
		dto.Fail(c, apperrors.ErrTurnNotFound)
		return
	}
	if err := h.turns.Delete(ctx, turn.ID); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}
