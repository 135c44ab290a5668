package handler

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"z-writer-api/internal/application/story/continuation"
	"z-writer-api/internal/application/story/generation"
	"z-writer-api/internal/interfaces/http/dto"
	apperrors "z-writer-api/pkg/errors"
	"z-writer-api/pkg/logger"
)

// Generator 流式生成
type Generator interface {
	StreamGenerate(ctx context.Context, req generation.Request) (*generation.Stream, error)
}

// Continuer 章节续写
type Continuer interface {
	Continue(ctx context.Context, req continuation.Request) (*generation.Stream, error)
}

// StreamHandler 流式生成处理器
type StreamHandler struct {
	generator Generator
	continuer Continuer
}

// NewStreamHandler 创建流式生成处理器
func NewStreamHandler(generator Generator, continuer Continuer) *StreamHandler {
	return &StreamHandler{generator: generator, continuer: continuer}
}

// Generate 流式生成
// 请求校验失败时返回普通 JSON 错误；流建立后通过 SSE 推送 content、done、error 事件
// @Summary 流式生成
// @Tags Generation
// @Accept json
// @Produce text/event-stream
// @Param pid path string true "项目 ID"
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/generate [post]
func (h *StreamHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	stream, err := h.generator.StreamGenerate(c.Request.Context(), generation.Request{
		ProjectID:   dto.BindProjectID(c),
		ChapterID:   req.ChapterID,
		UserInput:   req.Input,
		Images:      req.ToTurnImages(),
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}
	writeSSE(c, stream)
}

// Continue 流式续写章节
// @Summary 续写章节
// @Tags Generation
// @Accept json
// @Produce text/event-stream
// @Param pid path string true "项目 ID"
// @Param cid path string true "章节 ID"
// @Param body body dto.ContinueRequest false "模型参数"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{cid}/continue [post]
func (h *StreamHandler) Continue(c *gin.Context) {
	var req dto.ContinueRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	stream, err := h.continuer.Continue(c.Request.Context(), continuation.Request{
		ProjectID:   dto.BindProjectID(c),
		ChapterID:   dto.BindChapterID(c),
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}
	writeSSE(c, stream)
}

// writeSSE 将片段流转发为 SSE，客户端断开时关闭流以取消模型调用
func writeSSE(c *gin.Context, stream *generation.Stream) {
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	index := 0
	c.Stream(func(w io.Writer) bool {
		chunk, err := stream.Recv()
		if err == nil {
			c.SSEvent(dto.EventContent, dto.ContentEvent{Chunk: chunk, Index: index})
			index++
			return true
		}

		if errors.Is(err, io.EOF) {
			result := stream.Result()
			if result == nil {
				// 客户端已断开，生产者提前结束
				return false
			}
			c.SSEvent(dto.EventDone, dto.DoneEvent{
				UserTurnID:      result.UserTurnID,
				AssistantTurnID: result.AssistantTurnID,
				ChapterID:       result.ChapterID,
				ResponseLength:  utf8.RuneCountInString(result.Response),
				Fragments:       result.Fragments,
			})
			return false
		}

		partial, _ := stream.Partial()
		appErr := apperrors.AsAppError(err)
		logger.Warn(c.Request.Context(), "stream terminated with error",
			"code", string(appErr.Code),
			"partial_length", utf8.RuneCountInString(partial),
		)
		c.SSEvent(dto.EventError, dto.ErrorEvent{
			Code:          string(appErr.Code),
			Message:       appErr.Message,
			PartialLength: utf8.RuneCountInString(partial),
		})
		return false
	})
}
