package dto

import (
	"time"

	"z-writer-api/internal/application/story/contextbuilder"
	"z-writer-api/internal/domain/entity"
)

// UpsertFactRequest 手动写入事实，context_type 为空时使用项目类型的默认命名空间
type UpsertFactRequest struct {
	ContextType string `json:"context_type" binding:"max=32"`
	Key         string `json:"key" binding:"required,max=64"`
	Value       string `json:"value" binding:"required,max=2000"`
}

// FactResponse 事实响应
type FactResponse struct {
	ID          string    `json:"id"`
	ContextType string    `json:"context_type"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FactListResponse 事实列表
type FactListResponse struct {
	Facts []*FactResponse `json:"facts"`
}

func ToFactResponse(f *entity.ContextFact) *FactResponse {
	if f == nil {
		return nil
	}
	return &FactResponse{
		ID:          f.ID,
		ContextType: f.ContextType,
		Key:         f.Key,
		Value:       f.Value,
		UpdatedAt:   f.UpdatedAt,
	}
}

func ToFactListResponse(facts []*entity.ContextFact) *FactListResponse {
	out := make([]*FactResponse, 0, len(facts))
	for _, f := range facts {
		out = append(out, ToFactResponse(f))
	}
	return &FactListResponse{Facts: out}
}

// ContextResponse 上下文窗口预览
type ContextResponse struct {
	Facts    []contextbuilder.FactLine       `json:"facts"`
	Chapters []contextbuilder.ChapterPreview `json:"chapters"`
	Turns    []contextbuilder.TurnPreview    `json:"turns"`
	Text     string                          `json:"text"`
}

func ToContextResponse(w *contextbuilder.Window) *ContextResponse {
	return &ContextResponse{
		Facts:    w.Facts,
		Chapters: w.Chapters,
		Turns:    w.Turns,
		Text:     w.Text,
	}
}
