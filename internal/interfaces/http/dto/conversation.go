package dto

import (
	"time"

	"z-writer-api/internal/domain/entity"
)

// ImageInput 请求附带的图片
type ImageInput struct {
	MIMEType string `json:"mime_type" binding:"required"`
	Data     string `json:"data" binding:"required"`
}

// ModelOptions 单次请求的模型覆盖项
type ModelOptions struct {
	Provider    string   `json:"provider,omitempty" binding:"max=32"`
	Model       string   `json:"model,omitempty" binding:"max=64"`
	Temperature *float32 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens,omitempty" binding:"omitempty,gt=0"`
}

// GenerateRequest 流式生成请求
type GenerateRequest struct {
	Input     string       `json:"input" binding:"required"`
	ChapterID string       `json:"chapter_id,omitempty"`
	Images    []ImageInput `json:"images,omitempty" binding:"omitempty,dive"`
	ModelOptions
}

// ContinueRequest 续写请求
type ContinueRequest struct {
	ModelOptions
}

// ToTurnImages 转换为领域图片
func (r *GenerateRequest) ToTurnImages() []entity.TurnImage {
	if len(r.Images) == 0 {
		return nil
	}
	out := make([]entity.TurnImage, 0, len(r.Images))
	for _, img := range r.Images {
		out = append(out, entity.TurnImage{MIMEType: img.MIMEType, Data: img.Data})
	}
	return out
}

// TurnResponse 对话轮次响应，图片只返回数量
type TurnResponse struct {
	ID         string    `json:"id"`
	ChapterID  string    `json:"chapter_id,omitempty"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ImageCount int       `json:"image_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TurnListResponse 对话轮次列表
type TurnListResponse struct {
	Turns []*TurnResponse `json:"turns"`
}

func ToTurnResponse(t *entity.ConversationTurn) *TurnResponse {
	if t == nil {
		return nil
	}
	resp := &TurnResponse{
		ID:         t.ID,
		Role:       string(t.Role),
		Content:    t.Content,
		ImageCount: len(t.Images),
		CreatedAt:  t.CreatedAt,
	}
	if t.ChapterID != nil {
		resp.ChapterID = *t.ChapterID
	}
	return resp
}

func ToTurnListResponse(turns []*entity.ConversationTurn) *TurnListResponse {
	out := make([]*TurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, ToTurnResponse(t))
	}
	return &TurnListResponse{Turns: out}
}
