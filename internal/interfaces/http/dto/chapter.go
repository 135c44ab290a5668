package dto

import (
	"time"

	"z-writer-api/internal/domain/entity"
)

// CreateChapterRequest 创建空章节请求
type CreateChapterRequest struct {
	Title      string `json:"title" binding:"max=255"`
	OrderIndex int    `json:"order_index" binding:"gte=0"`
}

// UpdateChapterRequest 更新标题或排序，正文只能通过生成追加
type UpdateChapterRequest struct {
	Title      *string `json:"title,omitempty" binding:"omitempty,max=255"`
	OrderIndex *int    `json:"order_index,omitempty" binding:"omitempty,gte=0"`
}

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	OrderIndex  int       `json:"order_index"`
	ContentText string    `json:"content_text,omitempty"`
	WordCount   int       `json:"word_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChapterListResponse 章节列表，不含正文
type ChapterListResponse struct {
	Chapters []*ChapterResponse `json:"chapters"`
}

// ToChapterResponse 转换章节，withBody 控制是否返回正文
func ToChapterResponse(ch *entity.Chapter, withBody bool) *ChapterResponse {
	if ch == nil {
		return nil
	}
	resp := &ChapterResponse{
		ID:         ch.ID,
		ProjectID:  ch.ProjectID,
		Title:      ch.Title,
		OrderIndex: ch.OrderIndex,
		WordCount:  ch.WordCount,
		CreatedAt:  ch.CreatedAt,
		UpdatedAt:  ch.UpdatedAt,
	}
	if withBody {
		resp.ContentText = ch.ContentText
	}
	return resp
}

// ToChapterListResponse 转换章节列表
func ToChapterListResponse(chapters []*entity.Chapter) *ChapterListResponse {
	out := make([]*ChapterResponse, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, ToChapterResponse(ch, false))
	}
	return &ChapterListResponse{Chapters: out}
}
