// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TurnImage 对话附带的图片，Data 为 base64 编码
type TurnImage struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// ConversationTurn 对话轮次，写入后不可变
type ConversationTurn struct {
	ID        string      `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID string      `json:"project_id" gorm:"type:uuid;not null;index:idx_turns_project_created,priority:1"`
	ChapterID *string     `json:"chapter_id,omitempty" gorm:"type:uuid;index"`
	Role      Role        `json:"role" gorm:"type:varchar(16);not null"`
	Content   string      `json:"content" gorm:"type:text;not null"`
	Images    []TurnImage `json:"images,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time   `json:"created_at" gorm:"autoCreateTime;index:idx_turns_project_created,priority:2"`
}

// TableName 指定表名
func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

// BeforeCreate 生成 UUIDv7 主键，保证同一时刻写入的轮次仍可按主键排序
func (t *ConversationTurn) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		t.ID = id.String()
	}
	return nil
}

// NewConversationTurn 创建对话轮次，chapterID 为空表示不关联章节
func NewConversationTurn(projectID, chapterID string, role Role, content string, images []TurnImage) *ConversationTurn {
	turn := &ConversationTurn{
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		Images:    images,
		CreatedAt: time.Now(),
	}
	if chapterID != "" {
		turn.ChapterID = &chapterID
	}
	return turn
}
