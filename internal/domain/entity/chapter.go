// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChapterSeparator 追加正文时与已有正文之间的分隔
const ChapterSeparator = "\n\n"

// Chapter 章节实体
type Chapter struct {
	ID         string `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID  string `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:uk_chapters_project_order,priority:1"`
	Title      string `json:"title" gorm:"type:varchar(255)"`
	OrderIndex int    `json:"order_index" gorm:"not null;uniqueIndex:uk_chapters_project_order,priority:2"`
	// ContentText 正文只追加，不覆盖
	ContentText string    `json:"content_text" gorm:"type:text;not null;default:''"`
	WordCount   int       `json:"word_count" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// BeforeCreate 生成按时间有序的主键
func (c *Chapter) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		c.ID = id.String()
	}
	return nil
}

// NewChapter 创建空章节
func NewChapter(projectID, title string, orderIndex int) *Chapter {
	now := time.Now()
	return &Chapter{
		ProjectID:  projectID,
		Title:      strings.TrimSpace(title),
		OrderIndex: orderIndex,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsEmpty 正文是否尚未写入
func (c *Chapter) IsEmpty() bool {
	return strings.TrimSpace(c.ContentText) == ""
}

// AppendedBody 计算追加后的正文：空正文直接取追加内容，否则以空行分隔
func AppendedBody(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if strings.TrimSpace(existing) == "" {
		return addition
	}
	return existing + ChapterSeparator + addition
}
