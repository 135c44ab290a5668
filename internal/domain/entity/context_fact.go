package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContextFact 项目级长期记忆，(project_id, context_type, fact_key) 唯一
type ContextFact struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID   string    `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:uk_context_facts_scope,priority:1"`
	ContextType string    `json:"context_type" gorm:"type:varchar(64);not null;uniqueIndex:uk_context_facts_scope,priority:2"`
	Key         string    `json:"key" gorm:"column:fact_key;type:varchar(128);not null;uniqueIndex:uk_context_facts_scope,priority:3"`
	Value       string    `json:"value" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ContextFact) TableName() string {
	return "context_facts"
}

// BeforeCreate 生成主键
func (f *ContextFact) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		f.ID = id.String()
	}
	return nil
}

// NewContextFact 创建事实
func NewContextFact(projectID, contextType, key, value string) *ContextFact {
	return &ContextFact{
		ProjectID:   projectID,
		ContextType: contextType,
		Key:         key,
		Value:       value,
	}
}
