// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project 写作项目实体
type Project struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string      `json:"title" gorm:"type:varchar(255);not null"`
	Description string      `json:"description,omitempty" gorm:"type:text"`
	Kind        ProjectKind `json:"kind" gorm:"type:varchar(32);not null;default:'structured-document'"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime;index"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate 生成按时间有序的主键
func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		p.ID = id.String()
	}
	return nil
}

// NewProject 创建新项目
func NewProject(title, description string, kind ProjectKind) *Project {
	now := time.Now()
	return &Project{
		Title:       strings.TrimSpace(title),
		Description: description,
		Kind:        kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Profile 返回项目类型对应的能力配置
func (p *Project) Profile() KindProfile {
	profile, _ := ProfileOf(p.Kind)
	return profile
}
