package dto

import (
	"time"

	"z-writer-api/internal/domain/entity"
)

// CreateProjectRequest 创建项目请求，kind 为空时使用 structured-document
type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"max=5000"`
	Kind        string `json:"kind" binding:"max=32"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=5000"`
	Kind        *string `json:"kind,omitempty" binding:"omitempty,max=32"`
}

// CapabilitiesResponse 项目类型能力
type CapabilitiesResponse struct {
	ChapterWriting bool `json:"chapter_writing"`
	ImageInput     bool `json:"image_input"`
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description,omitempty"`
	Kind         string               `json:"kind"`
	Capabilities CapabilitiesResponse `json:"capabilities"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ProjectListResponse 项目列表响应
type ProjectListResponse struct {
	Projects []*ProjectResponse `json:"projects"`
}

// ToProjectResponse 将领域实体转换为响应 DTO
func ToProjectResponse(p *entity.Project) *ProjectResponse {
	if p == nil {
		return nil
	}
	caps := p.Profile().Capabilities
	return &ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Kind:        string(p.Kind),
		Capabilities: CapabilitiesResponse{
			ChapterWriting: caps.ChapterWriting,
			ImageInput:     caps.ImageInput,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ToProjectListResponse 转换项目列表
func ToProjectListResponse(projects []*entity.Project) *ProjectListResponse {
	out := make([]*ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, ToProjectResponse(p))
	}
	return &ProjectListResponse{Projects: out}
}
