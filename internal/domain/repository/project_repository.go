// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-api/internal/domain/entity"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	// Create 创建项目
	Create(ctx context.Context, project *entity.Project) error

	// GetByID 根据 ID 获取项目，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Project, error)

	// Update 更新标题、描述与类型
	Update(ctx context.Context, project *entity.Project) error

	// Delete 删除项目，级联删除章节、对话与事实
	Delete(ctx context.Context, id string) error

	// List 按最近更新时间倒序分页
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Project], error)

	// Touch 刷新 updated_at
	Touch(ctx context.Context, id string) error
}
