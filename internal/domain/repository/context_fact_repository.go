package repository

import (
	"context"

	"z-writer-api/internal/domain/entity"
)

// ContextFactRepository 上下文事实仓储接口
type ContextFactRepository interface {
	// Upsert 按 (project_id, context_type, key) 插入或更新
	Upsert(ctx context.Context, fact *entity.ContextFact) error

	// GetByID 根据 ID 获取事实，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.ContextFact, error)

	// ListByProject 按 context_type、key 排序返回项目全部事实
	ListByProject(ctx context.Context, projectID string) ([]*entity.ContextFact, error)

	// Delete 删除事实（仅由调用方显式触发）
	Delete(ctx context.Context, id string) error
}
