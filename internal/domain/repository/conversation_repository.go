// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-api/internal/domain/entity"
)

// ConversationTurnRepository 对话轮次仓储接口
type ConversationTurnRepository interface {
	// Create 写入轮次并刷新项目 updated_at
	Create(ctx context.Context, turn *entity.ConversationTurn) error

	// GetByID 根据 ID 获取轮次，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.ConversationTurn, error)

	// Delete 删除轮次
	Delete(ctx context.Context, id string) error

	// ListByProject 按时间正序分页
	ListByProject(ctx context.Context, projectID string, pagination Pagination) (*PagedResult[*entity.ConversationTurn], error)

	// ListRecent 最近 limit 条轮次，按时间正序返回
	ListRecent(ctx context.Context, projectID string, limit int) ([]*entity.ConversationTurn, error)
}
