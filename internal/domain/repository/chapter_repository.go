// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-api/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
//
// 创建、改名与追加正文都会刷新所属项目的 updated_at。
type ChapterRepository interface {
	// Create 创建空章节
	Create(ctx context.Context, chapter *entity.Chapter) error

	// GetByID 根据 ID 获取章节，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// Update 更新标题与排序号，不修改正文
	Update(ctx context.Context, chapter *entity.Chapter) error

	// Delete 删除章节
	Delete(ctx context.Context, id string) error

	// ListByProject 获取项目全部章节（按 order_index 升序）
	ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error)

	// AppendContent 在正文末尾追加内容并返回更新后的章节
	AppendContent(ctx context.Context, id, addition string) (*entity.Chapter, error)
}
