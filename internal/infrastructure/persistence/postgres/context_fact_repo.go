// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-writer-api/internal/domain/entity"
	apperrors "z-writer-api/pkg/errors"
)

// ContextFactRepository 上下文事实仓储实现
type ContextFactRepository struct {
	client *Client
}

// NewContextFactRepository 创建上下文事实仓储
func NewContextFactRepository(client *Client) *ContextFactRepository {
	return &ContextFactRepository{client: client}
}

// Upsert 按唯一键插入或原地更新 value 与 updated_at
func (r *ContextFactRepository) Upsert(ctx context.Context, fact *entity.ContextFact) error {
	ctx, span := tracer.Start(ctx, "postgres.ContextFactRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	fact.UpdatedAt = time.Now()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "context_type"}, {Name: "fact_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(fact).Error
	if err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to upsert context fact")
	}
	// 冲突更新时主键沿用已有行，回读以同步 ID 与创建时间
	var stored entity.ContextFact
	if err := db.Where("project_id = ? AND context_type = ? AND fact_key = ?", fact.ProjectID, fact.ContextType, fact.Key).
		First(&stored).Error; err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to reload context fact")
	}
	*fact = stored
	if err := touchProject(db, fact.ProjectID); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to touch project")
	}
	return nil
}

// GetByID 根据 ID 获取事实
func (r *ContextFactRepository) GetByID(ctx context.Context, id string) (*entity.ContextFact, error) {
	ctx, span := tracer.Start(ctx, "postgres.ContextFactRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var fact entity.ContextFact
	if err := db.First(&fact, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to get context fact")
	}
	return &fact, nil
}

// ListByProject 返回项目全部事实
func (r *ContextFactRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.ContextFact, error) {
	ctx, span := tracer.Start(ctx, "postgres.ContextFactRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var facts []*entity.ContextFact
	if err := db.Where("project_id = ?", projectID).
		Order("context_type ASC").Order("fact_key ASC").
		Find(&facts).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to list context facts")
	}
	return facts, nil
}

// Delete 删除事实
func (r *ContextFactRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ContextFactRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := deleteOwned(db, &entity.ContextFact{}, id); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to delete context fact")
	}
	return nil
}
