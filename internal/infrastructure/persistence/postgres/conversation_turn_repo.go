// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"slices"

	"gorm.io/gorm"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	apperrors "z-writer-api/pkg/errors"
)

type ConversationTurnRepository struct {
	client *Client
}

func NewConversationTurnRepository(client *Client) *ConversationTurnRepository {
	return &ConversationTurnRepository{client: client}
}

func (r *ConversationTurnRepository) Create(ctx context.Context, turn *entity.ConversationTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationTurnRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(turn).Error; err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to create conversation turn")
	}
	if err := touchProject(db, turn.ProjectID); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to touch project")
	}
	return nil
}

func (r *ConversationTurnRepository) GetByID(ctx context.Context, id string) (*entity.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationTurnRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var turn entity.ConversationTurn
	if err := db.First(&turn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to get conversation turn")
	}
	return &turn, nil
}

func (r *ConversationTurnRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationTurnRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := deleteOwned(db, &entity.ConversationTurn{}, id); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to delete conversation turn")
	}
	return nil
}

func (r *ConversationTurnRepository) ListByProject(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationTurnRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ConversationTurn{}).Where("project_id = ?", projectID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to count conversation turns")
	}

	var turns []*entity.ConversationTurn
	if err := query.Order("created_at ASC").Order("id ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to list conversation turns")
	}

	return repository.NewPagedResult(turns, total, pagination), nil
}

// ListRecent 先按时间倒序取最近 limit 条，再反转为正序
func (r *ConversationTurnRepository) ListRecent(ctx context.Context, projectID string, limit int) ([]*entity.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationTurnRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var turns []*entity.ConversationTurn
	if err := db.Where("project_id = ?", projectID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to list recent conversation turns")
	}

	slices.Reverse(turns)
	return turns, nil
}
