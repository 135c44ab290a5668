// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	apperrors "z-writer-api/pkg/errors"
)

// ProjectRepository 项目仓储实现
type ProjectRepository struct {
	client *Client
}

// NewProjectRepository 创建项目仓储
func NewProjectRepository(client *Client) *ProjectRepository {
	return &ProjectRepository{client: client}
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(project).Error; err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to create project")
	}
	return nil
}

// GetByID 根据 ID 获取项目
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var project entity.Project
	if err := db.First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to get project")
	}
	return &project, nil
}

// Update 更新标题、描述与类型
func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	project.UpdatedAt = time.Now()
	err := db.Model(&entity.Project{}).
		Where("id = ?", project.ID).
		Updates(map[string]any{
			"title":       project.Title,
			"description": project.Description,
			"kind":        project.Kind,
			"updated_at":  project.UpdatedAt,
		}).Error
	if err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to update project")
	}
	return nil
}

// Delete 删除项目及其拥有的全部数据
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.Delete")
	defer span.End()

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&entity.ContextFact{}, &entity.ConversationTurn{}, &entity.Chapter{}} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&entity.Project{}, "id = ?", id).Error
	})
	if err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to delete project")
	}
	return nil
}

// List 按最近更新时间倒序分页
func (r *ProjectRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Project{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to count projects")
	}

	var projects []*entity.Project
	if err := query.Order("updated_at DESC").Order("id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&projects).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to list projects")
	}

	return repository.NewPagedResult(projects, total, pagination), nil
}

// Touch 刷新 updated_at
func (r *ProjectRepository) Touch(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.Touch")
	defer span.End()

	if err := touchProject(getDB(ctx, r.client.db), id); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to touch project")
	}
	return nil
}
