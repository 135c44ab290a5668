// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"z-writer-api/internal/domain/entity"
	apperrors "z-writer-api/pkg/errors"
)

// appendContentExpr 单条语句完成追加：空正文直接写入，否则以空行分隔
const appendContentExpr = "CASE WHEN TRIM(content_text) = '' THEN ? ELSE content_text || ? END"

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(chapter).Error; err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Wrap(err, apperrors.CodeConflict, "chapter order index already used in project")
		}
		return apperrors.Storage(err, "failed to create chapter")
	}
	if err := touchProject(db, chapter.ProjectID); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to touch project")
	}
	return nil
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to get chapter")
	}
	return &chapter, nil
}

// Update 更新标题与排序号
func (r *ChapterRepository) Update(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	chapter.UpdatedAt = time.Now()
	err := db.Model(&entity.Chapter{}).
		Where("id = ?", chapter.ID).
		Updates(map[string]any{
			"title":       chapter.Title,
			"order_index": chapter.OrderIndex,
			"updated_at":  chapter.UpdatedAt,
		}).Error
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Wrap(err, apperrors.CodeConflict, "chapter order index already used in project")
		}
		return apperrors.Storage(err, "failed to update chapter")
	}
	if err := touchProject(db, chapter.ProjectID); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to touch project")
	}
	return nil
}

// Delete 删除章节
func (r *ChapterRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := deleteOwned(db, &entity.Chapter{}, id); err != nil {
		span.RecordError(err)
		return apperrors.Storage(err, "failed to delete chapter")
	}
	return nil
}

// ListByProject 获取项目全部章节（按 order_index 升序）
func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("project_id = ?", projectID).
		Order("order_index ASC").
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to list chapters")
	}
	return chapters, nil
}

// AppendContent 追加正文
//
// 追加在一条 UPDATE 中完成，不读取旧正文；同一章节的并发追加不会丢失，但先后顺序不保证。
func (r *ChapterRepository) AppendContent(ctx context.Context, id, addition string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.AppendContent")
	defer span.End()

	addition = strings.TrimSpace(addition)
	db := getDB(ctx, r.client.db)

	res := db.Model(&entity.Chapter{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"content_text": gorm.Expr(appendContentExpr, addition, entity.ChapterSeparator+addition),
			"word_count":   gorm.Expr("word_count + ?", utf8.RuneCountInString(addition)),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return nil, apperrors.Storage(res.Error, "failed to append chapter content")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to reload chapter")
	}
	if err := touchProject(db, chapter.ProjectID); err != nil {
		span.RecordError(err)
		return nil, apperrors.Storage(err, "failed to touch project")
	}
	return &chapter, nil
}
