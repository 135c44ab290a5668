// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	apperrors "z-writer-api/pkg/errors"
)

// loadProject 读取项目，不存在时返回 ErrProjectNotFound
func loadProject(ctx context.Context, projects repository.ProjectRepository, id string) (*entity.Project, error) {
	if id == "" {
		return nil, apperrors.Validation("project_id is required")
	}
	project, err := projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.ErrProjectNotFound
	}
	return project, nil
}

// loadChapter 读取章节并校验归属，跨项目访问按不存在处理
func loadChapter(ctx context.Context, chapters repository.ChapterRepository, projectID, id string) (*entity.Chapter, error) {
	chapter, err := chapters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if chapter == nil || chapter.ProjectID != projectID {
		return nil, apperrors.ErrChapterNotFound
	}
	return chapter, nil
}
