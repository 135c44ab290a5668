// Package continuation 续写章节：把章节完整正文嵌入续写提示词后交给生成流程
package continuation

import (
	"context"
	"fmt"
	"strings"

	"z-writer-api/internal/application/story/generation"
	"z-writer-api/internal/domain/repository"
	workflowprompt "z-writer-api/internal/workflow/prompt"
	apperrors "z-writer-api/pkg/errors"
)

// Generator 生成流程
type Generator interface {
	StreamGenerate(ctx context.Context, req generation.Request) (*generation.Stream, error)
}

// Request 续写请求
type Request struct {
	ProjectID   string
	ChapterID   string
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// Controller 续写控制器，除章节正文外不持有状态。
// 每次调用都会追加正文，重复调用使正文单调增长。
type Controller struct {
	projects  repository.ProjectRepository
	chapters  repository.ChapterRepository
	prompts   generation.PromptRenderer
	generator Generator
}

func NewController(
	projects repository.ProjectRepository,
	chapters repository.ChapterRepository,
	prompts generation.PromptRenderer,
	generator Generator,
) *Controller {
	return &Controller{
		projects:  projects,
		chapters:  chapters,
		prompts:   prompts,
		generator: generator,
	}
}

// Continue 启动续写流
func (c *Controller) Continue(ctx context.Context, req Request) (*generation.Stream, error) {
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.ChapterID = strings.TrimSpace(req.ChapterID)
	if req.ProjectID == "" {
		return nil, apperrors.Validation("project_id is required")
	}
	if req.ChapterID == "" {
		return nil, apperrors.Validation("chapter_id is required")
	}

	project, err := c.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.ErrProjectNotFound
	}
	chapter, err := c.chapters.GetByID(ctx, req.ChapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil || chapter.ProjectID != project.ID {
		return nil, apperrors.ErrChapterNotFound
	}

	// 嵌入完整正文而非上下文中的截断预览
	instruction, err := c.prompts.Render(ctx, workflowprompt.PromptContinuationV1, map[string]any{
		workflowprompt.VarChapterTitle: chapterTitle(chapter.Title),
		workflowprompt.VarChapterOrder: chapter.OrderIndex,
		workflowprompt.VarChapterBody:  chapter.ContentText,
	})
	if err != nil {
		return nil, err
	}

	return c.generator.StreamGenerate(ctx, generation.Request{
		ProjectID:   project.ID,
		ChapterID:   chapter.ID,
		UserInput:   instruction,
		TurnText:    TurnText(chapter.OrderIndex, chapter.Title),
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Workflow:    generation.WorkflowContinue,
	})
}

// TurnText 续写请求在对话记录中的文本
func TurnText(order int, title string) string {
	return fmt.Sprintf("Continue chapter %d %q.", order, chapterTitle(title))
}

func chapterTitle(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return "untitled"
}
