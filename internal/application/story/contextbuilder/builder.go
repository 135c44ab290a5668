// Package contextbuilder 从持久化状态组装有界的上下文窗口
package contextbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/pkg/logger"
	"z-writer-api/pkg/metrics"
)

// Cache 上下文缓存，命中与否由 hit 返回
type Cache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, bool, error)
}

// Options 预览上限
type Options struct {
	ChapterPreviewRunes int
	RecentTurns         int
	TurnPreviewRunes    int
	CacheTTL            time.Duration
}

// DefaultOptions 默认上限
func DefaultOptions() Options {
	return Options{
		ChapterPreviewRunes: 800,
		RecentTurns:         8,
		TurnPreviewRunes:    150,
		CacheTTL:            10 * time.Minute,
	}
}

type Builder struct {
	facts    repository.ContextFactRepository
	chapters repository.ChapterRepository
	turns    repository.ConversationTurnRepository
	cache    Cache
	opts     Options
}

// NewBuilder 创建上下文构建器，cache 为 nil 时每次直接读库
func NewBuilder(
	facts repository.ContextFactRepository,
	chapters repository.ChapterRepository,
	turns repository.ConversationTurnRepository,
	cache Cache,
	opts Options,
) *Builder {
	def := DefaultOptions()
	if opts.ChapterPreviewRunes <= 0 {
		opts.ChapterPreviewRunes = def.ChapterPreviewRunes
	}
	if opts.RecentTurns < 0 {
		opts.RecentTurns = def.RecentTurns
	}
	if opts.TurnPreviewRunes <= 0 {
		opts.TurnPreviewRunes = def.TurnPreviewRunes
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	return &Builder{
		facts:    facts,
		chapters: chapters,
		turns:    turns,
		cache:    cache,
		opts:     opts,
	}
}

// Build 组装项目的上下文窗口。
// 缓存键包含项目 updated_at，章节、轮次与事实的任何写入都会使旧键失效。
func (b *Builder) Build(ctx context.Context, project *entity.Project) (*Window, error) {
	if b == nil {
		return nil, fmt.Errorf("context builder not configured")
	}
	start := time.Now()

	if b.cache == nil {
		w, err := b.load(ctx, project.ID)
		metrics.ContextBuildDuration.WithLabelValues("disabled").Observe(time.Since(start).Seconds())
		return w, err
	}

	key := cacheKey(project)
	raw, hit, err := b.cache.GetOrLoadSafe(ctx, key, b.opts.CacheTTL, func(ctx context.Context) (any, error) {
		return b.load(ctx, project.ID)
	})
	if err == nil {
		var w Window
		if err = json.Unmarshal(raw, &w); err == nil {
			label := "miss"
			if hit {
				label = "hit"
			}
			metrics.ContextBuildDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
			return &w, nil
		}
	}

	// 缓存不可用时退化为直接读库
	logger.Warn(ctx, "context cache unavailable, building directly", "key", key, "error", err.Error())
	w, err := b.load(ctx, project.ID)
	metrics.ContextBuildDuration.WithLabelValues("disabled").Observe(time.Since(start).Seconds())
	return w, err
}

func (b *Builder) load(ctx context.Context, projectID string) (*Window, error) {
	facts, err := b.facts.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	chapters, err := b.chapters.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var turns []*entity.ConversationTurn
	if b.opts.RecentTurns > 0 {
		turns, err = b.turns.ListRecent(ctx, projectID, b.opts.RecentTurns)
		if err != nil {
			return nil, err
		}
	}

	w := &Window{
		Facts:    factLines(facts),
		Chapters: chapterPreviews(chapters, b.opts.ChapterPreviewRunes),
		Turns:    turnPreviews(turns, b.opts.TurnPreviewRunes),
	}
	w.Text = w.render()
	return w, nil
}

func cacheKey(project *entity.Project) string {
	return fmt.Sprintf("ctx:%s:%d", project.ID, project.UpdatedAt.UnixNano())
}
