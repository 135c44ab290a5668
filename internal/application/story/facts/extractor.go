package facts

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	apperrors "z-writer-api/pkg/errors"
	"z-writer-api/pkg/logger"
	"z-writer-api/pkg/metrics"
)

var tracer = otel.Tracer("story.facts")

// Exchange 一次完成的问答
type Exchange struct {
	ProjectID       string             `json:"project_id"`
	Kind            entity.ProjectKind `json:"project_kind"`
	ChapterID       string             `json:"chapter_id,omitempty"`
	AssistantTurnID string             `json:"assistant_turn_id"`
	UserInput       string             `json:"user_input"`
	Response        string             `json:"response"`
}

// Text 抽取所用文本：用户输入在前，回复在后
func (e Exchange) Text() string {
	return e.UserInput + "\n" + e.Response
}

// Extractor 按项目类型的规则表抽取事实并写入
type Extractor struct {
	facts repository.ContextFactRepository
	tx    repository.Transactor
	sets  map[entity.ProjectKind]*RuleSet
}

// NewExtractor 为每种项目类型编译规则表
func NewExtractor(facts repository.ContextFactRepository, tx repository.Transactor, maxValueRunes int) (*Extractor, error) {
	e := &Extractor{
		facts: facts,
		tx:    tx,
		sets:  make(map[entity.ProjectKind]*RuleSet),
	}
	for _, kind := range entity.AllProjectKinds() {
		rs, err := NewRuleSet(RulesFor(kind), maxValueRunes)
		if err != nil {
			return nil, fmt.Errorf("compile rules for %s: %w", kind, err)
		}
		e.sets[kind] = rs
	}
	return e, nil
}

// Extract 抽取并写入事实，返回写入后的事实；无匹配时返回空
func (e *Extractor) Extract(ctx context.Context, ex Exchange) ([]*entity.ContextFact, error) {
	ctx, span := tracer.Start(ctx, "facts.Extract",
		trace.WithAttributes(
			attribute.String("project_id", ex.ProjectID),
			attribute.String("project_kind", string(ex.Kind)),
		))
	defer span.End()

	profile, ok := entity.ProfileOf(ex.Kind)
	if !ok {
		return nil, apperrors.Extraction(fmt.Errorf("unknown project kind %q", ex.Kind), "no rules for project kind")
	}

	matches := e.sets[ex.Kind].Match(ex.Text())
	span.SetAttributes(attribute.Int("facts.matches", len(matches)))
	if len(matches) == 0 {
		return nil, nil
	}

	stored := make([]*entity.ContextFact, 0, len(matches))
	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, m := range matches {
			fact := entity.NewContextFact(ex.ProjectID, profile.ContextType, m.Label, m.Value)
			if err := e.facts.Upsert(txCtx, fact); err != nil {
				return err
			}
			stored = append(stored, fact)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Extraction(err, "failed to store extracted facts")
	}

	for _, f := range stored {
		metrics.FactUpsertTotal.WithLabelValues(string(ex.Kind), f.Key).Inc()
	}
	logger.Debug(ctx, "context facts extracted", "project_id", ex.ProjectID, "count", len(stored))
	return stored, nil
}
