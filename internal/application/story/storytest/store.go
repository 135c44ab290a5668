// Package storytest 提供 story 应用层测试用的内存仓储与脚本化模型
package storytest

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	apperrors "z-writer-api/pkg/errors"
)

// ErrInjected 注入的存储故障
var ErrInjected = errors.New("injected storage failure")

// Store 内存版四张表，时间戳单调递增
type Store struct {
	mu       sync.Mutex
	clock    time.Time
	projects map[string]*entity.Project
	chapters map[string]*entity.Chapter
	turns    []*entity.ConversationTurn
	facts    map[string]*entity.ContextFact

	// FailTurnCreate 非空时 Create 轮次按角色失败
	FailTurnCreate map[entity.Role]bool
	// FailAppend 使章节追加失败
	FailAppend bool
	// FailFactUpsert 使事实写入失败
	FailFactUpsert bool
}

func NewStore() *Store {
	return &Store{
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		projects: make(map[string]*entity.Project),
		chapters: make(map[string]*entity.Chapter),
		facts:    make(map[string]*entity.ContextFact),
	}
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) touch(projectID string) {
	if p, ok := s.projects[projectID]; ok {
		p.UpdatedAt = s.tick()
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

// Projects 返回项目仓储视图
func (s *Store) Projects() repository.ProjectRepository { return projectRepo{s} }

// Chapters 返回章节仓储视图
func (s *Store) Chapters() repository.ChapterRepository { return chapterRepo{s} }

// Turns 返回对话仓储视图
func (s *Store) Turns() repository.ConversationTurnRepository { return turnRepo{s} }

// Facts 返回事实仓储视图
func (s *Store) Facts() repository.ContextFactRepository { return factRepo{s} }

// Transactor 直接执行回调
func (s *Store) Transactor() repository.Transactor { return txRepo{} }

// AllTurns 按写入顺序返回全部轮次
func (s *Store) AllTurns() []*entity.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.ConversationTurn, 0, len(s.turns))
	for _, t := range s.turns {
		out = append(out, clone(t))
	}
	return out
}

type txRepo struct{}

func (txRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type projectRepo struct{ s *Store }

func (r projectRepo) Create(_ context.Context, p *entity.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	now := r.s.tick()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.projects[p.ID] = clone(p)
	return nil
}

func (r projectRepo) GetByID(_ context.Context, id string) (*entity.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (r projectRepo) Update(_ context.Context, p *entity.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.UpdatedAt = r.s.tick()
	r.s.projects[p.ID] = clone(p)
	return nil
}

func (r projectRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.projects, id)
	for k, ch := range r.s.chapters {
		if ch.ProjectID == id {
			delete(r.s.chapters, k)
		}
	}
	r.s.turns = slices.DeleteFunc(r.s.turns, func(t *entity.ConversationTurn) bool { return t.ProjectID == id })
	for k, f := range r.s.facts {
		if f.ProjectID == id {
			delete(r.s.facts, k)
		}
	}
	return nil
}

func (r projectRepo) List(_ context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := make([]*entity.Project, 0, len(r.s.projects))
	for _, p := range r.s.projects {
		items = append(items, clone(p))
	}
	slices.SortFunc(items, func(a, b *entity.Project) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	total := int64(len(items))
	lo, hi := pagination.Bounds(len(items))
	return repository.NewPagedResult(items[lo:hi], total, pagination), nil
}

func (r projectRepo) Touch(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.touch(id)
	return nil
}

type chapterRepo struct{ s *Store }

func (r chapterRepo) Create(_ context.Context, ch *entity.Chapter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.chapters {
		if existing.ProjectID == ch.ProjectID && existing.OrderIndex == ch.OrderIndex {
			return apperrors.New(apperrors.CodeConflict, "chapter order index already used")
		}
	}
	if ch.ID == "" {
		ch.ID = newID()
	}
	now := r.s.tick()
	ch.CreatedAt, ch.UpdatedAt = now, now
	r.s.chapters[ch.ID] = clone(ch)
	r.s.touch(ch.ProjectID)
	return nil
}

func (r chapterRepo) GetByID(_ context.Context, id string) (*entity.Chapter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch, ok := r.s.chapters[id]
	if !ok {
		return nil, nil
	}
	return clone(ch), nil
}

func (r chapterRepo) Update(_ context.Context, ch *entity.Chapter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.chapters[ch.ID]
	if !ok {
		return apperrors.ErrChapterNotFound
	}
	stored.Title = ch.Title
	stored.OrderIndex = ch.OrderIndex
	stored.UpdatedAt = r.s.tick()
	r.s.touch(stored.ProjectID)
	return nil
}

func (r chapterRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ch, ok := r.s.chapters[id]; ok {
		delete(r.s.chapters, id)
		r.s.touch(ch.ProjectID)
	}
	return nil
}

func (r chapterRepo) ListByProject(_ context.Context, projectID string) ([]*entity.Chapter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Chapter
	for _, ch := range r.s.chapters {
		if ch.ProjectID == projectID {
			out = append(out, clone(ch))
		}
	}
	slices.SortFunc(out, func(a, b *entity.Chapter) int { return cmp.Compare(a.OrderIndex, b.OrderIndex) })
	return out, nil
}

func (r chapterRepo) AppendContent(_ context.Context, id, addition string) (*entity.Chapter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAppend {
		return nil, apperrors.Storage(ErrInjected, "failed to append chapter content")
	}
	ch, ok := r.s.chapters[id]
	if !ok {
		return nil, apperrors.ErrChapterNotFound
	}
	ch.ContentText = entity.AppendedBody(ch.ContentText, addition)
	ch.WordCount = len([]rune(ch.ContentText))
	ch.UpdatedAt = r.s.tick()
	r.s.touch(ch.ProjectID)
	return clone(ch), nil
}

type turnRepo struct{ s *Store }

func (r turnRepo) Create(_ context.Context, t *entity.ConversationTurn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailTurnCreate[t.Role] {
		return apperrors.Storage(ErrInjected, "failed to create conversation turn")
	}
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = r.s.tick()
	r.s.turns = append(r.s.turns, clone(t))
	r.s.touch(t.ProjectID)
	return nil
}

func (r turnRepo) GetByID(_ context.Context, id string) (*entity.ConversationTurn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.turns {
		if t.ID == id {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (r turnRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.turns = slices.DeleteFunc(r.s.turns, func(t *entity.ConversationTurn) bool {
		if t.ID != id {
			return false
		}
		r.s.touch(t.ProjectID)
		return true
	})
	return nil
}

func (r turnRepo) byProject(projectID string) []*entity.ConversationTurn {
	var out []*entity.ConversationTurn
	for _, t := range r.s.turns {
		if t.ProjectID == projectID {
			out = append(out, clone(t))
		}
	}
	return out
}

func (r turnRepo) ListByProject(_ context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.byProject(projectID)
	lo, hi := pagination.Bounds(len(all))
	return repository.NewPagedResult(all[lo:hi], int64(len(all)), pagination), nil
}

func (r turnRepo) ListRecent(_ context.Context, projectID string, limit int) ([]*entity.ConversationTurn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.byProject(projectID)
	if limit <= 0 {
		return nil, nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type factRepo struct{ s *Store }

func factKey(f *entity.ContextFact) string {
	return f.ProjectID + "\x00" + f.ContextType + "\x00" + f.Key
}

func (r factRepo) Upsert(_ context.Context, f *entity.ContextFact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailFactUpsert {
		return apperrors.Storage(ErrInjected, "failed to upsert context fact")
	}
	now := r.s.tick()
	if existing, ok := r.s.facts[factKey(f)]; ok {
		existing.Value = f.Value
		existing.UpdatedAt = now
		*f = *clone(existing)
	} else {
		if f.ID == "" {
			f.ID = newID()
		}
		f.CreatedAt, f.UpdatedAt = now, now
		r.s.facts[factKey(f)] = clone(f)
	}
	r.s.touch(f.ProjectID)
	return nil
}

func (r factRepo) GetByID(_ context.Context, id string) (*entity.ContextFact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.facts {
		if f.ID == id {
			return clone(f), nil
		}
	}
	return nil, nil
}

func (r factRepo) ListByProject(_ context.Context, projectID string) ([]*entity.ContextFact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ContextFact
	for _, f := range r.s.facts {
		if f.ProjectID == projectID {
			out = append(out, clone(f))
		}
	}
	slices.SortFunc(out, func(a, b *entity.ContextFact) int {
		return cmp.Or(cmp.Compare(a.ContextType, b.ContextType), cmp.Compare(a.Key, b.Key))
	})
	return out, nil
}

func (r factRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, f := range r.s.facts {
		if f.ID == id {
			delete(r.s.facts, k)
			r.s.touch(f.ProjectID)
		}
	}
	return nil
}
