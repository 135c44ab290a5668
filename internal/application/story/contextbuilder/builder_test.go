package contextbuilder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-api/internal/application/story/storytest"
	"z-writer-api/internal/domain/entity"
)

type fixture struct {
	store   *storytest.Store
	project *entity.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storytest.NewStore()
	p := entity.NewProject("Thèse", "", entity.ProjectKindStructuredDocument)
	require.NoError(t, store.Projects().Create(context.Background(), p))
	return &fixture{store: store, project: p}
}

func (f *fixture) reload(t *testing.T) *entity.Project {
	t.Helper()
	p, err := f.store.Projects().GetByID(context.Background(), f.project.ID)
	require.NoError(t, err)
	return p
}

func (f *fixture) builder(cache Cache) *Builder {
	return NewBuilder(f.store.Facts(), f.store.Chapters(), f.store.Turns(), cache, DefaultOptions())
}

func TestBuild_ChapterPreviewIsCapped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	long := entity.NewChapter(f.project.ID, "Long", 2)
	require.NoError(t, f.store.Chapters().Create(ctx, long))
	_, err := f.store.Chapters().AppendContent(ctx, long.ID, strings.Repeat("é", 2000))
	require.NoError(t, err)

	empty := entity.NewChapter(f.project.ID, "Introduction", 1)
	require.NoError(t, f.store.Chapters().Create(ctx, empty))

	w, err := f.builder(nil).Build(ctx, f.reload(t))
	require.NoError(t, err)
	require.Len(t, w.Chapters, 2)

	assert.Equal(t, "Introduction", w.Chapters[0].Title)
	assert.True(t, w.Chapters[0].Empty)
	assert.Equal(t, NotWrittenMarker, w.Chapters[0].Preview)

	preview := w.Chapters[1].Preview
	assert.True(t, w.Chapters[1].Truncated)
	require.True(t, strings.HasSuffix(preview, "…[truncated]"))
	assert.Equal(t, 800, utf8.RuneCountInString(strings.TrimSuffix(preview, "…[truncated]")))
	assert.NotContains(t, w.Text, strings.Repeat("é", 801))
	assert.Contains(t, w.Text, "1. Introduction\n"+NotWrittenMarker)
}

func TestBuild_RecentTurnsBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 20; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		content := fmt.Sprintf("turn-%02d %s", i, strings.Repeat("word ", 60))
		require.NoError(t, f.store.Turns().Create(ctx, entity.NewConversationTurn(f.project.ID, "", role, content, nil)))
	}

	w, err := f.builder(nil).Build(ctx, f.reload(t))
	require.NoError(t, err)
	require.Len(t, w.Turns, 8)
	for i, tp := range w.Turns {
		assert.True(t, strings.HasPrefix(tp.Preview, fmt.Sprintf("turn-%02d", 12+i)), tp.Preview)
		assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimSuffix(tp.Preview, "…[truncated]")), 150)
		assert.NotContains(t, tp.Preview, "\n")
	}
	assert.Equal(t, entity.RoleUser, w.Turns[0].Role)
	assert.Contains(t, w.Text, "[assistant] turn-19")
	assert.NotContains(t, w.Text, "turn-11")
}

func TestBuild_FactsAndImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Facts().Upsert(ctx, entity.NewContextFact(f.project.ID, "document", "sujet", "énergie\nsolaire")))
	images := []entity.TurnImage{{MIMEType: "image/png", Data: "AAAA"}}
	require.NoError(t, f.store.Turns().Create(ctx, entity.NewConversationTurn(f.project.ID, "", entity.RoleUser, "look", images)))

	w, err := f.builder(nil).Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.Contains(t, w.Text, "Known facts:\nsujet: énergie solaire")
	assert.Contains(t, w.Text, "[user] look [1 image(s)]")
	assert.Empty(t, w.Chapters)
}

func TestBuild_EmptyProject(t *testing.T) {
	f := newFixture(t)
	w, err := f.builder(nil).Build(context.Background(), f.project)
	require.NoError(t, err)
	assert.Empty(t, w.Text)
}

type memoryCache struct {
	data  map[string][]byte
	loads int
	err   error
}

func (c *memoryCache) GetOrLoadSafe(ctx context.Context, key string, _ time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	if b, ok := c.data[key]; ok {
		return b, true, nil
	}
	c.loads++
	v, err := loader(ctx)
	if err != nil {
		return nil, false, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	c.data[key] = b
	return b, false, nil
}

func TestBuild_CacheKeyFollowsProjectUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := &memoryCache{data: map[string][]byte{}}
	b := f.builder(cache)

	_, err := b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	_, err = b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.loads)

	require.NoError(t, f.store.Turns().Create(ctx, entity.NewConversationTurn(f.project.ID, "", entity.RoleUser, "new input", nil)))
	w, err := b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.loads)
	assert.Contains(t, w.Text, "new input")
}

func TestBuild_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Turns().Create(ctx, entity.NewConversationTurn(f.project.ID, "", entity.RoleUser, "hello", nil)))

	cache := &memoryCache{data: map[string][]byte{}, err: errors.New("redis down")}
	w, err := f.builder(cache).Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.Contains(t, w.Text, "[user] hello")
}

func TestBuild_DeletesInvalidateCachedWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ch := entity.NewChapter(f.project.ID, "Secret Chapter", 1)
	require.NoError(t, f.store.Chapters().Create(ctx, ch))
	turn := entity.NewConversationTurn(f.project.ID, "", entity.RoleUser, "secret turn", nil)
	require.NoError(t, f.store.Turns().Create(ctx, turn))
	fact := entity.NewContextFact(f.project.ID, "document", "sujet", "secret fact")
	require.NoError(t, f.store.Facts().Upsert(ctx, fact))

	cache := &memoryCache{data: map[string][]byte{}}
	b := f.builder(cache)

	w, err := b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	require.Contains(t, w.Text, "Secret Chapter")

	require.NoError(t, f.store.Chapters().Delete(ctx, ch.ID))
	w, err = b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.NotContains(t, w.Text, "Secret Chapter")

	require.NoError(t, f.store.Turns().Delete(ctx, turn.ID))
	w, err = b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.NotContains(t, w.Text, "secret turn")

	require.NoError(t, f.store.Facts().Delete(ctx, fact.ID))
	w, err = b.Build(ctx, f.reload(t))
	require.NoError(t, err)
	assert.NotContains(t, w.Text, "secret fact")
	assert.Equal(t, 4, cache.loads)
}
