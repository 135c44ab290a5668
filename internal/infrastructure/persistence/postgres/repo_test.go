package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	apperrors "z-writer-api/pkg/errors"
)

type repos struct {
	client   *Client
	projects *ProjectRepository
	chapters *ChapterRepository
	turns    *ConversationTurnRepository
	facts    *ContextFactRepository
	tx       *TxManager
}

func newTestRepos(t *testing.T) *repos {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库按连接隔离，固定单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.Project{},
		&entity.Chapter{},
		&entity.ConversationTurn{},
		&entity.ContextFact{},
	))

	client := NewClientFromDB(db)
	return &repos{
		client:   client,
		projects: NewProjectRepository(client),
		chapters: NewChapterRepository(client),
		turns:    NewConversationTurnRepository(client),
		facts:    NewContextFactRepository(client),
		tx:       NewTxManager(client),
	}
}

func (r *repos) mustProject(t *testing.T, kind entity.ProjectKind) *entity.Project {
	t.Helper()
	p := entity.NewProject("Mémoire", "", kind)
	require.NoError(t, r.projects.Create(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

func TestChapterRepository_AppendContent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)

	ch := entity.NewChapter(p.ID, "Introduction", 1)
	require.NoError(t, r.chapters.Create(ctx, ch))

	t.Run("empty body takes the response without separator", func(t *testing.T) {
		got, err := r.chapters.AppendContent(ctx, ch.ID, "\nLe sujet porte sur la mémoire collective.\n")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Le sujet porte sur la mémoire collective.", got.ContentText)
		assert.Equal(t, len([]rune("Le sujet porte sur la mémoire collective.")), got.WordCount)
	})

	t.Run("existing body is preserved and separated by a blank line", func(t *testing.T) {
		got, err := r.chapters.AppendContent(ctx, ch.ID, "  Deuxième paragraphe. ")
		require.NoError(t, err)
		assert.Equal(t, "Le sujet porte sur la mémoire collective.\n\nDeuxième paragraphe.", got.ContentText)
	})

	t.Run("missing chapter returns nil", func(t *testing.T) {
		got, err := r.chapters.AppendContent(ctx, "00000000-0000-0000-0000-000000000000", "text")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestChapterRepository_AppendTouchesProject(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindNovel)

	ch := entity.NewChapter(p.ID, "One", 1)
	require.NoError(t, r.chapters.Create(ctx, ch))

	before, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = r.chapters.AppendContent(ctx, ch.ID, "Once upon a time.")
	require.NoError(t, err)

	after, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updated_at not bumped: %v -> %v", before.UpdatedAt, after.UpdatedAt)
}

func TestChapterRepository_ListByProjectOrdersByIndex(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)

	for _, idx := range []int{30, 10, 20} {
		require.NoError(t, r.chapters.Create(ctx, entity.NewChapter(p.ID, fmt.Sprintf("ch-%d", idx), idx)))
	}

	chapters, err := r.chapters.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{chapters[0].OrderIndex, chapters[1].OrderIndex, chapters[2].OrderIndex})

	err = r.chapters.Create(ctx, entity.NewChapter(p.ID, "dup", 20))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestConversationTurnRepository_ListRecentIsChronological(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindGeneralAssistant)

	for i := 0; i < 20; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		require.NoError(t, r.turns.Create(ctx, entity.NewConversationTurn(p.ID, "", role, fmt.Sprintf("turn-%02d", i), nil)))
	}

	recent, err := r.turns.ListRecent(ctx, p.ID, 8)
	require.NoError(t, err)
	require.Len(t, recent, 8)
	for i, turn := range recent {
		assert.Equal(t, fmt.Sprintf("turn-%02d", 12+i), turn.Content)
	}

	page, err := r.turns.ListByProject(ctx, p.ID, repository.NewPagination(1, 5))
	require.NoError(t, err)
	assert.EqualValues(t, 20, page.Total)
	assert.Equal(t, 4, page.TotalPages)
	assert.Equal(t, "turn-00", page.Items[0].Content)

	none, err := r.turns.ListRecent(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConversationTurnRepository_PersistsImagesAndChapter(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)
	ch := entity.NewChapter(p.ID, "Intro", 1)
	require.NoError(t, r.chapters.Create(ctx, ch))

	turn := entity.NewConversationTurn(p.ID, ch.ID, entity.RoleUser, "see figure", []entity.TurnImage{
		{MIMEType: "image/png", Data: "iVBORw0KGgo="},
	})
	require.NoError(t, r.turns.Create(ctx, turn))

	got, err := r.turns.GetByID(ctx, turn.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ChapterID)
	assert.Equal(t, ch.ID, *got.ChapterID)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "image/png", got.Images[0].MIMEType)
}

func TestContextFactRepository_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)

	require.NoError(t, r.facts.Upsert(ctx, entity.NewContextFact(p.ID, "document", "sujet", "X")))

	facts, err := r.facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "sujet", facts[0].Key)
	assert.Equal(t, "X", facts[0].Value)
	firstID := facts[0].ID

	second := entity.NewContextFact(p.ID, "document", "sujet", "Y")
	require.NoError(t, r.facts.Upsert(ctx, second))
	assert.Equal(t, firstID, second.ID)

	facts, err = r.facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Y", facts[0].Value)
	assert.Equal(t, firstID, facts[0].ID)

	// 不同命名空间下的同名 key 是独立的事实
	require.NoError(t, r.facts.Upsert(ctx, entity.NewContextFact(p.ID, "story", "sujet", "Z")))
	facts, err = r.facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestProjectRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)
	other := r.mustProject(t, entity.ProjectKindNovel)

	ch := entity.NewChapter(p.ID, "Intro", 1)
	require.NoError(t, r.chapters.Create(ctx, ch))
	require.NoError(t, r.turns.Create(ctx, entity.NewConversationTurn(p.ID, ch.ID, entity.RoleUser, "hi", nil)))
	require.NoError(t, r.facts.Upsert(ctx, entity.NewContextFact(p.ID, "document", "sujet", "X")))
	require.NoError(t, r.turns.Create(ctx, entity.NewConversationTurn(other.ID, "", entity.RoleUser, "keep me", nil)))

	require.NoError(t, r.projects.Delete(ctx, p.ID))

	got, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	chapters, err := r.chapters.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, chapters)

	facts, err := r.facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, facts)

	kept, err := r.turns.ListRecent(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)

	boom := fmt.Errorf("boom")
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.facts.Upsert(txCtx, entity.NewContextFact(p.ID, "document", "objectif", "A")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	facts, err := r.facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestProjectRepository_UpdateAndList(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)
	r.mustProject(t, entity.ProjectKindNovel)

	p.Title = "Renamed"
	p.Kind = entity.ProjectKindGeneralAssistant
	require.NoError(t, r.projects.Update(ctx, p))

	got, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, entity.ProjectKindGeneralAssistant, got.Kind)

	page, err := r.projects.List(ctx, repository.NewPagination(1, 10))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, p.ID, page.Items[0].ID)
}

func TestRepositories_DeleteTouchesProject(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	p := r.mustProject(t, entity.ProjectKindStructuredDocument)

	ch := entity.NewChapter(p.ID, "Secret Chapter", 1)
	require.NoError(t, r.chapters.Create(ctx, ch))
	turn := entity.NewConversationTurn(p.ID, "", entity.RoleUser, "hello", nil)
	require.NoError(t, r.turns.Create(ctx, turn))
	fact := entity.NewContextFact(p.ID, "document", "sujet", "X")
	require.NoError(t, r.facts.Upsert(ctx, fact))

	cases := []struct {
		name   string
		delete func() error
	}{
		{"chapter", func() error { return r.chapters.Delete(ctx, ch.ID) }},
		{"turn", func() error { return r.turns.Delete(ctx, turn.ID) }},
		{"fact", func() error { return r.facts.Delete(ctx, fact.ID) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before, err := r.projects.GetByID(ctx, p.ID)
			require.NoError(t, err)

			time.Sleep(5 * time.Millisecond)
			require.NoError(t, tc.delete())

			after, err := r.projects.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updated_at not bumped: %v -> %v", before.UpdatedAt, after.UpdatedAt)
		})
	}

	chapters, err := r.chapters.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, chapters)
	facts, err := r.facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, facts)

	// 不存在的行删除为空操作
	assert.NoError(t, r.chapters.Delete(ctx, "missing"))
}
