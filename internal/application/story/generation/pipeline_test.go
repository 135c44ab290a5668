package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"z-writer-api/internal/application/story/contextbuilder"
	"z-writer-api/internal/application/story/facts"
	"z-writer-api/internal/application/story/storytest"
	"z-writer-api/internal/domain/entity"
	workflowprompt "z-writer-api/internal/workflow/prompt"
	apperrors "z-writer-api/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu        sync.Mutex
	exchanges []facts.Exchange
}

func (s *recordingSink) Submit(_ context.Context, ex facts.Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, ex)
}

func (s *recordingSink) Close() {}

func (s *recordingSink) all() []facts.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]facts.Exchange(nil), s.exchanges...)
}

type harness struct {
	store    *storytest.Store
	model    *storytest.ScriptedModel
	sink     *recordingSink
	pipeline *Pipeline
	project  *entity.Project
}

func newHarness(t *testing.T, kind entity.ProjectKind, m *storytest.ScriptedModel) *harness {
	t.Helper()
	store := storytest.NewStore()
	project := entity.NewProject("Mémoire", "énergie", kind)
	require.NoError(t, store.Projects().Create(context.Background(), project))

	sink := &recordingSink{}
	builder := contextbuilder.NewBuilder(store.Facts(), store.Chapters(), store.Turns(), nil, contextbuilder.DefaultOptions())
	pipeline := NewPipeline(
		store.Projects(), store.Chapters(), store.Turns(), store.Transactor(),
		builder, workflowprompt.NewRegistry(), &storytest.ModelFactory{Model: m}, sink,
		DefaultOptions(),
	)
	return &harness{store: store, model: m, sink: sink, pipeline: pipeline, project: project}
}

func (h *harness) addChapter(t *testing.T, title string, order int, body string) *entity.Chapter {
	t.Helper()
	ctx := context.Background()
	ch := entity.NewChapter(h.project.ID, title, order)
	require.NoError(t, h.store.Chapters().Create(ctx, ch))
	if body != "" {
		updated, err := h.store.Chapters().AppendContent(ctx, ch.ID, body)
		require.NoError(t, err)
		ch = updated
	}
	return ch
}

func (h *harness) addTurn(t *testing.T, role entity.Role, content string) {
	t.Helper()
	require.NoError(t, h.store.Turns().Create(context.Background(), entity.NewConversationTurn(h.project.ID, "", role, content, nil)))
}

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var got []string
	for {
		f, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		got = append(got, f)
	}
}

func roles(turns []*entity.ConversationTurn) []entity.Role {
	out := make([]entity.Role, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Role)
	}
	return out
}

func TestStreamGenerate_FragmentsMatchAssistantTurn(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"Le sujet", " est ", "l'énergie solaire."}}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{
		ProjectID: h.project.ID,
		UserInput: "Propose un sujet",
	})
	require.NoError(t, err)
	defer stream.Close()

	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, m.Fragments, got)

	turns := h.store.AllTurns()
	require.Equal(t, []entity.Role{entity.RoleUser, entity.RoleAssistant}, roles(turns))
	assert.Equal(t, stream.UserTurnID, turns[0].ID)
	assert.Equal(t, "Propose un sujet", turns[0].Content)
	assert.Equal(t, strings.Join(got, ""), turns[1].Content)

	result := stream.Result()
	require.NotNil(t, result)
	assert.Equal(t, turns[1].ID, result.AssistantTurnID)
	assert.Equal(t, 3, result.Fragments)
	assert.Nil(t, result.Chapter)

	exchanges := h.sink.all()
	require.Len(t, exchanges, 1)
	assert.Equal(t, "Propose un sujet", exchanges[0].UserInput)
	assert.Equal(t, turns[1].Content, exchanges[0].Response)
	assert.Equal(t, entity.ProjectKindStructuredDocument, exchanges[0].Kind)
}

func TestStreamGenerate_AppendsToChapterBody(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"  Second ", "paragraph.\n"}}
	h := newHarness(t, entity.ProjectKindNovel, m)
	ch := h.addChapter(t, "One", 1, "First paragraph.")

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{
		ProjectID: h.project.ID,
		ChapterID: ch.ID,
		UserInput: "Write the next paragraph",
	})
	require.NoError(t, err)
	defer stream.Close()

	_, err = drain(t, stream)
	require.NoError(t, err)

	stored, err := h.store.Chapters().GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", stored.ContentText)

	turns := h.store.AllTurns()
	require.Len(t, turns, 2)
	assert.Equal(t, "  Second paragraph.\n", turns[1].Content)
	require.NotNil(t, turns[1].ChapterID)
	assert.Equal(t, ch.ID, *turns[1].ChapterID)

	require.NotNil(t, stream.Result().Chapter)
	assert.Equal(t, stored.ContentText, stream.Result().Chapter.ContentText)
}

func TestStreamGenerate_CancelPersistsOnlyUserTurn(t *testing.T) {
	m := &storytest.ScriptedModel{
		Fragments: []string{"a", "b", "c"},
		Gate:      make(chan struct{}),
		GateAfter: 2,
	}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)
	ch := h.addChapter(t, "Intro", 1, "Existing.")

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{
		ProjectID: h.project.ID,
		ChapterID: ch.ID,
		UserInput: "Continue",
	})
	require.NoError(t, err)

	for _, want := range []string{"a", "b"} {
		f, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
	stream.Close()
	stream.Close()

	partial, n := stream.Partial()
	assert.Equal(t, "ab", partial)
	assert.Equal(t, 2, n)
	assert.Nil(t, stream.Result())

	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))
	stored, err := h.store.Chapters().GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Existing.", stored.ContentText)
	assert.Empty(t, h.sink.all())
}

func TestStreamGenerate_CloseWithBufferedFragmentsPersistsNothing(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"a", "b", "c", "d"}}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)
	ch := h.addChapter(t, "Intro", 1, "")

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{
		ProjectID: h.project.ID,
		ChapterID: ch.ID,
		UserInput: "go",
	})
	require.NoError(t, err)

	f, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", f)

	// 模型已结束，其余片段仍在缓冲中
	<-stream.done
	stream.Close()

	partial, n := stream.Partial()
	assert.Equal(t, "a", partial)
	assert.Equal(t, 1, n)
	assert.Nil(t, stream.Result())

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))
	stored, err := h.store.Chapters().GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ContentText)
	assert.Empty(t, h.sink.all())
}

func TestStreamGenerate_CallerCancelBeforeDrainPersistsNothing(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"a", "b", "c"}}
	h := newHarness(t, entity.ProjectKindGeneralAssistant, m)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := h.pipeline.StreamGenerate(ctx, Request{ProjectID: h.project.ID, UserInput: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	<-stream.done
	cancel()
	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Nil(t, stream.Result())
	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))
}

func TestStreamGenerate_DrainAfterModelFinishedPersists(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"a", "b", "c"}}
	h := newHarness(t, entity.ProjectKindGeneralAssistant, m)

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{ProjectID: h.project.ID, UserInput: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	<-stream.done
	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))

	got, err := drain(t, stream)
	require.NoError(t, err)
	require.NotNil(t, stream.Result())
	assert.Equal(t, strings.Join(got, ""), stream.Result().Response)
	assert.Equal(t, []entity.Role{entity.RoleUser, entity.RoleAssistant}, roles(h.store.AllTurns()))
}

func TestStreamGenerate_CallerContextCancel(t *testing.T) {
	m := &storytest.ScriptedModel{
		Fragments: []string{"a", "b"},
		Gate:      make(chan struct{}),
		GateAfter: 1,
	}
	h := newHarness(t, entity.ProjectKindGeneralAssistant, m)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := h.pipeline.StreamGenerate(ctx, Request{ProjectID: h.project.ID, UserInput: "hi"})
	require.NoError(t, err)

	f, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", f)

	cancel()
	_, _ = drain(t, stream)
	stream.Close()

	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))
}

func TestStreamGenerate_ModelErrorAfterFragments(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"x", "y"}, Err: errors.New("upstream reset")}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{ProjectID: h.project.ID, UserInput: "go"})
	require.NoError(t, err)
	defer stream.Close()

	got, err := drain(t, stream)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))
	assert.Equal(t, []string{"x", "y"}, got)
	assert.Nil(t, stream.Result())
	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))
	assert.Empty(t, h.sink.all())
}

func TestStreamGenerate_ModelUnavailable(t *testing.T) {
	h := newHarness(t, entity.ProjectKindStructuredDocument, nil)
	h.pipeline.models = &storytest.ModelFactory{Err: errors.New("no credentials")}

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{ProjectID: h.project.ID, UserInput: "go"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = drain(t, stream)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMProviderError))
	assert.Equal(t, []entity.Role{entity.RoleUser}, roles(h.store.AllTurns()))
}

func TestStreamGenerate_UserTurnFailureSkipsModel(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"never"}}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)
	h.store.FailTurnCreate = map[entity.Role]bool{entity.RoleUser: true}

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{ProjectID: h.project.ID, UserInput: "go"})
	require.Error(t, err)
	assert.Nil(t, stream)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDatabaseError))
	assert.Empty(t, m.Calls())
	assert.Empty(t, h.store.AllTurns())
}

func TestStreamGenerate_EmptyResponseLeavesChapter(t *testing.T) {
	m := &storytest.ScriptedModel{}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)
	ch := h.addChapter(t, "Intro", 1, "")

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{
		ProjectID: h.project.ID,
		ChapterID: ch.ID,
		UserInput: "go",
	})
	require.NoError(t, err)
	defer stream.Close()

	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Empty(t, got)

	stored, err := h.store.Chapters().GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ContentText)
	assert.Equal(t, []entity.Role{entity.RoleUser, entity.RoleAssistant}, roles(h.store.AllTurns()))
}

type historyEntry struct {
	Role    schema.RoleType
	Content string
}

func flatten(msgs []*schema.Message) []historyEntry {
	out := make([]historyEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

func TestStreamGenerate_HistoryStartsWithUser(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"ok"}}
	h := newHarness(t, entity.ProjectKindGeneralAssistant, m)
	h.addTurn(t, entity.RoleAssistant, "stale answer")
	h.addTurn(t, entity.RoleAssistant, "another stale answer")
	h.addTurn(t, entity.RoleUser, "q1")
	h.addTurn(t, entity.RoleAssistant, "a1")

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{ProjectID: h.project.ID, UserInput: "q2"})
	require.NoError(t, err)
	defer stream.Close()
	_, err = drain(t, stream)
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 1)
	msgs := calls[0]
	require.Len(t, msgs, 3)

	want := []historyEntry{
		{Role: schema.User, Content: "q1"},
		{Role: schema.Assistant, Content: "a1"},
	}
	if diff := cmp.Diff(want, flatten(msgs[:2])); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	last := msgs[2]
	assert.Equal(t, schema.User, last.Role)
	assert.True(t, strings.HasSuffix(last.Content, "\n\nq2"))
	assert.Contains(t, last.Content, `"Mémoire"`)
}

func TestStreamGenerate_TwentyTurnsBoundHistoryAndPreview(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"ok"}}
	h := newHarness(t, entity.ProjectKindGeneralAssistant, m)
	for i := 0; i < 20; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		h.addTurn(t, role, fmt.Sprintf("turn-%02d", i))
	}

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{ProjectID: h.project.ID, UserInput: "next"})
	require.NoError(t, err)
	defer stream.Close()
	_, err = drain(t, stream)
	require.NoError(t, err)

	msgs := m.Calls()[0]
	history := msgs[:len(msgs)-1]
	// 最近 15 轮从 turn-05（助手）开始，被丢弃后剩 14 条
	require.Len(t, history, 14)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "turn-06", history[0].Content)
	assert.Equal(t, "turn-19", history[len(history)-1].Content)

	prompt := msgs[len(msgs)-1].Content
	assert.Contains(t, prompt, "[user] turn-12")
	assert.Contains(t, prompt, "[assistant] turn-19")
	assert.NotContains(t, prompt, "turn-11")
}

func TestStreamGenerate_ImagesBecomeParts(t *testing.T) {
	m := &storytest.ScriptedModel{Fragments: []string{"a chart"}}
	h := newHarness(t, entity.ProjectKindStructuredDocument, m)
	img := entity.TurnImage{MIMEType: "image/png", Data: "iVBORw0KGgo="}

	stream, err := h.pipeline.StreamGenerate(context.Background(), Request{
		ProjectID: h.project.ID,
		UserInput: "describe",
		Images:    []entity.TurnImage{img},
	})
	require.NoError(t, err)
	defer stream.Close()
	_, err = drain(t, stream)
	require.NoError(t, err)

	last := m.Calls()[0][0]
	require.Len(t, last.MultiContent, 2)
	assert.Equal(t, schema.ChatMessagePartTypeText, last.MultiContent[0].Type)
	assert.True(t, strings.HasSuffix(last.MultiContent[0].Text, "describe"))
	require.NotNil(t, last.MultiContent[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", last.MultiContent[1].ImageURL.URL)

	turns := h.store.AllTurns()
	assert.Equal(t, []entity.TurnImage{img}, turns[0].Images)
	assert.Empty(t, turns[1].Images)
}

func TestStreamGenerate_RejectsBeforeTouchingStore(t *testing.T) {
	cases := []struct {
		name string
		kind entity.ProjectKind
		req  func(h *harness, otherChapter string) Request
		code apperrors.ErrorCode
	}{
		{
			name: "missing input",
			kind: entity.ProjectKindStructuredDocument,
			req:  func(h *harness, _ string) Request { return Request{ProjectID: h.project.ID, UserInput: "   "} },
			code: apperrors.CodeInvalidParam,
		},
		{
			name: "missing project id",
			kind: entity.ProjectKindStructuredDocument,
			req:  func(*harness, string) Request { return Request{UserInput: "go"} },
			code: apperrors.CodeInvalidParam,
		},
		{
			name: "unknown project",
			kind: entity.ProjectKindStructuredDocument,
			req:  func(*harness, string) Request { return Request{ProjectID: "missing", UserInput: "go"} },
			code: apperrors.CodeProjectNotFound,
		},
		{
			name: "chapter of another project",
			kind: entity.ProjectKindNovel,
			req: func(h *harness, other string) Request {
				return Request{ProjectID: h.project.ID, ChapterID: other, UserInput: "go"}
			},
			code: apperrors.CodeChapterNotFound,
		},
		{
			name: "chapter on a kind without chapters",
			kind: entity.ProjectKindGeneralAssistant,
			req: func(h *harness, other string) Request {
				return Request{ProjectID: h.project.ID, ChapterID: other, UserInput: "go"}
			},
			code: apperrors.CodeInvalidParam,
		},
		{
			name: "images on a kind without image input",
			kind: entity.ProjectKindNovel,
			req: func(h *harness, _ string) Request {
				return Request{ProjectID: h.project.ID, UserInput: "go", Images: []entity.TurnImage{{MIMEType: "image/png", Data: "AAAA"}}}
			},
			code: apperrors.CodeInvalidParam,
		},
		{
			name: "malformed image",
			kind: entity.ProjectKindStructuredDocument,
			req: func(h *harness, _ string) Request {
				return Request{ProjectID: h.project.ID, UserInput: "go", Images: []entity.TurnImage{{MIMEType: "text/plain", Data: "AAAA"}}}
			},
			code: apperrors.CodeInvalidParam,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &storytest.ScriptedModel{Fragments: []string{"never"}}
			h := newHarness(t, tc.kind, m)

			other := entity.NewProject("Other", "", entity.ProjectKindNovel)
			require.NoError(t, h.store.Projects().Create(context.Background(), other))
			otherChapter := entity.NewChapter(other.ID, "Elsewhere", 1)
			require.NoError(t, h.store.Chapters().Create(context.Background(), otherChapter))

			stream, err := h.pipeline.StreamGenerate(context.Background(), tc.req(h, otherChapter.ID))
			require.Error(t, err)
			assert.Nil(t, stream)
			assert.True(t, apperrors.IsCode(err, tc.code), err.Error())
			assert.Empty(t, m.Calls())
			assert.Empty(t, h.store.AllTurns())
		})
	}
}

func TestBuildHistory(t *testing.T) {
	turn := func(role entity.Role, content string) *entity.ConversationTurn {
		return entity.NewConversationTurn("p", "", role, content, nil)
	}

	assert.Empty(t, BuildHistory(nil))
	assert.Empty(t, BuildHistory([]*entity.ConversationTurn{turn(entity.RoleAssistant, "only")}))

	got := BuildHistory([]*entity.ConversationTurn{
		turn(entity.RoleAssistant, "drop"),
		turn(entity.RoleUser, "u1"),
		turn(entity.RoleAssistant, ""),
		turn(entity.RoleUser, "u2"),
		turn(entity.RoleAssistant, "a2"),
	})
	want := []historyEntry{
		{Role: schema.User, Content: "u1"},
		{Role: schema.User, Content: "u2"},
		{Role: schema.Assistant, Content: "a2"},
	}
	if diff := cmp.Diff(want, flatten(got)); diff != "" {
		t.Errorf("BuildHistory mismatch (-want +got):\n%s", diff)
	}
}
