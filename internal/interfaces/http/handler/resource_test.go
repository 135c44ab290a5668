package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-api/internal/application/story/contextbuilder"
	"z-writer-api/internal/application/story/storytest"
	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/interfaces/http/dto"
	apperrors "z-writer-api/pkg/errors"
)

func newResourceRouter(store *storytest.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	projects := NewProjectHandler(store.Projects())
	chapters := NewChapterHandler(store.Projects(), store.Chapters())
	turns := NewConversationHandler(store.Projects(), store.Turns())
	facts := NewFactHandler(store.Projects(), store.Facts())
	windows := NewContextHandler(store.Projects(),
		contextbuilder.NewBuilder(store.Facts(), store.Chapters(), store.Turns(), nil, contextbuilder.DefaultOptions()))

	r := gin.New()
	r.POST("/projects", projects.CreateProject)
	r.GET("/projects/:pid", projects.GetProject)
	r.POST("/projects/:pid/chapters", chapters.CreateChapter)
	r.GET("/projects/:pid/chapters", chapters.ListChapters)
	r.GET("/projects/:pid/turns", turns.ListTurns)
	r.PUT("/projects/:pid/facts", facts.UpsertFact)
	r.GET("/projects/:pid/context", windows.GetContext)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateProject_KindDefaultsAndValidation(t *testing.T) {
	r := newResourceRouter(storytest.NewStore())

	w := do(r, http.MethodPost, "/projects", `{"title":"  Thèse  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created dto.Response[dto.ProjectResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Thèse", created.Data.Title)
	assert.Equal(t, string(entity.ProjectKindStructuredDocument), created.Data.Kind)
	assert.True(t, created.Data.Capabilities.ChapterWriting)

	w = do(r, http.MethodPost, "/projects", `{"title":"x","kind":"poem"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/projects/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errBody dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	assert.Equal(t, string(apperrors.CodeProjectNotFound), errBody.Code)
}

func TestCreateChapter_RequiresChapterCapability(t *testing.T) {
	store := storytest.NewStore()
	r := newResourceRouter(store)
	assistant := entity.NewProject("Chat", "", entity.ProjectKindGeneralAssistant)
	require.NoError(t, store.Projects().Create(context.Background(), assistant))

	w := do(r, http.MethodPost, "/projects/"+assistant.ID+"/chapters", `{"title":"One","order_index":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	novel := entity.NewProject("Roman", "", entity.ProjectKindNovel)
	require.NoError(t, store.Projects().Create(context.Background(), novel))
	w = do(r, http.MethodPost, "/projects/"+novel.ID+"/chapters", `{"title":"One","order_index":1}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/projects/"+novel.ID+"/chapters", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.Response[dto.ChapterListResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data.Chapters, 1)
	assert.Equal(t, "One", list.Data.Chapters[0].Title)
}

func TestUpsertFact_DefaultsContextTypeAndShowsInContext(t *testing.T) {
	store := storytest.NewStore()
	r := newResourceRouter(store)
	project := entity.NewProject("Mémoire", "", entity.ProjectKindStructuredDocument)
	require.NoError(t, store.Projects().Create(context.Background(), project))

	w := do(r, http.MethodPut, "/projects/"+project.ID+"/facts", `{"key":"sujet","value":"énergie solaire"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var fact dto.Response[dto.FactResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fact))
	assert.Equal(t, project.Profile().ContextType, fact.Data.ContextType)

	w = do(r, http.MethodGet, "/projects/"+project.ID+"/context", "")
	require.Equal(t, http.StatusOK, w.Code)
	var window dto.Response[dto.ContextResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &window))
	assert.Contains(t, window.Data.Text, "sujet: énergie solaire")

	w = do(r, http.MethodGet, "/projects/"+project.ID+"/turns", "")
	require.Equal(t, http.StatusOK, w.Code)
}
