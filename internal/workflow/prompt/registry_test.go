package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-api/internal/domain/entity"
	apperrors "z-writer-api/pkg/errors"
)

func TestRegistry_EveryKindHasTemplate(t *testing.T) {
	r := NewRegistry()
	for _, kind := range entity.AllProjectKinds() {
		profile, ok := entity.ProfileOf(kind)
		require.True(t, ok, kind)

		out, err := r.Render(context.Background(), PromptID(profile.PromptID), map[string]any{
			VarProjectTitle:       "Mémoire",
			VarProjectDescription: "",
			VarProjectContext:     "sujet: énergie solaire",
		})
		require.NoError(t, err, kind)
		assert.Contains(t, out, "Mémoire")
		assert.Contains(t, out, "sujet: énergie solaire")
	}
}

func TestRegistry_ContinuationEmbedsFullBody(t *testing.T) {
	body := "First paragraph with {braces} and 100% literal text.\n\nSecond paragraph."
	out, err := NewRegistry().Render(context.Background(), PromptContinuationV1, map[string]any{
		VarChapterTitle: "Introduction",
		VarChapterOrder: 1,
		VarChapterBody:  body,
	})
	require.NoError(t, err)
	assert.Contains(t, out, body)
	assert.Contains(t, out, `chapter 1 "Introduction"`)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Render(context.Background(), PromptID("missing_v9"), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePromptRender))
}

func TestRegistry_CachesTemplates(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptNovelV1)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptNovelV1)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
