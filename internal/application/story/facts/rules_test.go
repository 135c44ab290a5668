package facts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-api/internal/domain/entity"
)

func matchMap(t *testing.T, kind entity.ProjectKind, text string) map[string]string {
	t.Helper()
	rs, err := NewRuleSet(RulesFor(kind), 300)
	require.NoError(t, err)
	out := make(map[string]string)
	for _, m := range rs.Match(text) {
		out[m.Label] = m.Value
	}
	return out
}

func TestRulesFor_EveryKindHasRules(t *testing.T) {
	for _, kind := range entity.AllProjectKinds() {
		rules := RulesFor(kind)
		require.NotEmpty(t, rules, kind)
		for _, r := range rules {
			assert.NotEmpty(t, r.Label)
			assert.NotEmpty(t, r.Triggers, r.Label)
			assert.NotEmpty(t, r.Patterns, r.Label)
		}
	}
	assert.Nil(t, RulesFor(entity.ProjectKind("poetry")))
}

func TestStructuredDocumentRules(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		label string
		want  string
	}{
		{"french subject", "Le sujet de mon mémoire est l'énergie solaire en Afrique.", "sujet", "l'énergie solaire en Afrique"},
		{"french colon", "Sujet : La transition énergétique", "sujet", "La transition énergétique"},
		{"english subject", "The subject of my thesis is urban heat islands", "sujet", "urban heat islands"},
		{"problem statement", "Problématique : comment réduire les coûts ?", "problematique", "comment réduire les coûts ?"},
		{"research question", "My research question is how cities adapt", "problematique", "how cities adapt"},
		{"methodology", "Méthodologie : entretiens semi-directifs", "methodologie", "entretiens semi-directifs"},
		{"objective", "**Objective:** measure adoption rates", "objectif", "measure adoption rates"},
		{"hypothesis", "Hypothèse : les subventions accélèrent l'adoption", "hypothese", "les subventions accélèrent l'adoption"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matchMap(t, entity.ProjectKindStructuredDocument, tc.text)
			assert.Equal(t, tc.want, got[tc.label])
		})
	}
}

func TestNovelAndAssistantRules(t *testing.T) {
	got := matchMap(t, entity.ProjectKindNovel, "Genre: noir thriller\nThe story takes place in 1920s Lyon.\nTone: bleak but warm")
	assert.Equal(t, "noir thriller", got["genre"])
	assert.Equal(t, "1920s Lyon", got["setting"])
	assert.Equal(t, "bleak but warm", got["tone"])

	got = matchMap(t, entity.ProjectKindGeneralAssistant, "My goal is to write a cover letter")
	assert.Equal(t, "to write a cover letter", got["goal"])
}

func TestRuleSet_RejectsEmptyAndStopwordValues(t *testing.T) {
	got := matchMap(t, entity.ProjectKindGeneralAssistant, "Topic: the\nGoal:   ")
	assert.Empty(t, got)

	got = matchMap(t, entity.ProjectKindStructuredDocument, "Sujet : le")
	assert.Empty(t, got)

	got = matchMap(t, entity.ProjectKindStructuredDocument, "Sujet : nous et eux")
	assert.Empty(t, got)

	got = matchMap(t, entity.ProjectKindGeneralAssistant, "Topic: ourselves")
	assert.Empty(t, got)
}

func TestRuleSet_LatestStatementWins(t *testing.T) {
	text := "Subject: solar power\nassistant reply\nSubject: wind power"
	got := matchMap(t, entity.ProjectKindStructuredDocument, text)
	assert.Equal(t, "wind power", got["sujet"])
}

func TestRuleSet_CapsValueLength(t *testing.T) {
	rs, err := NewRuleSet(RulesFor(entity.ProjectKindNovel), 10)
	require.NoError(t, err)
	matches := rs.Match("Genre: " + strings.Repeat("x", 50))
	require.Len(t, matches, 1)
	assert.Equal(t, strings.Repeat("x", 10), matches[0].Value)
}

func TestRuleSet_NoTriggerNoMatch(t *testing.T) {
	got := matchMap(t, entity.ProjectKindNovel, "Nothing relevant here: at all")
	assert.Empty(t, got)
}
