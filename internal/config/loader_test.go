package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("ZW_TEST_HOST", "db.internal")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "host: ${ZW_TEST_HOST}", "host: db.internal"},
		{"set variable ignores default", "host: ${ZW_TEST_HOST:localhost}", "host: db.internal"},
		{"unset with default", "port: ${ZW_TEST_UNSET_PORT:5432}", "port: 5432"},
		{"unset with empty default", "password: ${ZW_TEST_UNSET_PW:}", "password: "},
		{"unset without default is kept", "key: ${ZW_TEST_UNSET_KEY}", "key: ${ZW_TEST_UNSET_KEY}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, expandEnv(tc.in))
		})
	}
}

func TestLoadFrom_DefaultsWithoutFiles(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "z-writer-api", cfg.App.Name)
	assert.Equal(t, 15, cfg.Generation.HistoryTurns)
	assert.Equal(t, 800, cfg.Context.ChapterPreviewRunes)
	assert.Equal(t, 8, cfg.Context.RecentTurns)
	assert.Equal(t, 150, cfg.Context.TurnPreviewRunes)
	assert.Equal(t, "inline", cfg.Facts.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Context.CacheTTL)
}

func TestLoadFrom_EnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	t.Setenv("ZW_TEST_MODEL", "gemini-2.0-pro")

	base := `
llm:
  default_provider: gemini
  providers:
    gemini:
      type: gemini
      model: ${ZW_TEST_MODEL:gemini-2.0-flash}
context:
  recent_turns: 8
`
	overlay := `
context:
  recent_turns: 4
facts:
  mode: queue
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), []byte(overlay), 0o600))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Context.RecentTurns)
	assert.Equal(t, "queue", cfg.Facts.Mode)
	require.Contains(t, cfg.LLM.Providers, "gemini")
	assert.Equal(t, "gemini-2.0-pro", cfg.LLM.Providers["gemini"].Model)
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	cfg.Facts.Mode = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg.Facts.Mode = "off"
	cfg.LLM.DefaultProvider = "missing"
	cfg.LLM.Providers = map[string]ProviderConfig{"openai": {Type: "openai"}}
	assert.Error(t, cfg.Validate())

	cfg.LLM.DefaultProvider = "openai"
	assert.NoError(t, cfg.Validate())
}

func TestTracerConfig_UsesAppIdentity(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	cfg.App.Version = "v1.4.0"
	cfg.App.Env = "production"

	tc := cfg.TracerConfig("job-worker")
	assert.Equal(t, "z-writer-api", tc.ServiceName)
	assert.Equal(t, "v1.4.0", tc.ServiceVersion)
	assert.Equal(t, "production", tc.Environment)
	assert.Equal(t, "job-worker", tc.Component)
	assert.Equal(t, "localhost:4317", tc.Endpoint)
	assert.False(t, tc.Enabled)
}
