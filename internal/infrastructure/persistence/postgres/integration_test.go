//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"z-writer-api/internal/config"
	"z-writer-api/internal/domain/entity"
)

func startPostgres(t *testing.T) *config.PostgresConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode (requires Docker)")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "z_writer_test",
				"POSTGRES_USER":     "writer",
				"POSTGRES_PASSWORD": "writer",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return &config.PostgresConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "writer",
		Password:        "writer",
		Database:        "z_writer_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

func TestIntegration_MigrationsAndRepositories(t *testing.T) {
	ctx := context.Background()
	cfg := startPostgres(t)

	migrator, err := NewMigrator(cfg.URL())
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))
	// 重复执行应为空操作
	require.NoError(t, migrator.Up(ctx))
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
	assert.False(t, dirty)
	require.NoError(t, migrator.Close())

	client, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.HealthCheck(ctx))

	projects := NewProjectRepository(client)
	chapters := NewChapterRepository(client)
	turns := NewConversationTurnRepository(client)
	facts := NewContextFactRepository(client)

	p := entity.NewProject("Mémoire de master", "", entity.ProjectKindStructuredDocument)
	require.NoError(t, projects.Create(ctx, p))

	ch := entity.NewChapter(p.ID, "Introduction", 1)
	require.NoError(t, chapters.Create(ctx, ch))

	got, err := chapters.AppendContent(ctx, ch.ID, "Premier jet.")
	require.NoError(t, err)
	assert.Equal(t, "Premier jet.", got.ContentText)

	got, err = chapters.AppendContent(ctx, ch.ID, "Suite.")
	require.NoError(t, err)
	assert.Equal(t, "Premier jet.\n\nSuite.", got.ContentText)

	require.NoError(t, turns.Create(ctx, entity.NewConversationTurn(p.ID, ch.ID, entity.RoleUser, "écris", []entity.TurnImage{{MIMEType: "image/png", Data: "AAAA"}})))
	require.NoError(t, turns.Create(ctx, entity.NewConversationTurn(p.ID, ch.ID, entity.RoleAssistant, "Premier jet.", nil)))
	recent, err := turns.ListRecent(ctx, p.ID, 15)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, entity.RoleUser, recent[0].Role)
	require.Len(t, recent[0].Images, 1)

	require.NoError(t, facts.Upsert(ctx, entity.NewContextFact(p.ID, "document", "sujet", "X")))
	require.NoError(t, facts.Upsert(ctx, entity.NewContextFact(p.ID, "document", "sujet", "Y")))
	list, err := facts.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Y", list[0].Value)

	require.NoError(t, projects.Delete(ctx, p.ID))
	left, err := turns.ListRecent(ctx, p.ID, 15)
	require.NoError(t, err)
	assert.Empty(t, left)
}
