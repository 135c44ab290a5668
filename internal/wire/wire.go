//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"z-writer-api/internal/config"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/infrastructure/llm"
	"z-writer-api/internal/infrastructure/persistence/postgres"
	"z-writer-api/internal/interfaces/http/handler"
	"z-writer-api/internal/interfaces/http/router"
	"z-writer-api/internal/workflow/port"
	workflowprompt "z-writer-api/internal/workflow/prompt"
)

// InitializeApp 初始化 API 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		ServiceSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeServices 初始化应用层服务（用于 writerctl）
func InitializeServices(ctx context.Context, cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		ServiceSet,
		wire.Struct(new(Services), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化事实抽取消费者（用于 job-worker）
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		ProvideRedisClient,
		ProvideExtractor,
		ProvideWorker,
	)
	return nil, nil, nil
}

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewProjectRepository,
	postgres.NewChapterRepository,
	postgres.NewConversationTurnRepository,
	postgres.NewContextFactRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ProjectRepository), new(*postgres.ProjectRepository)),
	wire.Bind(new(repository.ChapterRepository), new(*postgres.ChapterRepository)),
	wire.Bind(new(repository.ConversationTurnRepository), new(*postgres.ConversationTurnRepository)),
	wire.Bind(new(repository.ContextFactRepository), new(*postgres.ContextFactRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideContextCache,
	ProvideRateLimiter,
	ProvideMessagingProducer,
)

// ServiceSet 应用层服务集合
var ServiceSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(port.ChatModelFactory), new(*llm.EinoFactory)),
	workflowprompt.NewRegistry,
	ProvideContextBuilder,
	ProvideExtractor,
	ProvideFactSink,
	ProvidePipeline,
	ProvideContinuation,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewProjectHandler,
	handler.NewChapterHandler,
	handler.NewConversationHandler,
	handler.NewFactHandler,
	ProvideContextHandler,
	ProvideStreamHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)
