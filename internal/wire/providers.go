// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"

	"z-writer-api/internal/application/story/contextbuilder"
	"z-writer-api/internal/application/story/continuation"
	"z-writer-api/internal/application/story/facts"
	"z-writer-api/internal/application/story/generation"
	"z-writer-api/internal/config"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/infrastructure/messaging"
	"z-writer-api/internal/infrastructure/persistence/postgres"
	"z-writer-api/internal/infrastructure/persistence/redis"
	"z-writer-api/internal/interfaces/http/handler"
	"z-writer-api/internal/interfaces/http/middleware"
	"z-writer-api/internal/interfaces/http/router"
	"z-writer-api/internal/workflow/port"
	workflowprompt "z-writer-api/internal/workflow/prompt"
	"z-writer-api/pkg/logger"
)

// Services 应用层服务集合，供 HTTP 与 CLI 共用
type Services struct {
	Projects     repository.ProjectRepository
	Chapters     repository.ChapterRepository
	Turns        repository.ConversationTurnRepository
	Facts        repository.ContextFactRepository
	Builder      *contextbuilder.Builder
	Pipeline     *generation.Pipeline
	Continuation *continuation.Controller
}

// Worker 事实抽取消费者
type Worker struct {
	Consumer *messaging.Consumer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端，按配置执行内嵌迁移
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	pg := &cfg.Database.Postgres
	if pg.AutoMigrate {
		m, err := postgres.NewMigrator(pg.URL())
		if err != nil {
			return nil, nil, err
		}
		err = m.Up(ctx)
		_ = m.Close()
		if err != nil {
			return nil, nil, err
		}
	}
	client, err := postgres.NewClient(pg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端，未启用时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, context cache and rate limit are off")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideContextCache 提供上下文缓存，Redis 或缓存未启用时返回 nil
func ProvideContextCache(cfg *config.Config, client *redis.Client) contextbuilder.Cache {
	if client == nil || !cfg.Context.CacheEnabled {
		return nil
	}
	return redis.NewCache(client)
}

// ProvideRateLimiter 提供生成接口限流器
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(cfg *config.Config, client *redis.Client) *messaging.Producer {
	if client == nil {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return messaging.NewProducer(client.Redis(), int64(maxLen))
}

// ProvideContextBuilder 提供上下文构建器
func ProvideContextBuilder(
	cfg *config.Config,
	factRepo repository.ContextFactRepository,
	chapterRepo repository.ChapterRepository,
	turnRepo repository.ConversationTurnRepository,
	cache contextbuilder.Cache,
) *contextbuilder.Builder {
	return contextbuilder.NewBuilder(factRepo, chapterRepo, turnRepo, cache, contextbuilder.Options{
		ChapterPreviewRunes: cfg.Context.ChapterPreviewRunes,
		RecentTurns:         cfg.Context.RecentTurns,
		TurnPreviewRunes:    cfg.Context.TurnPreviewRunes,
		CacheTTL:            cfg.Context.CacheTTL,
	})
}

// ProvideExtractor 提供事实抽取器
func ProvideExtractor(cfg *config.Config, factRepo repository.ContextFactRepository, tx repository.Transactor) (*facts.Extractor, error) {
	return facts.NewExtractor(factRepo, tx, cfg.Facts.MaxValueRunes)
}

// ProvideFactSink 按 facts.mode 选择事实抽取方式
func ProvideFactSink(cfg *config.Config, extractor *facts.Extractor, producer *messaging.Producer) (facts.Sink, func(), error) {
	var sink facts.Sink
	switch cfg.Facts.Mode {
	case "inline":
		sink = facts.NewInlineSink(extractor, cfg.Facts.MaxConcurrency, cfg.Facts.Timeout)
	case "queue":
		if producer == nil {
			return nil, nil, fmt.Errorf("facts.mode queue requires redis")
		}
		sink = facts.NewQueueSink(producer)
	default:
		sink = facts.NopSink{}
	}
	return sink, sink.Close, nil
}

// ProvidePipeline 提供生成流程
func ProvidePipeline(
	cfg *config.Config,
	projectRepo repository.ProjectRepository,
	chapterRepo repository.ChapterRepository,
	turnRepo repository.ConversationTurnRepository,
	tx repository.Transactor,
	builder *contextbuilder.Builder,
	prompts *workflowprompt.Registry,
	models port.ChatModelFactory,
	sink facts.Sink,
) *generation.Pipeline {
	return generation.NewPipeline(projectRepo, chapterRepo, turnRepo, tx, builder, prompts, models, sink, generation.Options{
		HistoryTurns:  cfg.Generation.HistoryTurns,
		StreamBuffer:  cfg.Generation.StreamBuffer,
		MaxInputRunes: cfg.Generation.MaxInputRunes,
		MaxImages:     cfg.Generation.MaxImages,
	})
}

// ProvideContinuation 提供续写控制器
func ProvideContinuation(
	projectRepo repository.ProjectRepository,
	chapterRepo repository.ChapterRepository,
	prompts *workflowprompt.Registry,
	pipeline *generation.Pipeline,
) *continuation.Controller {
	return continuation.NewController(projectRepo, chapterRepo, prompts, pipeline)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, client *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(pg, client, cfg.App.Version)
}

// ProvideStreamHandler 提供流式生成处理器
func ProvideStreamHandler(pipeline *generation.Pipeline, controller *continuation.Controller) *handler.StreamHandler {
	return handler.NewStreamHandler(pipeline, controller)
}

// ProvideContextHandler 提供上下文预览处理器
func ProvideContextHandler(projectRepo repository.ProjectRepository, builder *contextbuilder.Builder) *handler.ContextHandler {
	return handler.NewContextHandler(projectRepo, builder)
}

// ProvideRouter 提供路由器
func ProvideRouter(cfg *config.Config, handlers *router.Handlers, limiter middleware.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter)
}

// ProvideWorker 提供事实抽取消费者
func ProvideWorker(cfg *config.Config, client *redis.Client, extractor *facts.Extractor) (*Worker, error) {
	if client == nil {
		return nil, fmt.Errorf("job-worker requires redis")
	}
	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamFactExtract,
		Group:         messaging.ConsumerGroupFactWorker.WithPrefix(rs.ConsumerGroupPrefix),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.MessageTypeFactExtraction, facts.NewMessageHandler(extractor))
	return &Worker{Consumer: consumer}, nil
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
