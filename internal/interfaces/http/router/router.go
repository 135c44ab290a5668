// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"z-writer-api/internal/config"
	"z-writer-api/internal/interfaces/http/handler"
	"z-writer-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health       *handler.HealthHandler
	Project      *handler.ProjectHandler
	Chapter      *handler.ChapterHandler
	Conversation *handler.ConversationHandler
	Fact         *handler.FactHandler
	Context      *handler.ContextHandler
	Stream       *handler.StreamHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器，limiter 为空时不启用生成接口限流
func New(cfg *config.Config, handlers *Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	// 系统端点
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/api/v1")
	registerV1Routes(v1, h, r.generationLimit())
}

func (r *Router) generationLimit() gin.HandlerFunc {
	return middleware.RateLimit(r.cfg.Security.RateLimit, r.limiter)
}

// registerV1Routes 注册 v1 版本路由
func registerV1Routes(v1 *gin.RouterGroup, h *Handlers, limit gin.HandlerFunc) {
	projects := v1.Group("/projects")
	{
		projects.GET("", h.Project.ListProjects)
		projects.POST("", h.Project.CreateProject)
	}

	project := projects.Group("/:pid", middleware.ResourceContext())
	{
		project.GET("", h.Project.GetProject)
		project.PUT("", h.Project.UpdateProject)
		project.DELETE("", h.Project.DeleteProject)

		// 章节
		project.GET("/chapters", h.Chapter.ListChapters)
		project.POST("/chapters", h.Chapter.CreateChapter)
		project.GET("/chapters/:cid", h.Chapter.GetChapter)
		project.PUT("/chapters/:cid", h.Chapter.UpdateChapter)
		project.DELETE("/chapters/:cid", h.Chapter.DeleteChapter)

		// 对话
		project.GET("/turns", h.Conversation.ListTurns)
		project.GET("/turns/:tid", h.Conversation.GetTurn)
		project.DELETE("/turns/:tid", h.Conversation.DeleteTurn)

		// 事实与上下文
		project.GET("/facts", h.Fact.ListFacts)
		project.PUT("/facts", h.Fact.UpsertFact)
		project.DELETE("/facts/:fid", h.Fact.DeleteFact)
		project.GET("/context", h.Context.GetContext)

		// 流式生成
		project.POST("/generate", limit, h.Stream.Generate)
		project.POST("/chapters/:cid/continue", limit, h.Stream.Continue)
	}
}
