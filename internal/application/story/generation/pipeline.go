// Package generation 实现流式生成流程：组装上下文、调用模型、逐片段转发并在完成后落库
package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-writer-api/internal/application/story/contextbuilder"
	"z-writer-api/internal/application/story/facts"
	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
	"z-writer-api/internal/domain/service"
	"z-writer-api/internal/workflow/port"
	workflowprompt "z-writer-api/internal/workflow/prompt"
	apperrors "z-writer-api/pkg/errors"
	"z-writer-api/pkg/logger"
	"z-writer-api/pkg/metrics"
)

var tracer = otel.Tracer("story.generation")

// 业务流程标签
const (
	WorkflowGenerate = "generate"
	WorkflowContinue = "continue"
)

// ContextBuilder 上下文窗口来源
type ContextBuilder interface {
	Build(ctx context.Context, project *entity.Project) (*contextbuilder.Window, error)
}

// PromptRenderer 提示词渲染
type PromptRenderer interface {
	Render(ctx context.Context, id workflowprompt.PromptID, vars map[string]any) (string, error)
}

// Request 一次生成请求
type Request struct {
	ProjectID string
	// ChapterID 非空时生成结果追加到该章节
	ChapterID string
	// UserInput 发送给模型的用户文本
	UserInput string
	// TurnText 写入用户轮次的文本，为空时与 UserInput 相同
	TurnText string
	Images   []entity.TurnImage

	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	// Workflow 指标与日志中的流程名，默认 generate
	Workflow string
}

func (r *Request) turnText() string {
	if strings.TrimSpace(r.TurnText) != "" {
		return r.TurnText
	}
	return r.UserInput
}

func (r *Request) modelOptions() []model.Option {
	opts := make([]model.Option, 0, 3)
	if r.Temperature != nil {
		opts = append(opts, model.WithTemperature(*r.Temperature))
	}
	if r.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*r.MaxTokens))
	}
	if m := strings.TrimSpace(r.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	return opts
}

// Options 生成流程的边界参数
type Options struct {
	// HistoryTurns 传给模型的历史轮次上限
	HistoryTurns int
	// StreamBuffer 生产者与消费者之间的片段缓冲
	StreamBuffer int
	// MaxInputRunes 用户输入上限，0 表示不限制
	MaxInputRunes int
	// MaxImages 单次请求图片上限
	MaxImages int
}

func DefaultOptions() Options {
	return Options{
		HistoryTurns:  15,
		StreamBuffer:  16,
		MaxInputRunes: 20000,
		MaxImages:     4,
	}
}

// Pipeline 流式生成流程，本身不持有请求级状态，可被并发调用
type Pipeline struct {
	projects repository.ProjectRepository
	chapters repository.ChapterRepository
	turns    repository.ConversationTurnRepository
	tx       repository.Transactor
	contexts ContextBuilder
	prompts  PromptRenderer
	models   port.ChatModelFactory
	sink     facts.Sink
	opts     Options
}

// NewPipeline 创建生成流程，sink 为 nil 时不抽取事实
func NewPipeline(
	projects repository.ProjectRepository,
	chapters repository.ChapterRepository,
	turns repository.ConversationTurnRepository,
	tx repository.Transactor,
	contexts ContextBuilder,
	prompts PromptRenderer,
	models port.ChatModelFactory,
	sink facts.Sink,
	opts Options,
) *Pipeline {
	if sink == nil {
		sink = facts.NopSink{}
	}
	if opts.HistoryTurns < 0 {
		opts.HistoryTurns = 0
	}
	if opts.StreamBuffer < 0 {
		opts.StreamBuffer = 0
	}
	return &Pipeline{
		projects: projects,
		chapters: chapters,
		turns:    turns,
		tx:       tx,
		contexts: contexts,
		prompts:  prompts,
		models:   models,
		sink:     sink,
		opts:     opts,
	}
}

// prepared 同步阶段的产物
type prepared struct {
	req      Request
	project  *entity.Project
	profile  entity.KindProfile
	chapter  *entity.Chapter
	messages []*schema.Message
	userTurn *entity.ConversationTurn
	provider string
}

// StreamGenerate 校验请求、组装上下文并持久化用户轮次后启动模型流。
// 返回错误时模型未被调用；用户轮次一旦返回 Stream 即已落库。
func (p *Pipeline) StreamGenerate(ctx context.Context, req Request) (*Stream, error) {
	ctx, span := tracer.Start(ctx, "generation.StreamGenerate",
		trace.WithAttributes(
			attribute.String("project_id", req.ProjectID),
			attribute.String("chapter_id", req.ChapterID),
		))
	defer span.End()

	prep, err := p.prepare(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	sr, sw := schema.Pipe[string](p.opts.StreamBuffer)
	stream := newStream(ctx, prep.userTurn.ID, sr, cancel)

	metrics.ActiveStreams.Inc()
	go func() {
		defer close(stream.done)
		defer metrics.ActiveStreams.Dec()
		defer stop()
		defer cancel()
		defer sw.Close()
		p.produce(streamCtx, prep, sw, stream)
	}()

	return stream, nil
}

func (p *Pipeline) prepare(ctx context.Context, req Request) (*prepared, error) {
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.ChapterID = strings.TrimSpace(req.ChapterID)
	if req.Workflow == "" {
		req.Workflow = WorkflowGenerate
	}
	if err := p.validate(&req); err != nil {
		return nil, err
	}

	project, err := p.projects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.ErrProjectNotFound
	}
	profile, ok := entity.ProfileOf(project.Kind)
	if !ok {
		return nil, apperrors.Validation("project kind %q is not supported", project.Kind)
	}
	if len(req.Images) > 0 && !profile.Capabilities.ImageInput {
		return nil, apperrors.Validation("project kind %s does not accept images", project.Kind)
	}

	var chapter *entity.Chapter
	if req.ChapterID != "" {
		if !profile.Capabilities.ChapterWriting {
			return nil, apperrors.Validation("project kind %s does not write chapters", project.Kind)
		}
		chapter, err = p.chapters.GetByID(ctx, req.ChapterID)
		if err != nil {
			return nil, err
		}
		if chapter == nil || chapter.ProjectID != project.ID {
			return nil, apperrors.ErrChapterNotFound
		}
	}

	window, err := p.contexts.Build(ctx, project)
	if err != nil {
		return nil, err
	}
	systemPrompt, err := p.prompts.Render(ctx, workflowprompt.PromptID(profile.PromptID), map[string]any{
		workflowprompt.VarProjectTitle:       project.Title,
		workflowprompt.VarProjectDescription: project.Description,
		workflowprompt.VarProjectContext:     window.Text,
	})
	if err != nil {
		return nil, err
	}

	var recent []*entity.ConversationTurn
	if p.opts.HistoryTurns > 0 {
		recent, err = p.turns.ListRecent(ctx, project.ID, p.opts.HistoryTurns)
		if err != nil {
			return nil, err
		}
	}
	history := BuildHistory(recent)
	messages := append(history, composeUserMessage(systemPrompt, req.UserInput, req.Images))

	// 用户输入先于模型调用落库，失败时不调用模型
	userTurn := entity.NewConversationTurn(project.ID, req.ChapterID, entity.RoleUser, req.turnText(), req.Images)
	if err := p.turns.Create(ctx, userTurn); err != nil {
		return nil, err
	}

	logger.Info(ctx, "generation started",
		"project_id", project.ID,
		"kind", string(project.Kind),
		"chapter_id", req.ChapterID,
		"workflow", req.Workflow,
		"history_size", len(history),
		"context_length", utf8.RuneCountInString(window.Text),
	)

	return &prepared{
		req:      req,
		project:  project,
		profile:  profile,
		chapter:  chapter,
		messages: messages,
		userTurn: userTurn,
		provider: p.models.Resolve(strings.TrimSpace(req.Provider)),
	}, nil
}

func (p *Pipeline) validate(req *Request) error {
	if req.ProjectID == "" {
		return apperrors.Validation("project_id is required")
	}
	if strings.TrimSpace(req.UserInput) == "" {
		return apperrors.Validation("user input is required")
	}
	// 上限约束调用方文本，续写渲染出的完整提示词不计入
	if p.opts.MaxInputRunes > 0 && utf8.RuneCountInString(req.turnText()) > p.opts.MaxInputRunes {
		return apperrors.Validation("user input exceeds %d characters", p.opts.MaxInputRunes)
	}
	if p.opts.MaxImages > 0 && len(req.Images) > p.opts.MaxImages {
		return apperrors.Validation("at most %d images per request", p.opts.MaxImages)
	}
	for i, img := range req.Images {
		if err := validImage(img); err != nil {
			return apperrors.Validation("image %d: %v", i, err)
		}
	}
	return nil
}

// produce 在后台读取模型流并转发片段。只有模型流自然结束且未被取消时才落库。
func (p *Pipeline) produce(ctx context.Context, prep *prepared, sw *schema.StreamWriter[string], stream *Stream) {
	kind := string(prep.project.Kind)
	start := time.Now()
	ctx, span := tracer.Start(ctx, "generation.produce",
		trace.WithAttributes(
			attribute.String("project_id", prep.project.ID),
			attribute.String("provider", prep.provider),
		))
	defer span.End()

	fail := func(err error, partial int) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.GenerationTotal.WithLabelValues(kind, "error").Inc()
		logger.Error(ctx, "generation failed", err,
			"project_id", prep.project.ID,
			"fragments", partial,
		)
		sw.Send("", err)
	}

	chatModel, err := p.models.Get(ctx, prep.provider)
	if err != nil {
		fail(apperrors.Wrap(err, apperrors.CodeLLMProviderError, "chat model unavailable"), 0)
		return
	}

	ctx = service.WithWorkflowProvider(ctx, prep.req.Workflow, prep.provider)
	modelType, _ := components.GetType(chatModel)
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      prep.req.Workflow,
		Type:      modelType,
		Component: components.ComponentOfChatModel,
	})

	reader, err := chatModel.Stream(ctx, prep.messages, prep.req.modelOptions()...)
	if err != nil {
		if ctx.Err() != nil {
			p.canceled(ctx, prep, 0)
			return
		}
		fail(apperrors.Generation(err, "failed to start model stream"), 0)
		return
	}
	defer reader.Close()

	var full strings.Builder
	fragments := 0
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				p.canceled(ctx, prep, fragments)
				return
			}
			fail(apperrors.Generation(err, "model stream failed"), fragments)
			return
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		full.WriteString(msg.Content)
		fragments++
		metrics.GenerationFragments.WithLabelValues(kind).Inc()
		if closed := sw.Send(msg.Content, nil); closed {
			p.canceled(ctx, prep, fragments)
			return
		}
	}
	if ctx.Err() != nil {
		p.canceled(ctx, prep, fragments)
		return
	}

	// 模型流已完整结束，但缓冲中的片段可能尚未送达；落库交给消费者读到流尾时执行
	response := full.String()
	persistCtx := context.WithoutCancel(ctx)
	stream.setFinish(func(aborted bool) (*Result, error) {
		if aborted {
			_, delivered := stream.Partial()
			p.canceled(persistCtx, prep, delivered)
			return nil, nil
		}
		result, err := p.complete(persistCtx, prep, response, fragments)
		if err != nil {
			metrics.GenerationTotal.WithLabelValues(kind, "error").Inc()
			logger.Error(persistCtx, "generation persistence failed", err,
				"project_id", prep.project.ID,
				"fragments", fragments,
			)
			return nil, err
		}
		metrics.GenerationTotal.WithLabelValues(kind, "success").Inc()
		metrics.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		metrics.GenerationResponseRunes.WithLabelValues(kind).Observe(float64(utf8.RuneCountInString(response)))
		logger.Info(persistCtx, "generation completed",
			"project_id", prep.project.ID,
			"assistant_turn_id", result.AssistantTurnID,
			"fragments", fragments,
			"response_length", utf8.RuneCountInString(response),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, nil
	})
}

// complete 写入助手轮次并追加章节正文，随后提交事实抽取
func (p *Pipeline) complete(ctx context.Context, prep *prepared, response string, fragments int) (*Result, error) {
	result := &Result{
		UserTurnID: prep.userTurn.ID,
		ChapterID:  prep.req.ChapterID,
		Response:   response,
		Fragments:  fragments,
	}

	err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		assistant := entity.NewConversationTurn(prep.project.ID, prep.req.ChapterID, entity.RoleAssistant, response, nil)
		if err := p.turns.Create(txCtx, assistant); err != nil {
			return err
		}
		result.AssistantTurnID = assistant.ID

		if prep.chapter == nil || strings.TrimSpace(response) == "" {
			return nil
		}
		chapter, err := p.chapters.AppendContent(txCtx, prep.chapter.ID, response)
		if err != nil {
			return err
		}
		result.Chapter = chapter
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Storage(err, "failed to persist generation result")
	}

	p.sink.Submit(ctx, facts.Exchange{
		ProjectID:       prep.project.ID,
		Kind:            prep.project.Kind,
		ChapterID:       prep.req.ChapterID,
		AssistantTurnID: result.AssistantTurnID,
		UserInput:       prep.req.turnText(),
		Response:        response,
	})
	return result, nil
}

func (p *Pipeline) canceled(ctx context.Context, prep *prepared, fragments int) {
	metrics.GenerationTotal.WithLabelValues(string(prep.project.Kind), "canceled").Inc()
	logger.Info(ctx, "generation canceled",
		"project_id", prep.project.ID,
		"user_turn_id", prep.userTurn.ID,
		"fragments", fragments,
	)
}

