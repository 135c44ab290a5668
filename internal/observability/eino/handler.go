// Package eino 将 Eino 模型调用接入 Prometheus 指标与 OpenTelemetry 追踪
package eino

import (
	"context"
	"errors"
	"io"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-writer-api/internal/domain/service"
	"z-writer-api/pkg/logger"
	"z-writer-api/pkg/metrics"
)

// startTimeKey 在 Context 中记录调用开始时间，供 OnEnd/OnError 计算耗时
type startTimeKey struct{}

// modelNameKey 记录 OnStart 时的模型名，流式输出的分片通常不带 Config
type modelNameKey struct{}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, modelNameKey{}, modelName)

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}
			if input != nil {
				attrs = append(attrs, attribute.Int("llm.input_messages", len(input.Messages)))
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			var usage *model.TokenUsage
			modelName := modelNameFromContext(ctx)
			if output != nil {
				usage = output.TokenUsage
				if output.Config != nil && output.Config.Model != "" {
					modelName = output.Config.Model
				}
			}
			recordSuccess(ctx, modelName, usage)
			return ctx
		},

		// 流式输出：在独立 goroutine 中读完副本后统一上报，副本必须关闭
		OnEndWithStreamOutput: func(ctx context.Context, _ *einocb.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			go func() {
				defer output.Close()

				modelName := modelNameFromContext(ctx)
				var usage *model.TokenUsage
				for {
					chunk, err := output.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						recordError(ctx, modelName, err)
						return
					}
					if chunk == nil {
						continue
					}
					if chunk.TokenUsage != nil {
						usage = chunk.TokenUsage
					}
					if chunk.Config != nil && chunk.Config.Model != "" {
						modelName = chunk.Config.Model
					}
				}
				recordSuccess(ctx, modelName, usage)
			}()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			recordError(ctx, modelNameFromContext(ctx), err)
			return ctx
		},
	}
}

func recordSuccess(ctx context.Context, modelName string, usage *model.TokenUsage) {
	workflow := service.WorkflowFromContext(ctx)
	provider := service.ProviderFromContext(ctx)

	metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "success").Inc()
	if d := elapsedSeconds(ctx); d > 0 {
		metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
	}
	if usage != nil {
		metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "prompt").Add(float64(usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "completion").Add(float64(usage.CompletionTokens))
	}

	span := trace.SpanFromContext(ctx)
	if usage != nil {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", usage.PromptTokens),
			attribute.Int("llm.completion_tokens", usage.CompletionTokens),
		)
	}
	span.End()
}

func recordError(ctx context.Context, modelName string, err error) {
	workflow := service.WorkflowFromContext(ctx)
	provider := service.ProviderFromContext(ctx)

	metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "error").Inc()
	if d := elapsedSeconds(ctx); d > 0 {
		metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
	}
	logger.Warn(ctx, "llm call failed", "workflow", workflow, "provider", provider, "model", modelName, "error", err.Error())

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

// elapsedSeconds 计算从 OnStart 到当前的耗时（秒），未记录开始时间时返回 0
func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(modelNameKey{}).(string)
	return name
}
