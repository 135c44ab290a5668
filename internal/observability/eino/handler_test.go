package eino

import (
	"context"
	"errors"
	"testing"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-api/internal/domain/service"
	"z-writer-api/pkg/metrics"
)

func TestChatModelHandler_OnEndRecordsTokens(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowProvider(context.Background(), "test_on_end", "openai")
	info := &einocb.RunInfo{Name: "story_generation", Type: "OpenAI"}

	ctx = h.OnStart(ctx, info, &model.CallbackInput{Config: &model.Config{Model: "gpt-test"}})
	assert.Equal(t, "gpt-test", modelNameFromContext(ctx))

	h.OnEnd(ctx, info, &model.CallbackOutput{
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 30},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("test_on_end", "openai", "gpt-test", "success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("test_on_end", "openai", "gpt-test", "prompt")))
	assert.Equal(t, 30.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("test_on_end", "openai", "gpt-test", "completion")))
}

func TestChatModelHandler_StreamOutputDrained(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowProvider(context.Background(), "test_stream", "gemini")
	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "gemini-test"}})

	sr, sw := schema.Pipe[*model.CallbackOutput](4)
	go func() {
		defer sw.Close()
		sw.Send(&model.CallbackOutput{Message: schema.AssistantMessage("a", nil)}, nil)
		sw.Send(&model.CallbackOutput{
			Message:    schema.AssistantMessage("b", nil),
			TokenUsage: &model.TokenUsage{PromptTokens: 5, CompletionTokens: 2},
		}, nil)
	}()
	h.OnEndWithStreamOutput(ctx, nil, sr)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("test_stream", "gemini", "gemini-test", "success")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("test_stream", "gemini", "gemini-test", "completion")))
}

func TestChatModelHandler_OnError(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithWorkflowProvider(context.Background(), "test_error", "openai")
	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "gpt-test"}})
	h.OnError(ctx, nil, errors.New("upstream 500"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("test_error", "openai", "gpt-test", "error")))
}

func TestElapsedSecondsWithoutStart(t *testing.T) {
	assert.Zero(t, elapsedSeconds(context.Background()))
}
