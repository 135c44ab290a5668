package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowProvider(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))

	ctx = WithWorkflowProvider(ctx, " continue ", "gemini")
	assert.Equal(t, "continue", WorkflowFromContext(ctx))
	assert.Equal(t, "gemini", ProviderFromContext(ctx))

	assert.Equal(t, "continue", WorkflowFromContext(WithWorkflow(ctx, "  ")))
}
