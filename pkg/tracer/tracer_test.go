package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestNewResource_CarriesAppIdentity(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:    "z-writer-api",
		ServiceVersion: "v1.2.3",
		Environment:    "staging",
		Component:      "job-worker",
	})
	require.NoError(t, err)

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "z-writer-api", got[semconv.ServiceNameKey])
	assert.Equal(t, "v1.2.3", got[semconv.ServiceVersionKey])
	assert.Equal(t, "staging", got[semconv.DeploymentEnvironmentKey])
	assert.Equal(t, "job-worker", got[ComponentKey])
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInit_DisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "z-writer-api"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
