package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInit_TracesOnly(t *testing.T) {
	shutdown, err := Init(&Config{ServiceName: "test"}, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestInit_WithMetrics(t *testing.T) {
	shutdown, err := Init(&Config{ServiceName: "test", MetricsEnabled: true}, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	counter, err := otel.Meter("test").Int64Counter("test.events_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}

func TestInit_NilConfig(t *testing.T) {
	shutdown, err := Init(nil, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
