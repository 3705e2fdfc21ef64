package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NotNil(t, tel.Propagator())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := enabledConfig()
	cfg.Protocol = "zipkin"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_EnabledBuildsProviders(t *testing.T) {
	tests := []struct {
		protocol string
		logs     bool
	}{
		{ProtocolGRPC, true},
		{ProtocolHTTP, false},
	}
	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			cfg := enabledConfig()
			cfg.Protocol = tt.protocol
			if tt.protocol == ProtocolHTTP {
				cfg.Endpoint = "localhost:4318"
			}
			// Exporters connect lazily, so no collector is needed here.
			tel, err := New(context.Background(), cfg)
			require.NoError(t, err)

			assert.True(t, tel.IsEnabled())
			assert.False(t, tel.Health().Degraded)
			assert.Equal(t, tt.logs, tel.LoggerProvider() != nil)

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = tel.Shutdown(ctx)
			assert.False(t, tel.IsEnabled())
			assert.Equal(t, "shut down", tel.Health().Reason)
			assert.NoError(t, tel.Shutdown(ctx))
		})
	}
}

func TestTelemetry_Nil(t *testing.T) {
	var tel *Telemetry
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.Nil(t, tel.LoggerProvider())
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NotNil(t, tel.Propagator())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_Degraded(t *testing.T) {
	tel := NewTestTelemetry()
	tel.degrade(assert.AnError)

	h := tel.Health()
	assert.True(t, h.Healthy)
	assert.True(t, h.Degraded)
	assert.Equal(t, assert.AnError.Error(), h.Reason)
	assert.True(t, tel.IsEnabled())
}

func TestNewSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Name:          "root",
	}
	assert.Equal(t, sdktrace.RecordAndSample, newSampler(1).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, newSampler(0).ShouldSample(params).Decision)

	// A sampled remote parent wins over a zero root rate.
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    params.TraceID,
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	params.ParentContext = trace.ContextWithRemoteSpanContext(context.Background(), parent)
	assert.Equal(t, sdktrace.RecordAndSample, newSampler(0).ShouldSample(params).Decision)
}

func TestTestTelemetry_Spans(t *testing.T) {
	tel := NewTestTelemetry()
	ctx := context.Background()

	_, span := tel.Tracer("test").Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("collection", "books"),
			attribute.Int("topk", 5),
			attribute.Bool("partial", false),
		))
	span.End()

	require.Len(t, tel.Spans(), 1)
	assert.Nil(t, tel.SpanByName("Insert"))
	tel.AssertSpanExists(t, "Search")
	tel.AssertSpanAttribute(t, "Search", "collection", "books")
	tel.AssertSpanAttribute(t, "Search", "topk", int64(5))
	tel.AssertSpanAttribute(t, "Search", "partial", false)
}

func TestTestTelemetry_Metrics(t *testing.T) {
	tel := NewTestTelemetry()
	ctx := context.Background()

	counter, err := tel.Meter("test").Int64Counter("vectord.test.calls")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, tel.MetricReader.ForceFlush(ctx))
	require.NoError(t, tel.ForceFlush(ctx))

	batches := tel.MetricReader.Metrics()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].ScopeMetrics, 1)
	assert.Equal(t, "vectord.test.calls", batches[0].ScopeMetrics[0].Metrics[0].Name)
}
