package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *MetricCollector
}

// NewTestTelemetry returns telemetry backed by a span recorder and a
// manual metric reader. Globals are left untouched.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	rec := tracetest.NewSpanRecorder()
	collector := &MetricCollector{reader: sdkmetric.NewManualReader()}
	return &TestTelemetry{
		Telemetry: &Telemetry{
			cfg: cfg,
			tp:  sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)),
			mp:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(collector.reader)),
			propagator: propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			),
		},
		SpanRecorder: rec,
		MetricReader: collector,
	}
}

// Spans returns the ended spans.
func (t *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) sdktrace.ReadOnlySpan {
	for _, s := range t.Spans() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// AssertSpanExists fails tb when no span called name has ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) != nil {
		return
	}
	var names []string
	for _, s := range t.Spans() {
		names = append(names, s.Name())
	}
	tb.Errorf("span %q not recorded; have %v", name, names)
}

// AssertSpanAttribute fails tb unless span has key set to want.
// Integer attributes compare as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, span, key string, want any) {
	tb.Helper()
	s := t.SpanByName(span)
	if s == nil {
		tb.Fatalf("span %q not recorded", span)
	}
	for _, kv := range s.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := attrValue(kv.Value); got != want {
			tb.Errorf("span %q attribute %q = %v, want %v", span, key, got, want)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", span, key)
}

func attrValue(v attribute.Value) any {
	if v.Type() == attribute.STRING {
		return v.AsString()
	}
	return v.AsInterface()
}

// MetricCollector snapshots a manual reader on demand.
type MetricCollector struct {
	reader *sdkmetric.ManualReader

	mu      sync.Mutex
	batches []metricdata.ResourceMetrics
}

// ForceFlush collects the current metric state and keeps it.
func (c *MetricCollector) ForceFlush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return err
	}
	c.mu.Lock()
	c.batches = append(c.batches, rm)
	c.mu.Unlock()
	return nil
}

// Metrics returns every collected snapshot, oldest first.
func (c *MetricCollector) Metrics() []metricdata.ResourceMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]metricdata.ResourceMetrics(nil), c.batches...)
}
