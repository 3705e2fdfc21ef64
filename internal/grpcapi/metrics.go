package grpcapi

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/logging"
)

const rpcInstrumentationName = "github.com/fyrsmithlabs/vectord/internal/grpcapi"

// RPCMetrics holds the per-verb instruments. A nil *RPCMetrics records
// nothing.
type RPCMetrics struct {
	meter          metric.Meter
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewRPCMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewRPCMetrics(meter metric.Meter, logger *logging.Logger) *RPCMetrics {
	if meter == nil {
		meter = otel.Meter(rpcInstrumentationName)
	}
	m := &RPCMetrics{meter: meter}
	m.init(logger)
	return m
}

func (m *RPCMetrics) init(logger *logging.Logger) {
	ctx := context.Background()
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"vectord.rpc.requests_total",
		metric.WithDescription("Total VectorService calls labeled by method and embedded error code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"vectord.rpc.request_duration_seconds",
		metric.WithDescription("VectorService call duration in seconds, labeled by method and error code."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"vectord.rpc.active_requests",
		metric.WithDescription("Number of VectorService calls in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}
}

// start counts a call as active and returns the function that records
// its outcome.
func (m *RPCMetrics) start(ctx context.Context, fullMethod string) func(resp any, err error) {
	if m == nil {
		return func(any, error) {}
	}
	begin := time.Now()
	method := attribute.String("method", methodName(fullMethod))
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(method))
	}

	return func(resp any, err error) {
		attrs := metric.WithAttributes(method,
			attribute.String("error_code", replyCode(resp, err).String()))
		if m.requestsTotal != nil {
			m.requestsTotal.Add(ctx, 1, attrs)
		}
		if m.requestDur != nil {
			m.requestDur.Record(ctx, time.Since(begin).Seconds(), attrs)
		}
		if m.activeRequests != nil {
			m.activeRequests.Add(ctx, -1, metric.WithAttributes(method))
		}
	}
}
