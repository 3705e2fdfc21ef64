package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer, meter and log providers and the propagator
// used to continue client traces from gRPC metadata. A nil *Telemetry
// falls back to the otel globals.
type Telemetry struct {
	cfg *Config

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider

	propagator propagation.TextMapPropagator

	mu       sync.Mutex
	shutdown bool
	degraded []string
}

// New creates the providers. Exporter failures degrade the instance
// instead of failing startup; only an invalid config is an error.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{
		cfg: cfg,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	// Propagation runs even without export so client trace ids reach logs.
	otel.SetTextMapPropagator(t.propagator)
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.degrade(err)
	} else {
		t.tp = tp
		otel.SetTracerProvider(tp)
	}
	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.degrade(err)
	} else {
		t.mp = mp
		otel.SetMeterProvider(mp)
	}
	if lp, err := newLoggerProvider(ctx, cfg, res); err != nil {
		t.degrade(err)
	} else {
		t.lp = lp
	}
	return t, nil
}

func (t *Telemetry) degrade(err error) {
	t.mu.Lock()
	t.degraded = append(t.degraded, err.Error())
	t.mu.Unlock()
}

// Tracer returns a tracer from the SDK provider, or the global one when
// export is off.
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if t == nil || t.tp == nil {
		return otel.Tracer(name, opts...)
	}
	return t.tp.Tracer(name, opts...)
}

// Meter returns a meter from the SDK provider, or the global one when
// export is off.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.mp == nil {
		return otel.Meter(name, opts...)
	}
	return t.mp.Meter(name, opts...)
}

// Propagator returns the W3C trace-context and baggage propagator.
func (t *Telemetry) Propagator() propagation.TextMapPropagator {
	if t == nil || t.propagator == nil {
		return otel.GetTextMapPropagator()
	}
	return t.propagator
}

// LoggerProvider returns the OTLP log provider for the otelzap bridge,
// or nil when logs are not exported.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.lp == nil {
		return nil
	}
	return t.lp
}

// ForceFlush exports everything buffered.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.ForceFlush(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.ForceFlush(ctx))
	}
	if t.lp != nil {
		errs = append(errs, t.lp.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every provider. Without a deadline on ctx
// the configured shutdown timeout applies. Later calls are no-ops.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	t.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.lp != nil {
		if err := t.lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HealthStatus reports whether telemetry is exporting.
type HealthStatus struct {
	Healthy  bool
	Degraded bool
	Reason   string
}

// Health reports the export state. Disabled telemetry is healthy.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true, Reason: "telemetry not initialized"}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return HealthStatus{Reason: "shut down"}
	}
	if len(t.degraded) > 0 {
		return HealthStatus{Healthy: true, Degraded: true, Reason: t.degraded[0]}
	}
	return HealthStatus{Healthy: true}
}

// IsEnabled reports whether export was requested and is still running.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.cfg == nil || !t.cfg.Enabled {
		return false
	}
	return t.Health().Healthy
}
