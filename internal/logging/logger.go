package logging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapgrpc"
	"google.golang.org/grpc/grpclog"
)

// Logger wraps zap with context-aware methods. The zero value is not
// usable; use NewLogger, FromContext or NewTestLogger.
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger from cfg. A nil otelProvider disables the
// OTLP tee regardless of cfg.OTEL.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	core, err := newCore(cfg, otelProvider)
	if err != nil {
		return nil, err
	}

	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2), zap.AddStacktrace(zapcore.ErrorLevel))
	if len(cfg.Fields) > 0 {
		keys := make([]string, 0, len(cfg.Fields))
		for k := range cfg.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]zap.Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, zap.String(k, cfg.Fields[k]))
		}
		z = z.With(fields...)
	}
	return &Logger{zap: z}, nil
}

func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.zap.Check(lvl, msg); ce != nil {
		ce.Write(append(ContextFields(ctx), fields...)...)
	}
}

// Trace logs below Debug. Fields are only built when Trace is enabled.
func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

// With returns a child logger carrying fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger with name appended to the logger name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Sync flushes buffered entries. EINVAL and ENOTTY from syncing a
// terminal or pipe are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}

// GRPCLogger adapts the logger for grpclog.SetLoggerV2 so grpc-go's
// internal messages go through the same cores, named "grpc".
func (l *Logger) GRPCLogger() grpclog.LoggerV2 {
	return zapgrpc.NewLogger(l.zap.Named("grpc").WithOptions(zap.AddCallerSkip(-1)))
}
