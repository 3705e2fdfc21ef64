package logging

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxIDLen bounds client-chosen values copied into log fields.
const maxIDLen = 128

// ContextFields returns the correlation fields carried by ctx: the otel
// span ids and the request id, kind and collection.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	if kind := RequestKindFromContext(ctx); kind != "" {
		fields = append(fields, zap.String("request.kind", kind))
	}
	if collection := CollectionFromContext(ctx); collection != "" {
		fields = append(fields, zap.String("collection", collection))
	}

	return fields
}

type requestCtxKey struct{}
type kindCtxKey struct{}
type collectionCtxKey struct{}

// sanitizeID makes a client-supplied value safe for log output: invalid
// UTF-8 and control characters are replaced and the result is truncated.
func sanitizeID(id string) string {
	if !utf8.ValidString(id) {
		id = strings.ToValidUTF8(id, "?")
	}
	id = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '?'
		}
		return r
	}, id)
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return id
}

// RequestIDFromContext extracts the request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds the request id to context. Request ids are chosen
// by clients, so the value is sanitized rather than rejected.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, sanitizeID(requestID))
}

// RequestKindFromContext extracts the request kind tag (Insert, Search, ...).
func RequestKindFromContext(ctx context.Context) string {
	if k, ok := ctx.Value(kindCtxKey{}).(string); ok {
		return k
	}
	return ""
}

// WithRequestKind adds the request kind tag to context.
func WithRequestKind(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, kindCtxKey{}, kind)
}

// CollectionFromContext extracts the target collection name from context.
func CollectionFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(collectionCtxKey{}).(string); ok {
		return c
	}
	return ""
}

// WithCollection adds the target collection name to context.
func WithCollection(ctx context.Context, collection string) context.Context {
	if collection == "" {
		return ctx
	}
	return context.WithValue(ctx, collectionCtxKey{}, sanitizeID(collection))
}

type loggerCtxKey struct{}

// WithLogger stores logger in ctx for components built without one.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return &Logger{zap: zap.NewNop()}
}
