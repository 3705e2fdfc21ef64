package reqctx

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Context is the per-call state kept by a Registry. A nil *Context is
// valid: it reports no id, an empty kind, a no-op span and a live
// connection.
type Context struct {
	id        string
	kind      string
	method    string
	span      trace.Span
	call      context.Context
	ctx       context.Context
	startedAt time.Time
	endOnce   sync.Once
}

// RequestID returns the deduplicated request id.
func (c *Context) RequestID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Kind returns the request kind tag.
func (c *Context) Kind() string {
	if c == nil {
		return ""
	}
	return c.kind
}

// Method returns the full gRPC method name.
func (c *Context) Method() string {
	if c == nil {
		return ""
	}
	return c.method
}

// Span returns the server span, or a no-op span.
func (c *Context) Span() trace.Span {
	if c == nil || c.span == nil {
		return trace.SpanFromContext(context.Background())
	}
	return c.span
}

// Context returns the call context carrying span and log fields.
func (c *Context) Context() context.Context {
	if c == nil || c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Elapsed returns the time since Begin.
func (c *Context) Elapsed() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startedAt)
}

// IsConnectionBroken reports whether the peer went away or the call was
// cancelled. It is a probe only; nothing is interrupted.
func (c *Context) IsConnectionBroken() bool {
	if c == nil || c.call == nil {
		return false
	}
	return c.call.Err() != nil
}

// RecordError marks the span as failed.
func (c *Context) RecordError(err error) {
	if c == nil || c.span == nil || err == nil {
		return
	}
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
}

// finish ends the span exactly once.
func (c *Context) finish() {
	c.endOnce.Do(func() {
		if c.span != nil {
			c.span.End()
		}
	})
}
