// Package reqctx tracks in-flight gRPC calls.
//
// A Registry hands every call a Context carrying its request id, its
// server span and a liveness probe on the underlying connection. Ids are
// client-chosen (metadata key "request_id") or drawn from a sequential
// counter, and are deduplicated so two live calls never share one.
package reqctx

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Request kind tags reported by Cmd "requests".
const (
	KindInsert        = "Insert"
	KindCreateIndex   = "CreateIndex"
	KindSearch        = "Search"
	KindFlush         = "Flush"
	KindGetEntityByID = "GetEntityByID"
	KindCompact       = "Compact"
	KindOther         = "OtherReq"
)

// KindForMethod maps a full gRPC method name to its request kind tag.
func KindForMethod(fullMethod string) string {
	name := fullMethod[strings.LastIndex(fullMethod, "/")+1:]
	switch name {
	case apiv1.MethodInsert:
		return KindInsert
	case apiv1.MethodCreateIndex:
		return KindCreateIndex
	case apiv1.MethodSearch:
		return KindSearch
	case apiv1.MethodFlush:
		return KindFlush
	case apiv1.MethodGetEntityByID:
		return KindGetEntityByID
	case apiv1.MethodCompact:
		return KindCompact
	default:
		return KindOther
	}
}

// Registry maps request ids to live call contexts.
// The mutex is never held across a blocking call.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*Context
	seq      atomic.Uint64

	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	logger     *logging.Logger
}

// NewRegistry creates an empty registry. tracer and propagator may come
// from telemetry.Telemetry; nil values fall back to the otel globals.
func NewRegistry(tracer trace.Tracer, propagator propagation.TextMapPropagator, logger *logging.Logger) *Registry {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	return &Registry{
		contexts:   make(map[string]*Context),
		tracer:     tracer,
		propagator: propagator,
		logger:     logger,
	}
}

const instrumentationName = "github.com/fyrsmithlabs/vectord/internal/reqctx"

// Begin registers a call. It reads the request id and trace context from
// the incoming metadata of ctx, starts the server span for fullMethod and
// returns the registered Context together with a derived context.Context
// that carries the span and log correlation fields.
func (r *Registry) Begin(ctx context.Context, fullMethod string) (*Context, context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	requested := firstValue(md, apiv1.RequestIDKey)

	parent := telemetry.Extract(ctx, r.propagator, md)
	spanCtx, span := r.tracer.Start(parent, fullMethod,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.method", fullMethod)),
	)

	rc := &Context{
		kind:      KindForMethod(fullMethod),
		method:    fullMethod,
		span:      span,
		call:      ctx,
		startedAt: time.Now(),
	}

	r.mu.Lock()
	if requested == "" {
		requested = strconv.FormatUint(r.seq.Add(1)-1, 10)
	}
	rc.id = r.uniqueLocked(requested)
	r.contexts[rc.id] = rc
	r.mu.Unlock()

	span.SetAttributes(attribute.String("request.id", rc.id))

	spanCtx = logging.WithRequestID(spanCtx, rc.id)
	spanCtx = logging.WithRequestKind(spanCtx, rc.kind)
	rc.ctx = spanCtx
	return rc, spanCtx
}

// uniqueLocked returns id, or id with the smallest free "_n" suffix.
func (r *Registry) uniqueLocked(id string) string {
	if _, taken := r.contexts[id]; !taken {
		return id
	}
	for n := 1; ; n++ {
		candidate := id + "_" + strconv.Itoa(n)
		if _, taken := r.contexts[candidate]; !taken {
			return candidate
		}
	}
}

// Get returns the context registered under id. A missing id is logged
// and yields nil, which every Context method treats as an untraced
// degraded context.
func (r *Registry) Get(id string) *Context {
	r.mu.Lock()
	rc, ok := r.contexts[id]
	r.mu.Unlock()
	if !ok {
		r.logger.Warn(context.Background(), "request context not found", zap.String("request.id", id))
		return nil
	}
	return rc
}

// End finishes the span of id and removes it.
func (r *Registry) End(id string) {
	r.mu.Lock()
	rc, ok := r.contexts[id]
	delete(r.contexts, id)
	r.mu.Unlock()
	if !ok {
		r.logger.Debug(context.Background(), "ending unknown request context", zap.String("request.id", id))
		return
	}
	rc.finish()
}

// Requests lists live requests as "<Kind>-<id>", sorted, leaving out exclude.
func (r *Registry) Requests(exclude string) []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.contexts))
	for id, rc := range r.contexts {
		if id == exclude || rc == nil {
			continue
		}
		out = append(out, rc.kind+"-"+id)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Len returns the number of live requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

func firstValue(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
