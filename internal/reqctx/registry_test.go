package reqctx

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/metadata"

	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func newTestRegistry(t *testing.T) (*Registry, *telemetry.TestTelemetry, *logging.TestLogger) {
	t.Helper()
	tel := telemetry.NewTestTelemetry()
	tl := logging.NewTestLogger()
	return NewRegistry(tel.Tracer("test"), tel.Propagator(), tl.Logger), tel, tl
}

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func TestKindForMethod(t *testing.T) {
	tests := map[string]string{
		apiv1.FullMethod(apiv1.MethodInsert):        KindInsert,
		apiv1.FullMethod(apiv1.MethodSearch):        KindSearch,
		apiv1.FullMethod(apiv1.MethodCreateIndex):   KindCreateIndex,
		apiv1.FullMethod(apiv1.MethodFlush):         KindFlush,
		apiv1.FullMethod(apiv1.MethodGetEntityByID): KindGetEntityByID,
		apiv1.FullMethod(apiv1.MethodCompact):       KindCompact,
		apiv1.FullMethod(apiv1.MethodHasCollection): KindOther,
		apiv1.FullMethod(apiv1.MethodCmd):           KindOther,
		"Insert":                                    KindInsert,
	}
	for method, want := range tests {
		assert.Equal(t, want, KindForMethod(method), method)
	}
}

func TestBegin_ClientRequestID(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	rc, ctx := r.Begin(incoming(apiv1.RequestIDKey, "client-7"), apiv1.FullMethod(apiv1.MethodInsert))
	require.NotNil(t, rc)
	assert.Equal(t, "client-7", rc.RequestID())
	assert.Equal(t, KindInsert, rc.Kind())
	assert.Equal(t, "client-7", logging.RequestIDFromContext(ctx))
	assert.Equal(t, KindInsert, logging.RequestKindFromContext(ctx))
	assert.Same(t, rc, r.Get("client-7"))
}

func TestBegin_GeneratedIDsAreSequential(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	first, _ := r.Begin(context.Background(), "/m")
	second, _ := r.Begin(context.Background(), "/m")
	third, _ := r.Begin(context.Background(), "/m")

	assert.Equal(t, "0", first.RequestID())
	assert.Equal(t, "1", second.RequestID())
	assert.Equal(t, "2", third.RequestID())
}

func TestBegin_DuplicateIDGetsSmallestFreeSuffix(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	method := apiv1.FullMethod(apiv1.MethodSearch)

	a, _ := r.Begin(incoming(apiv1.RequestIDKey, "q"), method)
	b, _ := r.Begin(incoming(apiv1.RequestIDKey, "q"), method)
	c, _ := r.Begin(incoming(apiv1.RequestIDKey, "q"), method)
	assert.Equal(t, "q", a.RequestID())
	assert.Equal(t, "q_1", b.RequestID())
	assert.Equal(t, "q_2", c.RequestID())

	// Freeing q_1 makes it the smallest unused suffix again.
	r.End("q_1")
	d, _ := r.Begin(incoming(apiv1.RequestIDKey, "q"), method)
	assert.Equal(t, "q_1", d.RequestID())

	// Existing entries are never overwritten.
	assert.Same(t, a, r.Get("q"))
	assert.Same(t, c, r.Get("q_2"))
	assert.Equal(t, 3, r.Len())
}

func TestBegin_GeneratedIDCollidingWithClientID(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	client, _ := r.Begin(incoming(apiv1.RequestIDKey, "0"), "/m")
	generated, _ := r.Begin(context.Background(), "/m")

	assert.Equal(t, "0", client.RequestID())
	assert.Equal(t, "0_1", generated.RequestID())
}

func TestBegin_ConcurrentSameID(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	const n = 64
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc, _ := r.Begin(incoming(apiv1.RequestIDKey, "dup"), "/m")
			ids[i] = rc.RequestID()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.True(t, seen["dup"])
	for i := 1; i < n; i++ {
		assert.True(t, seen[fmt.Sprintf("dup_%d", i)], "missing dup_%d", i)
	}
	assert.Equal(t, n, r.Len())
}

func TestEnd_FinishesSpanOnce(t *testing.T) {
	r, tel, _ := newTestRegistry(t)
	method := apiv1.FullMethod(apiv1.MethodFlush)

	rc, _ := r.Begin(context.Background(), method)
	assert.Empty(t, tel.Spans())

	r.End(rc.RequestID())
	r.End(rc.RequestID())

	require.Len(t, tel.Spans(), 1)
	tel.AssertSpanExists(t, method)
	tel.AssertSpanAttribute(t, method, "request.id", rc.RequestID())
	tel.AssertSpanAttribute(t, method, "rpc.method", method)
	assert.Zero(t, r.Len())
}

func TestBegin_ContinuesRemoteTrace(t *testing.T) {
	r, tel, _ := newTestRegistry(t)

	clientCtx, clientSpan := tel.Tracer("client").Start(context.Background(), "client")
	out := telemetry.InjectOutgoing(clientCtx, tel.Propagator())
	md, _ := metadata.FromOutgoingContext(out)

	_, ctx := r.Begin(metadata.NewIncomingContext(context.Background(), md), "/m")
	server := trace.SpanContextFromContext(ctx)
	assert.Equal(t, clientSpan.SpanContext().TraceID(), server.TraceID())
	assert.NotEqual(t, clientSpan.SpanContext().SpanID(), server.SpanID())
	clientSpan.End()
}

func TestGet_MissingIsDegraded(t *testing.T) {
	r, _, tl := newTestRegistry(t)

	rc := r.Get("nope")
	assert.Nil(t, rc)
	tl.AssertLogged(t, zapcore.WarnLevel, "request context not found")

	assert.NotPanics(t, func() {
		assert.Empty(t, rc.RequestID())
		assert.Empty(t, rc.Kind())
		assert.False(t, rc.IsConnectionBroken())
		assert.False(t, rc.Span().SpanContext().IsValid())
		assert.NotNil(t, rc.Context())
		rc.RecordError(assert.AnError)
	})
}

func TestContext_IsConnectionBroken(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	callCtx, cancel := context.WithCancel(context.Background())
	rc, _ := r.Begin(callCtx, "/m")
	assert.False(t, rc.IsConnectionBroken())

	cancel()
	assert.True(t, rc.IsConnectionBroken())
}

func TestRequests(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	self, _ := r.Begin(incoming(apiv1.RequestIDKey, "self"), apiv1.FullMethod(apiv1.MethodCmd))
	r.Begin(incoming(apiv1.RequestIDKey, "a"), apiv1.FullMethod(apiv1.MethodInsert))
	r.Begin(incoming(apiv1.RequestIDKey, "b"), apiv1.FullMethod(apiv1.MethodSearch))
	r.Begin(incoming(apiv1.RequestIDKey, "c"), apiv1.FullMethod(apiv1.MethodHasCollection))

	assert.Equal(t, []string{"Insert-a", "OtherReq-c", "Search-b"}, r.Requests(self.RequestID()))
	assert.Len(t, r.Requests(""), 4)
}
