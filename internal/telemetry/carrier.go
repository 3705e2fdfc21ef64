package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// MetadataCarrier adapts gRPC metadata to propagation.TextMapCarrier.
// gRPC lower-cases keys, which matches the W3C header names.
type MetadataCarrier metadata.MD

var _ propagation.TextMapCarrier = MetadataCarrier(nil)

// Get returns the first value for key.
func (c MetadataCarrier) Get(key string) string {
	vals := metadata.MD(c).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Set replaces the values for key.
func (c MetadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

// Keys lists the carrier keys.
func (c MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, strings.ToLower(k))
	}
	return keys
}

// Extract returns ctx carrying the remote span context found in md, if any.
func Extract(ctx context.Context, p propagation.TextMapPropagator, md metadata.MD) context.Context {
	if p == nil || md == nil {
		return ctx
	}
	return p.Extract(ctx, MetadataCarrier(md))
}

// InjectOutgoing adds the span context of ctx to its outgoing gRPC metadata.
func InjectOutgoing(ctx context.Context, p propagation.TextMapPropagator) context.Context {
	if p == nil {
		return ctx
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	p.Inject(ctx, MetadataCarrier(md))
	return metadata.NewOutgoingContext(ctx, md)
}
