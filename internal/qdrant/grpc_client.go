package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fyrsmithlabs/vectord/internal/logging"
)

// GRPCClient is the Client backed by the official Qdrant Go client.
type GRPCClient struct {
	qc     *qdrant.Client
	cfg    ClientConfig
	logger *logging.Logger
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient dials Qdrant and fails unless a health check answers
// within the dial timeout.
func NewGRPCClient(cfg *ClientConfig, logger *logging.Logger) (*GRPCClient, error) {
	if logger == nil {
		return nil, errors.New("qdrant client: logger is required")
	}
	var c ClientConfig
	if cfg != nil {
		c = *cfg
	}
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	opts := []grpc.DialOption{grpc.WithDefaultCallOptions(
		grpc.MaxCallRecvMsgSize(c.MaxMessageSize),
		grpc.MaxCallSendMsgSize(c.MaxMessageSize),
	)}
	if !c.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, c.dialOptions...)
	// The health check below replaces the client's own version probe.
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:                   c.Host,
		Port:                   c.Port,
		UseTLS:                 c.UseTLS,
		APIKey:                 c.APIKey,
		GrpcOptions:            opts,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	client := &GRPCClient{qc: qc, cfg: c, logger: logger.Named("qdrant")}

	ctx, cancel := context.WithTimeout(context.Background(), c.DialTimeout)
	defer cancel()
	version, err := client.Health(ctx)
	if err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("qdrant at %s:%d: %w", c.Host, c.Port, err)
	}
	client.logger.Debug(ctx, "connected", zap.String("server_version", version))
	return client, nil
}

// Health returns the server version.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	return call(ctx, c, "health", func(ctx context.Context) (string, error) {
		reply, err := c.qc.HealthCheck(ctx)
		return reply.GetVersion(), err
	})
}

// CreateCollection creates a collection with a single unnamed dense vector.
func (c *GRPCClient) CreateCollection(ctx context.Context, name string, dim uint64, distance qdrant.Distance) error {
	req := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: dim, Distance: distance}),
	}
	return exec(ctx, c, "create_collection", func(ctx context.Context) error {
		return c.qc.CreateCollection(ctx, req)
	})
}

func (c *GRPCClient) DeleteCollection(ctx context.Context, name string) error {
	return exec(ctx, c, "delete_collection", func(ctx context.Context) error {
		return c.qc.DeleteCollection(ctx, name)
	})
}

func (c *GRPCClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	return call(ctx, c, "collection_exists", func(ctx context.Context) (bool, error) {
		return c.qc.CollectionExists(ctx, name)
	})
}

func (c *GRPCClient) ListCollections(ctx context.Context) ([]string, error) {
	return call(ctx, c, "list_collections", c.qc.ListCollections)
}

// CreateFieldIndex indexes a payload field and waits for the index.
func (c *GRPCClient) CreateFieldIndex(ctx context.Context, collection, field string, fieldType qdrant.FieldType) error {
	req := &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      qdrant.PtrOf(fieldType),
		Wait:           qdrant.PtrOf(true),
	}
	return exec(ctx, c, "create_field_index", func(ctx context.Context) error {
		_, err := c.qc.CreateFieldIndex(ctx, req)
		return err
	})
}

// Upsert writes points and returns once Qdrant has applied them.
func (c *GRPCClient) Upsert(ctx context.Context, collection string, points []*Point) error {
	req := &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         make([]*qdrant.PointStruct, len(points)),
		Wait:           qdrant.PtrOf(true),
	}
	for i, p := range points {
		req.Points[i] = toPointStruct(p)
	}
	return exec(ctx, c, "upsert", func(ctx context.Context) error {
		_, err := c.qc.Upsert(ctx, req)
		return err
	})
}

// Query returns up to limit nearest points matching filter, best first.
func (c *GRPCClient) Query(ctx context.Context, collection string, vector []float32, limit uint64, filter *qdrant.Filter) ([]*ScoredPoint, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	hits, err := call(ctx, c, "query", func(ctx context.Context) ([]*qdrant.ScoredPoint, error) {
		return c.qc.Query(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*ScoredPoint, len(hits))
	for i, h := range hits {
		out[i] = &ScoredPoint{
			Point: Point{ID: h.GetId(), Vector: denseVector(h.GetVectors()), Payload: fromPayload(h.GetPayload())},
			Score: h.GetScore(),
		}
	}
	return out, nil
}

// Get fetches points by id. Missing ids are skipped.
func (c *GRPCClient) Get(ctx context.Context, collection string, ids []*qdrant.PointId) ([]*Point, error) {
	req := &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	found, err := call(ctx, c, "get", func(ctx context.Context) ([]*qdrant.RetrievedPoint, error) {
		return c.qc.Get(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Point, len(found))
	for i, p := range found {
		out[i] = &Point{ID: p.GetId(), Vector: denseVector(p.GetVectors()), Payload: fromPayload(p.GetPayload())}
	}
	return out, nil
}

func (c *GRPCClient) Delete(ctx context.Context, collection string, ids []*qdrant.PointId) error {
	return c.remove(ctx, collection, qdrant.NewPointsSelectorIDs(ids))
}

func (c *GRPCClient) DeleteByFilter(ctx context.Context, collection string, filter *qdrant.Filter) error {
	return c.remove(ctx, collection, qdrant.NewPointsSelectorFilter(filter))
}

func (c *GRPCClient) remove(ctx context.Context, collection string, sel *qdrant.PointsSelector) error {
	req := &qdrant.DeletePoints{CollectionName: collection, Points: sel, Wait: qdrant.PtrOf(true)}
	return exec(ctx, c, "delete", func(ctx context.Context) error {
		_, err := c.qc.Delete(ctx, req)
		return err
	})
}

// Count returns the exact number of points matching filter.
func (c *GRPCClient) Count(ctx context.Context, collection string, filter *qdrant.Filter) (uint64, error) {
	req := &qdrant.CountPoints{CollectionName: collection, Filter: filter, Exact: qdrant.PtrOf(true)}
	return call(ctx, c, "count", func(ctx context.Context) (uint64, error) {
		return c.qc.Count(ctx, req)
	})
}

func (c *GRPCClient) Close() error {
	if c.qc == nil {
		return nil
	}
	return c.qc.Close()
}

func exec(ctx context.Context, c *GRPCClient, name string, op func(context.Context) error) error {
	_, err := call(ctx, c, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
