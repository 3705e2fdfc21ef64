// Package qdrant wraps the official Qdrant Go client with the retry,
// timeout and value-conversion behaviour the qdrant engine relies on.
package qdrant

import (
	"context"

	"github.com/qdrant/go-client/qdrant"
)

// Client is the subset of Qdrant the engine uses.
type Client interface {
	// Collection operations
	CreateCollection(ctx context.Context, name string, dim uint64, distance qdrant.Distance) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateFieldIndex(ctx context.Context, collection, field string, fieldType qdrant.FieldType) error

	// Point operations
	Upsert(ctx context.Context, collection string, points []*Point) error
	Query(ctx context.Context, collection string, vector []float32, limit uint64, filter *qdrant.Filter) ([]*ScoredPoint, error)
	Get(ctx context.Context, collection string, ids []*qdrant.PointId) ([]*Point, error)
	Delete(ctx context.Context, collection string, ids []*qdrant.PointId) error
	DeleteByFilter(ctx context.Context, collection string, filter *qdrant.Filter) error
	Count(ctx context.Context, collection string, filter *qdrant.Filter) (uint64, error)

	// Health returns the server version.
	Health(ctx context.Context) (string, error)

	Close() error
}

// Point is a stored vector with its payload. ID is either numeric or a
// UUID.
type Point struct {
	ID      *qdrant.PointId
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float32
}
