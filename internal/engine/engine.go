// Package engine defines the execution engine behind the gRPC edge and
// provides two implementations: an in-process reference engine and one
// backed by a Qdrant server.
//
// The edge hands an engine already-decoded arguments: typed schemas,
// ingested column batches and compiled queries. Results come back as
// packed little-endian field bytes that the codec turns into wire records.
package engine

import (
	"context"
	"encoding/json"

	"github.com/fyrsmithlabs/vectord/internal/codec"
	"github.com/fyrsmithlabs/vectord/internal/query"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// MaxFieldNum is the most fields a collection may declare.
const MaxFieldNum = codec.MaxFieldNum

// DefaultPartition is the partition rows land in when no tag is given.
const DefaultPartition = "_default"

// Engine executes the storage and search side of every API verb.
// Implementations are safe for concurrent use.
type Engine interface {
	CreateCollection(ctx context.Context, schema *CollectionSchema) error
	DropCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	DescribeCollection(ctx context.Context, name string) (*CollectionSchema, error)
	ListCollections(ctx context.Context) ([]string, error)
	CollectionStats(ctx context.Context, name string) (string, error)
	CountEntities(ctx context.Context, name string) (int64, error)
	LoadCollection(ctx context.Context, name string) error

	CreateIndex(ctx context.Context, spec *IndexSpec) error
	DescribeIndex(ctx context.Context, collection, field string) (*IndexSpec, error)
	DropIndex(ctx context.Context, collection, field, name string) error

	CreatePartition(ctx context.Context, collection, tag string) error
	DropPartition(ctx context.Context, collection, tag string) error
	HasPartition(ctx context.Context, collection, tag string) (bool, error)
	ListPartitions(ctx context.Context, collection string) ([]string, error)

	Insert(ctx context.Context, collection, partition string, batch *codec.Batch) ([]int64, error)
	GetEntityByID(ctx context.Context, collection string, ids []int64, fields []string) (*EntityResult, error)
	GetEntityIDs(ctx context.Context, collection string, segmentID int64) ([]int64, error)
	DeleteByID(ctx context.Context, collection string, ids []int64) error
	Search(ctx context.Context, q *query.Query, fields []string) (*SearchResult, error)
	Flush(ctx context.Context, collections []string) error
	Compact(ctx context.Context, collection string, threshold float64) error

	// Cmd answers engine commands such as "version", "status" and "mode".
	Cmd(ctx context.Context, cmd string) (string, error)

	// ValidateTopk rejects a top-k that is not positive or exceeds the
	// engine maximum.
	ValidateTopk(k int64) error

	Close() error
}

// FieldSchema describes one collection field.
type FieldSchema struct {
	Name string         `json:"field_name"`
	Type apiv1.DataType `json:"field_type"`

	// Dim is the vector dimension; bits for binary vectors.
	Dim int `json:"dim,omitempty"`

	IndexParams map[string]string `json:"index_params,omitempty"`

	// Params is the field's extra parameter JSON, e.g. {"dim":128}.
	Params json.RawMessage `json:"extra_params,omitempty"`
}

// CollectionSchema describes a collection.
type CollectionSchema struct {
	Name   string          `json:"collection_name"`
	Fields []FieldSchema   `json:"fields"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Field returns the field named name, or nil.
func (s *CollectionSchema) Field(name string) *FieldSchema {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Mappings returns the codec view of the named fields, or of every field
// when names is empty. Unknown names are skipped.
func (s *CollectionSchema) Mappings(names []string) []codec.Field {
	if len(names) == 0 {
		out := make([]codec.Field, len(s.Fields))
		for i, f := range s.Fields {
			out[i] = codec.Field{Name: f.Name, Type: f.Type}
		}
		return out
	}
	out := make([]codec.Field, 0, len(names))
	for _, n := range names {
		if f := s.Field(n); f != nil {
			out = append(out, codec.Field{Name: f.Name, Type: f.Type})
		}
	}
	return out
}

// VectorField returns the first vector field, or nil.
func (s *CollectionSchema) VectorField() *FieldSchema {
	for i := range s.Fields {
		if s.Fields[i].Type.IsVector() {
			return &s.Fields[i]
		}
	}
	return nil
}

// IndexSpec describes an index on one field. Params holds the index's
// extra parameters: the "params" entry as parsed JSON, every other entry
// as a string.
type IndexSpec struct {
	Collection string         `json:"collection_name"`
	Field      string         `json:"field_name"`
	Name       string         `json:"index_name"`
	Params     map[string]any `json:"params"`
}

// MetricType returns the index's metric_type entry, if any.
func (s *IndexSpec) MetricType() string {
	if s == nil {
		return ""
	}
	mt, _ := s.Params["metric_type"].(string)
	return mt
}

// EntityResult answers GetEntityByID. Chunk holds the bytes of the valid
// rows only, in request order.
type EntityResult struct {
	IDs    []int64
	Valid  *codec.ValidRows
	Chunk  codec.Chunk
	Fields []codec.Field
}

// SearchResult answers Search. IDs and Distances hold NQ*Topk entries,
// padded with -1 ids where fewer than Topk rows matched. Chunk holds the
// bytes of the valid hits only, in result order.
type SearchResult struct {
	NQ        int
	Topk      int
	IDs       []int64
	Distances []float32
	Chunk     codec.Chunk
	Fields    []codec.Field
}
