// Package query compiles the JSON boolean filter language used by Search
// into a validated query tree and a binary execution tree.
//
// A filter is a single top-level "bool" object. Each bool object names one
// occur keyword (must, should or must_not) mapping to an array of clauses.
// A clause is either a nested bool object or a leaf: a term filter, a range
// filter or a vector placeholder resolved against the request's vector
// parameters.
//
//	{"bool": {"must": [
//	    {"range": {"age": {"GT": 18}}},
//	    {"vector": "placeholder_1"}
//	]}}
package query

import (
	"encoding/json"
)

// Occur is the combinator of a BooleanQuery node.
type Occur int

// Occur values.
const (
	OccurInvalid Occur = iota
	OccurMust
	OccurShould
	OccurMustNot
)

// String returns the DSL keyword of o.
func (o Occur) String() string {
	switch o {
	case OccurMust:
		return "must"
	case OccurShould:
		return "should"
	case OccurMustNot:
		return "must_not"
	default:
		return "invalid"
	}
}

// Clause is a child of a BooleanQuery: *BooleanQuery or *LeafQuery.
type Clause interface {
	clause()
}

// BooleanQuery is one node of the compiled filter tree.
type BooleanQuery struct {
	Occur    Occur
	Children []Clause
}

func (*BooleanQuery) clause() {}

// LeafKind tags the variant held by a LeafQuery.
type LeafKind int

// Leaf kinds.
const (
	LeafTerm LeafKind = iota + 1
	LeafRange
	LeafVector
)

// String returns the DSL keyword of k.
func (k LeafKind) String() string {
	switch k {
	case LeafTerm:
		return "term"
	case LeafRange:
		return "range"
	case LeafVector:
		return "vector"
	default:
		return "unknown"
	}
}

// LeafQuery is a terminal filter clause.
type LeafQuery struct {
	Kind  LeafKind
	Field string

	// Raw is the per-field body of a term or range leaf.
	Raw   json.RawMessage
	Term  *Term
	Range *Range

	// Placeholder and Vector are set on vector leaves.
	Placeholder string
	Vector      *VectorQuery
}

func (*LeafQuery) clause() {}

// VectorQuery describes the vector-search part of a query.
type VectorQuery struct {
	Field       string
	Topk        int64
	MetricType  string
	ExtraParams json.RawMessage

	// Exactly one of Float and Binary is set. Rows are packed back to
	// back: Count rows of Dim floats, or Count rows of Dim/8 bytes.
	Float  []float32
	Binary []byte
	Dim    int
	Count  int
}

// IsBinary reports whether the query vectors are bit vectors.
func (v *VectorQuery) IsBinary() bool {
	return v.Binary != nil
}

// RowFloat returns query row i of a float query.
func (v *VectorQuery) RowFloat(i int) []float32 {
	return v.Float[i*v.Dim : (i+1)*v.Dim]
}

// RowBinary returns query row i of a binary query.
func (v *VectorQuery) RowBinary(i int) []byte {
	w := v.Dim / 8
	return v.Binary[i*w : (i+1)*w]
}

// Query is a compiled Search request.
type Query struct {
	Collection string
	Partitions []string

	Root *BooleanQuery

	// Fields lists every referenced field, sorted.
	Fields []string

	// Vectors maps placeholder to descriptor. It holds exactly one entry.
	Vectors map[string]*VectorQuery

	// MetricTypes maps vector field to metric type.
	MetricTypes map[string]string

	Binary *BinaryQuery
}

// Vector returns the single vector descriptor.
func (q *Query) Vector() *VectorQuery {
	for _, v := range q.Vectors {
		return v
	}
	return nil
}

// Relation joins the two children of an inner BinaryQuery node.
type Relation int

// Relations.
const (
	RelationNone Relation = iota
	RelationAnd
	RelationOr
)

// String returns the relation name.
func (r Relation) String() string {
	switch r {
	case RelationAnd:
		return "AND"
	case RelationOr:
		return "OR"
	default:
		return "NONE"
	}
}

// BinaryQuery is the execution form of a filter: every inner node has a
// relation and exactly two children, every leaf holds one LeafQuery, and
// any node may be negated.
type BinaryQuery struct {
	Relation Relation
	Left     *BinaryQuery
	Right    *BinaryQuery
	Leaf     *LeafQuery
	Not      bool
}

// IsLeaf reports whether b is a leaf node.
func (b *BinaryQuery) IsLeaf() bool {
	return b != nil && b.Leaf != nil
}

// Leaves returns the leaves of b, left to right.
func (b *BinaryQuery) Leaves() []*LeafQuery {
	if b == nil {
		return nil
	}
	if b.Leaf != nil {
		return []*LeafQuery{b.Leaf}
	}
	return append(b.Left.Leaves(), b.Right.Leaves()...)
}

// TopkValidator checks a requested top-k against engine limits.
type TopkValidator interface {
	ValidateTopk(k int64) error
}
