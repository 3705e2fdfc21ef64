package engine

import (
	"math"

	"github.com/qdrant/go-client/qdrant"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/query"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// partitionKey is the payload key holding a point's partition tag.
const partitionKey = "_partition"

// buildFilter translates a compiled filter and a partition selection into
// a Qdrant filter. It returns nil when nothing constrains the search.
func buildFilter(schema *CollectionSchema, b *query.BinaryQuery, partitions []string) (*qdrant.Filter, error) {
	cond, err := toCondition(schema, b)
	if err != nil {
		return nil, err
	}
	filter := &qdrant.Filter{}
	if cond != nil {
		filter.Must = append(filter.Must, cond)
	}
	if len(partitions) > 0 {
		filter.Must = append(filter.Must, qdrant.NewMatchKeywords(partitionKey, partitions...))
	}
	if len(filter.Must) == 0 {
		return nil, nil
	}
	return filter, nil
}

// toCondition converts b into a single condition. A nil condition matches
// every point, which is what a vector leaf contributes.
func toCondition(schema *CollectionSchema, b *query.BinaryQuery) (*qdrant.Condition, error) {
	if b == nil {
		return nil, nil
	}

	var cond *qdrant.Condition
	if b.Leaf != nil {
		c, err := leafCondition(schema, b.Leaf)
		if err != nil {
			return nil, err
		}
		cond = c
	} else {
		left, err := toCondition(schema, b.Left)
		if err != nil {
			return nil, err
		}
		right, err := toCondition(schema, b.Right)
		if err != nil {
			return nil, err
		}
		cond = join(b.Relation, left, right)
	}

	if b.Not {
		if cond == nil {
			return nil, errdefs.Unsupported("a negated vector query cannot be pushed down to qdrant")
		}
		cond = qdrant.NewFilterAsCondition(&qdrant.Filter{MustNot: []*qdrant.Condition{cond}})
	}
	return cond, nil
}

func join(rel query.Relation, left, right *qdrant.Condition) *qdrant.Condition {
	if rel == query.RelationAnd {
		switch {
		case left == nil:
			return right
		case right == nil:
			return left
		}
		return qdrant.NewFilterAsCondition(&qdrant.Filter{Must: []*qdrant.Condition{left, right}})
	}
	if left == nil || right == nil {
		return nil
	}
	return qdrant.NewFilterAsCondition(&qdrant.Filter{Should: []*qdrant.Condition{left, right}})
}

func leafCondition(schema *CollectionSchema, l *query.LeafQuery) (*qdrant.Condition, error) {
	if l.Kind == query.LeafVector {
		return nil, nil
	}
	f := schema.Field(l.Field)
	if f == nil {
		return nil, illegal("Field %s not found in collection %s", l.Field, schema.Name)
	}
	if f.Type.IsVector() {
		return nil, illegal("Vector field %s cannot be used in a %s filter", l.Field, l.Kind)
	}

	switch {
	case l.Term != nil:
		return termCondition(f, l.Term), nil
	case l.Range != nil:
		return rangeCondition(l.Field, l.Range), nil
	}
	return nil, illegal("Leaf query on field %s has no condition", l.Field)
}

func termCondition(f *FieldSchema, t *query.Term) *qdrant.Condition {
	if f.Type == apiv1.DataTypeInt32 || f.Type == apiv1.DataTypeInt64 {
		ints := make([]int64, 0, len(t.Values))
		for _, v := range t.Values {
			switch {
			case v.IsInt:
				ints = append(ints, v.Int)
			case v.Float == math.Trunc(v.Float):
				ints = append(ints, int64(v.Float))
			}
		}
		if len(ints) == 0 {
			return matchNothing(f.Name)
		}
		return qdrant.NewMatchInts(f.Name, ints...)
	}

	should := make([]*qdrant.Condition, 0, len(t.Values))
	for _, v := range t.Values {
		should = append(should, equals(f.Name, v.AsFloat()))
	}
	if len(should) == 1 {
		return should[0]
	}
	return qdrant.NewFilterAsCondition(&qdrant.Filter{Should: should})
}

func rangeCondition(field string, r *query.Range) *qdrant.Condition {
	filter := &qdrant.Filter{}
	for _, c := range r.Conds {
		v := c.Value.AsFloat()
		switch c.Op {
		case query.OpGT:
			filter.Must = append(filter.Must, qdrant.NewRange(field, &qdrant.Range{Gt: &v}))
		case query.OpGTE:
			filter.Must = append(filter.Must, qdrant.NewRange(field, &qdrant.Range{Gte: &v}))
		case query.OpLT:
			filter.Must = append(filter.Must, qdrant.NewRange(field, &qdrant.Range{Lt: &v}))
		case query.OpLTE:
			filter.Must = append(filter.Must, qdrant.NewRange(field, &qdrant.Range{Lte: &v}))
		case query.OpEQ:
			filter.Must = append(filter.Must, equals(field, v))
		case query.OpNE:
			filter.MustNot = append(filter.MustNot, equals(field, v))
		}
	}
	return qdrant.NewFilterAsCondition(filter)
}

func equals(field string, v float64) *qdrant.Condition {
	return qdrant.NewRange(field, &qdrant.Range{Gte: &v, Lte: &v})
}

// matchNothing is a contradiction on field.
func matchNothing(field string) *qdrant.Condition {
	return qdrant.NewFilterAsCondition(&qdrant.Filter{
		Must:    []*qdrant.Condition{qdrant.NewIsEmpty(field)},
		MustNot: []*qdrant.Condition{qdrant.NewIsEmpty(field)},
	})
}
