package engine

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/query"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func compileFilter(t *testing.T, dsl string) *query.BinaryQuery {
	t.Helper()
	return compileSearch(t, dsl, `{"ph":{"embedding":{"topk":1}}}`, []float32{0, 0}).Binary
}

func TestBuildFilter_VectorOnly(t *testing.T) {
	schema := booksSchema("books")
	f, err := buildFilter(schema, compileFilter(t, `{"bool":{"must":[{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = buildFilter(schema, compileFilter(t, `{"bool":{"must":[{"vector":"ph"}]}}`), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, f.Must, 1)
	assert.Equal(t, partitionKey, f.Must[0].GetField().GetKey())
	assert.Equal(t, []string{"a", "b"}, f.Must[0].GetField().GetMatch().GetKeywords().GetStrings())
}

func TestBuildFilter_Term(t *testing.T) {
	schema := booksSchema("books")

	f, err := buildFilter(schema, compileFilter(t, `{"bool":{"must":[{"term":{"age":[1,2.5,3]}},{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)
	require.Len(t, f.Must, 1)
	assert.Equal(t, []int64{1, 3}, f.Must[0].GetField().GetMatch().GetIntegers().GetIntegers())

	f, err = buildFilter(schema, compileFilter(t, `{"bool":{"must":[{"term":{"price":[1.5]}},{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)
	r := f.Must[0].GetField().GetRange()
	require.NotNil(t, r)
	assert.Equal(t, 1.5, r.GetGte())
	assert.Equal(t, 1.5, r.GetLte())

	f, err = buildFilter(schema, compileFilter(t, `{"bool":{"must":[{"term":{"age":[2.5]}},{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)
	nothing := f.Must[0].GetFilter()
	require.NotNil(t, nothing)
	assert.Len(t, nothing.Must, 1)
	assert.Len(t, nothing.MustNot, 1)
}

func TestBuildFilter_Range(t *testing.T) {
	schema := booksSchema("books")
	f, err := buildFilter(schema, compileFilter(t,
		`{"bool":{"must":[{"range":{"age":{"GT":1,"LTE":5,"NE":3}}},{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)

	inner := f.Must[0].GetFilter()
	require.NotNil(t, inner)
	require.Len(t, inner.Must, 2)
	require.Len(t, inner.MustNot, 1)

	var gt, lte float64
	for _, c := range inner.Must {
		r := c.GetField().GetRange()
		if r.Gt != nil {
			gt = r.GetGt()
		}
		if r.Lte != nil {
			lte = r.GetLte()
		}
	}
	assert.Equal(t, 1.0, gt)
	assert.Equal(t, 5.0, lte)
	assert.Equal(t, 3.0, inner.MustNot[0].GetField().GetRange().GetGte())
}

func TestBuildFilter_MustNotAndShould(t *testing.T) {
	schema := booksSchema("books")
	f, err := buildFilter(schema, compileFilter(t,
		`{"bool":{"must":[{"must_not":[{"term":{"age":[1]}}]},{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)
	neg := f.Must[0].GetFilter()
	require.NotNil(t, neg)
	require.Len(t, neg.MustNot, 1)
	assert.Equal(t, []int64{1}, neg.MustNot[0].GetField().GetMatch().GetIntegers().GetIntegers())

	f, err = buildFilter(schema, compileFilter(t,
		`{"bool":{"must":[{"should":[{"term":{"age":[1]}},{"term":{"age":[2]}}]},{"vector":"ph"}]}}`), nil)
	require.NoError(t, err)
	or := f.Must[0].GetFilter()
	require.NotNil(t, or)
	assert.Len(t, or.Should, 2)
}

func TestBuildFilter_Errors(t *testing.T) {
	schema := booksSchema("books")

	b := &query.BinaryQuery{Leaf: &query.LeafQuery{Kind: query.LeafTerm, Field: "missing", Term: &query.Term{}}}
	_, err := buildFilter(schema, b, nil)
	assert.True(t, errdefs.IsInvalidArgument(err))

	b = &query.BinaryQuery{Not: true, Leaf: &query.LeafQuery{Kind: query.LeafVector, Field: "embedding"}}
	_, err = buildFilter(schema, b, nil)
	require.Error(t, err)
	assert.Equal(t, apiv1.ErrorCodeUnexpectedError, errdefs.Code(err))
}

func TestJoin(t *testing.T) {
	c := qdrant.NewMatchInt("age", 1)
	assert.Same(t, c, join(query.RelationAnd, nil, c))
	assert.Same(t, c, join(query.RelationAnd, c, nil))
	assert.Nil(t, join(query.RelationOr, c, nil))
	assert.Len(t, join(query.RelationAnd, c, c).GetFilter().Must, 2)
}
