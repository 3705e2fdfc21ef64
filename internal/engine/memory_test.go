package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/fyrsmithlabs/vectord/internal/codec"
	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/query"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(MemoryConfig{MaxTopK: 100, SegmentRowLimit: 4, Version: "test"}, logging.NewTestLogger().Logger)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func booksSchema(name string) *CollectionSchema {
	return &CollectionSchema{
		Name: name,
		Fields: []FieldSchema{
			{Name: "age", Type: apiv1.DataTypeInt32},
			{Name: "price", Type: apiv1.DataTypeDouble},
			{Name: "embedding", Type: apiv1.DataTypeVectorFloat, Params: json.RawMessage(`{"dim":2}`)},
		},
	}
}

// booksBatch builds n rows where row i has age i, price i/2 and the
// vector (i, 0).
func booksBatch(t *testing.T, n int, ids []int64) *codec.Batch {
	t.Helper()
	ages := make([]int32, n)
	prices := make([]float64, n)
	vecs := &apiv1.VectorRecord{}
	for i := 0; i < n; i++ {
		ages[i] = int32(i)
		prices[i] = float64(i) / 2
		vecs.Records = append(vecs.Records, &apiv1.VectorRowRecord{FloatData: []float32{float32(i), 0}})
	}
	b, err := codec.Ingest([]*apiv1.FieldValue{
		{FieldName: "age", Type: apiv1.DataTypeInt32, AttrRecord: &apiv1.AttrRecord{Int32Value: ages}},
		{FieldName: "price", Type: apiv1.DataTypeDouble, AttrRecord: &apiv1.AttrRecord{DoubleValue: prices}},
		{FieldName: "embedding", Type: apiv1.DataTypeVectorFloat, VectorRecord: vecs},
	}, ids)
	require.NoError(t, err)
	return b
}

func seedBooks(t *testing.T, m *Memory, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.CreateCollection(ctx, booksSchema("books")))
	ids, err := m.Insert(ctx, "books", "", booksBatch(t, n, nil))
	require.NoError(t, err)
	return ids
}

func compileSearch(t *testing.T, dsl, vectorJSON string, rows ...[]float32) *query.Query {
	t.Helper()
	rec := &apiv1.VectorRecord{}
	for _, r := range rows {
		rec.Records = append(rec.Records, &apiv1.VectorRowRecord{FloatData: r})
	}
	q, err := query.Compile(dsl, []*apiv1.VectorParam{{JSON: vectorJSON, RowRecord: rec}}, nil)
	require.NoError(t, err)
	q.Collection = "books"
	return q
}

func TestMemory_CreateCollectionValidation(t *testing.T) {
	tests := []struct {
		name   string
		schema *CollectionSchema
		code   apiv1.ErrorCode
	}{
		{
			name:   "bad name",
			schema: &CollectionSchema{Name: "1books", Fields: booksSchema("x").Fields},
			code:   apiv1.ErrorCodeIllegalCollectionName,
		},
		{
			name:   "no fields",
			schema: &CollectionSchema{Name: "books"},
			code:   apiv1.ErrorCodeIllegalArgument,
		},
		{
			name: "duplicate field",
			schema: &CollectionSchema{Name: "books", Fields: []FieldSchema{
				{Name: "age", Type: apiv1.DataTypeInt32},
				{Name: "age", Type: apiv1.DataTypeInt64},
			}},
			code: apiv1.ErrorCodeIllegalArgument,
		},
		{
			name: "unsupported type",
			schema: &CollectionSchema{Name: "books", Fields: []FieldSchema{
				{Name: "title", Type: apiv1.DataTypeString},
			}},
			code: apiv1.ErrorCodeIllegalArgument,
		},
		{
			name: "vector without dim",
			schema: &CollectionSchema{Name: "books", Fields: []FieldSchema{
				{Name: "embedding", Type: apiv1.DataTypeVectorFloat},
			}},
			code: apiv1.ErrorCodeIllegalDimension,
		},
		{
			name: "binary dim not byte aligned",
			schema: &CollectionSchema{Name: "books", Fields: []FieldSchema{
				{Name: "bits", Type: apiv1.DataTypeVectorBinary, Dim: 12},
			}},
			code: apiv1.ErrorCodeIllegalDimension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestMemory(t).CreateCollection(context.Background(), tt.schema)
			require.Error(t, err)
			assert.True(t, errdefs.IsInvalidArgument(err))
			assert.Equal(t, tt.code, errdefs.Code(err))
		})
	}

	t.Run("field name conflict message", func(t *testing.T) {
		err := newTestMemory(t).CreateCollection(context.Background(), tests[2].schema)
		assert.EqualError(t, err, "Field name conflict")
	})
}

func TestMemory_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	require.NoError(t, m.CreateCollection(ctx, booksSchema("books")))
	require.NoError(t, m.CreateCollection(ctx, booksSchema("authors")))
	assert.Error(t, m.CreateCollection(ctx, booksSchema("books")))

	names, err := m.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "books"}, names)

	schema, err := m.DescribeCollection(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 2, schema.Field("embedding").Dim)
	schema.Fields[0].Name = "mutated"
	again, _ := m.DescribeCollection(ctx, "books")
	assert.Equal(t, "age", again.Fields[0].Name)

	require.NoError(t, m.LoadCollection(ctx, "books"))
	require.NoError(t, m.DropCollection(ctx, "books"))
	ok, err := m.HasCollection(ctx, "books")
	require.NoError(t, err)
	assert.False(t, ok)

	err = m.DropCollection(ctx, "books")
	assert.True(t, errdefs.IsNotFound(err))
	assert.Equal(t, apiv1.ErrorCodeCollectionNotExists, errdefs.Code(err))
}

func TestMemory_InsertSplitsSegments(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	ids := seedBooks(t, m, 6)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, ids)

	n, err := m.CountEntities(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	stats, err := m.CollectionStats(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, int64(6), gjson.Get(stats, "row_count").Int())
	assert.Equal(t, int64(2), gjson.Get(stats, `partitions.#(tag=="_default").segments.#`).Int())
	assert.True(t, gjson.Get(stats, `partitions.0.segments.0.sealed`).Bool())
	assert.False(t, gjson.Get(stats, `partitions.0.segments.1.sealed`).Bool())

	more, err := m.Insert(ctx, "books", "", booksBatch(t, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, more)
}

func TestMemory_InsertClientIDsAdvanceGenerator(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	require.NoError(t, m.CreateCollection(ctx, booksSchema("books")))

	ids, err := m.Insert(ctx, "books", "", booksBatch(t, 2, []int64{10, 20}))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, ids)

	ids, err = m.Insert(ctx, "books", "", booksBatch(t, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, ids)
}

func TestMemory_InsertErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 1)

	t.Run("unknown collection", func(t *testing.T) {
		_, err := m.Insert(ctx, "missing", "", booksBatch(t, 1, nil))
		assert.Equal(t, apiv1.ErrorCodeCollectionNotExists, errdefs.Code(err))
	})

	t.Run("unknown partition", func(t *testing.T) {
		_, err := m.Insert(ctx, "books", "nope", booksBatch(t, 1, nil))
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("missing field", func(t *testing.T) {
		b := booksBatch(t, 1, nil)
		b.Columns = b.Columns[:2]
		_, err := m.Insert(ctx, "books", "", b)
		assert.Equal(t, apiv1.ErrorCodeIllegalArgument, errdefs.Code(err))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		b, err := codec.Ingest([]*apiv1.FieldValue{
			{FieldName: "age", AttrRecord: &apiv1.AttrRecord{Int32Value: []int32{1}}},
			{FieldName: "price", AttrRecord: &apiv1.AttrRecord{DoubleValue: []float64{1}}},
			{FieldName: "embedding", Type: apiv1.DataTypeVectorFloat, VectorRecord: &apiv1.VectorRecord{
				Records: []*apiv1.VectorRowRecord{{FloatData: []float32{1, 2, 3}}},
			}},
		}, nil)
		require.NoError(t, err)
		_, err = m.Insert(ctx, "books", "", b)
		assert.Equal(t, apiv1.ErrorCodeIllegalDimension, errdefs.Code(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		b, err := codec.Ingest([]*apiv1.FieldValue{
			{FieldName: "age", AttrRecord: &apiv1.AttrRecord{Int64Value: []int64{1}}},
			{FieldName: "price", AttrRecord: &apiv1.AttrRecord{DoubleValue: []float64{1}}},
			{FieldName: "embedding", Type: apiv1.DataTypeVectorFloat, VectorRecord: &apiv1.VectorRecord{
				Records: []*apiv1.VectorRowRecord{{FloatData: []float32{1, 2}}},
			}},
		}, nil)
		require.NoError(t, err)
		_, err = m.Insert(ctx, "books", "", b)
		assert.Equal(t, apiv1.ErrorCodeIllegalArgument, errdefs.Code(err))
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := m.Insert(ctx, "books", "", &codec.Batch{})
		assert.Equal(t, apiv1.ErrorCodeIllegalRowRecord, errdefs.Code(err))
	})
}

func TestMemory_GetEntityByID(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 6)

	res, err := m.GetEntityByID(ctx, "books", []int64{5, 42, 1}, []string{"age", "embedding"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, res.Valid.Flags())

	fields, corrupt, err := codec.Encode(res.Chunk, res.Fields, res.Valid.Count(), codec.Options{})
	require.NoError(t, err)
	assert.Empty(t, corrupt)
	require.Len(t, fields, 2)
	assert.Equal(t, []int32{5, 1}, fields[0].AttrRecord.Int32Value)
	assert.Equal(t, []float32{5, 0}, fields[1].VectorRecord.Records[0].FloatData)
	assert.Equal(t, []float32{1, 0}, fields[1].VectorRecord.Records[1].FloatData)

	_, err = m.GetEntityByID(ctx, "books", []int64{1}, []string{"title"})
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestMemory_DeleteAndCompact(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 6)

	require.NoError(t, m.DeleteByID(ctx, "books", []int64{1, 2, 99}))
	n, _ := m.CountEntities(ctx, "books")
	assert.Equal(t, int64(4), n)

	res, err := m.GetEntityByID(ctx, "books", []int64{1, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, res.Valid.Flags())

	stats, _ := m.CollectionStats(ctx, "books")
	segID := gjson.Get(stats, "partitions.0.segments.0.id").Int()
	assert.Equal(t, int64(2), gjson.Get(stats, "partitions.0.segments.0.deleted_count").Int())

	ids, err := m.GetEntityIDs(ctx, "books", segID)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3}, ids)

	// Half the segment is deleted; a higher threshold leaves it alone.
	require.NoError(t, m.Compact(ctx, "books", 0.6))
	stats, _ = m.CollectionStats(ctx, "books")
	assert.Equal(t, int64(2), gjson.Get(stats, "partitions.0.segments.0.deleted_count").Int())

	require.NoError(t, m.Compact(ctx, "books", 0.2))
	stats, _ = m.CollectionStats(ctx, "books")
	assert.Equal(t, int64(0), gjson.Get(stats, "partitions.0.segments.0.deleted_count").Int())
	assert.Equal(t, int64(2), gjson.Get(stats, "partitions.0.segments.0.row_count").Int())

	res, err = m.GetEntityByID(ctx, "books", []int64{3}, []string{"age"})
	require.NoError(t, err)
	fields, _, err := codec.Encode(res.Chunk, res.Fields, 1, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []int32{3}, fields[0].AttrRecord.Int32Value)

	_, err = m.GetEntityIDs(ctx, "books", 9999)
	assert.True(t, errdefs.IsNotFound(err))
	assert.True(t, errdefs.IsInvalidArgument(m.Compact(ctx, "books", 1.5)))
}

func TestMemory_InsertReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	require.NoError(t, m.CreateCollection(ctx, booksSchema("books")))

	_, err := m.Insert(ctx, "books", "", booksBatch(t, 1, []int64{7}))
	require.NoError(t, err)
	b := booksBatch(t, 2, []int64{8, 7})
	_, err = m.Insert(ctx, "books", "", b)
	require.NoError(t, err)

	n, _ := m.CountEntities(ctx, "books")
	assert.Equal(t, int64(2), n)

	res, err := m.GetEntityByID(ctx, "books", []int64{7}, []string{"age"})
	require.NoError(t, err)
	fields, _, err := codec.Encode(res.Chunk, res.Fields, 1, codec.Options{})
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, fields[0].AttrRecord.Int32Value)
}

func TestMemory_Search(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 6)

	t.Run("nearest first", func(t *testing.T) {
		q := compileSearch(t, `{"bool":{"must":[{"vector":"ph"}]}}`,
			`{"ph":{"embedding":{"topk":3,"metric_type":"L2"}}}`, []float32{0.9, 0})
		res, err := m.Search(ctx, q, []string{"age"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.NQ)
		assert.Equal(t, []int64{1, 0, 2}, res.IDs)
		assert.InDeltaSlice(t, []float32{0.01, 0.81, 1.21}, res.Distances, 1e-5)

		fields, _, err := codec.Encode(res.Chunk, res.Fields, 3, codec.Options{})
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 0, 2}, fields[0].AttrRecord.Int32Value)
	})

	t.Run("filter and padding", func(t *testing.T) {
		q := compileSearch(t,
			`{"bool":{"must":[{"range":{"age":{"GTE":4}}},{"vector":"ph"}]}}`,
			`{"ph":{"embedding":{"topk":3}}}`, []float32{0, 0}, []float32{10, 0})
		res, err := m.Search(ctx, q, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, res.NQ)
		assert.Equal(t, []int64{4, 5, -1, 5, 4, -1}, res.IDs)
		assert.Equal(t, float32(0), res.Distances[2])
	})

	t.Run("must_not and term", func(t *testing.T) {
		q := compileSearch(t,
			`{"bool":{"must":[{"must_not":[{"term":{"age":[0,1,2]}}]},{"vector":"ph"}]}}`,
			`{"ph":{"embedding":{"topk":10}}}`, []float32{0, 0})
		res, err := m.Search(ctx, q, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4, 5}, res.IDs[:3])
		assert.Equal(t, int64(-1), res.IDs[3])
	})

	t.Run("inner product prefers larger", func(t *testing.T) {
		q := compileSearch(t, `{"bool":{"must":[{"vector":"ph"}]}}`,
			`{"ph":{"embedding":{"topk":2,"metric_type":"IP"}}}`, []float32{1, 0})
		res, err := m.Search(ctx, q, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 4}, res.IDs)
	})

	t.Run("index metric is the default", func(t *testing.T) {
		require.NoError(t, m.CreateIndex(ctx, &IndexSpec{
			Collection: "books", Field: "embedding",
			Params: map[string]any{"index_type": "FLAT", "metric_type": "IP"},
		}))
		t.Cleanup(func() { _ = m.DropIndex(ctx, "books", "embedding", "") })

		q := compileSearch(t, `{"bool":{"must":[{"vector":"ph"}]}}`,
			`{"ph":{"embedding":{"topk":1}}}`, []float32{1, 0})
		res, err := m.Search(ctx, q, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, res.IDs)
	})

	t.Run("deleted rows are skipped", func(t *testing.T) {
		require.NoError(t, m.DeleteByID(ctx, "books", []int64{1}))
		q := compileSearch(t, `{"bool":{"must":[{"vector":"ph"}]}}`,
			`{"ph":{"embedding":{"topk":1}}}`, []float32{1, 0})
		res, err := m.Search(ctx, q, nil)
		require.NoError(t, err)
		assert.NotEqual(t, int64(1), res.IDs[0])
	})
}

func TestMemory_SearchErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 2)

	tests := []struct {
		name   string
		dsl    string
		vector string
		row    []float32
		code   apiv1.ErrorCode
	}{
		{
			name:   "binary metric on float field",
			dsl:    `{"bool":{"must":[{"vector":"ph"}]}}`,
			vector: `{"ph":{"embedding":{"topk":1,"metric_type":"HAMMING"}}}`,
			row:    []float32{0, 0},
			code:   apiv1.ErrorCodeIllegalMetricType,
		},
		{
			name:   "dimension mismatch",
			dsl:    `{"bool":{"must":[{"vector":"ph"}]}}`,
			vector: `{"ph":{"embedding":{"topk":1}}}`,
			row:    []float32{0, 0, 0},
			code:   apiv1.ErrorCodeIllegalDimension,
		},
		{
			name:   "topk above maximum",
			dsl:    `{"bool":{"must":[{"vector":"ph"}]}}`,
			vector: `{"ph":{"embedding":{"topk":101}}}`,
			row:    []float32{0, 0},
			code:   apiv1.ErrorCodeIllegalTopk,
		},
		{
			name:   "unknown field",
			dsl:    `{"bool":{"must":[{"term":{"title":[1]}},{"vector":"ph"}]}}`,
			vector: `{"ph":{"embedding":{"topk":1}}}`,
			row:    []float32{0, 0},
			code:   apiv1.ErrorCodeIllegalArgument,
		},
		{
			name:   "scalar field as vector",
			dsl:    `{"bool":{"must":[{"vector":"ph"}]}}`,
			vector: `{"ph":{"age":{"topk":1}}}`,
			row:    []float32{0, 0},
			code:   apiv1.ErrorCodeIllegalArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compileSearch(t, tt.dsl, tt.vector, tt.row)
			_, err := m.Search(ctx, q, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, errdefs.Code(err))
		})
	}

	t.Run("unknown partition", func(t *testing.T) {
		q := compileSearch(t, `{"bool":{"must":[{"vector":"ph"}]}}`, `{"ph":{"embedding":{"topk":1}}}`, []float32{0, 0})
		q.Partitions = []string{"nope"}
		_, err := m.Search(ctx, q, nil)
		assert.True(t, errdefs.IsNotFound(err))
	})
}

func TestMemory_BinarySearch(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	require.NoError(t, m.CreateCollection(ctx, &CollectionSchema{
		Name:   "prints",
		Fields: []FieldSchema{{Name: "bits", Type: apiv1.DataTypeVectorBinary, Dim: 16}},
	}))

	b, err := codec.Ingest([]*apiv1.FieldValue{{
		FieldName: "bits",
		Type:      apiv1.DataTypeVectorBinary,
		VectorRecord: &apiv1.VectorRecord{Records: []*apiv1.VectorRowRecord{
			{BinaryData: []byte{0xff, 0xff}},
			{BinaryData: []byte{0x0f, 0x00}},
			{BinaryData: []byte{0x00, 0x00}},
		}},
	}}, nil)
	require.NoError(t, err)
	_, err = m.Insert(ctx, "prints", "", b)
	require.NoError(t, err)

	q, err := query.Compile(`{"bool":{"must":[{"vector":"ph"}]}}`, []*apiv1.VectorParam{{
		JSON:      `{"ph":{"bits":{"topk":3}}}`,
		RowRecord: &apiv1.VectorRecord{Records: []*apiv1.VectorRowRecord{{BinaryData: []byte{0x01, 0x00}}}},
	}}, m)
	require.NoError(t, err)
	q.Collection = "prints"

	res, err := m.Search(ctx, q, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 0}, res.IDs)
	assert.Equal(t, []float32{1, 3, 15}, res.Distances)
}

func TestMemory_Partitions(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 2)

	require.NoError(t, m.CreatePartition(ctx, "books", " 2024 "))
	assert.Error(t, m.CreatePartition(ctx, "books", "2024"))
	assert.True(t, errdefs.IsInvalidArgument(m.CreatePartition(ctx, "books", "  ")))

	ok, err := m.HasPartition(ctx, "books", "2024")
	require.NoError(t, err)
	assert.True(t, ok)

	tags, err := m.ListPartitions(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", DefaultPartition}, tags)

	_, err = m.Insert(ctx, "books", "2024", booksBatch(t, 3, nil))
	require.NoError(t, err)
	n, _ := m.CountEntities(ctx, "books")
	assert.Equal(t, int64(5), n)

	q := compileSearch(t, `{"bool":{"must":[{"vector":"ph"}]}}`, `{"ph":{"embedding":{"topk":5}}}`, []float32{0, 0})
	q.Partitions = []string{DefaultPartition}
	res, err := m.Search(ctx, q, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, -1, -1, -1}, res.IDs)

	assert.True(t, errdefs.IsInvalidArgument(m.DropPartition(ctx, "books", DefaultPartition)))
	require.NoError(t, m.DropPartition(ctx, "books", "2024"))
	n, _ = m.CountEntities(ctx, "books")
	assert.Equal(t, int64(2), n)
	assert.True(t, errdefs.IsNotFound(m.DropPartition(ctx, "books", "2024")))
}

func TestMemory_Indexes(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 1)

	spec := &IndexSpec{
		Collection: "books", Field: "embedding", Name: "ivf",
		Params: map[string]any{"index_type": "IVF_FLAT", "params": map[string]any{"nlist": 128}},
	}
	require.NoError(t, m.CreateIndex(ctx, spec))

	got, err := m.DescribeIndex(ctx, "books", "embedding")
	require.NoError(t, err)
	assert.Equal(t, "ivf", got.Name)
	assert.Equal(t, "IVF_FLAT", got.Params["index_type"])

	err = m.CreateIndex(ctx, &IndexSpec{Collection: "books", Field: "embedding", Params: map[string]any{"metric_type": "JACCARD"}})
	assert.Equal(t, apiv1.ErrorCodeIllegalMetricType, errdefs.Code(err))
	assert.True(t, errdefs.IsInvalidArgument(m.CreateIndex(ctx, &IndexSpec{Collection: "books", Field: "title"})))

	assert.True(t, errdefs.IsNotFound(m.DropIndex(ctx, "books", "embedding", "other")))
	require.NoError(t, m.DropIndex(ctx, "books", "embedding", "ivf"))
	_, err = m.DescribeIndex(ctx, "books", "embedding")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestMemory_FlushAndCmd(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)
	seedBooks(t, m, 1)

	require.NoError(t, m.Flush(ctx, nil))
	stats, _ := m.CollectionStats(ctx, "books")
	assert.True(t, gjson.Get(stats, "partitions.0.segments.0.sealed").Bool())
	assert.True(t, errdefs.IsNotFound(m.Flush(ctx, []string{"missing"})))

	v, err := m.Cmd(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, "test", v)
	s, err := m.Cmd(ctx, " STATUS ")
	require.NoError(t, err)
	assert.Equal(t, "OK", s)
	_, err = m.Cmd(ctx, "reboot")
	assert.True(t, errdefs.IsInvalidArgument(err))

	assert.NoError(t, m.ValidateTopk(100))
	assert.Equal(t, apiv1.ErrorCodeIllegalTopk, errdefs.Code(m.ValidateTopk(0)))
}
