package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func int32Field(name string, v ...int32) *apiv1.FieldValue {
	return &apiv1.FieldValue{FieldName: name, Type: apiv1.DataTypeInt32, AttrRecord: &apiv1.AttrRecord{Int32Value: v}}
}

func int64Field(name string, v ...int64) *apiv1.FieldValue {
	return &apiv1.FieldValue{FieldName: name, Type: apiv1.DataTypeInt64, AttrRecord: &apiv1.AttrRecord{Int64Value: v}}
}

func doubleField(name string, v ...float64) *apiv1.FieldValue {
	return &apiv1.FieldValue{FieldName: name, Type: apiv1.DataTypeDouble, AttrRecord: &apiv1.AttrRecord{DoubleValue: v}}
}

func floatField(name string, v ...float32) *apiv1.FieldValue {
	return &apiv1.FieldValue{FieldName: name, Type: apiv1.DataTypeFloat, AttrRecord: &apiv1.AttrRecord{FloatValue: v}}
}

func vectorField(name string, rows ...[]float32) *apiv1.FieldValue {
	rec := &apiv1.VectorRecord{}
	for _, r := range rows {
		rec.Records = append(rec.Records, &apiv1.VectorRowRecord{FloatData: r})
	}
	return &apiv1.FieldValue{FieldName: name, Type: apiv1.DataTypeVectorFloat, VectorRecord: rec}
}

func binaryField(name string, rows ...[]byte) *apiv1.FieldValue {
	rec := &apiv1.VectorRecord{}
	for _, r := range rows {
		rec.Records = append(rec.Records, &apiv1.VectorRowRecord{BinaryData: r})
	}
	return &apiv1.FieldValue{FieldName: name, Type: apiv1.DataTypeVectorBinary, VectorRecord: rec}
}

func TestIngest(t *testing.T) {
	age := []int32{30, 40, 50}
	fields := []*apiv1.FieldValue{
		int32Field("age", age...),
		doubleField("score", 0.5, 1.5, 2.5),
		vectorField("vec", []float32{1, 2}, []float32{3, 4}, []float32{5, 6}),
	}

	b, err := Ingest(fields, []int64{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Rows)
	assert.Equal(t, []int64{7, 8, 9}, b.IDs)
	require.Len(t, b.Columns, 3)

	ageCol := b.Column("age")
	require.NotNil(t, ageCol)
	assert.Equal(t, apiv1.DataTypeInt32, ageCol.Type)
	assert.Same(t, &age[0], &ageCol.Int32[0], "scalar columns alias the wire slice")

	vec := b.Column("vec")
	assert.Equal(t, apiv1.DataTypeVectorFloat, vec.Type)
	assert.Equal(t, 2, vec.Dim)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, vec.FloatVector)
	assert.Equal(t, []float32{3, 4}, vec.FloatRow(1))
	assert.Nil(t, b.Column("missing"))
}

func TestIngest_VariantPriority(t *testing.T) {
	f := &apiv1.FieldValue{FieldName: "x", AttrRecord: &apiv1.AttrRecord{
		Int64Value:  []int64{1, 2},
		DoubleValue: []float64{1, 2, 3},
	}}
	b, err := Ingest([]*apiv1.FieldValue{f}, nil)
	require.NoError(t, err)
	assert.Equal(t, apiv1.DataTypeInt64, b.Columns[0].Type)
	assert.Equal(t, 2, b.Rows)
	assert.Nil(t, b.IDs)

	both := &apiv1.FieldValue{FieldName: "v", VectorRecord: &apiv1.VectorRecord{Records: []*apiv1.VectorRowRecord{
		{FloatData: []float32{1}, BinaryData: []byte{0xaa}},
	}}}
	b, err = Ingest([]*apiv1.FieldValue{both}, nil)
	require.NoError(t, err)
	col := b.Columns[0]
	assert.Equal(t, apiv1.DataTypeVectorBinary, col.Type)
	assert.Equal(t, 8, col.Dim)
	assert.Equal(t, []byte{0xaa}, col.BinaryRow(0))
}

func TestIngest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fields  []*apiv1.FieldValue
		ids     []int64
		code    apiv1.ErrorCode
		message string
	}{
		{
			name:    "row count mismatch",
			fields:  []*apiv1.FieldValue{int32Field("a", 1, 2), int64Field("b", 1, 2, 3)},
			code:    apiv1.ErrorCodeIllegalRowRecord,
			message: "Field row count inconsist",
		},
		{
			name:    "id count mismatch",
			fields:  []*apiv1.FieldValue{int32Field("a", 1, 2)},
			ids:     []int64{1},
			code:    apiv1.ErrorCodeIllegalRowRecord,
			message: "ID size not matches entity size",
		},
		{
			name:    "negative id",
			fields:  []*apiv1.FieldValue{int32Field("a", 1, 2)},
			ids:     []int64{1, -2},
			code:    apiv1.ErrorCodeIllegalRowRecord,
			message: "id can not be negative number",
		},
		{
			name:   "duplicate field",
			fields: []*apiv1.FieldValue{int32Field("a", 1), int32Field("a", 2)},
			code:   apiv1.ErrorCodeIllegalArgument,
		},
		{
			name:   "vector dimension mismatch",
			fields: []*apiv1.FieldValue{vectorField("v", []float32{1, 2}, []float32{1})},
			code:   apiv1.ErrorCodeIllegalDimension,
		},
		{
			name:   "binary width mismatch",
			fields: []*apiv1.FieldValue{binaryField("v", []byte{1, 2}, []byte{1})},
			code:   apiv1.ErrorCodeIllegalDimension,
		},
		{
			name:   "null field",
			fields: []*apiv1.FieldValue{nil},
			code:   apiv1.ErrorCodeIllegalArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Ingest(tt.fields, tt.ids)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.True(t, errdefs.IsInvalidArgument(err))
			assert.Equal(t, tt.code, errdefs.Code(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestIngest_TooManyFields(t *testing.T) {
	fields := make([]*apiv1.FieldValue, MaxFieldNum+1)
	for i := range fields {
		fields[i] = int32Field(string(rune('a'+i%26))+string(rune('a'+i/26)), 1)
	}
	_, err := Ingest(fields, nil)
	assert.True(t, errdefs.IsInvalidArgument(err))

	_, err = Ingest(fields[:MaxFieldNum], nil)
	assert.NoError(t, err)
}

func TestIngest_NoFields(t *testing.T) {
	b, err := Ingest(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, b.Rows)

	_, err = Ingest(nil, []int64{1})
	assert.Error(t, err)
}

func TestColumnBytes_LittleEndian(t *testing.T) {
	c := &Column{Name: "a", Type: apiv1.DataTypeInt32, Rows: 2, Int32: []int32{1, -1}}
	assert.Equal(t, []byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}, c.Bytes())
	assert.Equal(t, 4, c.Width())

	d := &Column{Name: "d", Type: apiv1.DataTypeInt64, Rows: 1, Int64: []int64{258}}
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0}, d.Bytes())
}

func TestEncode_RoundTrip(t *testing.T) {
	fields := []*apiv1.FieldValue{
		int32Field("i32", 1, -2, 3),
		int64Field("i64", 1<<40, -5, 0),
		floatField("f", 0.25, -1.5, 3),
		doubleField("d", 1e-9, 2, -3.75),
		vectorField("fv", []float32{1, 2, 3}, []float32{4, 5, 6}, []float32{7, 8, 9}),
		binaryField("bv", []byte{0x01, 0x80}, []byte{0xff, 0x00}, []byte{0x0f, 0xf0}),
	}
	b, err := Ingest(fields, nil)
	require.NoError(t, err)

	chunk := Chunk{}
	var mappings []Field
	for _, c := range b.Columns {
		chunk[c.Name] = c.Bytes()
		mappings = append(mappings, Field{Name: c.Name, Type: c.Type})
	}

	out, corrupt, err := Encode(chunk, mappings, b.Rows, Options{})
	require.NoError(t, err)
	assert.Empty(t, corrupt)
	require.Len(t, out, len(fields))
	for i, f := range fields {
		assert.Equal(t, f.FieldName, out[i].FieldName)
		assert.Equal(t, f.Type, out[i].Type)
		if f.Type.IsVector() {
			assert.Equal(t, f.VectorRecord, out[i].VectorRecord, f.FieldName)
		} else {
			assert.Equal(t, f.AttrRecord, out[i].AttrRecord, f.FieldName)
		}
	}
}

func TestEncode_GatherValidRows(t *testing.T) {
	c := &Column{Name: "a", Type: apiv1.DataTypeInt64, Rows: 4, Int64: []int64{10, 20, 30, 40}}
	valid := ValidRowsFromIDs([]int64{5, -1, 6, -1})
	require.Equal(t, 2, valid.Count())

	chunk := Chunk{"a": c.Gather([]int{0, 3})}
	out, _, err := Encode(chunk, []Field{{Name: "a", Type: apiv1.DataTypeInt64}}, valid.Count(), Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []int64{10, 40}, out[0].AttrRecord.Int64Value)
}

func TestEncode_SkipsMissingFields(t *testing.T) {
	chunk := Chunk{"a": {1, 0, 0, 0}}
	out, _, err := Encode(chunk, []Field{{Name: "missing", Type: apiv1.DataTypeInt32}, {Name: "a", Type: apiv1.DataTypeInt32}}, 1, Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].FieldName)

	out, _, err = Encode(chunk, []Field{{Name: "a", Type: apiv1.DataTypeInt32}}, 0, Options{})
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncode_Corrupt(t *testing.T) {
	good := make([]byte, 16)
	binary.LittleEndian.PutUint64(good, 1)
	binary.LittleEndian.PutUint64(good[8:], 2)

	tests := []struct {
		name  string
		field Field
		data  []byte
		rows  int
	}{
		{"not divisible", Field{Name: "x", Type: apiv1.DataTypeInt64}, make([]byte, 15), 2},
		{"int32 width mismatch", Field{Name: "x", Type: apiv1.DataTypeInt32}, make([]byte, 16), 2},
		{"float vector width", Field{Name: "x", Type: apiv1.DataTypeVectorFloat}, make([]byte, 6), 2},
		{"unsupported type", Field{Name: "x", Type: apiv1.DataTypeString}, make([]byte, 4), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := Chunk{"ok": good, tt.field.Name: tt.data}
			mappings := []Field{{Name: "ok", Type: apiv1.DataTypeInt64}, tt.field}
			if tt.rows != 2 {
				chunk["ok"] = good[:8]
			}

			out, corrupt, err := Encode(chunk, mappings, tt.rows, Options{})
			require.Error(t, err)
			assert.True(t, errdefs.IsInternal(err))
			assert.Nil(t, out)
			assert.Nil(t, corrupt)

			out, corrupt, err = Encode(chunk, mappings, tt.rows, Options{AllowPartial: true})
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, "ok", out[0].FieldName)
			require.Len(t, corrupt, 1)
			assert.Equal(t, "x", corrupt[0].Name)
		})
	}
}

func TestValidRows(t *testing.T) {
	v := ValidRowsFromFlags([]bool{true, false, true})
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 2, v.Count())
	assert.True(t, v.Valid(2))
	assert.False(t, v.Valid(1))
	assert.Equal(t, []bool{true, false, true}, v.Flags())
	assert.Equal(t, []int{0, 2}, v.Positions())

	v.Set(1)
	assert.Equal(t, []bool{true, true, true}, v.Flags())

	ids := ValidRowsFromIDs([]int64{-1, 0, -1})
	assert.Equal(t, []bool{false, true, false}, ids.Flags())
}

func TestColumnAppendKeep(t *testing.T) {
	a := &Column{Name: "v", Type: apiv1.DataTypeVectorFloat, Dim: 2, Rows: 1, FloatVector: []float32{1, 2}}
	b := &Column{Name: "v", Type: apiv1.DataTypeVectorFloat, Dim: 2, Rows: 2, FloatVector: []float32{3, 4, 5, 6}}
	require.NoError(t, a.Append(b))
	assert.Equal(t, 3, a.Rows)

	kept := a.Keep(func(row int) bool { return row != 1 })
	assert.Equal(t, 2, kept.Rows)
	assert.Equal(t, []float32{1, 2, 5, 6}, kept.FloatVector)

	wrongDim := &Column{Name: "v", Type: apiv1.DataTypeVectorFloat, Dim: 3}
	assert.Error(t, a.Append(wrongDim))
	assert.Error(t, a.Append(&Column{Name: "v", Type: apiv1.DataTypeInt32}))

	n := &Column{Name: "n", Type: apiv1.DataTypeInt32, Rows: 2, Int32: []int32{4, 5}}
	v, ok := n.Int64At(1)
	assert.True(t, ok)
	assert.Equal(t, int64(5), v)
	_, ok = n.Float64At(0)
	assert.False(t, ok)
}
