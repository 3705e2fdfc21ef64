package codec

import (
	"encoding/binary"
	"math"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Field names and types one field of an engine result.
type Field struct {
	Name string
	Type apiv1.DataType
}

// Chunk maps a field name to its packed little-endian bytes, one row
// after another, for the valid rows of a result only.
type Chunk map[string][]byte

// Options tunes Encode.
type Options struct {
	// AllowPartial drops corrupt fields instead of failing the response.
	AllowPartial bool
}

// CorruptField describes a field Encode could not decode.
type CorruptField struct {
	Name   string
	Reason string
}

// Encode converts chunk into wire fields, in the order of fields. The row
// width of each field is its byte length divided by validRows. Fields
// missing from chunk are skipped. A field whose bytes do not divide into
// validRows rows of the width its type requires is corrupt: Encode then
// fails with an Internal error and returns no fields, unless
// opts.AllowPartial is set, in which case the corrupt fields are dropped
// and reported.
func Encode(chunk Chunk, fields []Field, validRows int, opts Options) ([]*apiv1.FieldValue, []CorruptField, error) {
	if len(chunk) == 0 || validRows <= 0 {
		return nil, nil, nil
	}

	out := make([]*apiv1.FieldValue, 0, len(fields))
	var corrupt []CorruptField
	for _, f := range fields {
		data := chunk[f.Name]
		if len(data) == 0 {
			continue
		}
		fv, reason := encodeField(f, data, validRows)
		if reason != "" {
			if !opts.AllowPartial {
				return nil, nil, errdefs.Internal(apiv1.ErrorCodeUnexpectedError, "field %s is corrupt: %s", f.Name, reason)
			}
			corrupt = append(corrupt, CorruptField{Name: f.Name, Reason: reason})
			continue
		}
		out = append(out, fv)
	}
	return out, corrupt, nil
}

func encodeField(f Field, data []byte, rows int) (*apiv1.FieldValue, string) {
	if len(data)%rows != 0 {
		return nil, "byte length is not a multiple of the row count"
	}
	width := len(data) / rows
	fv := &apiv1.FieldValue{FieldName: f.Name, Type: f.Type}

	switch f.Type {
	case apiv1.DataTypeVectorBinary:
		rec := &apiv1.VectorRecord{Records: make([]*apiv1.VectorRowRecord, rows)}
		for i := range rows {
			row := make([]byte, width)
			copy(row, data[i*width:(i+1)*width])
			rec.Records[i] = &apiv1.VectorRowRecord{BinaryData: row}
		}
		fv.VectorRecord = rec
		return fv, ""

	case apiv1.DataTypeVectorFloat:
		if width%4 != 0 {
			return nil, "float vector width is not a multiple of 4"
		}
		dim := width / 4
		rec := &apiv1.VectorRecord{Records: make([]*apiv1.VectorRowRecord, rows)}
		for i := range rows {
			row := make([]float32, dim)
			for j := range row {
				off := i*width + j*4
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			}
			rec.Records[i] = &apiv1.VectorRowRecord{FloatData: row}
		}
		fv.VectorRecord = rec
		return fv, ""
	}

	want := ScalarWidth(f.Type)
	if want == 0 {
		return nil, "unsupported type " + f.Type.String()
	}
	if width != want {
		return nil, "scalar width does not match type " + f.Type.String()
	}
	attr := &apiv1.AttrRecord{}
	switch f.Type {
	case apiv1.DataTypeInt32:
		attr.Int32Value = make([]int32, rows)
		for i := range attr.Int32Value {
			attr.Int32Value[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case apiv1.DataTypeInt64:
		attr.Int64Value = make([]int64, rows)
		for i := range attr.Int64Value {
			attr.Int64Value[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
	case apiv1.DataTypeFloat:
		attr.FloatValue = make([]float32, rows)
		for i := range attr.FloatValue {
			attr.FloatValue[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case apiv1.DataTypeDouble:
		attr.DoubleValue = make([]float64, rows)
		for i := range attr.DoubleValue {
			attr.DoubleValue[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	}
	fv.AttrRecord = attr
	return fv, ""
}
