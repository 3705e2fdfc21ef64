package codec

import (
	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// MaxFieldNum is the most fields a collection or an insert may carry.
const MaxFieldNum = 64

// Batch is an ingested insert: columns sharing one row count plus the
// client-supplied ids, if any.
type Batch struct {
	Columns []*Column
	IDs     []int64
	Rows    int
}

// Column returns the column named name, or nil.
func (b *Batch) Column(name string) *Column {
	for _, c := range b.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func rowRecordErr(format string, args ...any) error {
	return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalRowRecord, format, args...)
}

// Ingest converts wire fields into columns. The populated variant of each
// field is taken in the order int32, int64, float, double, vector. Scalar
// columns alias the wire slices; vector rows are flattened into one owned
// buffer. Ingest is atomic: on error no batch is returned.
func Ingest(fields []*apiv1.FieldValue, ids []int64) (*Batch, error) {
	for _, id := range ids {
		if id < 0 {
			return nil, rowRecordErr("id can not be negative number")
		}
	}
	if len(fields) > MaxFieldNum {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Insert carries %d fields, maximum is %d", len(fields), MaxFieldNum)
	}

	b := &Batch{Columns: make([]*Column, 0, len(fields)), Rows: -1}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == nil {
			return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Insert carries a null field")
		}
		if _, dup := seen[f.FieldName]; dup {
			return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Field %s appears more than once", f.FieldName)
		}
		seen[f.FieldName] = struct{}{}

		col, err := ingestField(f)
		if err != nil {
			return nil, err
		}
		if b.Rows < 0 {
			b.Rows = col.Rows
			if len(ids) > 0 && len(ids) != b.Rows {
				return nil, rowRecordErr("ID size not matches entity size")
			}
		} else if col.Rows != b.Rows {
			return nil, rowRecordErr("Field row count inconsist")
		}
		b.Columns = append(b.Columns, col)
	}

	if b.Rows < 0 {
		b.Rows = 0
		if len(ids) > 0 {
			return nil, rowRecordErr("ID size not matches entity size")
		}
	}
	if len(ids) > 0 {
		b.IDs = ids
	}
	return b, nil
}

func ingestField(f *apiv1.FieldValue) (*Column, error) {
	attr := f.GetAttrRecord()
	col := &Column{Name: f.FieldName}
	switch {
	case len(attr.GetInt32Value()) > 0:
		col.Type, col.Int32, col.Rows = apiv1.DataTypeInt32, attr.Int32Value, len(attr.Int32Value)
	case len(attr.GetInt64Value()) > 0:
		col.Type, col.Int64, col.Rows = apiv1.DataTypeInt64, attr.Int64Value, len(attr.Int64Value)
	case len(attr.GetFloatValue()) > 0:
		col.Type, col.Float, col.Rows = apiv1.DataTypeFloat, attr.FloatValue, len(attr.FloatValue)
	case len(attr.GetDoubleValue()) > 0:
		col.Type, col.Double, col.Rows = apiv1.DataTypeDouble, attr.DoubleValue, len(attr.DoubleValue)
	default:
		return ingestVectors(f.FieldName, f.Type, f.GetVectorRecord().GetRecords())
	}
	return col, nil
}

// ingestVectors flattens vector rows. Binary data wins over float data;
// the first row fixes the kind and dimension.
func ingestVectors(name string, declared apiv1.DataType, rows []*apiv1.VectorRowRecord) (*Column, error) {
	if len(rows) == 0 {
		t := declared
		if !t.IsVector() {
			t = apiv1.DataTypeVectorFloat
		}
		return NewColumn(name, t, 0), nil
	}

	first := rows[0]
	if w := len(first.GetBinaryData()); w > 0 {
		col := NewColumn(name, apiv1.DataTypeVectorBinary, w*8)
		col.BinaryVector = make([]byte, 0, w*len(rows))
		for i, r := range rows {
			if len(r.GetBinaryData()) != w {
				return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Field %s row %d has %d bytes, expected %d", name, i, len(r.GetBinaryData()), w)
			}
			col.BinaryVector = append(col.BinaryVector, r.BinaryData...)
		}
		col.Rows = len(rows)
		return col, nil
	}

	dim := len(first.GetFloatData())
	if dim == 0 {
		return nil, rowRecordErr("Field %s row 0 holds no vector data", name)
	}
	col := NewColumn(name, apiv1.DataTypeVectorFloat, dim)
	col.FloatVector = make([]float32, 0, dim*len(rows))
	for i, r := range rows {
		if len(r.GetFloatData()) != dim {
			return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Field %s row %d has dimension %d, expected %d", name, i, len(r.GetFloatData()), dim)
		}
		col.FloatVector = append(col.FloatVector, r.FloatData...)
	}
	col.Rows = len(rows)
	return col, nil
}
