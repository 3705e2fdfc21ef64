// Package codec converts between the row-oriented wire records of the gRPC
// API and the column-oriented buffers exchanged with an engine.
//
// Ingest turns the fields of an Insert into a Batch of typed Columns.
// Encode turns the packed little-endian bytes an engine returns for each
// field back into wire FieldValues.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Column is one field of a batch. Exactly one typed slice is populated,
// selected by Type. Vector columns hold Rows*Dim floats, or Rows*Dim/8
// bytes for binary vectors.
type Column struct {
	Name string
	Type apiv1.DataType
	Rows int
	Dim  int

	Int32        []int32
	Int64        []int64
	Float        []float32
	Double       []float64
	FloatVector  []float32
	BinaryVector []byte
}

// ScalarWidth returns the packed byte width of one value of t, or 0 for
// vector and unsupported types.
func ScalarWidth(t apiv1.DataType) int {
	switch t {
	case apiv1.DataTypeInt32, apiv1.DataTypeFloat:
		return 4
	case apiv1.DataTypeInt64, apiv1.DataTypeDouble:
		return 8
	default:
		return 0
	}
}

// NewColumn returns an empty column for a field of type t. dim is the
// vector dimension and is ignored for scalars.
func NewColumn(name string, t apiv1.DataType, dim int) *Column {
	return &Column{Name: name, Type: t, Dim: dim}
}

// Width returns the packed byte width of one row.
func (c *Column) Width() int {
	switch c.Type {
	case apiv1.DataTypeVectorFloat:
		return c.Dim * 4
	case apiv1.DataTypeVectorBinary:
		return c.Dim / 8
	default:
		return ScalarWidth(c.Type)
	}
}

// Bytes packs every row little-endian.
func (c *Column) Bytes() []byte {
	return c.Gather(nil)
}

// Gather packs the given rows little-endian in order. A nil rows packs
// every row.
func (c *Column) Gather(rows []int) []byte {
	n := c.Rows
	if rows != nil {
		n = len(rows)
	}
	w := c.Width()
	out := make([]byte, 0, n*w)
	at := func(i int) int {
		if rows == nil {
			return i
		}
		return rows[i]
	}

	for i := 0; i < n; i++ {
		r := at(i)
		switch c.Type {
		case apiv1.DataTypeInt32:
			out = binary.LittleEndian.AppendUint32(out, uint32(c.Int32[r]))
		case apiv1.DataTypeInt64:
			out = binary.LittleEndian.AppendUint64(out, uint64(c.Int64[r]))
		case apiv1.DataTypeFloat:
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(c.Float[r]))
		case apiv1.DataTypeDouble:
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(c.Double[r]))
		case apiv1.DataTypeVectorFloat:
			for _, f := range c.FloatVector[r*c.Dim : (r+1)*c.Dim] {
				out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
			}
		case apiv1.DataTypeVectorBinary:
			out = append(out, c.BinaryVector[r*w:(r+1)*w]...)
		}
	}
	return out
}

// Append copies the rows of o onto c. Both must have the same type and
// dimension.
func (c *Column) Append(o *Column) error {
	if c.Type != o.Type {
		return fmt.Errorf("field %s: cannot append %s column to %s column", c.Name, o.Type, c.Type)
	}
	if c.Type.IsVector() && c.Dim != o.Dim {
		return fmt.Errorf("field %s: dimension %d does not match %d", c.Name, o.Dim, c.Dim)
	}
	switch c.Type {
	case apiv1.DataTypeInt32:
		c.Int32 = append(c.Int32, o.Int32...)
	case apiv1.DataTypeInt64:
		c.Int64 = append(c.Int64, o.Int64...)
	case apiv1.DataTypeFloat:
		c.Float = append(c.Float, o.Float...)
	case apiv1.DataTypeDouble:
		c.Double = append(c.Double, o.Double...)
	case apiv1.DataTypeVectorFloat:
		c.FloatVector = append(c.FloatVector, o.FloatVector...)
	case apiv1.DataTypeVectorBinary:
		c.BinaryVector = append(c.BinaryVector, o.BinaryVector...)
	}
	c.Rows += o.Rows
	return nil
}

// Keep returns a copy of c holding only the rows for which keep is true.
func (c *Column) Keep(keep func(row int) bool) *Column {
	rows := make([]int, 0, c.Rows)
	for i := 0; i < c.Rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	out := NewColumn(c.Name, c.Type, c.Dim)
	out.Rows = len(rows)
	w := c.Width()
	for _, r := range rows {
		switch c.Type {
		case apiv1.DataTypeInt32:
			out.Int32 = append(out.Int32, c.Int32[r])
		case apiv1.DataTypeInt64:
			out.Int64 = append(out.Int64, c.Int64[r])
		case apiv1.DataTypeFloat:
			out.Float = append(out.Float, c.Float[r])
		case apiv1.DataTypeDouble:
			out.Double = append(out.Double, c.Double[r])
		case apiv1.DataTypeVectorFloat:
			out.FloatVector = append(out.FloatVector, c.FloatVector[r*c.Dim:(r+1)*c.Dim]...)
		case apiv1.DataTypeVectorBinary:
			out.BinaryVector = append(out.BinaryVector, c.BinaryVector[r*w:(r+1)*w]...)
		}
	}
	return out
}

// Int64At returns row i of an integer column widened to int64.
func (c *Column) Int64At(i int) (int64, bool) {
	switch c.Type {
	case apiv1.DataTypeInt32:
		return int64(c.Int32[i]), true
	case apiv1.DataTypeInt64:
		return c.Int64[i], true
	}
	return 0, false
}

// Float64At returns row i of a floating-point column widened to float64.
func (c *Column) Float64At(i int) (float64, bool) {
	switch c.Type {
	case apiv1.DataTypeFloat:
		return float64(c.Float[i]), true
	case apiv1.DataTypeDouble:
		return c.Double[i], true
	}
	return 0, false
}

// FloatRow returns row i of a float vector column.
func (c *Column) FloatRow(i int) []float32 {
	return c.FloatVector[i*c.Dim : (i+1)*c.Dim]
}

// BinaryRow returns row i of a binary vector column.
func (c *Column) BinaryRow(i int) []byte {
	w := c.Dim / 8
	return c.BinaryVector[i*w : (i+1)*w]
}
