package codec

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// ValidRows records which result positions exist. Absent positions
// contribute no bytes to a Chunk.
type ValidRows struct {
	rb *roaring.Bitmap
	n  int
}

// NewValidRows returns a bitmap over n positions with none set.
func NewValidRows(n int) *ValidRows {
	return &ValidRows{rb: roaring.New(), n: n}
}

// ValidRowsFromFlags builds the bitmap from wire valid_row flags.
func ValidRowsFromFlags(flags []bool) *ValidRows {
	v := NewValidRows(len(flags))
	for i, ok := range flags {
		if ok {
			v.rb.Add(uint32(i))
		}
	}
	return v
}

// ValidRowsFromIDs builds the bitmap from result ids; -1 marks a missing
// row.
func ValidRowsFromIDs(ids []int64) *ValidRows {
	v := NewValidRows(len(ids))
	for i, id := range ids {
		if id >= 0 {
			v.rb.Add(uint32(i))
		}
	}
	return v
}

// Set marks position i valid.
func (v *ValidRows) Set(i int) {
	v.rb.Add(uint32(i))
}

// Valid reports whether position i is valid.
func (v *ValidRows) Valid(i int) bool {
	return v.rb.Contains(uint32(i))
}

// Count returns the number of valid positions.
func (v *ValidRows) Count() int {
	return int(v.rb.GetCardinality())
}

// Len returns the number of positions.
func (v *ValidRows) Len() int {
	return v.n
}

// Flags expands the bitmap into wire valid_row flags.
func (v *ValidRows) Flags() []bool {
	flags := make([]bool, v.n)
	it := v.rb.Iterator()
	for it.HasNext() {
		if i := int(it.Next()); i < v.n {
			flags[i] = true
		}
	}
	return flags
}

// Positions returns the valid positions in ascending order.
func (v *ValidRows) Positions() []int {
	out := make([]int, 0, v.Count())
	it := v.rb.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
