package query

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Number is a JSON number. Integers are kept exact.
type Number struct {
	Int   int64
	Float float64
	IsInt bool
}

// AsFloat returns n as a float64.
func (n Number) AsFloat() float64 {
	if n.IsInt {
		return float64(n.Int)
	}
	return n.Float
}

// CompareInt returns -1, 0 or 1 as v is less than, equal to or greater than n.
func (n Number) CompareInt(v int64) int {
	if n.IsInt {
		return cmp(v, n.Int)
	}
	return cmp(float64(v), n.Float)
}

// CompareFloat returns -1, 0 or 1 as v is less than, equal to or greater than n.
func (n Number) CompareFloat(v float64) int {
	return cmp(v, n.AsFloat())
}

func cmp[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func parseNumber(r gjson.Result) (Number, bool) {
	if r.Type != gjson.Number {
		return Number{}, false
	}
	if !strings.ContainsAny(r.Raw, ".eE") {
		if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return Number{Int: i, Float: float64(i), IsInt: true}, true
		}
	}
	return Number{Float: r.Float()}, true
}

// Term matches rows whose field value is one of Values.
type Term struct {
	Values []Number
}

// MatchInt reports whether v is one of the term values.
func (t *Term) MatchInt(v int64) bool {
	for _, n := range t.Values {
		if n.CompareInt(v) == 0 {
			return true
		}
	}
	return false
}

// MatchFloat reports whether v is one of the term values.
func (t *Term) MatchFloat(v float64) bool {
	for _, n := range t.Values {
		if n.CompareFloat(v) == 0 {
			return true
		}
	}
	return false
}

// CompareOp is a range comparison operator.
type CompareOp string

// Range operators.
const (
	OpGT  CompareOp = "GT"
	OpGTE CompareOp = "GTE"
	OpLT  CompareOp = "LT"
	OpLTE CompareOp = "LTE"
	OpEQ  CompareOp = "EQ"
	OpNE  CompareOp = "NE"
)

func (op CompareOp) holds(c int) bool {
	switch op {
	case OpGT:
		return c > 0
	case OpGTE:
		return c >= 0
	case OpLT:
		return c < 0
	case OpLTE:
		return c <= 0
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	}
	return false
}

// RangeCond is one "<op>: <value>" pair of a range leaf.
type RangeCond struct {
	Op    CompareOp
	Value Number
}

// Range matches rows whose field value satisfies every condition.
type Range struct {
	Conds []RangeCond
}

// MatchInt reports whether v satisfies every condition.
func (r *Range) MatchInt(v int64) bool {
	for _, c := range r.Conds {
		if !c.Op.holds(c.Value.CompareInt(v)) {
			return false
		}
	}
	return true
}

// MatchFloat reports whether v satisfies every condition.
func (r *Range) MatchFloat(v float64) bool {
	for _, c := range r.Conds {
		if !c.Op.holds(c.Value.CompareFloat(v)) {
			return false
		}
	}
	return true
}

// parseTerm accepts {"values":[...]} or a bare array.
func parseTerm(field string, body gjson.Result) (*Term, error) {
	values := body
	if body.IsObject() {
		values = body.Get("values")
	}
	if !values.IsArray() {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Term query of field %s does not include values array", field)
	}
	t := &Term{}
	var bad bool
	values.ForEach(func(_, v gjson.Result) bool {
		n, ok := parseNumber(v)
		if !ok {
			bad = true
			return false
		}
		t.Values = append(t.Values, n)
		return true
	})
	if bad {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Term query of field %s holds a non-numeric value", field)
	}
	return t, nil
}

func parseRange(field string, body gjson.Result) (*Range, error) {
	if !body.IsObject() {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Range query of field %s is not an object", field)
	}
	r := &Range{}
	var err error
	body.ForEach(func(k, v gjson.Result) bool {
		op := CompareOp(strings.ToUpper(k.String()))
		switch op {
		case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNE:
		default:
			err = errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Range query of field %s has unknown operator %s", field, k.String())
			return false
		}
		n, ok := parseNumber(v)
		if !ok {
			err = errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Range query of field %s has non-numeric bound for %s", field, op)
			return false
		}
		r.Conds = append(r.Conds, RangeCond{Op: op, Value: n})
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(r.Conds) == 0 {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, "Range query of field %s has no condition", field)
	}
	return r, nil
}
