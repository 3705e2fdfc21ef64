package qdrant

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

func toPointStruct(p *Point) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = toValue(v)
	}
	return &qdrant.PointStruct{Id: p.ID, Vectors: qdrant.NewVectors(p.Vector...), Payload: payload}
}

// toValue maps scalar payload values; integers widen to int64 and
// floats to float64. Anything else is stored as its string form.
func toValue(v any) *qdrant.Value {
	switch x := v.(type) {
	case bool:
		return qdrant.NewValueBool(x)
	case int8:
		return qdrant.NewValueInt(int64(x))
	case int16:
		return qdrant.NewValueInt(int64(x))
	case int32:
		return qdrant.NewValueInt(int64(x))
	case int:
		return qdrant.NewValueInt(int64(x))
	case int64:
		return qdrant.NewValueInt(x)
	case float32:
		return qdrant.NewValueDouble(float64(x))
	case float64:
		return qdrant.NewValueDouble(x)
	case string:
		return qdrant.NewValueString(x)
	}
	return qdrant.NewValueString(fmt.Sprint(v))
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		default:
			out[k] = nil
		}
	}
	return out
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	vec := v.GetVector()
	if vec == nil {
		return nil
	}
	if dense := vec.GetDense(); dense != nil {
		return dense.GetData()
	}
	return vec.GetData()
}

// NumericID returns id as a number when it is not a UUID.
func NumericID(id *qdrant.PointId) (uint64, bool) {
	if n, ok := id.GetPointIdOptions().(*qdrant.PointId_Num); ok {
		return n.Num, true
	}
	return 0, false
}
