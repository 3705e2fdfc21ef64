package engine

import (
	"math"
	"math/bits"
	"strings"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Metric types.
const (
	MetricL2       = "L2"
	MetricIP       = "IP"
	MetricHamming  = "HAMMING"
	MetricJaccard  = "JACCARD"
	MetricTanimoto = "TANIMOTO"
)

// metric scores a stored row against a query row. Lower is closer except
// for IP, where higher is closer.
type metric struct {
	name    string
	binary  bool
	larger  bool
	float   func(a, b []float32) float32
	bitwise func(a, b []byte) float32
}

func (m metric) better(a, b float32) bool {
	if m.larger {
		return a > b
	}
	return a < b
}

var metrics = map[string]metric{
	MetricL2:       {name: MetricL2, float: squaredL2},
	MetricIP:       {name: MetricIP, larger: true, float: dot},
	MetricHamming:  {name: MetricHamming, binary: true, bitwise: hamming},
	MetricJaccard:  {name: MetricJaccard, binary: true, bitwise: jaccard},
	MetricTanimoto: {name: MetricTanimoto, binary: true, bitwise: tanimoto},
}

// resolveMetric picks the metric for a search over a field of type t.
func resolveMetric(name string, t apiv1.DataType) (metric, error) {
	if name == "" {
		if t == apiv1.DataTypeVectorBinary {
			return metrics[MetricHamming], nil
		}
		return metrics[MetricL2], nil
	}
	m, ok := metrics[strings.ToUpper(name)]
	if !ok {
		return metric{}, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalMetricType, "Invalid metric type: %s", name)
	}
	if m.binary != (t == apiv1.DataTypeVectorBinary) {
		return metric{}, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalMetricType, "Metric type %s does not apply to %s field", m.name, t)
	}
	return m, nil
}

// Float kernels accumulate in float64 and clamp to the float32 range so
// extreme inputs yield the largest distance instead of an infinity.
func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return clamp32(sum)
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return clamp32(sum)
}

func clamp32(v float64) float32 {
	switch {
	case math.IsNaN(v):
		return math.MaxFloat32
	case v > math.MaxFloat32:
		return math.MaxFloat32
	case v < -math.MaxFloat32:
		return -math.MaxFloat32
	}
	return float32(v)
}

func hamming(a, b []byte) float32 {
	n := 0
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return float32(n)
}

func jaccard(a, b []byte) float32 {
	and, or := 0, 0
	for i := range a {
		and += bits.OnesCount8(a[i] & b[i])
		or += bits.OnesCount8(a[i] | b[i])
	}
	if or == 0 {
		return 0
	}
	return 1 - float32(and)/float32(or)
}

func tanimoto(a, b []byte) float32 {
	sim := 1 - jaccard(a, b)
	if sim <= 0 {
		return math.MaxFloat32
	}
	return float32(-math.Log2(float64(sim)))
}
