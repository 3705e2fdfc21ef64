package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts engine calls.
	// Labels: provider (memory, qdrant), op, result (success, error)
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of engine operations",
		},
		[]string{"provider", "op", "result"},
	)

	// OperationDuration tracks engine call latency.
	// Labels: provider, op
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vectord",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	// Entities tracks live entities per collection in the memory engine.
	// Labels: collection
	Entities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectord",
			Subsystem: "engine",
			Name:      "entities",
			Help:      "Number of live entities per collection",
		},
		[]string{"collection"},
	)
)

// observe records one engine call.
func observe(provider, op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	Operations.WithLabelValues(provider, op, result).Inc()
	OperationDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}
