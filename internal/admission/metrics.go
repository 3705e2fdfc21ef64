package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InFlightBytes tracks the bytes held by admitted, unreleased inserts.
	InFlightBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vectord",
			Subsystem: "admission",
			Name:      "in_flight_bytes",
			Help:      "Bytes held by admitted inserts that have not been released",
		},
	)

	// Waiters tracks callers blocked on the budget.
	Waiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vectord",
			Subsystem: "admission",
			Name:      "waiters",
			Help:      "Number of inserts waiting for budget",
		},
	)

	// Rejections counts refused admissions.
	// Labels: reason (oversized, timeout, cancelled)
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "admission",
			Name:      "rejections_total",
			Help:      "Total number of refused insert admissions",
		},
		[]string{"reason"},
	)

	// WaitDuration tracks time spent waiting for admission.
	WaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vectord",
			Subsystem: "admission",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for insert admission in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

const (
	reasonOversized = "oversized"
	reasonTimeout   = "timeout"
	reasonCancelled = "cancelled"
)
