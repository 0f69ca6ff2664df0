// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fyp_requests_created_total",
			Help: "Total number of requests created",
		},
		[]string{"kind"},
	)

	RequestsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fyp_requests_resolved_total",
			Help: "Total number of requests resolved",
		},
		[]string{"kind", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fyp_operation_duration_seconds",
			Help:    "Duration of allocation units of work in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)

	SweepFlips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fyp_availability_flips_total",
			Help: "Projects whose availability was flipped by the capacity sweep",
		},
	)

	ProjectsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fyp_projects",
			Help: "Projects by status after the last capacity sweep",
		},
		[]string{"status"},
	)

	InvariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fyp_invariant_violations_total",
			Help: "Invariant violations detected before commit or by the scheduled audit",
		},
		[]string{"op"},
	)

	LockWaits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fyp_lock_wait_seconds",
			Help:    "Time spent acquiring entity locks",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"backend"},
	)
)
