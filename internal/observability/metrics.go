// Package observability exposes Prometheus metrics for scheduling decisions and persistence.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "laborsched",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write to Postgres.",
	})
	shiftClosedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "laborsched",
		Subsystem: "scheduling",
		Name:      "last_shift_closed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent open shift closed.",
	})
	conflictCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "laborsched",
		Subsystem: "scheduling",
		Name:      "conflicts_detected_total",
		Help:      "Collisions found between a candidate interval and existing activities, by operation.",
	}, []string{"operation"})
	adjustmentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "laborsched",
		Subsystem: "scheduling",
		Name:      "adjustments_total",
		Help:      "Candidate intervals moved around a collision, by action (shrink or push).",
	}, []string{"action"})
	residualCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "laborsched",
		Subsystem: "scheduling",
		Name:      "residual_overlaps_total",
		Help:      "Adjusted intervals that still overlap a neighbour after grid snapping.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, shiftClosedGauge, conflictCounter, adjustmentCounter, residualCounter)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordShiftClosed updates the close watermark gauge.
func RecordShiftClosed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	shiftClosedGauge.Set(float64(ts.Unix()))
}

// RecordConflicts adds n collisions found during operation.
func RecordConflicts(operation string, n int) {
	if n <= 0 {
		return
	}
	conflictCounter.WithLabelValues(operation).Add(float64(n))
}

// RecordAdjustment counts one shrink or push.
func RecordAdjustment(action string) {
	if action == "" {
		return
	}
	adjustmentCounter.WithLabelValues(action).Inc()
}

// RecordResidualOverlap counts an adjustment left overlapping after snapping.
func RecordResidualOverlap() {
	residualCounter.Inc()
}
