package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the matching and retention engine
var (
	fingerprintsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "video_dedup_fingerprints_total",
		Help: "Total number of fingerprints in storage",
	})

	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_dedup_evaluations_total",
		Help: "Total number of evaluate operations",
	}, []string{"verdict"})

	sweepDeletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "video_dedup_sweep_deletions_total",
		Help: "Total number of fingerprints deleted by retention sweeps",
	})

	evaluateDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "video_dedup_evaluate_duration_seconds",
		Help:    "Duration of evaluate operations in seconds",
		Buckets: prometheus.DefBuckets,
	})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_dedup_errors_total",
		Help: "Total number of errors",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(fingerprintsTotal)
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(sweepDeletionsTotal)
	prometheus.MustRegister(evaluateDurationSeconds)
	prometheus.MustRegister(errorsTotal)
}

// UpdateFingerprintCount updates the fingerprints_total metric
func UpdateFingerprintCount(count int64) {
	fingerprintsTotal.Set(float64(count))
}

// RecordEvaluation records an evaluate operation metric
func RecordEvaluation(verdict string, duration time.Duration) {
	evaluationsTotal.WithLabelValues(verdict).Inc()
	evaluateDurationSeconds.Observe(duration.Seconds())
}

// RecordSweepDeletions records fingerprints deleted by a sweep
func RecordSweepDeletions(count int) {
	sweepDeletionsTotal.Add(float64(count))
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
