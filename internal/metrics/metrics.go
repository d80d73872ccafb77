package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"

	// BaselineSourceCache labels baselines served from the cache.
	BaselineSourceCache = "cache"
	// BaselineSourceStore labels baselines computed from real history.
	BaselineSourceStore = "store"
	// BaselineSourceSynthetic labels fabricated fallback baselines.
	BaselineSourceSynthetic = "synthetic"
)

var (
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_anomaly",
			Name:      "detections_total",
			Help:      "Total detection runs, partitioned by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	detectionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulse_anomaly",
			Name:      "detection_seconds",
			Help:      "Single-metric detection latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	anomaliesFoundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_anomaly",
			Name:      "anomalies_found_total",
			Help:      "Total anomalies flagged, partitioned by severity level.",
		},
		[]string{"severity"},
	)

	baselineComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_anomaly",
			Name:      "baseline_computations_total",
			Help:      "Baseline resolutions, partitioned by source (cache, store, synthetic).",
		},
		[]string{"source"},
	)

	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_anomaly",
			Name:      "reports_total",
			Help:      "Aggregate report builds, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	reportSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulse_anomaly",
			Name:      "report_seconds",
			Help:      "Aggregate report build latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

// Register attaches the engine's collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		detectionsTotal,
		detectionSeconds,
		anomaliesFoundTotal,
		baselineComputationsTotal,
		reportsTotal,
		reportSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDetection records one detection run.
func ObserveDetection(method string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	detectionsTotal.WithLabelValues(method, label).Inc()
	if duration < 0 {
		duration = 0
	}
	detectionSeconds.Observe(duration.Seconds())
}

// ObserveAnomaly counts one flagged anomaly by severity level.
func ObserveAnomaly(severity string) {
	anomaliesFoundTotal.WithLabelValues(severity).Inc()
}

// ObserveBaseline counts one baseline resolution by source.
func ObserveBaseline(source string) {
	baselineComputationsTotal.WithLabelValues(source).Inc()
}

// ObserveReport records one aggregate report build.
func ObserveReport(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	reportsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	reportSeconds.Observe(duration.Seconds())
}
