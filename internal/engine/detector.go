package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/models"
	"github.com/pulsestack/pulse-anomaly/internal/stats"
)

// DefaultThreshold applies when a caller passes a non-positive threshold.
const DefaultThreshold = 2.0

// movingAverageWindow is the number of preceding points a rolling z-score is
// computed over. Points with less history are never flagged.
const movingAverageWindow = 7

// madScale converts mean absolute deviation into a standard-deviation
// equivalent estimator under normality.
const madScale = 1.4826

// BaselineProvider supplies the reference series a detector walks.
type BaselineProvider interface {
	Baseline(ctx context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error)
}

// Detector classifies every point of a baseline series under one of the
// interchangeable algorithms.
type Detector struct {
	baselines BaselineProvider
	logger    *slog.Logger
}

// NewDetector constructs a detector over the supplied baseline provider.
func NewDetector(baselines BaselineProvider, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{baselines: baselines, logger: logger}
}

// Detect resolves the metric's baseline and flags anomalous points. The
// returned anomalies are sorted by severity score descending and truncated to
// MaxReportedAnomalies; TotalAnomalies keeps the untruncated count.
func (d *Detector) Detect(ctx context.Context, metric string, periodDays int, method models.Method, threshold float64) (models.DetectionResult, error) {
	if d.baselines == nil {
		return models.DetectionResult{}, fmt.Errorf("baseline provider not configured")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	b, err := d.baselines.Baseline(ctx, metric, periodDays, models.AggregationDaily)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("baseline for %s: %w", metric, err)
	}

	scores, err := scoreSeries(b.Values, b.Statistics, method, threshold)
	if err != nil {
		return models.DetectionResult{}, err
	}

	anomalies := make([]models.Anomaly, 0)
	for i, s := range scores {
		if !s.flagged {
			continue
		}
		ts := time.Time{}
		if i < len(b.Timestamps) {
			ts = b.Timestamps[i]
		}
		anomalies = append(anomalies, models.Anomaly{
			Timestamp: ts,
			Value:     b.Values[i],
			Score:     s.score,
			Method:    method,
			Severity:  ClassifySeverity(s.score),
			Baseline:  b.Statistics,
			Deviation: AnalyzeDeviation(b.Values[i], b.Statistics),
		})
	}

	total := len(anomalies)
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Severity.Score > anomalies[j].Severity.Score
	})
	if len(anomalies) > models.MaxReportedAnomalies {
		anomalies = anomalies[:models.MaxReportedAnomalies]
	}

	d.logger.Debug("detection complete",
		slog.String("metric", metric),
		slog.String("method", string(method)),
		slog.Int("anomalies", total),
		slog.Bool("mock_baseline", b.IsMock),
	)

	return models.DetectionResult{
		Metric:         metric,
		Method:         method,
		Threshold:      threshold,
		PeriodDays:     b.PeriodDays,
		Aggregation:    b.Aggregation,
		Anomalies:      anomalies,
		TotalAnomalies: total,
		Statistics:     b.Statistics,
		DataPoints:     b.DataPoints,
		BaselineIsMock: b.IsMock,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

type pointScore struct {
	score   float64
	flagged bool
}

func scoreSeries(values []float64, statistics models.Statistics, method models.Method, threshold float64) ([]pointScore, error) {
	switch method {
	case models.MethodZScore:
		return zScoreSeries(values, statistics, threshold), nil
	case models.MethodIQR:
		return iqrSeries(values, statistics, threshold), nil
	case models.MethodMAD:
		return madSeries(values, statistics, threshold), nil
	case models.MethodMovingAverage:
		return movingAverageSeries(values, threshold), nil
	default:
		return nil, fmt.Errorf("unknown detection method %q", method)
	}
}

func zScoreSeries(values []float64, statistics models.Statistics, threshold float64) []pointScore {
	scores := make([]pointScore, len(values))
	if statistics.StdDev == 0 {
		return scores
	}
	for i, v := range values {
		score := (v - statistics.Mean) / statistics.StdDev
		scores[i] = pointScore{score: score, flagged: math.Abs(score) > threshold}
	}
	return scores
}

// iqrSeries scales the Tukey fences by the caller threshold rather than the
// fixed 1.5 multiplier. The score is the signed distance beyond the violated
// fence, normalised by the IQR.
func iqrSeries(values []float64, statistics models.Statistics, threshold float64) []pointScore {
	scores := make([]pointScore, len(values))
	if statistics.IQR == 0 {
		return scores
	}
	lower := statistics.Percentile25 - threshold*statistics.IQR
	upper := statistics.Percentile75 + threshold*statistics.IQR
	for i, v := range values {
		switch {
		case v < lower:
			scores[i] = pointScore{score: (v - lower) / statistics.IQR, flagged: true}
		case v > upper:
			scores[i] = pointScore{score: (v - upper) / statistics.IQR, flagged: true}
		}
	}
	return scores
}

// madSeries is the modified z-score detector (historically named "isolation").
// The MAD here is the mean absolute deviation around the median, preserved
// from the original calibration.
func madSeries(values []float64, statistics models.Statistics, threshold float64) []pointScore {
	scores := make([]pointScore, len(values))
	mad := stats.MeanAbsoluteDeviation(values, statistics.Median)
	if mad == 0 {
		return scores
	}
	for i, v := range values {
		score := (v - statistics.Median) / (mad * madScale)
		scores[i] = pointScore{score: score, flagged: math.Abs(score) > threshold}
	}
	return scores
}

func movingAverageSeries(values []float64, threshold float64) []pointScore {
	scores := make([]pointScore, len(values))
	for i := movingAverageWindow; i < len(values); i++ {
		window := values[i-movingAverageWindow : i]
		mean := stats.Mean(window)
		stdDev := stats.StdDev(window, mean)
		if stdDev == 0 {
			continue
		}
		score := (values[i] - mean) / stdDev
		scores[i] = pointScore{score: score, flagged: math.Abs(score) > threshold}
	}
	return scores
}
