package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/models"
	"github.com/pulsestack/pulse-anomaly/internal/stats"
)

type stubBaselines struct {
	baseline models.Baseline
	err      error
}

func (s *stubBaselines) Baseline(context.Context, string, int, models.Aggregation) (models.Baseline, error) {
	if s.err != nil {
		return models.Baseline{}, s.err
	}
	return s.baseline, nil
}

func baselineOf(metric string, values []float64) models.Baseline {
	start := time.Now().Add(-time.Duration(len(values)) * 24 * time.Hour)
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = start.Add(time.Duration(i) * 24 * time.Hour)
	}
	return models.Baseline{
		Metric:       metric,
		PeriodDays:   30,
		Aggregation:  models.AggregationDaily,
		DataPoints:   len(values),
		Statistics:   stats.Describe(values),
		Values:       values,
		Timestamps:   timestamps,
		CalculatedAt: time.Now().UTC(),
	}
}

func TestDetectZScoreFlagsSpike(t *testing.T) {
	// Daily revenue holding at 10 with a final-day spike to 50.
	detector := NewDetector(&stubBaselines{
		baseline: baselineOf("revenue", []float64{10, 10, 10, 10, 10, 10, 50}),
	}, nil)

	result, err := detector.Detect(context.Background(), "revenue", 30, models.MethodZScore, 2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 1 || len(result.Anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %+v", result)
	}
	anomaly := result.Anomalies[0]
	if anomaly.Value != 50 {
		t.Fatalf("expected the spike flagged, got value %f", anomaly.Value)
	}
	if anomaly.Score <= 0 {
		t.Fatalf("expected positive direction, got score %f", anomaly.Score)
	}
	if anomaly.Severity.Level != models.SeverityMedium {
		t.Fatalf("expected medium severity for score %f, got %s", anomaly.Score, anomaly.Severity.Level)
	}
	if anomaly.Method != models.MethodZScore {
		t.Fatalf("unexpected method %s", anomaly.Method)
	}
}

func TestDetectZScoreMeanPointNotFlagged(t *testing.T) {
	values := []float64{5, 10, 15}
	detector := NewDetector(&stubBaselines{baseline: baselineOf("views", values)}, nil)

	result, err := detector.Detect(context.Background(), "views", 30, models.MethodZScore, 2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 0 {
		t.Fatalf("no point deviates beyond 2 sigma, got %d anomalies", result.TotalAnomalies)
	}
}

func TestDetectZScoreZeroVariance(t *testing.T) {
	detector := NewDetector(&stubBaselines{
		baseline: baselineOf("spend", []float64{20, 20, 20, 20}),
	}, nil)

	result, err := detector.Detect(context.Background(), "spend", 30, models.MethodZScore, 2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 0 {
		t.Fatalf("zero variance must flag nothing, got %d", result.TotalAnomalies)
	}
}

func TestDetectIQRScalesFencesByThreshold(t *testing.T) {
	// p25=3, p75=7, iqr=4; threshold 1.5 puts fences at [-3, 13].
	values := []float64{1, 2, 3, 4, 5, 6, 7, 100}
	detector := NewDetector(&stubBaselines{baseline: baselineOf("revenue", values)}, nil)

	result, err := detector.Detect(context.Background(), "revenue", 30, models.MethodIQR, 1.5)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 1 {
		t.Fatalf("expected only the extreme point beyond the fence, got %d", result.TotalAnomalies)
	}
	anomaly := result.Anomalies[0]
	if anomaly.Value != 100 {
		t.Fatalf("expected 100 flagged, got %f", anomaly.Value)
	}
	// (100 - 13) / 4
	if anomaly.Score < 21.7 || anomaly.Score > 21.8 {
		t.Fatalf("expected fence-normalised score 21.75, got %f", anomaly.Score)
	}
}

func TestDetectIQRZeroSpreadFlagsNothing(t *testing.T) {
	detector := NewDetector(&stubBaselines{
		baseline: baselineOf("revenue", []float64{10, 10, 10, 10, 10, 10, 50}),
	}, nil)

	// p25 and p75 both sit at 10, so the IQR collapses; degenerate spread
	// must not divide by zero or flag every point.
	result, err := detector.Detect(context.Background(), "revenue", 30, models.MethodIQR, 1.5)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 0 {
		t.Fatalf("expected nothing flagged on zero IQR, got %d", result.TotalAnomalies)
	}
}

func TestDetectMADFlagsSpike(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10, 10, 50}
	detector := NewDetector(&stubBaselines{baseline: baselineOf("revenue", values)}, nil)

	result, err := detector.Detect(context.Background(), "revenue", 30, models.MethodMAD, 3)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 1 {
		t.Fatalf("expected one anomaly, got %d", result.TotalAnomalies)
	}
	anomaly := result.Anomalies[0]
	if anomaly.Value != 50 {
		t.Fatalf("expected spike flagged, got %f", anomaly.Value)
	}
	// mad = 40/7, score = 40 / (mad * 1.4826) ~ 4.72
	if anomaly.Severity.Level != models.SeverityCritical {
		t.Fatalf("expected critical severity, got %s (score %f)", anomaly.Severity.Level, anomaly.Score)
	}
}

func TestDetectMovingAverageNeedsHistory(t *testing.T) {
	// Spike at index 0: inside the warm-up window, never flagged.
	values := []float64{50, 10, 12, 10, 12, 10, 12, 11}
	detector := NewDetector(&stubBaselines{baseline: baselineOf("views", values)}, nil)

	result, err := detector.Detect(context.Background(), "views", 30, models.MethodMovingAverage, 2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 0 {
		t.Fatalf("points before the window must never be flagged, got %d", result.TotalAnomalies)
	}
}

func TestDetectMovingAverageFlagsLateSpike(t *testing.T) {
	values := []float64{10, 12, 10, 12, 10, 12, 10, 50}
	detector := NewDetector(&stubBaselines{baseline: baselineOf("views", values)}, nil)

	result, err := detector.Detect(context.Background(), "views", 30, models.MethodMovingAverage, 2)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 1 || result.Anomalies[0].Value != 50 {
		t.Fatalf("expected the trailing spike flagged, got %+v", result)
	}
}

func TestDetectTruncatesToTwenty(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		if i%2 == 0 {
			values[i] = 0
		} else {
			values[i] = 100
		}
	}
	detector := NewDetector(&stubBaselines{baseline: baselineOf("views", values)}, nil)

	result, err := detector.Detect(context.Background(), "views", 30, models.MethodZScore, 0.5)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.TotalAnomalies != 30 {
		t.Fatalf("expected full count 30, got %d", result.TotalAnomalies)
	}
	if len(result.Anomalies) != models.MaxReportedAnomalies {
		t.Fatalf("expected truncation to %d, got %d", models.MaxReportedAnomalies, len(result.Anomalies))
	}
	for i := 1; i < len(result.Anomalies); i++ {
		if result.Anomalies[i].Severity.Score > result.Anomalies[i-1].Severity.Score {
			t.Fatalf("anomalies not sorted by severity descending at %d", i)
		}
	}
}

func TestDetectUnknownMethod(t *testing.T) {
	detector := NewDetector(&stubBaselines{baseline: baselineOf("views", []float64{1, 2, 3})}, nil)
	if _, err := detector.Detect(context.Background(), "views", 30, models.Method("forest"), 2); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestDetectDefaultThreshold(t *testing.T) {
	detector := NewDetector(&stubBaselines{
		baseline: baselineOf("revenue", []float64{10, 10, 10, 10, 10, 10, 50}),
	}, nil)

	result, err := detector.Detect(context.Background(), "revenue", 30, models.MethodZScore, 0)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if result.Threshold != DefaultThreshold {
		t.Fatalf("expected default threshold %f, got %f", DefaultThreshold, result.Threshold)
	}
	if result.TotalAnomalies != 1 {
		t.Fatalf("expected spike flagged under default threshold, got %d", result.TotalAnomalies)
	}
}

func TestDetectPropagatesBaselineFailure(t *testing.T) {
	detector := NewDetector(&stubBaselines{err: fmt.Errorf("store unreachable")}, nil)
	if _, err := detector.Detect(context.Background(), "revenue", 30, models.MethodZScore, 2); err == nil {
		t.Fatal("expected baseline failure to propagate")
	}
}
