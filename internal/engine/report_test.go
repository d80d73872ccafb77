package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

type stubDetector struct {
	results map[string]models.DetectionResult
	failing map[string]bool
}

func (s *stubDetector) Detect(_ context.Context, metric string, periodDays int, method models.Method, threshold float64) (models.DetectionResult, error) {
	if s.failing[metric] {
		return models.DetectionResult{}, fmt.Errorf("baseline unavailable for %s", metric)
	}
	result := s.results[metric]
	result.Metric = metric
	result.Method = method
	result.Threshold = threshold
	result.PeriodDays = periodDays
	result.GeneratedAt = time.Now().UTC()
	return result, nil
}

func detectionWith(scores ...float64) models.DetectionResult {
	anomalies := make([]models.Anomaly, len(scores))
	for i, score := range scores {
		anomalies[i] = anomalyWith(score, 100)
	}
	return models.DetectionResult{
		Anomalies:      anomalies,
		TotalAnomalies: len(anomalies),
	}
}

func TestBuildAggregatesSeverityCounts(t *testing.T) {
	detector := &stubDetector{results: map[string]models.DetectionResult{
		"revenue": detectionWith(4.5, 2.5),
		"views":   detectionWith(3.2, 1.1),
		"spend":   {},
	}}
	builder := NewReportBuilder(detector, nil, nil)

	report, err := builder.Build(context.Background(), []string{"revenue", "views", "spend"}, 30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if report.Summary.TotalAnomalies != 4 {
		t.Fatalf("expected 4 anomalies total, got %d", report.Summary.TotalAnomalies)
	}
	if report.Summary.CriticalCount != 1 || report.Summary.HighCount != 1 ||
		report.Summary.MediumCount != 1 || report.Summary.LowCount != 1 {
		t.Fatalf("unexpected severity tallies: %+v", report.Summary)
	}
	if len(report.AnomaliesByMetric) != 3 {
		t.Fatalf("expected all 3 metrics in the breakdown, got %d", len(report.AnomaliesByMetric))
	}
	if report.PeriodDays != 30 {
		t.Fatalf("expected period carried through, got %d", report.PeriodDays)
	}
}

func TestBuildExcludesFailingMetric(t *testing.T) {
	detector := &stubDetector{
		results: map[string]models.DetectionResult{
			"revenue": detectionWith(2.5),
		},
		failing: map[string]bool{"views": true},
	}
	builder := NewReportBuilder(detector, nil, nil)

	report, err := builder.Build(context.Background(), []string{"revenue", "views"}, 30)
	if err != nil {
		t.Fatalf("one failing metric must not fail the report: %v", err)
	}
	if _, ok := report.AnomaliesByMetric["views"]; ok {
		t.Fatal("failing metric should be excluded from the breakdown")
	}
	if _, ok := report.AnomaliesByMetric["revenue"]; !ok {
		t.Fatal("healthy metric missing from the breakdown")
	}
	if len(report.Metrics) != 2 {
		t.Fatalf("requested metric list should be preserved, got %v", report.Metrics)
	}
}

func TestBuildAlertsRespectMediumFloor(t *testing.T) {
	detector := &stubDetector{results: map[string]models.DetectionResult{
		"revenue": detectionWith(4.5, 1.2),
	}}
	builder := NewReportBuilder(detector, nil, nil)

	report, err := builder.Build(context.Background(), []string{"revenue"}, 30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(report.Alerts) != 1 {
		t.Fatalf("expected only the critical anomaly alerted, got %d", len(report.Alerts))
	}
	if report.Alerts[0].Severity != models.SeverityCritical {
		t.Fatalf("unexpected alert severity %s", report.Alerts[0].Severity)
	}
}

func TestBuildQuietReport(t *testing.T) {
	detector := &stubDetector{results: map[string]models.DetectionResult{
		"revenue": {},
		"views":   {},
	}}
	builder := NewReportBuilder(detector, nil, nil)

	report, err := builder.Build(context.Background(), []string{"revenue", "views"}, 30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if report.Summary.TotalAnomalies != 0 {
		t.Fatalf("expected a quiet report, got %+v", report.Summary)
	}
	if len(report.Insights) != 1 || !strings.Contains(report.Insights[0], "normal ranges") {
		t.Fatalf("expected the all-clear insight, got %v", report.Insights)
	}
	if len(report.Recommendations) != 1 || !strings.Contains(report.Recommendations[0], "No action needed") {
		t.Fatalf("expected the no-action recommendation, got %v", report.Recommendations)
	}
}

func TestBuildInsightsNameTopMetric(t *testing.T) {
	detector := &stubDetector{results: map[string]models.DetectionResult{
		"revenue": detectionWith(4.5, 2.5, 2.2),
		"views":   detectionWith(2.1),
	}}
	builder := NewReportBuilder(detector, nil, nil)

	report, err := builder.Build(context.Background(), []string{"revenue", "views"}, 30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	var topInsight, criticalInsight bool
	for _, insight := range report.Insights {
		if strings.Contains(insight, "Revenue") && strings.Contains(insight, "most anomalies") {
			topInsight = true
		}
		if strings.Contains(insight, "critical") {
			criticalInsight = true
		}
	}
	if !topInsight {
		t.Fatalf("expected the top-metric insight, got %v", report.Insights)
	}
	if !criticalInsight {
		t.Fatalf("expected the critical-count insight, got %v", report.Insights)
	}
	if len(report.Recommendations) == 0 ||
		!strings.Contains(report.Recommendations[0], "critical") {
		t.Fatalf("critical anomalies should lead the recommendations, got %v", report.Recommendations)
	}
}

func TestBuildFlagsSyntheticBaselines(t *testing.T) {
	mock := detectionWith(2.5)
	mock.BaselineIsMock = true
	detector := &stubDetector{results: map[string]models.DetectionResult{"revenue": mock}}
	builder := NewReportBuilder(detector, nil, nil)

	report, err := builder.Build(context.Background(), []string{"revenue"}, 30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	var caveat bool
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "synthetic") {
			caveat = true
		}
	}
	if !caveat {
		t.Fatalf("expected the synthetic-baseline caveat, got %v", report.Recommendations)
	}
}

func TestBuildWithoutDetector(t *testing.T) {
	builder := NewReportBuilder(nil, nil, nil)
	if _, err := builder.Build(context.Background(), []string{"revenue"}, 30); err == nil {
		t.Fatal("expected an error when no detector is configured")
	}
}
