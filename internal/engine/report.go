package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

// DetectionRunner is the single-metric detection contract the report builder
// orchestrates.
type DetectionRunner interface {
	Detect(ctx context.Context, metric string, periodDays int, method models.Method, threshold float64) (models.DetectionResult, error)
}

// reportMethod and reportThreshold fix the detection parameters for the
// aggregate report view; other methods stay reachable through the
// single-metric contract.
const reportThreshold = 2.0

var reportMethod = models.MethodZScore

// ReportBuilder runs detection across a set of metrics and condenses the
// output into one report.
type ReportBuilder struct {
	detector DetectionRunner
	alerts   *AlertGenerator
	logger   *slog.Logger
}

// NewReportBuilder constructs a builder.
func NewReportBuilder(detector DetectionRunner, alerts *AlertGenerator, logger *slog.Logger) *ReportBuilder {
	if alerts == nil {
		alerts = NewAlertGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportBuilder{detector: detector, alerts: alerts, logger: logger}
}

// Build detects anomalies for every metric and aggregates counts, alerts and
// narrative insights. A single metric's failure is logged and the metric
// excluded; the report completes for the rest.
func (b *ReportBuilder) Build(ctx context.Context, metricNames []string, periodDays int) (models.Report, error) {
	if b.detector == nil {
		return models.Report{}, fmt.Errorf("detector not configured")
	}

	report := models.Report{
		GeneratedAt:       time.Now().UTC(),
		PeriodDays:        periodDays,
		Metrics:           append([]string(nil), metricNames...),
		AnomaliesByMetric: make(map[string]models.DetectionResult, len(metricNames)),
	}

	results := make([]models.DetectionResult, 0, len(metricNames))
	for _, metric := range metricNames {
		result, err := b.detector.Detect(ctx, metric, periodDays, reportMethod, reportThreshold)
		if err != nil {
			b.logger.Warn("metric excluded from report",
				slog.String("metric", metric), slog.Any("error", err))
			continue
		}
		report.AnomaliesByMetric[metric] = result
		results = append(results, result)

		report.Summary.TotalAnomalies += result.TotalAnomalies
		for _, anomaly := range result.Anomalies {
			switch anomaly.Severity.Level {
			case models.SeverityCritical:
				report.Summary.CriticalCount++
			case models.SeverityHigh:
				report.Summary.HighCount++
			case models.SeverityMedium:
				report.Summary.MediumCount++
			default:
				report.Summary.LowCount++
			}
		}
	}

	report.Alerts = b.alerts.Generate(results, models.SeverityMedium)
	report.Insights = buildInsights(results, report.Summary, periodDays)
	report.Recommendations = buildRecommendations(results, report.Summary)
	return report, nil
}

func buildInsights(results []models.DetectionResult, summary models.ReportSummary, periodDays int) []string {
	insights := make([]string, 0, 4)

	if summary.TotalAnomalies == 0 {
		return append(insights, "All monitored metrics are within their normal ranges.")
	}

	topMetric := ""
	topCount := 0
	positives := 0
	negatives := 0
	for _, result := range results {
		if result.TotalAnomalies > topCount {
			topCount = result.TotalAnomalies
			topMetric = result.Metric
		}
		for _, anomaly := range result.Anomalies {
			if anomaly.Score > 0 {
				positives++
			} else {
				negatives++
			}
		}
	}

	if topMetric != "" {
		insights = append(insights, fmt.Sprintf("%s shows the most anomalies (%d) over the last %d days.",
			titleCase(topMetric), topCount, periodDays))
	}
	if summary.CriticalCount > 0 {
		insights = append(insights, fmt.Sprintf("%d critical anomalies require immediate attention.",
			summary.CriticalCount))
	}
	if positives >= 3 && positives > negatives {
		insights = append(insights, "Several metrics are spiking above their baselines; recent changes may be outperforming expectations.")
	}
	return insights
}

func buildRecommendations(results []models.DetectionResult, summary models.ReportSummary) []string {
	recs := make([]string, 0, 3)

	if summary.TotalAnomalies == 0 {
		return append(recs, "No action needed; keep the current monitoring cadence.")
	}
	if summary.CriticalCount > 0 {
		recs = append(recs, "Investigate critical alerts first; start with the most deviant metric and correlate with recent campaign changes.")
	} else if summary.HighCount > 0 {
		recs = append(recs, "Schedule a review of high-severity anomalies before the next reporting cycle.")
	} else {
		recs = append(recs, "Review medium and low severity anomalies during routine planning.")
	}

	for _, result := range results {
		if result.BaselineIsMock {
			recs = append(recs, "Some baselines are synthetic placeholders; collect more history before acting on those signals.")
			break
		}
	}
	return recs
}
