package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

// AlertGenerator turns detection results into actionable alerts.
type AlertGenerator struct {
	now func() time.Time
}

// NewAlertGenerator constructs a generator.
func NewAlertGenerator() *AlertGenerator {
	return &AlertGenerator{now: time.Now}
}

// Generate keeps every anomaly at or above minLevel and renders one alert per
// kept anomaly, sorted by severity descending. Acknowledgement state belongs
// to the observation subsystem and is always emitted false.
func (g *AlertGenerator) Generate(results []models.DetectionResult, minLevel models.SeverityLevel) []models.Alert {
	minRank := minLevel.Rank()
	if minRank == 0 {
		minRank = models.SeverityMedium.Rank()
	}

	alerts := make([]models.Alert, 0)
	createdAt := g.now().UTC()

	for _, result := range results {
		for _, anomaly := range result.Anomalies {
			if anomaly.Severity.Level.Rank() < minRank {
				continue
			}
			direction := "low"
			if anomaly.Score > 0 {
				direction = "high"
			}
			alerts = append(alerts, models.Alert{
				ID:       uuid.NewString(),
				Metric:   result.Metric,
				Severity: anomaly.Severity.Level,
				Score:    anomaly.Score,
				Value:    anomaly.Value,
				ExpectedRange: fmt.Sprintf("%.2f - %.2f",
					anomaly.Baseline.Percentile25, anomaly.Baseline.Percentile75),
				DeviationPercent: anomaly.Deviation.PercentDifference,
				Method:           anomaly.Method,
				Timestamp:        anomaly.Timestamp,
				Message:          alertMessage(result.Metric, direction, anomaly),
				Recommendation:   recommendFor(result.Metric, direction),
				Acknowledged:     false,
				Resolved:         false,
				CreatedAt:        createdAt,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return math.Abs(alerts[i].Score) > math.Abs(alerts[j].Score)
	})

	return alerts
}

func alertMessage(metric, direction string, anomaly models.Anomaly) string {
	return fmt.Sprintf("%s is unusually %s: %.2f against a baseline mean of %.2f (score %.2f, %s)",
		titleCase(metric), direction, anomaly.Value, anomaly.Baseline.Mean,
		math.Abs(anomaly.Score), anomaly.Method)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// recommendations maps metric and direction onto a remediation hint. Unknown
// combinations fall through to a generic investigation prompt.
var recommendations = map[string]string{
	"revenue|low":      "Review active campaigns and promotional pricing; a revenue dip often follows a paused or exhausted campaign.",
	"revenue|high":     "Identify what drove the revenue spike and consider scaling the responsible campaigns while the momentum lasts.",
	"spend|high":       "Check for overspending ad sets and runaway bid adjustments; cap budgets on the worst offenders.",
	"spend|low":        "Verify billing and ad delivery; an unexpected spend drop can mean ads stopped serving.",
	"views|low":        "Review posting cadence and content distribution; reduced reach usually precedes a views drop.",
	"views|high":       "A views surge is an opportunity; consider boosting the top-performing content while it trends.",
	"engagement|low":   "Audit recent content against past top performers; falling engagement often signals creative fatigue.",
	"engagement|high":  "Engagement is spiking; reply to comments quickly and consider repurposing the winning format.",
	"conversions|low":  "Walk the conversion funnel end to end; landing page or checkout regressions are the usual cause.",
	"conversions|high": "Conversions are surging; confirm tracking is accurate, then raise budgets on the converting channels.",
}

func recommendFor(metric, direction string) string {
	if rec, ok := recommendations[strings.ToLower(metric)+"|"+direction]; ok {
		return rec
	}
	return fmt.Sprintf("Investigate the recent %s movement in %s and correlate it with campaign or content changes.",
		direction, metric)
}
