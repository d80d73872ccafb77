package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

// DefaultContextWindowDays bounds the symmetric window fetched around an
// anomaly when the caller passes none.
const DefaultContextWindowDays = 7

// trendChangeThreshold is the percent change separating a stable trend from
// an increasing or decreasing one.
const trendChangeThreshold = 5.0

// SampleSource is the raw time-series read the context retriever depends on.
type SampleSource interface {
	Query(ctx context.Context, metric string, from, to time.Time) ([]models.MetricSample, error)
}

// relatedMetrics names the metrics fetched alongside each target metric when
// building anomaly context.
var relatedMetrics = map[string][]string{
	"revenue":     {"spend", "conversions", "views"},
	"views":       {"engagement", "revenue"},
	"engagement":  {"views", "conversions"},
	"conversions": {"revenue", "spend"},
	"spend":       {"revenue", "conversions"},
}

// ContextRetriever fetches the neighbourhood of an anomaly: the metric's own
// window plus correlated metrics, partitioned around the anomaly timestamp.
type ContextRetriever struct {
	source SampleSource
	logger *slog.Logger
}

// NewContextRetriever constructs a retriever over the supplied source.
func NewContextRetriever(source SampleSource, logger *slog.Logger) *ContextRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextRetriever{source: source, logger: logger}
}

// Context fetches a symmetric window of windowDays on each side of anomalyTime
// for metric and its related metrics, indexed by calendar date. Related-metric
// fetch failures degrade to omission; only the target metric's fetch is fatal.
func (r *ContextRetriever) Context(ctx context.Context, metric string, anomalyTime time.Time, windowDays int) (models.MetricContext, error) {
	if r.source == nil {
		return models.MetricContext{}, fmt.Errorf("sample source not configured")
	}
	if windowDays <= 0 {
		windowDays = DefaultContextWindowDays
	}

	from := anomalyTime.Add(-time.Duration(windowDays) * 24 * time.Hour)
	to := anomalyTime.Add(time.Duration(windowDays) * 24 * time.Hour)

	samples, err := r.source.Query(ctx, metric, from, to)
	if err != nil {
		return models.MetricContext{}, fmt.Errorf("context for %s: %w", metric, err)
	}
	contextData := bucketByDate(samples)

	related := make(map[string][]models.DailyValue)
	for _, name := range relatedMetrics[metric] {
		relatedSamples, err := r.source.Query(ctx, name, from, to)
		if err != nil {
			r.logger.Warn("related metric fetch failed",
				slog.String("metric", name), slog.Any("error", err))
			continue
		}
		related[name] = bucketByDate(relatedSamples)
	}

	anomalyDate := anomalyTime.Local().Format("2006-01-02")
	before := make([]models.DailyValue, 0, len(contextData))
	after := make([]models.DailyValue, 0, len(contextData))
	for _, dv := range contextData {
		if dv.Date < anomalyDate {
			before = append(before, dv)
		} else {
			after = append(after, dv)
		}
	}

	return models.MetricContext{
		Metric:         metric,
		AnomalyTime:    anomalyTime,
		WindowDays:     windowDays,
		ContextData:    contextData,
		BeforeAnomaly:  before,
		AfterAnomaly:   after,
		RelatedMetrics: related,
		Summary:        summarise(contextData),
	}, nil
}

func bucketByDate(samples []models.MetricSample) []models.DailyValue {
	buckets := make(map[string]float64)
	for _, s := range samples {
		buckets[s.Timestamp.Local().Format("2006-01-02")] += s.Value
	}
	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	values := make([]models.DailyValue, 0, len(dates))
	for _, date := range dates {
		values = append(values, models.DailyValue{Date: date, Value: buckets[date]})
	}
	return values
}

// summarise compares the first and last in-window values to label the trend.
func summarise(data []models.DailyValue) models.ContextSummary {
	summary := models.ContextSummary{Trend: "stable", PointCount: len(data)}
	if len(data) < 2 {
		return summary
	}

	first := data[0].Value
	last := data[len(data)-1].Value
	if first != 0 {
		summary.ChangePercent = (last - first) / first * 100
	}

	switch {
	case summary.ChangePercent > trendChangeThreshold:
		summary.Trend = "increasing"
	case summary.ChangePercent < -trendChangeThreshold:
		summary.Trend = "decreasing"
	}
	return summary
}
