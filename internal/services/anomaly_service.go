package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/engine"
	"github.com/pulsestack/pulse-anomaly/internal/metrics"
	"github.com/pulsestack/pulse-anomaly/internal/models"
	"github.com/pulsestack/pulse-anomaly/internal/utils"
)

// BaselineStore covers the baseline calculator operations the service exposes.
type BaselineStore interface {
	Baseline(ctx context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error)
	ClearCache(ctx context.Context) error
}

// LatestReader fetches the most recent raw sample of a metric.
type LatestReader interface {
	Latest(ctx context.Context, metric string) (*models.MetricSample, error)
}

// ContextSource builds the neighbourhood view around an anomaly.
type ContextSource interface {
	Context(ctx context.Context, metric string, anomalyTime time.Time, windowDays int) (models.MetricContext, error)
}

// ReportSource builds the aggregate multi-metric report.
type ReportSource interface {
	Build(ctx context.Context, metricNames []string, periodDays int) (models.Report, error)
}

// AnomalyService is the orchestration facade the transport layer talks to. It
// owns instrumentation; the engine components underneath stay metric-free.
type AnomalyService struct {
	logger    *slog.Logger
	detector  engine.DetectionRunner
	baselines BaselineStore
	alerts    *engine.AlertGenerator
	contexts  ContextSource
	reports   ReportSource
	latest    LatestReader
	latencies *utils.LatencyTracker
}

// NewAnomalyService constructs the service facade.
func NewAnomalyService(
	logger *slog.Logger,
	detector engine.DetectionRunner,
	baselines BaselineStore,
	alerts *engine.AlertGenerator,
	contexts ContextSource,
	reports ReportSource,
	latest LatestReader,
) *AnomalyService {
	if logger == nil {
		logger = slog.Default()
	}
	if alerts == nil {
		alerts = engine.NewAlertGenerator()
	}
	return &AnomalyService{
		logger:    logger,
		detector:  detector,
		baselines: baselines,
		alerts:    alerts,
		contexts:  contexts,
		reports:   reports,
		latest:    latest,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Detect runs one detection pass over a metric and records instrumentation.
func (s *AnomalyService) Detect(ctx context.Context, metric string, periodDays int, method models.Method, threshold float64) (models.DetectionResult, error) {
	if s.detector == nil {
		return models.DetectionResult{}, utils.NewAppError("detect", "detector not configured", nil)
	}

	start := time.Now()
	result, err := s.detector.Detect(ctx, metric, periodDays, method, threshold)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveDetection(string(method), duration, metrics.OutcomeError)
		s.logger.Error("detection failed", slog.String("metric", metric), slog.Any("error", err))
		return models.DetectionResult{}, err
	}

	s.latencies.Observe(duration)
	metrics.ObserveDetection(string(method), duration, metrics.OutcomeSuccess)
	for _, anomaly := range result.Anomalies {
		metrics.ObserveAnomaly(string(anomaly.Severity.Level))
	}
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("detection latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return result, nil
}

// Baseline resolves a metric's baseline through the calculator.
func (s *AnomalyService) Baseline(ctx context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error) {
	if s.baselines == nil {
		return models.Baseline{}, utils.NewAppError("baseline", "baseline store not configured", nil)
	}
	return s.baselines.Baseline(ctx, metric, periodDays, aggregation)
}

// Alerts detects anomalies across the supplied metrics and renders the ones at
// or above minLevel. A metric that fails detection is logged and skipped.
func (s *AnomalyService) Alerts(ctx context.Context, metricNames []string, periodDays int, minLevel models.SeverityLevel) ([]models.Alert, error) {
	if s.detector == nil {
		return nil, utils.NewAppError("alerts", "detector not configured", nil)
	}

	results := make([]models.DetectionResult, 0, len(metricNames))
	for _, metric := range metricNames {
		result, err := s.Detect(ctx, metric, periodDays, models.MethodZScore, engine.DefaultThreshold)
		if err != nil {
			s.logger.Warn("metric skipped for alerting", slog.String("metric", metric), slog.Any("error", err))
			continue
		}
		results = append(results, result)
	}

	return s.alerts.Generate(results, minLevel), nil
}

// Report builds the aggregate report across the supplied metrics.
func (s *AnomalyService) Report(ctx context.Context, metricNames []string, periodDays int) (models.Report, error) {
	if s.reports == nil {
		return models.Report{}, utils.NewAppError("report", "report builder not configured", nil)
	}

	start := time.Now()
	report, err := s.reports.Build(ctx, metricNames, periodDays)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveReport(duration, metrics.OutcomeError)
		s.logger.Error("report build failed", slog.Any("error", err))
		return models.Report{}, err
	}
	metrics.ObserveReport(duration, metrics.OutcomeSuccess)
	return report, nil
}

// Context returns the neighbourhood of an anomaly.
func (s *AnomalyService) Context(ctx context.Context, metric string, anomalyTime time.Time, windowDays int) (models.MetricContext, error) {
	if s.contexts == nil {
		return models.MetricContext{}, utils.NewAppError("context", "context retriever not configured", nil)
	}
	return s.contexts.Context(ctx, metric, anomalyTime, windowDays)
}

// LatestValue returns the most recent raw reading of a metric, or zero when
// the store has none or the fetch fails. Display convenience only; detection
// never consumes it.
func (s *AnomalyService) LatestValue(ctx context.Context, metric string) float64 {
	if s.latest == nil {
		return 0
	}
	sample, err := s.latest.Latest(ctx, metric)
	if err != nil {
		s.logger.Warn("latest value fetch failed", slog.String("metric", metric), slog.Any("error", err))
		return 0
	}
	if sample == nil {
		return 0
	}
	return sample.Value
}

// ClearCache invalidates every cached baseline.
func (s *AnomalyService) ClearCache(ctx context.Context) error {
	if s.baselines == nil {
		return utils.NewAppError("clear_cache", "baseline store not configured", nil)
	}
	if err := s.baselines.ClearCache(ctx); err != nil {
		s.logger.Error("cache clear failed", slog.Any("error", err))
		return err
	}
	s.logger.Info("baseline cache cleared")
	return nil
}

// LatencyP95 returns the current p95 detection latency.
func (s *AnomalyService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
