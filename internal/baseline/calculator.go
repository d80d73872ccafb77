// Package baseline turns a metric's recent history into the statistical
// reference that every detector judges new values against.
package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/cache"
	"github.com/pulsestack/pulse-anomaly/internal/metrics"
	"github.com/pulsestack/pulse-anomaly/internal/models"
	"github.com/pulsestack/pulse-anomaly/internal/stats"
)

// ErrNoData reports that the upstream store holds no samples for the
// requested window. Compute returns it; Baseline converts it into a synthetic
// fallback.
var ErrNoData = errors.New("no historical data for metric")

// DefaultTTL bounds how long a computed baseline is reused.
const DefaultTTL = 5 * time.Minute

// DefaultPeriodDays is the lookback applied when a caller passes no period.
const DefaultPeriodDays = 30

// MetricSource is the read-only time-series dependency of the calculator.
type MetricSource interface {
	Query(ctx context.Context, metric string, from, to time.Time) ([]models.MetricSample, error)
	Latest(ctx context.Context, metric string) (*models.MetricSample, error)
}

// Calculator computes and caches baselines. Concurrent misses for the same key
// may compute twice; recomputation is idempotent so the duplicates are benign.
type Calculator struct {
	source MetricSource
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewCalculator wires a calculator. A nil cache provider disables caching.
func NewCalculator(source MetricSource, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *Calculator {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		source: source,
		cache:  provider,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Baseline returns the cached baseline when fresh, otherwise computes one,
// falling back to a synthetic series when the store has no history. The
// synthetic path is never taken when real data exists.
func (c *Calculator) Baseline(ctx context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error) {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	if aggregation == "" {
		aggregation = models.AggregationDaily
	}

	key := cacheKey(metric, periodDays, aggregation)
	if data, err := c.cache.Get(ctx, key); err == nil {
		var cached models.Baseline
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.ObserveBaseline(metrics.BaselineSourceCache)
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cached baseline", slog.String("key", key))
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("baseline cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	result, err := c.Compute(ctx, metric, periodDays, aggregation)
	switch {
	case errors.Is(err, ErrNoData):
		result = c.Synthetic(metric, periodDays, aggregation)
		metrics.ObserveBaseline(metrics.BaselineSourceSynthetic)
	case err != nil:
		return models.Baseline{}, err
	default:
		metrics.ObserveBaseline(metrics.BaselineSourceStore)
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("baseline cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return result, nil
}

// Compute queries the store and buckets samples by the aggregation key,
// summing values per bucket. It returns ErrNoData when the window is empty so
// callers can opt out of the synthetic fallback.
func (c *Calculator) Compute(ctx context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error) {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	if aggregation == "" {
		aggregation = models.AggregationDaily
	}
	if c.source == nil {
		return models.Baseline{}, fmt.Errorf("metric source not configured")
	}

	now := c.now()
	from := now.Add(-time.Duration(periodDays) * 24 * time.Hour)
	samples, err := c.source.Query(ctx, metric, from, now)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("query %s: %w", metric, err)
	}

	layout := bucketLayout(aggregation)
	buckets := make(map[string]float64)
	for _, sample := range samples {
		key := sample.Timestamp.Local().Format(layout)
		buckets[key] += sample.Value
	}
	if len(buckets) == 0 {
		return models.Baseline{}, fmt.Errorf("%s: %w", metric, ErrNoData)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([]float64, 0, len(keys))
	timestamps := make([]time.Time, 0, len(keys))
	for _, key := range keys {
		ts, err := time.ParseInLocation(layout, key, time.Local)
		if err != nil {
			return models.Baseline{}, fmt.Errorf("parse bucket key %q: %w", key, err)
		}
		values = append(values, buckets[key])
		timestamps = append(timestamps, ts)
	}

	return models.Baseline{
		Metric:       metric,
		PeriodDays:   periodDays,
		Aggregation:  aggregation,
		DataPoints:   len(values),
		Statistics:   stats.Describe(values),
		Values:       values,
		Timestamps:   timestamps,
		CalculatedAt: now.UTC(),
		IsMock:       false,
	}, nil
}

// ClearCache drops every cached baseline. Exposed for administrative
// invalidation.
func (c *Calculator) ClearCache(ctx context.Context) error {
	return c.cache.Flush(ctx)
}

func cacheKey(metric string, periodDays int, aggregation models.Aggregation) string {
	return fmt.Sprintf("baseline:%s:%d:%s", metric, periodDays, aggregation)
}

func bucketLayout(aggregation models.Aggregation) string {
	if aggregation == models.AggregationHourly {
		return "2006-01-02 15"
	}
	return "2006-01-02"
}
