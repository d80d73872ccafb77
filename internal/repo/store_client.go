// Package repo holds clients for upstream data services. The engine has a
// single inbound dependency: a read-only time-series store queried by metric
// name and time range.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

// StoreClient wraps the metric store's query APIs.
type StoreClient struct {
	baseURL    string
	queryPath  string
	latestPath string
	httpClient *http.Client
}

// NewStoreClient constructs a client targeting the configured store instance.
func NewStoreClient(baseURL, queryPath, latestPath string, timeout time.Duration) *StoreClient {
	return &StoreClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		queryPath:  queryPath,
		latestPath: latestPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Query fetches every sample of metric within [from, to]. An empty result is
// not an error; callers decide whether missing data is fatal.
func (c *StoreClient) Query(ctx context.Context, metric string, from, to time.Time) ([]models.MetricSample, error) {
	if c == nil {
		return nil, fmt.Errorf("store client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("metric store base URL not configured")
	}

	payload := map[string]interface{}{
		"metric": metric,
		"from":   from.Format(time.RFC3339),
		"to":     to.Format(time.RFC3339),
	}

	var response struct {
		Samples []struct {
			Timestamp time.Time `json:"timestamp"`
			Value     float64   `json:"value"`
		} `json:"samples"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.queryPath), payload, &response); err != nil {
		return nil, fmt.Errorf("metric store query failed: %w", err)
	}

	samples := make([]models.MetricSample, 0, len(response.Samples))
	for _, s := range response.Samples {
		samples = append(samples, models.MetricSample{
			Metric:    metric,
			Timestamp: s.Timestamp,
			Value:     s.Value,
		})
	}
	return samples, nil
}

// Latest fetches the most recent sample of metric, or nil when the store has
// never seen it.
func (c *StoreClient) Latest(ctx context.Context, metric string) (*models.MetricSample, error) {
	if c == nil {
		return nil, fmt.Errorf("store client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("metric store base URL not configured")
	}

	payload := map[string]interface{}{"metric": metric}

	var response struct {
		Sample *struct {
			Timestamp time.Time `json:"timestamp"`
			Value     float64   `json:"value"`
		} `json:"sample"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.latestPath), payload, &response); err != nil {
		return nil, fmt.Errorf("metric store latest failed: %w", err)
	}
	if response.Sample == nil {
		return nil, nil
	}
	return &models.MetricSample{
		Metric:    metric,
		Timestamp: response.Sample.Timestamp,
		Value:     response.Sample.Value,
	}, nil
}

func (c *StoreClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *StoreClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metric store returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
