package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

type fakeBackend struct {
	detectMetric    string
	detectMethod    models.Method
	detectPeriod    int
	detectThreshold float64
	detectErr       error

	alertMetrics  []string
	alertMinLevel models.SeverityLevel

	reportMetrics []string

	contextMetric string
	contextTime   time.Time
	contextWindow int

	cacheCleared bool
}

func (f *fakeBackend) Detect(_ context.Context, metric string, periodDays int, method models.Method, threshold float64) (models.DetectionResult, error) {
	f.detectMetric = metric
	f.detectMethod = method
	f.detectPeriod = periodDays
	f.detectThreshold = threshold
	if f.detectErr != nil {
		return models.DetectionResult{}, f.detectErr
	}
	return models.DetectionResult{Metric: metric, Method: method, Threshold: threshold}, nil
}

func (f *fakeBackend) Baseline(_ context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error) {
	return models.Baseline{Metric: metric, PeriodDays: periodDays, Aggregation: aggregation}, nil
}

func (f *fakeBackend) Alerts(_ context.Context, metricNames []string, _ int, minLevel models.SeverityLevel) ([]models.Alert, error) {
	f.alertMetrics = metricNames
	f.alertMinLevel = minLevel
	return []models.Alert{{Metric: "revenue", Severity: models.SeverityHigh}}, nil
}

func (f *fakeBackend) Report(_ context.Context, metricNames []string, periodDays int) (models.Report, error) {
	f.reportMetrics = metricNames
	return models.Report{PeriodDays: periodDays, Metrics: metricNames}, nil
}

func (f *fakeBackend) Context(_ context.Context, metric string, anomalyTime time.Time, windowDays int) (models.MetricContext, error) {
	f.contextMetric = metric
	f.contextTime = anomalyTime
	f.contextWindow = windowDays
	return models.MetricContext{Metric: metric, AnomalyTime: anomalyTime, WindowDays: windowDays}, nil
}

func (f *fakeBackend) LatestValue(context.Context, string) float64 { return 321.5 }

func (f *fakeBackend) ClearCache(context.Context) error {
	f.cacheCleared = true
	return nil
}

func newTestRouter(backend AnomalyBackend) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router.PathPrefix("/api/v1").Subrouter(), NewHandler(backend, []string{"revenue", "views"}, 2.0))
	return router
}

func TestDetectHandlerDefaults(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/detect?metric=revenue", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if backend.detectMetric != "revenue" {
		t.Fatalf("metric not passed through: %q", backend.detectMetric)
	}
	if backend.detectMethod != models.MethodZScore {
		t.Fatalf("expected zscore default, got %s", backend.detectMethod)
	}
	if backend.detectPeriod != 30 {
		t.Fatalf("expected 30-day default period, got %d", backend.detectPeriod)
	}
	if backend.detectThreshold != 2.0 {
		t.Fatalf("expected configured default threshold, got %f", backend.detectThreshold)
	}
}

func TestDetectHandlerParsesParams(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/detect?metric=views&method=isolation&period=14&threshold=3.5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if backend.detectMethod != models.MethodMAD {
		t.Fatalf("isolation alias should map to mad, got %s", backend.detectMethod)
	}
	if backend.detectPeriod != 14 || backend.detectThreshold != 3.5 {
		t.Fatalf("params not passed through: period=%d threshold=%f",
			backend.detectPeriod, backend.detectThreshold)
	}
}

func TestDetectHandlerRejectsBadInput(t *testing.T) {
	router := newTestRouter(&fakeBackend{})

	cases := []string{
		"/api/v1/anomalies/detect",
		"/api/v1/anomalies/detect?metric=views&method=forest",
		"/api/v1/anomalies/detect?metric=views&period=abc",
		"/api/v1/anomalies/detect?metric=views&threshold=abc",
	}
	for _, url := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", url, rec.Code)
		}
	}
}

func TestDetectHandlerBackendFailure(t *testing.T) {
	backend := &fakeBackend{detectErr: fmt.Errorf("store unreachable")}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/detect?metric=revenue", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected an error envelope, got %s", rec.Body.String())
	}
}

func TestBaselineHandler(t *testing.T) {
	router := newTestRouter(&fakeBackend{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/baseline?metric=spend&aggregation=hourly&period=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var b models.Baseline
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode baseline: %v", err)
	}
	if b.Metric != "spend" || b.Aggregation != models.AggregationHourly || b.PeriodDays != 7 {
		t.Fatalf("unexpected baseline %+v", b)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/baseline?metric=spend&aggregation=weekly", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown aggregation, got %d", rec.Code)
	}
}

func TestAlertsHandlerDefaultsMetrics(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/alerts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(backend.alertMetrics) != 2 {
		t.Fatalf("expected the configured default metrics, got %v", backend.alertMetrics)
	}
	if backend.alertMinLevel != models.SeverityMedium {
		t.Fatalf("expected medium default floor, got %s", backend.alertMinLevel)
	}

	var body struct {
		Alerts []models.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if body.Count != 1 || len(body.Alerts) != 1 {
		t.Fatalf("unexpected alerts envelope %+v", body)
	}
}

func TestAlertsHandlerExplicitMetrics(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/alerts?metrics=spend,%20conversions&minSeverity=critical", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(backend.alertMetrics) != 2 || backend.alertMetrics[0] != "spend" || backend.alertMetrics[1] != "conversions" {
		t.Fatalf("metrics list not parsed: %v", backend.alertMetrics)
	}
	if backend.alertMinLevel != models.SeverityCritical {
		t.Fatalf("minSeverity not passed through: %s", backend.alertMinLevel)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/alerts?minSeverity=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown severity, got %d", rec.Code)
	}
}

func TestReportHandler(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/anomalies/report?period=14", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(backend.reportMetrics) != 2 {
		t.Fatalf("expected the default metric set, got %v", backend.reportMetrics)
	}

	var report models.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.PeriodDays != 14 {
		t.Fatalf("period not passed through: %d", report.PeriodDays)
	}
}

func TestContextHandler(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/context?metric=revenue&timestamp=2026-03-10T12:00:00Z&window=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if backend.contextMetric != "revenue" || backend.contextWindow != 3 {
		t.Fatalf("params not passed through: %q %d", backend.contextMetric, backend.contextWindow)
	}
	want := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if !backend.contextTime.Equal(want) {
		t.Fatalf("timestamp not parsed: %v", backend.contextTime)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/anomalies/context?metric=revenue&timestamp=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", rec.Code)
	}
}

func TestLatestHandler(t *testing.T) {
	router := newTestRouter(&fakeBackend{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/latest?metric=spend", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Metric string  `json:"metric"`
		Value  float64 `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if body.Metric != "spend" || body.Value != 321.5 {
		t.Fatalf("unexpected latest envelope %+v", body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/latest", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without metric, got %d", rec.Code)
	}
}

func TestClearCacheHandler(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !backend.cacheCleared {
		t.Fatal("cache clear never reached the backend")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/clear", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on cache clear, got %d", rec.Code)
	}
}
