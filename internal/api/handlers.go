package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulsestack/pulse-anomaly/internal/models"
	"github.com/pulsestack/pulse-anomaly/internal/utils"
)

// AnomalyBackend is the service surface the HTTP layer exposes.
type AnomalyBackend interface {
	Detect(ctx context.Context, metric string, periodDays int, method models.Method, threshold float64) (models.DetectionResult, error)
	Baseline(ctx context.Context, metric string, periodDays int, aggregation models.Aggregation) (models.Baseline, error)
	Alerts(ctx context.Context, metricNames []string, periodDays int, minLevel models.SeverityLevel) ([]models.Alert, error)
	Report(ctx context.Context, metricNames []string, periodDays int) (models.Report, error)
	Context(ctx context.Context, metric string, anomalyTime time.Time, windowDays int) (models.MetricContext, error)
	LatestValue(ctx context.Context, metric string) float64
	ClearCache(ctx context.Context) error
}

// Handler maps HTTP requests onto the anomaly service.
type Handler struct {
	backend          AnomalyBackend
	defaultMetrics   []string
	defaultThreshold float64
}

// NewHandler creates an HTTP handler. defaultMetrics backs the alerts and
// report endpoints when the request names none; defaultThreshold applies when
// a detect request omits one.
func NewHandler(backend AnomalyBackend, defaultMetrics []string, defaultThreshold float64) *Handler {
	return &Handler{
		backend:          backend,
		defaultMetrics:   defaultMetrics,
		defaultThreshold: defaultThreshold,
	}
}

// SetupRoutes configures the API routes on the supplied router.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/anomalies/detect", h.Detect).Methods("GET")
	router.HandleFunc("/anomalies/baseline", h.Baseline).Methods("GET")
	router.HandleFunc("/anomalies/alerts", h.Alerts).Methods("GET")
	router.HandleFunc("/anomalies/report", h.Report).Methods("GET")
	router.HandleFunc("/anomalies/context", h.Context).Methods("GET")
	router.HandleFunc("/metrics/latest", h.Latest).Methods("GET")
	router.HandleFunc("/admin/cache/clear", h.ClearCache).Methods("POST")
}

// Detect handles GET /anomalies/detect.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	metric := strings.TrimSpace(r.URL.Query().Get("metric"))
	if metric == "" {
		respondError(w, http.StatusBadRequest, "metric is required")
		return
	}
	method, err := models.ParseMethod(r.URL.Query().Get("method"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	periodDays, err := intParam(r, "period", 30)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, err := floatParam(r, "threshold", h.defaultThreshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.backend.Detect(r.Context(), metric, periodDays, method, threshold)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Baseline handles GET /anomalies/baseline.
func (h *Handler) Baseline(w http.ResponseWriter, r *http.Request) {
	metric := strings.TrimSpace(r.URL.Query().Get("metric"))
	if metric == "" {
		respondError(w, http.StatusBadRequest, "metric is required")
		return
	}
	aggregation, err := models.ParseAggregation(r.URL.Query().Get("aggregation"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	periodDays, err := intParam(r, "period", 30)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.backend.Baseline(r.Context(), metric, periodDays, aggregation)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// Alerts handles GET /anomalies/alerts.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	minLevel, err := models.ParseSeverityLevel(r.URL.Query().Get("minSeverity"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	periodDays, err := intParam(r, "period", 30)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metricNames := h.metricsParam(r)

	alerts, err := h.backend.Alerts(r.Context(), metricNames, periodDays, minLevel)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// Report handles GET /anomalies/report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	periodDays, err := intParam(r, "period", 30)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metricNames := h.metricsParam(r)

	report, err := h.backend.Report(r.Context(), metricNames, periodDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Context handles GET /anomalies/context.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	metric := strings.TrimSpace(r.URL.Query().Get("metric"))
	if metric == "" {
		respondError(w, http.StatusBadRequest, "metric is required")
		return
	}
	anomalyTime, err := utils.ParseRFC3339(r.URL.Query().Get("timestamp"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "timestamp must be RFC3339")
		return
	}
	windowDays, err := intParam(r, "window", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	mc, err := h.backend.Context(r.Context(), metric, anomalyTime, windowDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, mc)
}

// Latest handles GET /metrics/latest. The value degrades to zero when the
// store is unreachable, matching the service contract.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	metric := strings.TrimSpace(r.URL.Query().Get("metric"))
	if metric == "" {
		respondError(w, http.StatusBadRequest, "metric is required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"metric": metric,
		"value":  h.backend.LatestValue(r.Context(), metric),
	})
}

// ClearCache handles POST /admin/cache/clear.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.ClearCache(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "baseline cache cleared"})
}

func (h *Handler) metricsParam(r *http.Request) []string {
	raw := strings.TrimSpace(r.URL.Query().Get("metrics"))
	if raw == "" {
		return append([]string(nil), h.defaultMetrics...)
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
