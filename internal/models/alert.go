package models

import "time"

// Alert is an actionable notification derived from one anomaly. Acknowledged
// and Resolved are owned by the downstream observation subsystem; the engine
// always emits them false.
type Alert struct {
	ID               string        `json:"id"`
	Metric           string        `json:"metric"`
	Severity         SeverityLevel `json:"severity"`
	Score            float64       `json:"score"`
	Value            float64       `json:"value"`
	ExpectedRange    string        `json:"expectedRange"`
	DeviationPercent float64       `json:"deviationPercent"`
	Method           Method        `json:"method"`
	Timestamp        time.Time     `json:"timestamp"`
	Message          string        `json:"message"`
	Recommendation   string        `json:"recommendation"`
	Acknowledged     bool          `json:"acknowledged"`
	Resolved         bool          `json:"resolved"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// ReportSummary tallies anomalies by severity across a report.
type ReportSummary struct {
	TotalAnomalies int `json:"totalAnomalies"`
	CriticalCount  int `json:"criticalCount"`
	HighCount      int `json:"highCount"`
	MediumCount    int `json:"mediumCount"`
	LowCount       int `json:"lowCount"`
}

// Report aggregates detection output across a set of metrics.
type Report struct {
	GeneratedAt       time.Time                  `json:"generatedAt"`
	PeriodDays        int                        `json:"period"`
	Metrics           []string                   `json:"metrics"`
	Summary           ReportSummary              `json:"summary"`
	AnomaliesByMetric map[string]DetectionResult `json:"anomaliesByMetric"`
	Alerts            []Alert                    `json:"alerts"`
	Insights          []string                   `json:"insights"`
	Recommendations   []string                   `json:"recommendations"`
}

// DailyValue is one bucketed reading inside a context window.
type DailyValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ContextSummary describes the shape of a metric around an anomaly.
type ContextSummary struct {
	Trend         string  `json:"trend"`
	ChangePercent float64 `json:"changePercent"`
	PointCount    int     `json:"pointCount"`
}

// MetricContext is the neighbourhood of one anomaly: the metric's own window,
// the same window for correlated metrics, and a before/after partition.
type MetricContext struct {
	Metric         string                  `json:"metric"`
	AnomalyTime    time.Time               `json:"anomalyTime"`
	WindowDays     int                     `json:"windowDays"`
	ContextData    []DailyValue            `json:"contextData"`
	BeforeAnomaly  []DailyValue            `json:"beforeAnomaly"`
	AfterAnomaly   []DailyValue            `json:"afterAnomaly"`
	RelatedMetrics map[string][]DailyValue `json:"relatedMetrics"`
	Summary        ContextSummary          `json:"summary"`
}
