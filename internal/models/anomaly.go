package models

import (
	"fmt"
	"strings"
	"time"
)

// Method enumerates the supported detection algorithms.
type Method string

const (
	MethodZScore Method = "zscore"
	MethodIQR    Method = "iqr"
	// MethodMAD is the modified z-score (median absolute deviation) detector.
	// Historically exposed as "isolation"; ParseMethod keeps that alias.
	MethodMAD           Method = "mad"
	MethodMovingAverage Method = "movingaverage"
)

// ParseMethod maps a request string onto a known method. Empty input selects
// the z-score default.
func ParseMethod(value string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(MethodZScore):
		return MethodZScore, nil
	case string(MethodIQR):
		return MethodIQR, nil
	case string(MethodMAD), "isolation":
		return MethodMAD, nil
	case string(MethodMovingAverage):
		return MethodMovingAverage, nil
	default:
		return "", fmt.Errorf("unknown detection method %q", value)
	}
}

// SeverityLevel captures impact tiers.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "low"
	SeverityMedium   SeverityLevel = "medium"
	SeverityHigh     SeverityLevel = "high"
	SeverityCritical SeverityLevel = "critical"
)

// Rank orders severity levels for threshold comparisons (low=1 .. critical=4).
func (s SeverityLevel) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverityLevel maps a request string onto a known level. Empty input
// selects the medium default used by the alerting surface.
func ParseSeverityLevel(value string) (SeverityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return SeverityMedium, nil
	case string(SeverityLow):
		return SeverityLow, nil
	case string(SeverityMedium):
		return SeverityMedium, nil
	case string(SeverityHigh):
		return SeverityHigh, nil
	case string(SeverityCritical):
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}

// Severity grades an anomaly score for human consumption.
type Severity struct {
	Level SeverityLevel `json:"level"`
	Score float64       `json:"score"`
	Color string        `json:"color"`
}

// Deviation describes how far a single value sits from a baseline.
// All numeric fields are rounded to two decimals for presentation stability.
type Deviation struct {
	ZScore             float64 `json:"zScore"`
	PercentDifference  float64 `json:"percentDifference"`
	IsOutlier          bool    `json:"isOutlier"`
	DistanceFromMean   float64 `json:"distanceFromMean"`
	DistanceFromMedian float64 `json:"distanceFromMedian"`
	LowerBound         float64 `json:"lowerBound"`
	UpperBound         float64 `json:"upperBound"`
}

// Anomaly is one flagged point of a baseline series.
type Anomaly struct {
	Timestamp time.Time  `json:"timestamp"`
	Value     float64    `json:"value"`
	Score     float64    `json:"score"`
	Method    Method     `json:"method"`
	Severity  Severity   `json:"severity"`
	Baseline  Statistics `json:"baseline"`
	Deviation Deviation  `json:"deviation"`
}

// DetectionResult is the outcome of running one detector over one metric.
// Anomalies holds at most MaxReportedAnomalies entries sorted by severity score
// descending; TotalAnomalies reflects the untruncated count.
type DetectionResult struct {
	Metric         string      `json:"metric"`
	Method         Method      `json:"method"`
	Threshold      float64     `json:"threshold"`
	PeriodDays     int         `json:"period"`
	Aggregation    Aggregation `json:"aggregation"`
	Anomalies      []Anomaly   `json:"anomalies"`
	TotalAnomalies int         `json:"totalAnomalies"`
	Statistics     Statistics  `json:"statistics"`
	DataPoints     int         `json:"dataPoints"`
	BaselineIsMock bool        `json:"baselineIsMock"`
	GeneratedAt    time.Time   `json:"generatedAt"`
}

// MaxReportedAnomalies bounds the anomalies carried per result. Presentation
// limit only; TotalAnomalies still counts every flagged point.
const MaxReportedAnomalies = 20
