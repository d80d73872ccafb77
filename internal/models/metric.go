package models

import (
	"fmt"
	"strings"
	"time"
)

// MetricSample is a single reading of a business metric. Samples are produced
// upstream; this engine only reads them.
type MetricSample struct {
	Metric    string    `json:"metric"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Statistics summarises a numeric series. An empty series yields the zero value.
type Statistics struct {
	Mean                   float64 `json:"mean"`
	Median                 float64 `json:"median"`
	StdDev                 float64 `json:"stdDev"`
	Variance               float64 `json:"variance"`
	Min                    float64 `json:"min"`
	Max                    float64 `json:"max"`
	Percentile25           float64 `json:"percentile25"`
	Percentile75           float64 `json:"percentile75"`
	CoefficientOfVariation float64 `json:"coefficientOfVariation"`
	Range                  float64 `json:"range"`
	IQR                    float64 `json:"iqr"`
}

// Aggregation selects the bucket granularity for baseline series.
type Aggregation string

const (
	AggregationDaily  Aggregation = "daily"
	AggregationHourly Aggregation = "hourly"
)

// ParseAggregation maps a request string onto a known granularity. Empty input
// selects the daily default.
func ParseAggregation(value string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(AggregationDaily):
		return AggregationDaily, nil
	case string(AggregationHourly):
		return AggregationHourly, nil
	default:
		return "", fmt.Errorf("unknown aggregation %q", value)
	}
}

// Baseline is the bucketed history of one metric plus its statistics.
// Values and Timestamps are parallel and ordered ascending by time.
type Baseline struct {
	Metric       string      `json:"metric"`
	PeriodDays   int         `json:"period"`
	Aggregation  Aggregation `json:"aggregation"`
	DataPoints   int         `json:"dataPoints"`
	Statistics   Statistics  `json:"statistics"`
	Values       []float64   `json:"values"`
	Timestamps   []time.Time `json:"timestamps"`
	CalculatedAt time.Time   `json:"calculatedAt"`
	IsMock       bool        `json:"isMock"`
}
