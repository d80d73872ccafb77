// Package stats computes the descriptive statistics that baselines and
// detectors are built on. All functions are pure and never panic on empty or
// degenerate input.
package stats

import (
	"math"
	"sort"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

// Describe summarises values. An empty slice yields the zero Statistics.
func Describe(values []float64) models.Statistics {
	n := len(values)
	if n == 0 {
		return models.Statistics{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(n)
	stdDev := math.Sqrt(variance)

	p25 := sorted[int(float64(n)*0.25)]
	p75 := sorted[int(float64(n)*0.75)]

	cv := 0.0
	if mean > 0 {
		cv = stdDev / mean * 100
	}

	return models.Statistics{
		Mean:                   mean,
		Median:                 median(sorted),
		StdDev:                 stdDev,
		Variance:               variance,
		Min:                    sorted[0],
		Max:                    sorted[n-1],
		Percentile25:           p25,
		Percentile75:           p75,
		CoefficientOfVariation: cv,
		Range:                  sorted[n-1] - sorted[0],
		IQR:                    p75 - p25,
	}
}

// median expects a sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MeanAbsoluteDeviation returns the mean distance of values from center.
// This is the MAD variant the modified z-score detector was calibrated on.
func MeanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}

// Mean returns the arithmetic average, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation around mean.
func StdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

// Median returns the middle value of an unsorted slice, 0 when empty.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return median(sorted)
}
