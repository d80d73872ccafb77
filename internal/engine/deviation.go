package engine

import (
	"github.com/pulsestack/pulse-anomaly/internal/models"
	"github.com/pulsestack/pulse-anomaly/internal/utils"
)

// tukeyFenceMultiplier is the classic 1.5x IQR outlier fence. The detector's
// iqr method scales fences by the caller threshold instead; this constant only
// serves single-value deviation analysis.
const tukeyFenceMultiplier = 1.5

// AnalyzeDeviation describes how a single value relates to baseline
// statistics. Zero-value statistics yield a zero Deviation; every division is
// guarded so degenerate baselines never fault. Outputs are rounded to two
// decimals for presentation stability.
func AnalyzeDeviation(value float64, statistics models.Statistics) models.Deviation {
	if statistics == (models.Statistics{}) {
		return models.Deviation{}
	}

	zScore := 0.0
	if statistics.StdDev > 0 {
		zScore = (value - statistics.Mean) / statistics.StdDev
	}

	percentDiff := 0.0
	if statistics.Mean > 0 {
		percentDiff = (value - statistics.Mean) / statistics.Mean * 100
	}

	lower := statistics.Percentile25 - tukeyFenceMultiplier*statistics.IQR
	upper := statistics.Percentile75 + tukeyFenceMultiplier*statistics.IQR

	return models.Deviation{
		ZScore:             utils.Round2(zScore),
		PercentDifference:  utils.Round2(percentDiff),
		IsOutlier:          value < lower || value > upper,
		DistanceFromMean:   utils.Round2(value - statistics.Mean),
		DistanceFromMedian: utils.Round2(value - statistics.Median),
		LowerBound:         utils.Round2(lower),
		UpperBound:         utils.Round2(upper),
	}
}
