// Package engine implements the analysis core: per-point anomaly detection,
// deviation analysis, alert generation, context retrieval and aggregate
// reporting over baselines.
package engine

import (
	"math"

	"github.com/pulsestack/pulse-anomaly/internal/models"
)

// ClassifySeverity maps a dimensionless deviation score onto a tier. The sign
// of score carries direction, so classification uses the absolute value.
func ClassifySeverity(score float64) models.Severity {
	abs := math.Abs(score)

	var level models.SeverityLevel
	switch {
	case abs >= 4:
		level = models.SeverityCritical
	case abs >= 3:
		level = models.SeverityHigh
	case abs >= 2:
		level = models.SeverityMedium
	default:
		level = models.SeverityLow
	}

	return models.Severity{
		Level: level,
		Score: abs,
		Color: severityColor(level),
	}
}

func severityColor(level models.SeverityLevel) string {
	switch level {
	case models.SeverityCritical:
		return "#ef4444"
	case models.SeverityHigh:
		return "#f97316"
	case models.SeverityMedium:
		return "#f59e0b"
	default:
		return "#10b981"
	}
}
