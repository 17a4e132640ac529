package strategy

import (
	"fmt"
	"math"
)

// Calibration constants. They are not configurable.
const (
	// IndicatorCount is the confidence denominator: the number of indicators the engine was
	// calibrated against, not the number that triggered.
	IndicatorCount = 4

	// StrongContribution is the magnitude above which an indicator counts as strong.
	StrongContribution = 0.7

	// BearishTargetFactor and BearishStopFactor price a short: 2.5% target, 1.5% stop.
	BearishTargetFactor = 0.975
	BearishStopFactor   = 1.015
	// BullishTargetFactor and BullishStopFactor mirror the short bands for longs.
	BullishTargetFactor = 1.025
	BullishStopFactor   = 0.985

	// Indicator contributions.
	VolumeDropContribution  = -1.0
	SpreadWidenContribution = -0.8
	CurrencyGapContribution = -0.6
	// TimeProximityTrigger is the time factor above which proximity counts as an indicator.
	TimeProximityTrigger = 0.5
)

// Params configures the signal engine. There are no implicit defaults: every field must be set.
type Params struct {
	WindowDays              int
	VolumeDropThreshold     float64
	SpreadIncreaseThreshold float64
	CurrencyGapThreshold    float64
	MinConfidence           float64
}

// ConfigError reports a missing or out-of-range engine parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("strategy config: %s %s", e.Field, e.Reason)
}

// Validate checks every parameter and returns a *ConfigError for the first bad one.
func (p Params) Validate() error {
	if p.WindowDays <= 0 {
		return &ConfigError{Field: "window_days", Reason: fmt.Sprintf("must be > 0, got %d", p.WindowDays)}
	}
	fractions := []struct {
		name string
		v    float64
	}{
		{"volume_drop_threshold", p.VolumeDropThreshold},
		{"spread_increase_threshold", p.SpreadIncreaseThreshold},
		{"currency_gap_threshold", p.CurrencyGapThreshold},
	}
	for _, f := range fractions {
		if math.IsNaN(f.v) || f.v <= 0 || f.v >= 1 {
			return &ConfigError{Field: f.name, Reason: fmt.Sprintf("must be in (0,1), got %v", f.v)}
		}
	}
	if math.IsNaN(p.MinConfidence) || p.MinConfidence < 0 || p.MinConfidence > 1 {
		return &ConfigError{Field: "min_confidence_score", Reason: fmt.Sprintf("must be in [0,1], got %v", p.MinConfidence)}
	}
	return nil
}
