package retrieval

import "math"

// ConfidenceCalculator blends retrieval and categorization confidence.
type ConfidenceCalculator struct {
	// categoryShare is the part of the final score that depends on the
	// category confidence.
	categoryShare float64
}

// NewConfidenceCalculator returns the default 50/50 blend.
func NewConfidenceCalculator() *ConfidenceCalculator {
	return &ConfidenceCalculator{categoryShare: 0.5}
}

// NewConfidenceCalculatorWithShare creates a calculator whose category share
// is clamped to [0,1].
func NewConfidenceCalculatorWithShare(share float64) *ConfidenceCalculator {
	return &ConfidenceCalculator{categoryShare: clamp01(share)}
}

// Blend dampens a match score by the category uncertainty:
// match × ((1-share) + share × category).
func (cc *ConfidenceCalculator) Blend(match, category float64) float64 {
	factor := (1 - cc.categoryShare) + cc.categoryShare*clamp01(category)
	return clamp01(clamp01(match) * factor)
}

// Round3 rounds to three decimals, half away from zero.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
