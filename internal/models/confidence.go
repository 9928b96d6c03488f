// Package models defines data structures and domain types.
package models

import "math"

// ConfidenceInterval is a 95% sampling interval around an estimated count.
type ConfidenceInterval struct {
	Estimate   float64 `json:"estimate"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	SampleSize int64   `json:"sampleSize"`
}

// Percent converts the interval into a single 0-100 accuracy figure rounded to
// one decimal. The second return value is false when the percentage is
// undefined (nil interval or zero estimate).
func (c *ConfidenceInterval) Percent() (float64, bool) {
	if c == nil || c.Estimate == 0 {
		return 0, false
	}

	p := 100 * (1 - (c.Upper-c.Lower)/(2*c.Estimate))
	p = math.Max(0, math.Min(100, p))

	return math.Round(p*10) / 10, true
}

// Add returns the component-wise sum of two intervals. A nil operand
// contributes nothing; the result is nil only when both are nil.
func (c *ConfidenceInterval) Add(other *ConfidenceInterval) *ConfidenceInterval {
	switch {
	case c == nil && other == nil:
		return nil
	case c == nil:
		sum := *other
		return &sum
	case other == nil:
		sum := *c
		return &sum
	}

	return &ConfidenceInterval{
		Estimate:   c.Estimate + other.Estimate,
		Lower:      c.Lower + other.Lower,
		Upper:      c.Upper + other.Upper,
		SampleSize: c.SampleSize + other.SampleSize,
	}
}

// SumConfidence adds intervals component-wise. Percentages must always be
// derived from the summed bounds, never averaged.
func SumConfidence(intervals ...*ConfidenceInterval) *ConfidenceInterval {
	var total *ConfidenceInterval
	for _, ci := range intervals {
		total = total.Add(ci)
	}
	return total
}
