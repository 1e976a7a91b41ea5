package revision

import "fmt"

// DefaultLowConfidenceThreshold flags commands the interpreter was unsure about
const DefaultLowConfidenceThreshold = 0.75

// ConfidencePolicy decides which interpreted commands need explicit confirmation
type ConfidencePolicy struct {
	// Threshold is the minimum confidence for a command to count as reliable
	Threshold float64
}

// NewConfidencePolicy returns a policy with the default threshold
func NewConfidencePolicy() ConfidencePolicy {
	return ConfidencePolicy{Threshold: DefaultLowConfidenceThreshold}
}

// Validate ensures the threshold is a usable probability
func (p ConfidencePolicy) Validate() error {
	if p.Threshold < 0.0 || p.Threshold > 1.0 {
		return fmt.Errorf("confidence threshold must be between 0.0 and 1.0, got %.2f", p.Threshold)
	}
	return nil
}

// IsLow reports whether a confidence score falls below the threshold
func (p ConfidencePolicy) IsLow(confidence float64) bool {
	return confidence < p.Threshold
}
