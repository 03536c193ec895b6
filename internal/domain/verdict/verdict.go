package verdict

import (
	"fmt"
	"math"
)

// Verdict is the action a caller takes for a scored document.
type Verdict string

const (
	// None leaves the document alone.
	None Verdict = "none"
	// Suggest proposes the tag for manual confirmation.
	Suggest Verdict = "suggest"
	// Auto applies the tag without asking.
	Auto Verdict = "auto"
)

// Default thresholds.
const (
	DefaultAutoThreshold    = 0.9
	DefaultSuggestThreshold = 0.6
)

// Policy maps probabilities to verdicts.
type Policy struct {
	auto    float64
	suggest float64
}

// NewPolicy validates thresholds: 0 <= suggest <= auto <= 1.
func NewPolicy(auto, suggest float64) (Policy, error) {
	if math.IsNaN(auto) || math.IsNaN(suggest) {
		return Policy{}, fmt.Errorf("thresholds must be numbers")
	}
	if suggest < 0 || auto > 1 || suggest > auto {
		return Policy{}, fmt.Errorf("thresholds must satisfy 0 <= suggest (%g) <= auto (%g) <= 1", suggest, auto)
	}
	return Policy{auto: auto, suggest: suggest}, nil
}

// DefaultPolicy returns the 0.9 / 0.6 policy.
func DefaultPolicy() Policy {
	return Policy{auto: DefaultAutoThreshold, suggest: DefaultSuggestThreshold}
}

// AutoThreshold returns the auto-tag threshold.
func (p Policy) AutoThreshold() float64 { return p.auto }

// SuggestThreshold returns the suggestion threshold.
func (p Policy) SuggestThreshold() float64 { return p.suggest }

// Decide returns the verdict for probability prob.
func (p Policy) Decide(prob float64) Verdict {
	switch {
	case prob >= p.auto:
		return Auto
	case prob >= p.suggest:
		return Suggest
	default:
		return None
	}
}
