package enums

import "fmt"

// Outcome tags how a cart read or merge resolved.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

var validOutcomes = []Outcome{
	OutcomeSuccess,
	OutcomeDegraded,
	OutcomeFailed,
}

// String implements fmt.Stringer.
func (v Outcome) String() string {
	return string(v)
}

// IsValid reports whether the value is a known Outcome.
func (v Outcome) IsValid() bool {
	for _, candidate := range validOutcomes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOutcome converts raw input into a Outcome.
func ParseOutcome(value string) (Outcome, error) {
	for _, candidate := range validOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome %q", value)
}
