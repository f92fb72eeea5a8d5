package enums

import "fmt"

// VerificationStatus is the payment verification state reported after checkout.
type VerificationStatus string

const (
	VerificationStatusConfirmed VerificationStatus = "confirmed"
	VerificationStatusPending   VerificationStatus = "pending"
	VerificationStatusFailed    VerificationStatus = "failed"
)

var validVerificationStatuses = []VerificationStatus{
	VerificationStatusConfirmed,
	VerificationStatusPending,
	VerificationStatusFailed,
}

// String implements fmt.Stringer.
func (v VerificationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VerificationStatus.
func (v VerificationStatus) IsValid() bool {
	for _, candidate := range validVerificationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationStatus converts raw input into a VerificationStatus.
func ParseVerificationStatus(value string) (VerificationStatus, error) {
	for _, candidate := range validVerificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification status %q", value)
}
