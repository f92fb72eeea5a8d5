package enums

import "fmt"

// CartMode says which backend owns the cart.
type CartMode string

const (
	CartModeGuest         CartMode = "guest"
	CartModeAuthenticated CartMode = "authenticated"
)

var validCartModes = []CartMode{
	CartModeGuest,
	CartModeAuthenticated,
}

// String implements fmt.Stringer.
func (v CartMode) String() string {
	return string(v)
}

// IsValid reports whether the value is a known CartMode.
func (v CartMode) IsValid() bool {
	for _, candidate := range validCartModes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseCartMode converts raw input into a CartMode.
func ParseCartMode(value string) (CartMode, error) {
	for _, candidate := range validCartModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart mode %q", value)
}
