package enums

import "fmt"

// AnalyticsEventType is the canonical event_type for cart analytics routing.
type AnalyticsEventType string

const (
	AnalyticsEventItemAdded       AnalyticsEventType = "item_added"
	AnalyticsEventItemRemoved     AnalyticsEventType = "item_removed"
	AnalyticsEventCheckoutStarted AnalyticsEventType = "checkout_started"
	AnalyticsEventCartMerged      AnalyticsEventType = "cart_merged"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventItemAdded,
	AnalyticsEventItemRemoved,
	AnalyticsEventCheckoutStarted,
	AnalyticsEventCartMerged,
}

// String implements fmt.Stringer.
func (v AnalyticsEventType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known AnalyticsEventType.
func (v AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts raw input into a AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
