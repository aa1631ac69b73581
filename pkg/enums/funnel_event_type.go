package enums

import "fmt"

// FunnelEventType labels the analytics events published by the funnel.
type FunnelEventType string

const (
	FunnelEventCartStage      FunnelEventType = "funnel.cart_stage"
	FunnelEventOrderCreated   FunnelEventType = "funnel.order_created"
	FunnelEventOrderPaid      FunnelEventType = "funnel.order_paid"
	FunnelEventDispatchResult FunnelEventType = "funnel.dispatch_result"
)

var validFunnelEventTypes = []FunnelEventType{
	FunnelEventCartStage,
	FunnelEventOrderCreated,
	FunnelEventOrderPaid,
	FunnelEventDispatchResult,
}

// String implements fmt.Stringer.
func (f FunnelEventType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FunnelEventType.
func (f FunnelEventType) IsValid() bool {
	for _, candidate := range validFunnelEventTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFunnelEventType converts raw input into a FunnelEventType.
func ParseFunnelEventType(value string) (FunnelEventType, error) {
	for _, candidate := range validFunnelEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid funnel event type %q", value)
}
