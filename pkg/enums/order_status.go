package enums

import "fmt"

// OrderStatus tracks the payment lifecycle of a materialized order.
type OrderStatus string

const (
	OrderStatusWaitingPayment OrderStatus = "waiting_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusRefused        OrderStatus = "refused"
	OrderStatusRefunded       OrderStatus = "refunded"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// legacyOrderStatusAlias maps historical client values to their canonical form.
var legacyOrderStatusAlias = map[string]OrderStatus{
	"pending": OrderStatusWaitingPayment,
}

var validOrderStatuses = []OrderStatus{
	OrderStatusWaitingPayment,
	OrderStatusPaid,
	OrderStatusRefused,
	OrderStatusRefunded,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus, normalizing legacy aliases.
func ParseOrderStatus(value string) (OrderStatus, error) {
	if canonical, ok := legacyOrderStatusAlias[value]; ok {
		return canonical, nil
	}
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
