package dispatch

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// Payload is the body posted to the merchant's conversion endpoint. Money is
// rendered as fixed-point decimal strings and all timestamps are UTC.
type Payload struct {
	OrderID            string            `json:"order_id"`
	Status             string            `json:"status"`
	CartKey            string            `json:"cart_key"`
	Slug               string            `json:"slug"`
	Total              string            `json:"total"`
	Subtotal           string            `json:"subtotal"`
	Shipping           string            `json:"shipping"`
	Customer           *types.Customer   `json:"customer,omitempty"`
	Items              []PayloadItem     `json:"items,omitempty"`
	TrackingParameters map[string]string `json:"tracking_parameters,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	SentAt             time.Time         `json:"sent_at"`
}

// PayloadItem is one order line in the conversion payload.
type PayloadItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// BuildPayload derives the conversion payload for one order transition.
func BuildPayload(order *models.Order, status enums.OrderStatus, sentAt time.Time) Payload {
	payload := Payload{
		OrderID:            order.ID.String(),
		Status:             status.String(),
		CartKey:            order.CartKey,
		Slug:               order.Slug,
		TrackingParameters: NormalizeTracking(order.TrackingParameters),
		Customer:           order.Customer,
		CreatedAt:          order.CreatedAt.UTC(),
		SentAt:             sentAt.UTC(),
	}

	if order.PaidAt != nil {
		paidAt := order.PaidAt.UTC()
		payload.PaidAt = &paidAt
	}

	var subtotal, shipping, total int
	if order.Summary != nil {
		subtotal = order.Summary.SubtotalCents
		shipping = order.Summary.ShippingCents
		total = order.Summary.TotalCents
	}
	payload.Subtotal = centsToDecimal(subtotal)
	payload.Shipping = centsToDecimal(shipping)
	payload.Total = centsToDecimal(total)

	for _, item := range order.Items {
		payload.Items = append(payload.Items, PayloadItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: centsToDecimal(item.UnitPriceCents),
			Total:     centsToDecimal(item.TotalCents),
		})
	}

	return payload
}

// NormalizeTracking lowercases keys and drops blank entries so merchants see
// a stable parameter set regardless of how the storefront captured them.
func NormalizeTracking(tracking types.Tracking) map[string]string {
	if len(tracking) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(tracking))
	for key, value := range tracking {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		normalized[key] = value
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func centsToDecimal(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
