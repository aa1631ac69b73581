package analytics

import (
	"time"

	"github.com/google/uuid"

	"github.com/sashimarconi/checkout-backend/pkg/enums"
)

// Event is the envelope published to the funnel events topic and ingested
// into the warehouse by the analytics worker.
type Event struct {
	EventID     string                `json:"event_id"`
	Type        enums.FunnelEventType `json:"type"`
	OwnerUserID string                `json:"owner_user_id,omitempty"`
	CartKey     string                `json:"cart_key,omitempty"`
	OrderID     string                `json:"order_id,omitempty"`
	Slug        string                `json:"slug,omitempty"`
	Stage       string                `json:"stage,omitempty"`
	Status      string                `json:"status,omitempty"`
	TotalCents  int                   `json:"total_cents,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
}

// NewEvent stamps an envelope with an id and a UTC timestamp.
func NewEvent(eventType enums.FunnelEventType) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}
