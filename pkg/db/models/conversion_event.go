package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sashimarconi/checkout-backend/pkg/enums"
)

// ConversionEvent is the dispatch ledger: one row per (order_id, status)
// transition. The unique constraint is the concurrency control: whoever
// inserts the row owns the outbound call.
type ConversionEvent struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_conversion_events_order_status"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null"`

	Status   enums.OrderStatus    `gorm:"column:status;not null;uniqueIndex:ux_conversion_events_order_status"`
	Delivery enums.DeliveryStatus `gorm:"column:delivery;not null;default:'pending'"`

	Payload        json.RawMessage `gorm:"column:payload;type:jsonb"`
	ResponseStatus *int            `gorm:"column:response_status"`
	ResponseBody   *string         `gorm:"column:response_body"`
	LastError      *string         `gorm:"column:last_error"`

	SentAt    *time.Time `gorm:"column:sent_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
