package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// Order is the materialized record derived from a cart at payment time.
// (owner_user_id, cart_key) identifies at most one row; resubmissions for the
// same cart key overwrite the snapshots wholesale instead of inserting.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;uniqueIndex:ux_orders_owner_cart_key"`
	CartKey     string    `gorm:"column:cart_key;not null;uniqueIndex:ux_orders_owner_cart_key"`
	Slug        string    `gorm:"column:slug;not null"`

	Status enums.OrderStatus `gorm:"column:status;not null;default:'waiting_payment'"`

	Customer *types.Customer  `gorm:"column:customer;type:jsonb;serializer:json"`
	Address  *types.Address   `gorm:"column:address;type:jsonb;serializer:json"`
	Items    []types.CartItem `gorm:"column:items;type:jsonb;serializer:json"`
	Shipping *types.Shipping  `gorm:"column:shipping;type:jsonb;serializer:json"`
	Summary  *types.Summary   `gorm:"column:summary;type:jsonb;serializer:json"`

	Pix                *types.Pix     `gorm:"column:pix;type:jsonb;serializer:json"`
	TrackingParameters types.Tracking `gorm:"column:tracking_parameters;type:jsonb;serializer:json"`

	PaidAt    *time.Time `gorm:"column:paid_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
