package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// Cart is the mutable funnel record, one row per shopper session.
//
// Field groups follow distinct merge policies (see internal/funnel): stage is
// ratcheted, monetary fields are max-merged, attribution is first-write-wins,
// snapshot blobs are overwritten wholesale.
type Cart struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartKey     string     `gorm:"column:cart_key;not null;uniqueIndex:ux_carts_cart_key"`
	OwnerUserID *uuid.UUID `gorm:"column:owner_user_id;type:uuid;index"`
	Slug        string     `gorm:"column:slug;not null"`

	Stage      enums.CartStage  `gorm:"column:stage;not null;default:'contact'"`
	StageLevel int              `gorm:"column:stage_level;not null;default:1"`
	Status     enums.CartStatus `gorm:"column:status;not null;default:'open'"`

	Customer *types.Customer  `gorm:"column:customer;type:jsonb;serializer:json"`
	Address  *types.Address   `gorm:"column:address;type:jsonb;serializer:json"`
	Items    []types.CartItem `gorm:"column:items;type:jsonb;serializer:json"`
	Shipping *types.Shipping  `gorm:"column:shipping;type:jsonb;serializer:json"`
	Summary  *types.Summary   `gorm:"column:summary;type:jsonb;serializer:json"`

	TotalCents    int `gorm:"column:total_cents;not null;default:0"`
	SubtotalCents int `gorm:"column:subtotal_cents;not null;default:0"`
	ShippingCents int `gorm:"column:shipping_cents;not null;default:0"`

	UTM      *types.UTM     `gorm:"column:utm;type:jsonb;serializer:json"`
	Source   *string        `gorm:"column:source"`
	Tracking types.Tracking `gorm:"column:tracking;type:jsonb;serializer:json"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	LastSeen    time.Time  `gorm:"column:last_seen"`
	LastStageAt *time.Time `gorm:"column:last_stage_at"`
}
