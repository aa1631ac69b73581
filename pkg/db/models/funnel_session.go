package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// FunnelSession is the coarse analytics row tied to a cart key. Written
// best-effort on every snapshot; failures never surface to the funnel write.
type FunnelSession struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartKey     string     `gorm:"column:cart_key;not null;uniqueIndex:ux_funnel_sessions_cart_key"`
	OwnerUserID *uuid.UUID `gorm:"column:owner_user_id;type:uuid;index"`
	Slug        string     `gorm:"column:slug"`

	Stage  enums.CartStage `gorm:"column:stage"`
	UTM    *types.UTM      `gorm:"column:utm;type:jsonb;serializer:json"`
	Source *string         `gorm:"column:source"`

	FirstSeen time.Time `gorm:"column:first_seen"`
	LastSeen  time.Time `gorm:"column:last_seen"`
	Hits      int       `gorm:"column:hits;not null;default:0"`
}
