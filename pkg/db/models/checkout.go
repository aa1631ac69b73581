package models

import (
	"time"

	"github.com/google/uuid"
)

// Checkout is the published offering a funnel slug points at. Managed by the
// out-of-scope catalog service; this backend only reads it to resolve owners.
type Checkout struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Slug        string    `gorm:"column:slug;not null;index"`
	Name        string    `gorm:"column:name"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
