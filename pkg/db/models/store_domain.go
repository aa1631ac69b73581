package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreDomain maps a verified custom domain to its owning merchant. Domain
// provisioning/DNS verification happen elsewhere; only verified rows are
// eligible for owner resolution.
type StoreDomain struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Host        string    `gorm:"column:host;not null;uniqueIndex:ux_store_domains_host"`
	Verified    bool      `gorm:"column:verified;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
