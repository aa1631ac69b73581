package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversionSettings is the per-merchant configuration for the outbound
// conversion webhook. The waiting_payment and paid transitions carry
// independent enable flags.
type ConversionSettings struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;uniqueIndex:ux_conversion_settings_owner"`

	WebhookURL string `gorm:"column:webhook_url;not null"`
	Token      string `gorm:"column:token"`
	Enabled    bool   `gorm:"column:enabled;not null;default:false"`

	NotifyWaitingPayment bool `gorm:"column:notify_waiting_payment;not null;default:true"`
	NotifyPaid           bool `gorm:"column:notify_paid;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
