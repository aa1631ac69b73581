package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/pkg/db"
	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// SessionTouch is one funnel activity observation for a cart key.
type SessionTouch struct {
	CartKey     string
	OwnerUserID *uuid.UUID
	Slug        string
	Stage       enums.CartStage
	UTM         *types.UTM
	Source      *string
	Now         time.Time
}

// SessionRepository persists the coarse per-cart analytics row.
type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	Touch(ctx context.Context, touch SessionTouch) error
	FindByCartKey(ctx context.Context, cartKey string) (*models.FunnelSession, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs a session repository bound to the provided DB.
func NewSessionRepository(gdb *gorm.DB) SessionRepository {
	return &sessionRepository{db: gdb}
}

// WithTx binds the repository to a transaction.
func (r *sessionRepository) WithTx(tx *gorm.DB) SessionRepository {
	if tx == nil {
		return r
	}
	return &sessionRepository{db: tx}
}

// Touch bumps the session row for the cart key, creating it on first sight.
// Attribution fields keep their first observed value.
func (r *sessionRepository) Touch(ctx context.Context, touch SessionTouch) error {
	now := touch.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	updates := r.buildUpdates(touch, now)

	tx := r.db.WithContext(ctx).
		Model(&models.FunnelSession{}).
		Where("cart_key = ?", touch.CartKey).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	record := &models.FunnelSession{
		ID:          uuid.New(),
		CartKey:     touch.CartKey,
		OwnerUserID: touch.OwnerUserID,
		Slug:        touch.Slug,
		Stage:       touch.Stage,
		UTM:         touch.UTM,
		Source:      touch.Source,
		FirstSeen:   now,
		LastSeen:    now,
		Hits:        1,
	}
	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return nil
	}
	if !db.IsUniqueViolation(err) {
		return err
	}

	// lost the insert race; the winner's row absorbs this touch
	return r.db.WithContext(ctx).
		Model(&models.FunnelSession{}).
		Where("cart_key = ?", touch.CartKey).
		Updates(updates).Error
}

func (r *sessionRepository) buildUpdates(touch SessionTouch, now time.Time) map[string]any {
	updates := map[string]any{
		"hits":      gorm.Expr("hits + 1"),
		"last_seen": now,
	}
	if touch.Slug != "" {
		updates["slug"] = touch.Slug
	}
	if touch.Stage.IsValid() {
		updates["stage"] = touch.Stage.String()
	}
	if touch.OwnerUserID != nil {
		updates["owner_user_id"] = gorm.Expr("COALESCE(owner_user_id, ?)", *touch.OwnerUserID)
	}
	if touch.UTM != nil && !touch.UTM.IsEmpty() {
		if raw, err := json.Marshal(touch.UTM); err == nil {
			updates["utm"] = gorm.Expr("COALESCE(utm, ?)", string(raw))
		}
	}
	if touch.Source != nil && *touch.Source != "" {
		updates["source"] = gorm.Expr("COALESCE(source, ?)", *touch.Source)
	}
	return updates
}

// FindByCartKey loads the session row for a cart key.
func (r *sessionRepository) FindByCartKey(ctx context.Context, cartKey string) (*models.FunnelSession, error) {
	var record models.FunnelSession
	err := r.db.WithContext(ctx).
		Where("cart_key = ?", cartKey).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
