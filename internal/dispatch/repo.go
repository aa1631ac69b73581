package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
)

// Repository persists conversion settings lookups and the dispatch ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSettings(ctx context.Context, ownerID uuid.UUID) (*models.ConversionSettings, error)
	ClaimTransition(ctx context.Context, event *models.ConversionEvent) (bool, error)
	MarkDelivered(ctx context.Context, eventID uuid.UUID, responseStatus int, responseBody string, sentAt time.Time) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, lastError string, sentAt time.Time) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ConversionEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a dispatch repository bound to the provided DB.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

// WithTx binds the repository to a transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindSettings loads the merchant's webhook settings; nil when none configured.
func (r *repository) FindSettings(ctx context.Context, ownerID uuid.UUID) (*models.ConversionSettings, error) {
	var settings models.ConversionSettings
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// ClaimTransition inserts the ledger row for (order_id, status). The unique
// constraint arbitrates concurrent claims: zero rows affected means another
// call already owns this transition.
func (r *repository) ClaimTransition(ctx context.Context, event *models.ConversionEvent) (bool, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "status"}},
			DoNothing: true,
		}).
		Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// MarkDelivered patches the claimed row with the successful response.
func (r *repository) MarkDelivered(ctx context.Context, eventID uuid.UUID, responseStatus int, responseBody string, sentAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ConversionEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"delivery":        enums.DeliveryStatusDelivered.String(),
			"response_status": responseStatus,
			"response_body":   responseBody,
			"sent_at":         sentAt,
		}).Error
}

// MarkFailed patches the claimed row with the failure outcome.
func (r *repository) MarkFailed(ctx context.Context, eventID uuid.UUID, lastError string, sentAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ConversionEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"delivery":   enums.DeliveryStatusFailed.String(),
			"last_error": lastError,
			"sent_at":    sentAt,
		}).Error
}

// ListByOrder returns the ledger rows recorded for an order.
func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ConversionEvent, error) {
	var events []models.ConversionEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
