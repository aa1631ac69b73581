package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
)

// MaterializeOutcome reports whether materialization inserted or rewrote the row.
type MaterializeOutcome string

const (
	OutcomeCreated MaterializeOutcome = "created"
	OutcomeUpdated MaterializeOutcome = "updated"
)

// ListFilter narrows admin order listings.
type ListFilter struct {
	OwnerUserID uuid.UUID
	Status      *enums.OrderStatus
	Limit       int
	Offset      int
}

// Repository persists materialized orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Materialize(ctx context.Context, order *models.Order) (MaterializeOutcome, error)
	FindByID(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error)
	FindByOwnerAndCartKey(ctx context.Context, ownerID uuid.UUID, cartKey string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, paidAt *time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
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

// Materialize upserts the order row keyed by (owner_user_id, cart_key).
// The UPDATE rewrites every snapshot field wholesale; resubmissions for the
// same cart key converge on one row. The insert carries ON CONFLICT DO
// NOTHING: losing the race affects zero rows instead of raising a constraint
// error, which would abort the surrounding transaction on Postgres, and the
// loser falls through to one more rewrite.
func (r *repository) Materialize(ctx context.Context, order *models.Order) (MaterializeOutcome, error) {
	updates, err := materializeUpdates(order)
	if err != nil {
		return "", err
	}

	outcome, err := r.tryRewrite(ctx, order, updates)
	if err == nil {
		return outcome, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_user_id"}, {Name: "cart_key"}},
			DoNothing: true,
		}).
		Create(order)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return OutcomeCreated, nil
	}

	return r.tryRewrite(ctx, order, updates)
}

// tryRewrite applies the wholesale UPDATE and loads the surviving row's id
// back into order. gorm.ErrRecordNotFound signals that no row matched.
func (r *repository) tryRewrite(ctx context.Context, order *models.Order, updates map[string]any) (MaterializeOutcome, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("owner_user_id = ? AND cart_key = ?", order.OwnerUserID, order.CartKey).
		Updates(updates)
	if tx.Error != nil {
		return "", tx.Error
	}
	if tx.RowsAffected == 0 {
		return "", gorm.ErrRecordNotFound
	}

	existing, err := r.FindByOwnerAndCartKey(ctx, order.OwnerUserID, order.CartKey)
	if err != nil {
		return "", err
	}
	order.ID = existing.ID
	order.OwnerUserID = existing.OwnerUserID
	order.CreatedAt = existing.CreatedAt
	return OutcomeUpdated, nil
}

// materializeUpdates renders the wholesale column set. Snapshot fields are
// written even when absent: this endpoint carries the current truth of the
// order, not a partial patch. JSON columns are marshalled by hand because map
// updates bypass the model serializer.
func materializeUpdates(order *models.Order) (map[string]any, error) {
	updates := map[string]any{
		"slug":       order.Slug,
		"status":     order.Status.String(),
		"updated_at": time.Now().UTC(),
	}

	var err error
	set := func(column string, present bool, value any) {
		if err != nil {
			return
		}
		if !present {
			updates[column] = nil
			return
		}
		var raw []byte
		if raw, err = json.Marshal(value); err == nil {
			updates[column] = string(raw)
		}
	}
	set("customer", order.Customer != nil, order.Customer)
	set("address", order.Address != nil, order.Address)
	set("items", order.Items != nil, order.Items)
	set("shipping", order.Shipping != nil, order.Shipping)
	set("summary", order.Summary != nil, order.Summary)
	set("pix", order.Pix != nil, order.Pix)
	set("tracking_parameters", len(order.TrackingParameters) > 0, order.TrackingParameters)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// FindByID loads one order scoped to its owner.
func (r *repository) FindByID(ctx context.Context, ownerID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_user_id = ?", orderID, ownerID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByOwnerAndCartKey loads the order materialized for a cart key.
func (r *repository) FindByOwnerAndCartKey(ctx context.Context, ownerID uuid.UUID, cartKey string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND cart_key = ?", ownerID, cartKey).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns the owner's orders, newest first.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("owner_user_id = ?", filter.OwnerUserID).
		Order("created_at DESC")
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus patches the payment status, stamping paid_at when provided.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, paidAt *time.Time) error {
	updates := map[string]any{
		"status":     status.String(),
		"updated_at": time.Now().UTC(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
