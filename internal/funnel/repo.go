package funnel

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
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// ErrOwnerConflict is returned when a cart key is already claimed by a
// different merchant and the snapshot cannot be applied.
var ErrOwnerConflict = errors.New("cart key owned by another merchant")

// MergeOutcome reports whether a snapshot created the cart or merged into it.
type MergeOutcome string

const (
	OutcomeCreated MergeOutcome = "created"
	OutcomeMerged  MergeOutcome = "merged"
)

// Snapshot is one partial cart submission. Nil pointers mean the client did
// not send the field; the merge leaves the stored value untouched.
type Snapshot struct {
	CartKey     string
	OwnerUserID *uuid.UUID
	Slug        string

	Stage  enums.CartStage
	Status enums.CartStatus

	Customer *types.Customer
	Address  *types.Address
	Items    []types.CartItem
	Shipping *types.Shipping
	Summary  *types.Summary

	TotalCents    *int
	SubtotalCents *int
	ShippingCents *int

	UTM      *types.UTM
	Source   *string
	Tracking types.Tracking

	Now time.Time
}

// Repository persists cart state under the per-field merge policies.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Merge(ctx context.Context, snap Snapshot) (MergeOutcome, error)
	FindByCartKey(ctx context.Context, cartKey string) (*models.Cart, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Cart, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// Merge applies a snapshot to the cart row for snap.CartKey. The UPDATE is a
// single conditional statement so concurrent submissions converge without
// application-level locking; when no row matches, the snapshot seeds a fresh
// cart. The seed insert carries ON CONFLICT DO NOTHING so a lost race affects
// zero rows instead of aborting a surrounding transaction, then one more merge
// attempt runs; zero rows there means the key is held by another merchant.
func (r *repository) Merge(ctx context.Context, snap Snapshot) (MergeOutcome, error) {
	now := snap.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	updates := buildUpdates(snap, now)

	tx := r.mergeQuery(ctx, snap).Updates(updates)
	if tx.Error != nil {
		return "", tx.Error
	}
	if tx.RowsAffected > 0 {
		return OutcomeMerged, nil
	}

	record := newCart(snap, now)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_key"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return OutcomeCreated, nil
	}

	tx = r.mergeQuery(ctx, snap).Updates(updates)
	if tx.Error != nil {
		return "", tx.Error
	}
	if tx.RowsAffected == 0 {
		return "", ErrOwnerConflict
	}
	return OutcomeMerged, nil
}

func (r *repository) mergeQuery(ctx context.Context, snap Snapshot) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Cart{})
	if snap.OwnerUserID != nil {
		return query.Where(
			"cart_key = ? AND (owner_user_id IS NULL OR owner_user_id = ?)",
			snap.CartKey, *snap.OwnerUserID)
	}
	return query.Where("cart_key = ?", snap.CartKey)
}

// buildUpdates derives the conditional SET clauses from the policy table.
// Every right-hand side reads the pre-update row, so assignment order inside
// the statement does not matter.
func buildUpdates(snap Snapshot, now time.Time) map[string]any {
	updates := map[string]any{
		"updated_at": now,
		"last_seen":  now,
	}
	if snap.Slug != "" {
		updates["slug"] = snap.Slug
	}
	if snap.OwnerUserID != nil {
		updates["owner_user_id"] = gorm.Expr("COALESCE(owner_user_id, ?)", *snap.OwnerUserID)
	}

	for column, policy := range snapshotPolicies {
		value, ok := snap.columnValue(column)
		if !ok {
			continue
		}
		switch policy {
		case PolicyRatchet:
			level := snap.Stage.Level()
			updates[column] = gorm.Expr(
				"CASE WHEN ? > stage_level THEN ? ELSE "+column+" END", level, value)
		case PolicyMax:
			updates[column] = gorm.Expr(
				"CASE WHEN ? > "+column+" THEN ? ELSE "+column+" END", value, value)
		case PolicyTerminal:
			updates[column] = gorm.Expr(
				"CASE WHEN "+column+" = ? OR ? = ? THEN ? ELSE ? END",
				string(enums.CartStatusConverted), value, string(enums.CartStatusConverted),
				string(enums.CartStatusConverted), value)
		case PolicyFirstWrite:
			updates[column] = gorm.Expr("COALESCE("+column+", ?)", value)
		case PolicyOverwrite:
			updates[column] = value
		}
	}

	if snap.Stage.IsValid() {
		updates["last_stage_at"] = gorm.Expr(
			"CASE WHEN ? > stage_level THEN ? ELSE last_stage_at END", snap.Stage.Level(), now)
	}

	return updates
}

// columnValue extracts the submitted value for a policy-governed column,
// reporting false when the snapshot does not carry the field.
func (s Snapshot) columnValue(column string) (any, bool) {
	switch column {
	case "stage":
		if !s.Stage.IsValid() {
			return nil, false
		}
		return s.Stage.String(), true
	case "stage_level":
		if !s.Stage.IsValid() {
			return nil, false
		}
		return s.Stage.Level(), true
	case "status":
		if !s.Status.IsValid() {
			return nil, false
		}
		return string(s.Status), true
	case "total_cents":
		return intValue(s.TotalCents)
	case "subtotal_cents":
		return intValue(s.SubtotalCents)
	case "shipping_cents":
		return intValue(s.ShippingCents)
	case "customer":
		if s.Customer == nil {
			return nil, false
		}
		return jsonValue(s.Customer)
	case "address":
		if s.Address == nil {
			return nil, false
		}
		return jsonValue(s.Address)
	case "items":
		if s.Items == nil {
			return nil, false
		}
		return jsonValue(s.Items)
	case "shipping":
		if s.Shipping == nil {
			return nil, false
		}
		return jsonValue(s.Shipping)
	case "summary":
		if s.Summary == nil {
			return nil, false
		}
		return jsonValue(s.Summary)
	case "utm":
		if s.UTM == nil || s.UTM.IsEmpty() {
			return nil, false
		}
		return jsonValue(s.UTM)
	case "source":
		if s.Source == nil || *s.Source == "" {
			return nil, false
		}
		return *s.Source, true
	case "tracking":
		if s.Tracking.IsEmpty() {
			return nil, false
		}
		return jsonValue(s.Tracking)
	}
	return nil, false
}

func intValue(value *int) (any, bool) {
	if value == nil {
		return nil, false
	}
	return *value, true
}

func jsonValue(value any) (any, bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	return string(raw), true
}

// newCart seeds a fresh row from the snapshot's values.
func newCart(snap Snapshot, now time.Time) *models.Cart {
	stage := snap.Stage
	if !stage.IsValid() {
		stage = enums.CartStageContact
	}

	record := &models.Cart{
		ID:          uuid.New(),
		CartKey:     snap.CartKey,
		OwnerUserID: snap.OwnerUserID,
		Slug:        snap.Slug,
		Stage:       stage,
		StageLevel:  stage.Level(),
		Status:      mergeStatus(enums.CartStatusOpen, snap.Status),
		Customer:    snap.Customer,
		Address:     snap.Address,
		Items:       snap.Items,
		Shipping:    snap.Shipping,
		Summary:     snap.Summary,
		UTM:         snap.UTM,
		Source:      snap.Source,
		Tracking:    snap.Tracking,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeen:    now,
	}
	if snap.TotalCents != nil {
		record.TotalCents = *snap.TotalCents
	}
	if snap.SubtotalCents != nil {
		record.SubtotalCents = *snap.SubtotalCents
	}
	if snap.ShippingCents != nil {
		record.ShippingCents = *snap.ShippingCents
	}
	if snap.Stage.IsValid() {
		stageAt := now
		record.LastStageAt = &stageAt
	}
	return record
}

// FindByCartKey loads the cart stored under a cart key.
func (r *repository) FindByCartKey(ctx context.Context, cartKey string) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Where("cart_key = ?", cartKey).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByOwner returns the merchant's carts, most recently touched first.
func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Cart, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var records []models.Cart
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("last_seen DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
