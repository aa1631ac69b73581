package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a resolver repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindVerifiedDomainOwner returns the owner mapped to a verified custom domain,
// or nil when no verified mapping exists for the host.
func (r *repository) FindVerifiedDomainOwner(ctx context.Context, host string) (*uuid.UUID, error) {
	host = normalizeHost(host)
	if host == "" {
		return nil, nil
	}

	var domain models.StoreDomain
	err := r.db.WithContext(ctx).
		Where("host = ? AND verified = ?", host, true).
		First(&domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.OwnerUserID, nil
}

// FindCheckoutBySlug loads a checkout by slug alone.
func (r *repository) FindCheckoutBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Checkout, error) {
	return r.findCheckout(ctx, nil, slug, activeOnly)
}

// FindCheckoutByOwnerAndSlug loads a checkout restricted to the given owner.
func (r *repository) FindCheckoutByOwnerAndSlug(ctx context.Context, ownerID uuid.UUID, slug string, activeOnly bool) (*models.Checkout, error) {
	return r.findCheckout(ctx, &ownerID, slug, activeOnly)
}

func (r *repository) findCheckout(ctx context.Context, ownerID *uuid.UUID, slug string, activeOnly bool) (*models.Checkout, error) {
	query := r.db.WithContext(ctx).Where("slug = ?", slug)
	if ownerID != nil {
		query = query.Where("owner_user_id = ?", *ownerID)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var checkout models.Checkout
	if err := query.Order("created_at ASC").First(&checkout).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimPrefix(host, "www.")
}
