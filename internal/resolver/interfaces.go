package resolver

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
)

// Repository defines the lookups owner resolution needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVerifiedDomainOwner(ctx context.Context, host string) (*uuid.UUID, error)
	FindCheckoutBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Checkout, error)
	FindCheckoutByOwnerAndSlug(ctx context.Context, ownerID uuid.UUID, slug string, activeOnly bool) (*models.Checkout, error)
}

// Service resolves the merchant account a funnel request belongs to.
type Service interface {
	ResolveOwner(ctx context.Context, host, slug string, activeOnly bool) (uuid.UUID, error)
}
