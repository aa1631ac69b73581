package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an owner resolver service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("resolver repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// ResolveOwner maps (host, slug) to the owning merchant. A verified custom
// domain scopes the slug lookup to its owner, so the same slug under two
// merchants resolves by domain first; slug-only lookup is the fallback.
func (s *service) ResolveOwner(ctx context.Context, host, slug string, activeOnly bool) (uuid.UUID, error) {
	if slug == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}

	domainOwner, err := s.repo.FindVerifiedDomainOwner(ctx, host)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up store domain")
	}

	if domainOwner != nil {
		checkout, err := s.repo.FindCheckoutByOwnerAndSlug(ctx, *domainOwner, slug, activeOnly)
		if err == nil {
			return checkout.OwnerUserID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up checkout by owner")
		}
		// Domain matched but the slug is not published under that owner;
		// fall through to the global slug lookup.
	}

	checkout, err := s.repo.FindCheckoutBySlug(ctx, slug, activeOnly)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout not found")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up checkout by slug")
	}
	return checkout.OwnerUserID, nil
}
