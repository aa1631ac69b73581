package funnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sashimarconi/checkout-backend/internal/analytics"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
	"github.com/sashimarconi/checkout-backend/pkg/metrics"
)

type ownerResolver interface {
	ResolveOwner(ctx context.Context, host, slug string, activeOnly bool) (uuid.UUID, error)
}

type sessionSink interface {
	Touch(ctx context.Context, touch analytics.SessionTouch) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event analytics.Event) error
}

// SnapshotInput is one cart snapshot as submitted by the storefront client.
type SnapshotInput struct {
	Host     string
	Snapshot Snapshot
}

// Service applies cart snapshots and fans out the analytics side effects.
type Service interface {
	UpsertSnapshot(ctx context.Context, input SnapshotInput) error
}

type service struct {
	repo      Repository
	resolver  ownerResolver
	sessions  sessionSink
	publisher eventPublisher
	metrics   *metrics.FunnelMetrics
	logg      *logger.Logger
}

// NewService builds the cart snapshot service.
func NewService(repo Repository, resolver ownerResolver, sessions sessionSink, publisher eventPublisher, funnelMetrics *metrics.FunnelMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("owner resolver required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session sink required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		resolver:  resolver,
		sessions:  sessions,
		publisher: publisher,
		metrics:   funnelMetrics,
		logg:      logg,
	}, nil
}

// UpsertSnapshot validates, resolves ownership and merges one snapshot.
// Analytics writes are best-effort and never fail the cart write.
func (s *service) UpsertSnapshot(ctx context.Context, input SnapshotInput) error {
	snap := input.Snapshot
	if snap.CartKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart_id is required")
	}
	if snap.Slug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}

	ownerID, err := s.resolver.ResolveOwner(ctx, input.Host, snap.Slug, true)
	if err != nil {
		return err
	}
	snap.OwnerUserID = &ownerID

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_key": snap.CartKey,
		"owner_id": ownerID.String(),
		"slug":     snap.Slug,
		"stage":    snap.Stage.String(),
	})

	outcome, err := s.repo.Merge(ctx, snap)
	if err != nil {
		if errors.Is(err, ErrOwnerConflict) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart key belongs to another merchant")
		}
		s.logg.Error(logCtx, "cart snapshot merge failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting cart snapshot")
	}
	s.metrics.IncCartWrite(string(outcome))

	s.recordActivity(logCtx, snap, ownerID)
	return nil
}

// recordActivity writes the coarse session row and publishes the stage event.
// Both are best-effort; failures are logged once and dropped.
func (s *service) recordActivity(ctx context.Context, snap Snapshot, ownerID uuid.UUID) {
	touchErr := s.sessions.Touch(ctx, analytics.SessionTouch{
		CartKey:     snap.CartKey,
		OwnerUserID: &ownerID,
		Slug:        snap.Slug,
		Stage:       snap.Stage,
		UTM:         snap.UTM,
		Source:      snap.Source,
		Now:         snap.Now,
	})

	event := analytics.NewEvent(enums.FunnelEventCartStage)
	event.OwnerUserID = ownerID.String()
	event.CartKey = snap.CartKey
	event.Slug = snap.Slug
	event.Stage = snap.Stage.String()
	event.Status = snap.Status.String()
	if snap.TotalCents != nil {
		event.TotalCents = *snap.TotalCents
	}
	publishErr := s.publisher.Publish(ctx, event)

	if err := multierr.Combine(touchErr, publishErr); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("funnel activity side effects degraded: %v", err))
	}
}
