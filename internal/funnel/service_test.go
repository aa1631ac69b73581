package funnel

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/internal/analytics"
	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
	"github.com/sashimarconi/checkout-backend/pkg/metrics"
)

type stubCartRepo struct {
	outcome MergeOutcome
	err     error
	merged  []Snapshot
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) Merge(_ context.Context, snap Snapshot) (MergeOutcome, error) {
	s.merged = append(s.merged, snap)
	return s.outcome, s.err
}

func (s *stubCartRepo) FindByCartKey(context.Context, string) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) ListByOwner(context.Context, uuid.UUID, int, int) ([]models.Cart, error) {
	return nil, nil
}

type stubResolver struct {
	owner uuid.UUID
	err   error
	calls int
}

func (s *stubResolver) ResolveOwner(_ context.Context, _, _ string, _ bool) (uuid.UUID, error) {
	s.calls++
	return s.owner, s.err
}

type stubSink struct {
	touches []analytics.SessionTouch
	err     error
}

func (s *stubSink) Touch(_ context.Context, touch analytics.SessionTouch) error {
	s.touches = append(s.touches, touch)
	return s.err
}

type stubPublisher struct {
	events []analytics.Event
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, event analytics.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func newTestService(t *testing.T, repo *stubCartRepo, resolver *stubResolver, sink *stubSink, publisher *stubPublisher) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, resolver, sink, publisher, metrics.NewFunnelMetrics(nil), logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestUpsertSnapshotRequiresCartKey(t *testing.T) {
	svc := newTestService(t, &stubCartRepo{}, &stubResolver{}, &stubSink{}, &stubPublisher{})

	err := svc.UpsertSnapshot(context.Background(), SnapshotInput{
		Snapshot: Snapshot{Slug: "s"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertSnapshotRequiresSlug(t *testing.T) {
	svc := newTestService(t, &stubCartRepo{}, &stubResolver{}, &stubSink{}, &stubPublisher{})

	err := svc.UpsertSnapshot(context.Background(), SnapshotInput{
		Snapshot: Snapshot{CartKey: "cart-1"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertSnapshotPropagatesUnresolvedOwner(t *testing.T) {
	resolver := &stubResolver{err: pkgerrors.New(pkgerrors.CodeNotFound, "checkout not found")}
	repo := &stubCartRepo{}
	svc := newTestService(t, repo, resolver, &stubSink{}, &stubPublisher{})

	err := svc.UpsertSnapshot(context.Background(), SnapshotInput{
		Snapshot: Snapshot{CartKey: "cart-1", Slug: "missing"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(repo.merged) != 0 {
		t.Fatalf("merge must not run without an owner")
	}
}

func TestUpsertSnapshotStampsResolvedOwner(t *testing.T) {
	owner := uuid.New()
	repo := &stubCartRepo{outcome: OutcomeMerged}
	resolver := &stubResolver{owner: owner}
	sink := &stubSink{}
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, resolver, sink, publisher)

	err := svc.UpsertSnapshot(context.Background(), SnapshotInput{
		Host:     "shop.example.com",
		Snapshot: Snapshot{CartKey: "cart-1", Slug: "drop"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.merged) != 1 {
		t.Fatalf("expected one merge, got %d", len(repo.merged))
	}
	if repo.merged[0].OwnerUserID == nil || *repo.merged[0].OwnerUserID != owner {
		t.Fatalf("owner not stamped on snapshot")
	}
	if len(sink.touches) != 1 || len(publisher.events) != 1 {
		t.Fatalf("expected session touch and published event")
	}
	if publisher.events[0].CartKey != "cart-1" {
		t.Fatalf("event cart key mismatch")
	}
}

func TestUpsertSnapshotMapsOwnerConflict(t *testing.T) {
	repo := &stubCartRepo{err: ErrOwnerConflict}
	svc := newTestService(t, repo, &stubResolver{owner: uuid.New()}, &stubSink{}, &stubPublisher{})

	err := svc.UpsertSnapshot(context.Background(), SnapshotInput{
		Snapshot: Snapshot{CartKey: "cart-1", Slug: "drop"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpsertSnapshotSideEffectFailuresDoNotSurface(t *testing.T) {
	repo := &stubCartRepo{outcome: OutcomeCreated}
	sink := &stubSink{err: errors.New("sessions down")}
	publisher := &stubPublisher{err: errors.New("topic down")}
	svc := newTestService(t, repo, &stubResolver{owner: uuid.New()}, sink, publisher)

	err := svc.UpsertSnapshot(context.Background(), SnapshotInput{
		Snapshot: Snapshot{CartKey: "cart-1", Slug: "drop"},
	})
	if err != nil {
		t.Fatalf("analytics failures must not fail the write: %v", err)
	}
}
