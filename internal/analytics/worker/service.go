package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/sashimarconi/checkout-backend/internal/analytics"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

const dedupeTTL = 24 * time.Hour

type tableInserter interface {
	InsertFunnelEvents(ctx context.Context, rows []any) error
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

// Service consumes funnel events from Pub/Sub and loads them into BigQuery.
// Redis SetNX provides best-effort dedupe across redelivered messages.
type Service struct {
	subscription *gcppubsub.Subscriber
	inserter     tableInserter
	dedupe       dedupeStore
	logg         *logger.Logger
}

// NewService creates a new analytics worker service.
func NewService(subscription *gcppubsub.Subscriber, inserter tableInserter, dedupe dedupeStore, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("funnel subscription is required")
	}
	if inserter == nil {
		return nil, errors.New("bigquery inserter is required")
	}
	if dedupe == nil {
		return nil, errors.New("dedupe store is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		inserter:     inserter,
		dedupe:       dedupe,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming funnel events until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	var event analytics.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logCtx := s.logg.WithField(ctx, "message_id", msg.ID)
		s.logg.Warn(logCtx, "dropping undecodable funnel event")
		return processResult{}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID,
		"event_type": event.Type.String(),
		"cart_key":   event.CartKey,
	})

	if event.EventID == "" || !event.Type.IsValid() {
		s.logg.Warn(logCtx, "dropping funnel event with missing id or type")
		return processResult{}
	}

	fresh, err := s.dedupe.SetNX(ctx, dedupeKey(event.EventID), 1, dedupeTTL)
	if err != nil {
		s.logg.Error(logCtx, "dedupe check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		s.logg.Info(logCtx, "funnel event already ingested")
		return processResult{}
	}

	row := buildRow(event)
	if err := s.inserter.InsertFunnelEvents(ctx, []any{row}); err != nil {
		s.logg.Error(logCtx, "failed to insert funnel event row", err)
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "funnel event ingested")
	return processResult{}
}

func dedupeKey(eventID string) string {
	return fmt.Sprintf("funnel:analytics:event:%s", eventID)
}

type funnelEventRow struct {
	EventID     string    `bigquery:"event_id"`
	EventType   string    `bigquery:"event_type"`
	OwnerUserID string    `bigquery:"owner_user_id"`
	CartKey     string    `bigquery:"cart_key"`
	OrderID     string    `bigquery:"order_id"`
	Slug        string    `bigquery:"slug"`
	Stage       string    `bigquery:"stage"`
	Status      string    `bigquery:"status"`
	TotalCents  int       `bigquery:"total_cents"`
	OccurredAt  time.Time `bigquery:"occurred_at"`
	IngestedAt  time.Time `bigquery:"ingested_at"`
}

func buildRow(event analytics.Event) *funnelEventRow {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return &funnelEventRow{
		EventID:     event.EventID,
		EventType:   event.Type.String(),
		OwnerUserID: event.OwnerUserID,
		CartKey:     event.CartKey,
		OrderID:     event.OrderID,
		Slug:        event.Slug,
		Stage:       event.Stage,
		Status:      event.Status,
		TotalCents:  event.TotalCents,
		OccurredAt:  occurred.UTC(),
		IngestedAt:  time.Now().UTC(),
	}
}
