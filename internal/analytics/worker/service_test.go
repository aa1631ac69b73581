package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/sashimarconi/checkout-backend/internal/analytics"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

type fakeInserter struct {
	rows []any
	err  error
}

func (f *fakeInserter) InsertFunnelEvents(_ context.Context, rows []any) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

type fakeDedupe struct {
	fresh bool
	err   error
	keys  []string
}

func (f *fakeDedupe) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.fresh, f.err
}

func testService(t *testing.T, inserter tableInserter, dedupe dedupeStore) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return &Service{inserter: inserter, dedupe: dedupe, logg: logg}
}

func buildMessage(t *testing.T, event analytics.Event) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &gcppubsub.Message{Data: data}
}

func TestWorkerIngestsFunnelEvent(t *testing.T) {
	inserter := &fakeInserter{}
	dedupe := &fakeDedupe{fresh: true}
	svc := testService(t, inserter, dedupe)

	event := analytics.NewEvent(enums.FunnelEventCartStage)
	event.CartKey = "cart-123"
	event.Stage = "address"
	event.TotalCents = 4200

	result := svc.process(context.Background(), buildMessage(t, event))
	if result.nack {
		t.Fatalf("expected ack")
	}
	if len(inserter.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(inserter.rows))
	}
	row, ok := inserter.rows[0].(*funnelEventRow)
	if !ok {
		t.Fatalf("expected funnelEventRow, got %T", inserter.rows[0])
	}
	if row.CartKey != "cart-123" || row.TotalCents != 4200 {
		t.Fatalf("row fields mismatch: %+v", row)
	}
	if row.EventType != string(enums.FunnelEventCartStage) {
		t.Fatalf("unexpected event type %s", row.EventType)
	}
}

func TestWorkerSkipsDuplicateEvent(t *testing.T) {
	inserter := &fakeInserter{}
	dedupe := &fakeDedupe{fresh: false}
	svc := testService(t, inserter, dedupe)

	event := analytics.NewEvent(enums.FunnelEventOrderCreated)
	result := svc.process(context.Background(), buildMessage(t, event))
	if result.nack {
		t.Fatalf("duplicates should be acked, not redelivered")
	}
	if len(inserter.rows) != 0 {
		t.Fatalf("expected no rows for duplicate event")
	}
}

func TestWorkerNacksOnInsertFailure(t *testing.T) {
	inserter := &fakeInserter{err: errors.New("bigquery down")}
	dedupe := &fakeDedupe{fresh: true}
	svc := testService(t, inserter, dedupe)

	event := analytics.NewEvent(enums.FunnelEventOrderPaid)
	result := svc.process(context.Background(), buildMessage(t, event))
	if !result.nack {
		t.Fatalf("expected nack when insert fails")
	}
}

func TestWorkerDropsUndecodableMessage(t *testing.T) {
	inserter := &fakeInserter{}
	dedupe := &fakeDedupe{fresh: true}
	svc := testService(t, inserter, dedupe)

	result := svc.process(context.Background(), &gcppubsub.Message{Data: []byte("not json")})
	if result.nack {
		t.Fatalf("poison messages must not be redelivered")
	}
	if len(dedupe.keys) != 0 {
		t.Fatalf("dedupe should not run for undecodable messages")
	}
}

func TestWorkerDropsEventWithoutID(t *testing.T) {
	inserter := &fakeInserter{}
	dedupe := &fakeDedupe{fresh: true}
	svc := testService(t, inserter, dedupe)

	event := analytics.Event{Type: enums.FunnelEventCartStage}
	result := svc.process(context.Background(), buildMessage(t, event))
	if result.nack {
		t.Fatalf("expected ack for invalid envelope")
	}
	if len(inserter.rows) != 0 {
		t.Fatalf("expected no rows for invalid envelope")
	}
}
