package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/pkg/db/models"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
)

func setupDispatchTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	settings := `
CREATE TABLE IF NOT EXISTS conversion_settings (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL UNIQUE,
  webhook_url TEXT NOT NULL,
  token TEXT,
  enabled INTEGER NOT NULL DEFAULT 0,
  notify_waiting_payment INTEGER NOT NULL DEFAULT 1,
  notify_paid INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	events := `
CREATE TABLE IF NOT EXISTS conversion_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  owner_user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  delivery TEXT NOT NULL DEFAULT 'pending',
  payload TEXT,
  response_status INTEGER,
  response_body TEXT,
  last_error TEXT,
  sent_at DATETIME,
  created_at DATETIME,
  UNIQUE (order_id, status)
);`
	require.NoError(t, gdb.Exec(settings).Error)
	require.NoError(t, gdb.Exec(events).Error)
	return gdb
}

func TestClaimTransitionFirstWriterWins(t *testing.T) {
	gdb := setupDispatchTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	orderID := uuid.New()
	owner := uuid.New()

	first := &models.ConversionEvent{
		OrderID:     orderID,
		OwnerUserID: owner,
		Status:      enums.OrderStatusWaitingPayment,
		Delivery:    enums.DeliveryStatusPending,
	}
	claimed, err := repo.ClaimTransition(ctx, first)
	require.NoError(t, err)
	assert.True(t, claimed)

	second := &models.ConversionEvent{
		OrderID:     orderID,
		OwnerUserID: owner,
		Status:      enums.OrderStatusWaitingPayment,
		Delivery:    enums.DeliveryStatusPending,
	}
	claimed, err = repo.ClaimTransition(ctx, second)
	require.NoError(t, err)
	assert.False(t, claimed, "duplicate transition must not claim")

	events, err := repo.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestClaimTransitionAllowsDistinctStatuses(t *testing.T) {
	gdb := setupDispatchTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	orderID := uuid.New()
	owner := uuid.New()

	for _, status := range []enums.OrderStatus{enums.OrderStatusWaitingPayment, enums.OrderStatusPaid} {
		claimed, err := repo.ClaimTransition(ctx, &models.ConversionEvent{
			OrderID:     orderID,
			OwnerUserID: owner,
			Status:      status,
			Delivery:    enums.DeliveryStatusPending,
		})
		require.NoError(t, err)
		assert.True(t, claimed)
	}

	events, err := repo.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMarkDeliveredPatchesLedgerRow(t *testing.T) {
	gdb := setupDispatchTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	event := &models.ConversionEvent{
		OrderID:     uuid.New(),
		OwnerUserID: uuid.New(),
		Status:      enums.OrderStatusPaid,
		Delivery:    enums.DeliveryStatusPending,
	}
	claimed, err := repo.ClaimTransition(ctx, event)
	require.NoError(t, err)
	require.True(t, claimed)

	sentAt := time.Now().UTC()
	require.NoError(t, repo.MarkDelivered(ctx, event.ID, 200, `{"ok":true}`, sentAt))

	events, err := repo.ListByOrder(ctx, event.OrderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.DeliveryStatusDelivered, events[0].Delivery)
	require.NotNil(t, events[0].ResponseStatus)
	assert.Equal(t, 200, *events[0].ResponseStatus)
	require.NotNil(t, events[0].SentAt)
}

func TestMarkFailedPatchesLedgerRow(t *testing.T) {
	gdb := setupDispatchTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	event := &models.ConversionEvent{
		OrderID:     uuid.New(),
		OwnerUserID: uuid.New(),
		Status:      enums.OrderStatusWaitingPayment,
		Delivery:    enums.DeliveryStatusPending,
	}
	claimed, err := repo.ClaimTransition(ctx, event)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, repo.MarkFailed(ctx, event.ID, "connection refused", time.Now().UTC()))

	events, err := repo.ListByOrder(ctx, event.OrderID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.DeliveryStatusFailed, events[0].Delivery)
	require.NotNil(t, events[0].LastError)
	assert.Equal(t, "connection refused", *events[0].LastError)
}

func TestFindSettingsReturnsNilWhenMissing(t *testing.T) {
	gdb := setupDispatchTestDB(t)
	repo := NewRepository(gdb)

	settings, err := repo.FindSettings(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, settings)
}
