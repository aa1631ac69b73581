package orders

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
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

func setupOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  cart_key TEXT NOT NULL,
  slug TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'waiting_payment',
  customer TEXT,
  address TEXT,
  items TEXT,
  shipping TEXT,
  summary TEXT,
  pix TEXT,
  tracking_parameters TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (owner_user_id, cart_key)
);`
	require.NoError(t, gdb.Exec(schema).Error)
	return gdb
}

func sampleOrder(owner uuid.UUID, cartKey string) *models.Order {
	return &models.Order{
		OwnerUserID: owner,
		CartKey:     cartKey,
		Slug:        "oferta",
		Status:      enums.OrderStatusWaitingPayment,
		Customer:    &types.Customer{Name: "Ana", Email: "ana@example.com"},
		Address:     &types.Address{City: "Sao Paulo", State: "SP"},
		Items: []types.CartItem{
			{ProductID: "sku-1", Quantity: 1, UnitPriceCents: 5000, TotalCents: 5000},
		},
		Summary: &types.Summary{SubtotalCents: 5000, TotalCents: 5000},
	}
}

func TestMaterializeDuplicateSubmissionYieldsOneRow(t *testing.T) {
	gdb := setupOrderTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()

	first := sampleOrder(owner, "ck_dup")
	outcome, err := repo.Materialize(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	require.NotEqual(t, uuid.Nil, first.ID)

	second := sampleOrder(owner, "ck_dup")
	outcome, err = repo.Materialize(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, first.ID, second.ID, "resubmission must land on the same row")

	var count int64
	require.NoError(t, gdb.Model(&models.Order{}).
		Where("owner_user_id = ? AND cart_key = ?", owner, "ck_dup").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMaterializeRewritesSnapshotsWholesale(t *testing.T) {
	gdb := setupOrderTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()

	first := sampleOrder(owner, "ck_rewrite")
	_, err := repo.Materialize(ctx, first)
	require.NoError(t, err)

	second := sampleOrder(owner, "ck_rewrite")
	second.Customer = &types.Customer{Name: "Bruna", Email: "bruna@example.com"}
	second.Address = nil
	second.Status = enums.OrderStatusPaid
	_, err = repo.Materialize(ctx, second)
	require.NoError(t, err)

	stored, err := repo.FindByOwnerAndCartKey(ctx, owner, "ck_rewrite")
	require.NoError(t, err)
	require.NotNil(t, stored.Customer)
	assert.Equal(t, "Bruna", stored.Customer.Name)
	assert.Nil(t, stored.Address, "absent snapshot fields are cleared, not merged")
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
}

func TestMaterializeScopesByOwner(t *testing.T) {
	gdb := setupOrderTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	ownerA := uuid.New()
	ownerB := uuid.New()

	a := sampleOrder(ownerA, "ck_shared")
	_, err := repo.Materialize(ctx, a)
	require.NoError(t, err)

	b := sampleOrder(ownerB, "ck_shared")
	outcome, err := repo.Materialize(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.NotEqual(t, a.ID, b.ID, "same cart key under different owners stays separate")
}

func TestUpdateStatusStampsPaidAt(t *testing.T) {
	gdb := setupOrderTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()

	order := sampleOrder(owner, "ck_paid")
	_, err := repo.Materialize(ctx, order)
	require.NoError(t, err)

	paidAt := time.Now().UTC()
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPaid, &paidAt))

	stored, err := repo.FindByID(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
}

func TestListFiltersByStatus(t *testing.T) {
	gdb := setupOrderTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()

	waiting := sampleOrder(owner, "ck_list_waiting")
	_, err := repo.Materialize(ctx, waiting)
	require.NoError(t, err)

	paid := sampleOrder(owner, "ck_list_paid")
	paid.Status = enums.OrderStatusPaid
	_, err = repo.Materialize(ctx, paid)
	require.NoError(t, err)

	status := enums.OrderStatusPaid
	records, err := repo.List(ctx, ListFilter{OwnerUserID: owner, Status: &status, Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ck_list_paid", records[0].CartKey)

	records, err = repo.List(ctx, ListFilter{OwnerUserID: owner, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMaterializeLostInsertRaceConvergesOnWinnerRow(t *testing.T) {
	gdb := setupOrderTestDB(t)
	rival, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()
	cartKey := "ck_race_" + uuid.NewString()

	winner := sampleOrder(owner, cartKey)
	winner.ID = uuid.New()

	// Seed the rival row through a second connection right before the loser's
	// INSERT runs, reproducing a first-time submission that loses the race
	// after its initial UPDATE matched nothing.
	seeded := false
	err = gdb.Callback().Create().Before("gorm:create").Register("rival_order_seed", func(d *gorm.DB) {
		if seeded || d.Statement.Table != "orders" {
			return
		}
		seeded = true
		require.NoError(t, rival.Create(winner).Error)
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, gdb.Callback().Create().Remove("rival_order_seed"))
	})

	loser := sampleOrder(owner, cartKey)
	loser.Customer = &types.Customer{Name: "Bia", Email: "bia@example.com"}

	outcome, err := NewRepository(gdb).Materialize(ctx, loser)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.True(t, seeded, "rival insert must have fired")
	assert.Equal(t, winner.ID, loser.ID, "loser must converge on the winner's row")

	var count int64
	require.NoError(t, gdb.Model(&models.Order{}).
		Where("owner_user_id = ? AND cart_key = ?", owner, cartKey).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
