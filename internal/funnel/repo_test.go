package funnel

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sashimarconi/checkout-backend/pkg/enums"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  cart_key TEXT NOT NULL UNIQUE,
  owner_user_id TEXT,
  slug TEXT NOT NULL,
  stage TEXT NOT NULL DEFAULT 'contact',
  stage_level INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'open',
  customer TEXT,
  address TEXT,
  items TEXT,
  shipping TEXT,
  summary TEXT,
  total_cents INTEGER NOT NULL DEFAULT 0,
  subtotal_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  utm TEXT,
  source TEXT,
  tracking TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  last_seen DATETIME,
  last_stage_at DATETIME
);`
	require.NoError(t, gdb.Exec(carts).Error)
	return gdb
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestMergeCreatesThenMerges(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	outcome, err := repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "summer-drop",
		Stage:       enums.CartStageContact,
		Status:      enums.CartStatusOpen,
		TotalCents:  intPtr(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	outcome, err = repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "summer-drop",
		Stage:       enums.CartStageAddress,
		Status:      enums.CartStatusOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStageAddress, cart.Stage)
	assert.Equal(t, 2, cart.StageLevel)
	assert.Equal(t, 1000, cart.TotalCents)
}

func TestMergeStageAndMoneyIgnoreStaleSnapshots(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	steps := []Snapshot{
		{CartKey: key, OwnerUserID: &owner, Slug: "s", Stage: enums.CartStageContact, TotalCents: intPtr(1000)},
		{CartKey: key, OwnerUserID: &owner, Slug: "s", Stage: enums.CartStageAddress, TotalCents: intPtr(500)},
		{CartKey: key, OwnerUserID: &owner, Slug: "s", Stage: enums.CartStagePayment, TotalCents: intPtr(1200)},
		// late duplicate of the first snapshot
		{CartKey: key, OwnerUserID: &owner, Slug: "s", Stage: enums.CartStageContact, TotalCents: intPtr(1000)},
	}
	for _, snap := range steps {
		_, err := repo.Merge(ctx, snap)
		require.NoError(t, err)
	}

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStagePayment, cart.Stage)
	assert.Equal(t, 3, cart.StageLevel)
	assert.Equal(t, 1200, cart.TotalCents)
}

func TestMergeMonetaryFieldsAreNonDecreasing(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	sequences := [][3]int{{500, 400, 100}, {900, 300, 150}, {700, 800, 50}}
	for _, seq := range sequences {
		_, err := repo.Merge(ctx, Snapshot{
			CartKey:       key,
			OwnerUserID:   &owner,
			Slug:          "s",
			TotalCents:    intPtr(seq[0]),
			SubtotalCents: intPtr(seq[1]),
			ShippingCents: intPtr(seq[2]),
		})
		require.NoError(t, err)
	}

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 900, cart.TotalCents)
	assert.Equal(t, 800, cart.SubtotalCents)
	assert.Equal(t, 150, cart.ShippingCents)
}

func TestMergeConvertedStatusNeverRegresses(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	_, err := repo.Merge(ctx, Snapshot{CartKey: key, OwnerUserID: &owner, Slug: "s", Status: enums.CartStatusConverted})
	require.NoError(t, err)

	for _, status := range []enums.CartStatus{enums.CartStatusOpen, enums.CartStatusExpired} {
		_, err := repo.Merge(ctx, Snapshot{CartKey: key, OwnerUserID: &owner, Slug: "s", Status: status})
		require.NoError(t, err)
	}

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusConverted, cart.Status)
}

func TestMergeAttributionIsFirstWriteWins(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	_, err := repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "s",
		UTM:         &types.UTM{Source: "google", Campaign: "launch"},
		Source:      strPtr("ads"),
		Tracking:    types.Tracking{"fbclid": "abc"},
	})
	require.NoError(t, err)

	_, err = repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "s",
		UTM:         &types.UTM{Source: "facebook", Campaign: "retarget"},
		Source:      strPtr("organic"),
		Tracking:    types.Tracking{"gclid": "xyz"},
	})
	require.NoError(t, err)

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cart.UTM)
	assert.Equal(t, "google", cart.UTM.Source)
	assert.Equal(t, "launch", cart.UTM.Campaign)
	require.NotNil(t, cart.Source)
	assert.Equal(t, "ads", *cart.Source)
	assert.Equal(t, types.Tracking{"fbclid": "abc"}, cart.Tracking)
}

func TestMergeSnapshotsOverwriteWholesale(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	_, err := repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "s",
		Customer:    &types.Customer{Name: "Ana", Email: "ana@example.com"},
		Items:       []types.CartItem{{ProductID: "p1", Quantity: 1, UnitPriceCents: 1000, TotalCents: 1000}},
	})
	require.NoError(t, err)

	_, err = repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "s",
		Customer:    &types.Customer{Name: "Ana Maria", Email: "ana@example.com", Phone: "+5511999999999"},
		Items: []types.CartItem{
			{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000, TotalCents: 2000},
			{ProductID: "p2", Quantity: 1, UnitPriceCents: 500, TotalCents: 500},
		},
	})
	require.NoError(t, err)

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cart.Customer)
	assert.Equal(t, "Ana Maria", cart.Customer.Name)
	assert.Equal(t, "+5511999999999", cart.Customer.Phone)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestMergeSkipsFieldsAbsentFromSnapshot(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	_, err := repo.Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "s",
		Customer:    &types.Customer{Name: "Ana"},
		TotalCents:  intPtr(900),
	})
	require.NoError(t, err)

	// snapshot without customer or totals leaves them untouched
	_, err = repo.Merge(ctx, Snapshot{CartKey: key, OwnerUserID: &owner, Slug: "s", Stage: enums.CartStageAddress})
	require.NoError(t, err)

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cart.Customer)
	assert.Equal(t, "Ana", cart.Customer.Name)
	assert.Equal(t, 900, cart.TotalCents)
	assert.Equal(t, enums.CartStageAddress, cart.Stage)
}

func TestMergeBackfillsNullOwner(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	key := uuid.NewString()

	_, err := repo.Merge(ctx, Snapshot{CartKey: key, Slug: "s", Stage: enums.CartStageContact})
	require.NoError(t, err)

	owner := uuid.New()
	_, err = repo.Merge(ctx, Snapshot{CartKey: key, OwnerUserID: &owner, Slug: "s"})
	require.NoError(t, err)

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cart.OwnerUserID)
	assert.Equal(t, owner, *cart.OwnerUserID)
}

func TestMergeRejectsForeignOwner(t *testing.T) {
	gdb := setupCartTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()
	ownerA := uuid.New()
	ownerB := uuid.New()
	key := uuid.NewString()

	_, err := repo.Merge(ctx, Snapshot{CartKey: key, OwnerUserID: &ownerA, Slug: "s"})
	require.NoError(t, err)

	_, err = repo.Merge(ctx, Snapshot{CartKey: key, OwnerUserID: &ownerB, Slug: "s"})
	assert.ErrorIs(t, err, ErrOwnerConflict)

	cart, err := repo.FindByCartKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cart.OwnerUserID)
	assert.Equal(t, ownerA, *cart.OwnerUserID)
}

func TestMergeLostSeedRaceMergesIntoWinnerCart(t *testing.T) {
	gdb := setupCartTestDB(t)
	rival, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()
	key := uuid.NewString()

	// Seed the cart through a second connection right before the seed INSERT
	// runs, reproducing a first-touch snapshot that loses the create race
	// after its merge UPDATE matched nothing.
	seeded := false
	err = gdb.Callback().Create().Before("gorm:create").Register("rival_cart_seed", func(d *gorm.DB) {
		if seeded || d.Statement.Table != "carts" {
			return
		}
		seeded = true
		_, seedErr := NewRepository(rival).Merge(ctx, Snapshot{
			CartKey:     key,
			OwnerUserID: &owner,
			Slug:        "s",
			Stage:       enums.CartStageContact,
		})
		require.NoError(t, seedErr)
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, gdb.Callback().Create().Remove("rival_cart_seed"))
	})

	outcome, err := NewRepository(gdb).Merge(ctx, Snapshot{
		CartKey:     key,
		OwnerUserID: &owner,
		Slug:        "s",
		Stage:       enums.CartStageAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)
	assert.True(t, seeded, "rival merge must have fired")

	cart, err := NewRepository(gdb).FindByCartKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStageAddress, cart.Stage)

	var count int64
	require.NoError(t, gdb.Table("carts").Where("cart_key = ?", key).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
