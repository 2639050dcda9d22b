package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/internal/testutil"
)

func TestClickRepository_ExistsSinceAndScan(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Clicks.Create(ctx, &model.Click{UserID: "a", CreatedAt: 1000}))
	require.NoError(t, store.Clicks.Create(ctx, &model.Click{UserID: "b", CreatedAt: 2000}))
	require.NoError(t, store.Clicks.Create(ctx, &model.Click{UserID: "a", CreatedAt: 3000}))

	ok, err := store.Clicks.ExistsSince(ctx, "a", 3000)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Clicks.ExistsSince(ctx, "b", 2001)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := store.Clicks.ScanUserIDs(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	ids, err = store.Clicks.ScanUserIDs(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	own, err := store.Clicks.ScanIDsByUser(ctx, "a", 0, 10)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	cnt, err := store.Clicks.CountByUser(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, cnt)
}

func TestProfileRepository_CreateIfAbsent(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	created, err := store.Profiles.CreateIfAbsent(ctx, &model.DisplayName{UserID: "u1", DisplayName: "first"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Profiles.CreateIfAbsent(ctx, &model.DisplayName{UserID: "u1", DisplayName: "second"})
	require.NoError(t, err)
	assert.False(t, created)

	p, err := store.Profiles.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "first", p.DisplayName)

	require.NoError(t, store.Profiles.UpdateFields(ctx, "u1", map[string]any{"hat_slug": "crown"}))
	p, err = store.Profiles.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p.HatSlug)
	assert.Equal(t, "crown", *p.HatSlug)

	_, err = store.Profiles.GetByUserID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.Profiles.UpdateFields(ctx, "missing", map[string]any{"hat_slug": nil}), repository.ErrNotFound)

	list, err := store.Profiles.ListByUserIDs(ctx, []string{"u1", "missing"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestItemRepository_ActiveListing(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	one, two := 1, 2
	require.NoError(t, store.Items.Create(ctx, &model.AvatarItem{Slug: "b", Label: "B", Type: "hat", Price: 5, IsActive: true, SortOrder: &two}))
	require.NoError(t, store.Items.Create(ctx, &model.AvatarItem{Slug: "a", Label: "A", Type: "hat", Price: 5, IsActive: true, SortOrder: &one}))
	require.NoError(t, store.Items.Create(ctx, &model.AvatarItem{Slug: "c", Label: "C", Type: "hat", Price: 5, IsActive: false}))

	active, err := store.Items.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].Slug)

	all, err := store.Items.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	item, err := store.Items.GetBySlug(ctx, "c")
	require.NoError(t, err)
	assert.False(t, item.IsActive)
	assert.ErrorIs(t, store.Items.Update(ctx, "nope", map[string]any{"label": "x"}), repository.ErrNotFound)
}

func TestPurchaseRepository_SumAndOwns(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	sum, err := store.Purchases.SumByUser(ctx, "u")
	require.NoError(t, err)
	assert.Zero(t, sum)

	require.NoError(t, store.Purchases.Create(ctx, &model.AvatarPurchase{UserID: "u", ItemSlug: "crown", Amount: 100}))
	require.NoError(t, store.Purchases.Create(ctx, &model.AvatarPurchase{UserID: "u", ItemSlug: "red", Amount: 25}))

	sum, err = store.Purchases.SumByUser(ctx, "u")
	require.NoError(t, err)
	assert.EqualValues(t, 125, sum)

	owns, err := store.Purchases.Owns(ctx, "u", "crown")
	require.NoError(t, err)
	assert.True(t, owns)
	owns, err = store.Purchases.Owns(ctx, "other", "crown")
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Profiles.CreateIfAbsent(ctx, &model.DisplayName{UserID: "u", DisplayName: "u"}); err != nil {
			return err
		}
		if err := tx.Clicks.Create(ctx, &model.Click{UserID: "u", CreatedAt: 1}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Profiles.GetByUserID(ctx, "u")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	cnt, err := store.Clicks.CountByUser(ctx, "u")
	require.NoError(t, err)
	assert.Zero(t, cnt)
}
