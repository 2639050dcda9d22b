package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestPurchase_ExactBalanceThenAlreadyOwned(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "crown", "hat", 100, true)
	seedClicks(t, store, "u1", 100)
	id := service.Identity{UserID: "u1"}

	res, err := economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "crown"})
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.Purchase.Amount)
	assert.EqualValues(t, 0, res.Balance.Available)
	assert.Nil(t, res.Profile)

	bal, err := economy.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, bal.Available)

	_, err = economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "crown"})
	assert.ErrorIs(t, err, service.ErrAlreadyOwned)

	purchases, err := economy.Purchases(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
}

func TestPurchase_InsufficientBalance(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "wizard-hat", "hat", 75, true)
	seedClicks(t, store, "u1", 50)

	_, err := economy.Purchase(ctx, service.Identity{UserID: "u1"}, service.PurchaseRequest{ItemSlug: "wizard-hat"})
	var ib *service.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.EqualValues(t, 25, ib.Shortfall)
	assert.EqualValues(t, 50, ib.Balance)

	purchases, err := store.Purchases.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestPurchase_MissingOrInactiveItem(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "retired", "hat", 1, false)
	seedClicks(t, store, "u1", 10)
	id := service.Identity{UserID: "u1"}

	_, err := economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "retired"})
	assert.ErrorIs(t, err, service.ErrItemNotFound)
	_, err = economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "nope"})
	assert.ErrorIs(t, err, service.ErrItemNotFound)
	_, err = economy.Purchase(ctx, service.Identity{}, service.PurchaseRequest{ItemSlug: "nope"})
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestPurchase_EquipBundled(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	economy := service.NewEconomyService(store, notifier, nil)
	red := seedItem(t, store, "color-red", "color", 5, true)
	require.NoError(t, store.Items.Update(ctx, red.ID, map[string]any{"metadata": datatypes.JSONMap{"color": "#ef4444"}}))
	seedItem(t, store, "party-hat", "hat", 5, true)
	seedClicks(t, store, "u1", 10)
	id := service.Identity{UserID: "u1", Username: "u-one"}

	res, err := economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "color-red", Equip: true})
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	assert.Equal(t, "#ef4444", *res.Profile.CursorColor)
	assert.Equal(t, "u-one", res.Profile.DisplayName)

	res, err = economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "party-hat", Equip: true})
	require.NoError(t, err)
	assert.Equal(t, "party-hat", *res.Profile.HatSlug)
	assert.EqualValues(t, 0, res.Balance.Available)
	assert.Equal(t, []string{"u1", "u1"}, notifier.users)
}

func TestPurchase_BundledFailureRollsBack(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "crown", "hat", 5, true)
	seedClicks(t, store, "u1", 10)

	_, err := economy.Purchase(ctx, service.Identity{UserID: "u1"}, service.PurchaseRequest{
		ItemSlug:    "crown",
		DisplayName: strPtr("King"),
	})
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)

	owned, err := store.Purchases.Owns(ctx, "u1", "crown")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestPurchase_NameItemWithDisplayName(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "name-change", "name", 10, true)
	seedClicks(t, store, "u1", 10)

	res, err := economy.Purchase(ctx, service.Identity{UserID: "u1"}, service.PurchaseRequest{
		ItemSlug:    "name-change",
		DisplayName: strPtr("  Clicky McClickface "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Clicky McClickface", res.Profile.DisplayName)

	_, err = economy.Purchase(ctx, service.Identity{UserID: "u2"}, service.PurchaseRequest{
		ItemSlug:    "name-change",
		DisplayName: strPtr(""),
	})
	var ve *service.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPurchase_BalanceNeverNegative(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	prices := map[string]int64{"a": 7, "b": 13, "c": 4, "d": 9, "e": 1}
	for slug, price := range prices {
		seedItem(t, store, slug, "effect", price, true)
	}
	seedClicks(t, store, "u1", 20)
	id := service.Identity{UserID: "u1"}

	for _, slug := range []string{"b", "a", "d", "c", "e", "a"} {
		_, _ = economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: slug})
		bal, err := economy.Balance(ctx, "u1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, bal.Available, int64(0))
		assert.Equal(t, bal.TotalClicks-bal.Spent, bal.Available)
	}
}

func TestEquip_RequiresOwnership(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "monocle", "accessory", 3, true)
	seedItem(t, store, "top-hat", "hat", 3, true)
	seedClicks(t, store, "u1", 3)
	id := service.Identity{UserID: "u1", FirstName: "Una"}

	_, err := economy.Equip(ctx, id, model.SlotAccessory, strPtr("monocle"))
	assert.ErrorIs(t, err, service.ErrNotOwned)

	_, err = economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "monocle"})
	require.NoError(t, err)

	p, err := economy.Equip(ctx, id, model.SlotAccessory, strPtr("monocle"))
	require.NoError(t, err)
	assert.Equal(t, "monocle", *p.AccessorySlug)
	assert.Equal(t, "Una", p.DisplayName)

	_, err = economy.Equip(ctx, id, model.SlotHat, strPtr("monocle"))
	var ve *service.ValidationError
	assert.ErrorAs(t, err, &ve)

	// 下架后已拥有的条目仍可装备
	require.NoError(t, store.Items.Update(ctx, "item-monocle", map[string]any{"is_active": false}))
	_, err = economy.Equip(ctx, id, model.SlotAccessory, strPtr("monocle"))
	require.NoError(t, err)

	p, err = economy.Equip(ctx, id, model.SlotAccessory, nil)
	require.NoError(t, err)
	assert.Nil(t, p.AccessorySlug)

	_, err = economy.Equip(ctx, id, model.Slot("shoes"), nil)
	assert.ErrorAs(t, err, &ve)
}

func TestEquip_NameSlot(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	economy := service.NewEconomyService(store, nil, nil)
	seedItem(t, store, "name-change", "name", 1, true)
	seedClicks(t, store, "u1", 1)
	id := service.Identity{UserID: "u1", Username: "original"}

	_, err := economy.Equip(ctx, id, model.SlotName, strPtr("Renamed"))
	assert.ErrorIs(t, err, service.ErrNotOwned)

	_, err = economy.Purchase(ctx, id, service.PurchaseRequest{ItemSlug: "name-change"})
	require.NoError(t, err)
	p, err := economy.Equip(ctx, id, model.SlotName, strPtr("Renamed"))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.DisplayName)

	p, err = economy.Equip(ctx, id, model.SlotName, nil)
	require.NoError(t, err)
	assert.Equal(t, "original", p.DisplayName)

	loadout, err := economy.Loadout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"name-change"}, loadout.Owned)
	assert.EqualValues(t, 0, loadout.Balance.Available)
	assert.Equal(t, "original", loadout.Profile.DisplayName)
}
