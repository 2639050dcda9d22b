package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/internal/testutil"
)

func TestCatalog_CreateAndValidate(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	catalog := service.NewCatalogService(store)

	item, err := catalog.CreateItem(ctx, service.ItemInput{
		Slug:     "halo",
		Label:    "Halo",
		Type:     "hat",
		Price:    500,
		Metadata: map[string]any{"glow": true},
	})
	require.NoError(t, err)
	assert.True(t, item.IsActive)
	assert.NotEmpty(t, item.ID)

	_, err = catalog.CreateItem(ctx, service.ItemInput{Slug: "halo", Label: "Again", Type: "hat"})
	assert.ErrorIs(t, err, service.ErrSlugTaken)

	var ve *service.ValidationError
	_, err = catalog.CreateItem(ctx, service.ItemInput{Slug: "Bad Slug", Label: "x", Type: "hat"})
	assert.ErrorAs(t, err, &ve)
	_, err = catalog.CreateItem(ctx, service.ItemInput{Slug: "shoes", Label: "Shoes", Type: "feet"})
	assert.ErrorAs(t, err, &ve)
	_, err = catalog.CreateItem(ctx, service.ItemInput{Slug: "cheap", Label: "Cheap", Type: "hat", Price: -1})
	assert.ErrorAs(t, err, &ve)
}

func TestCatalog_UpdateAndDeactivate(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	catalog := service.NewCatalogService(store)

	item, err := catalog.CreateItem(ctx, service.ItemInput{Slug: "sparkles", Label: "Sparkles", Type: "effect", Price: 200})
	require.NoError(t, err)

	price := int64(150)
	label := "Fancy Sparkles"
	updated, err := catalog.UpdateItem(ctx, item.ID, service.ItemPatch{Price: &price, Label: &label, Slug: strPtr("sparkles")})
	require.NoError(t, err)
	assert.EqualValues(t, 150, updated.Price)
	assert.Equal(t, "Fancy Sparkles", updated.Label)

	_, err = catalog.UpdateItem(ctx, item.ID, service.ItemPatch{Slug: strPtr("glitter")})
	assert.ErrorIs(t, err, service.ErrSlugImmutable)
	_, err = catalog.UpdateItem(ctx, "missing", service.ItemPatch{Price: &price})
	assert.ErrorIs(t, err, service.ErrItemNotFound)

	off, err := catalog.DeactivateItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	shop, err := catalog.ListShop(ctx)
	require.NoError(t, err)
	assert.Empty(t, shop)
	all, err := catalog.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCatalog_SeedDefaultsOnce(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	catalog := service.NewCatalogService(store)

	n, err := catalog.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(service.DefaultCatalog()), n)

	n, err = catalog.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	shop, err := catalog.ListShop(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, shop)
	assert.Equal(t, "name-change", shop[0].Slug)

	gold, err := store.Items.GetBySlug(ctx, "color-gold")
	require.NoError(t, err)
	assert.Equal(t, "#eab308", gold.ColorValue())
}
