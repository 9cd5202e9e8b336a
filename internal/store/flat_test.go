package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/store"
)

func newFlat(t *testing.T) *store.FlatBackend {
	t.Helper()
	return store.NewFlatBackend(store.NewMemoryKV())
}

func TestFlatCartRoundTrip(t *testing.T) {
	b := newFlat(t)
	ctx := context.Background()

	items, err := b.LoadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "absent blob reads as empty")

	want := []models.CartEntry{{ProductID: 1, Name: "Espetinho", Quantity: 2, EffectivePrice: 10}}
	require.NoError(t, b.SaveCart(ctx, want))

	items, err = b.LoadCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, items)

	require.NoError(t, b.ClearCart(ctx))
	items, err = b.LoadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFlatSaveOrderAssignsMonotonicIDs(t *testing.T) {
	b := newFlat(t)
	ctx := context.Background()

	first := models.Order{SequentialID: 1, Timestamp: time.Now()}
	second := models.Order{SequentialID: 2, Timestamp: time.Now()}
	require.NoError(t, b.SaveOrder(ctx, &first))
	require.NoError(t, b.SaveOrder(ctx, &second))

	assert.Equal(t, uint(1), first.ID)
	assert.Equal(t, uint(2), second.ID)

	// An explicit ID is preserved.
	explicit := models.Order{ID: 40, Timestamp: time.Now()}
	require.NoError(t, b.SaveOrder(ctx, &explicit))
	next := models.Order{Timestamp: time.Now()}
	require.NoError(t, b.SaveOrder(ctx, &next))
	assert.Equal(t, uint(41), next.ID)
}

func TestFlatQueryOrdersFilters(t *testing.T) {
	b := newFlat(t)
	ctx := context.Background()
	now := time.Now()

	old := models.Order{Timestamp: now.AddDate(0, 0, -8), Payment: models.Payment{Method: "cash"}}
	recent := models.Order{Timestamp: now.AddDate(0, 0, -1), Payment: models.Payment{Method: "card"}}
	today := models.Order{Timestamp: now, Payment: models.Payment{Method: "cash"}, Delivery: models.Delivery{Type: "pickup"}}
	for _, o := range []*models.Order{&old, &recent, &today} {
		require.NoError(t, b.SaveOrder(ctx, o))
	}

	all, err := b.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp), "newest first")

	week, err := b.QueryOrders(ctx, store.OrderFilter{Period: "week"})
	require.NoError(t, err)
	assert.Len(t, week, 2, "the 8-day-old order falls outside the week")

	day := now
	exact, err := b.QueryOrders(ctx, store.OrderFilter{Date: &day})
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	cash, err := b.QueryOrders(ctx, store.OrderFilter{PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Len(t, cash, 2)

	pickup, err := b.QueryOrders(ctx, store.OrderFilter{DeliveryType: "pickup"})
	require.NoError(t, err)
	assert.Len(t, pickup, 1)
}

func TestFlatSettings(t *testing.T) {
	b := newFlat(t)
	ctx := context.Background()

	_, found, err := b.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.SetSetting(ctx, "theme", "dark"))
	require.NoError(t, b.SetSetting(ctx, "orderCounter", "12"))

	val, found, err := b.GetSetting(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "dark", val)

	all, err := b.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, b.DeleteSetting(ctx, "theme"))
	_, found, err = b.GetSetting(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFlatProductUpsert(t *testing.T) {
	b := newFlat(t)
	ctx := context.Background()

	p := models.Product{Name: "Espetinho", Price: 12, Stock: 5, Active: true}
	require.NoError(t, b.SaveProduct(ctx, &p))
	assert.Equal(t, uint(1), p.ID)

	p.Stock = 3
	require.NoError(t, b.SaveProduct(ctx, &p))

	products, err := b.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 3, products[0].Stock)
}
