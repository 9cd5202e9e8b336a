package cart_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/cart"
)

// ─── Fake storage ─────────────────────────────────────────────────────────────

type fakeStore struct {
	mu       sync.Mutex
	cart     []models.CartEntry
	orders   []models.Order
	products map[uint]models.Product
	settings map[string]string

	failSaveOrder bool
	slowCart      func(items []models.CartEntry) // optional stall before a cart write
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[uint]models.Product),
		settings: make(map[string]string),
	}
}

func (s *fakeStore) SaveCart(_ context.Context, items []models.CartEntry) error {
	if s.slowCart != nil {
		s.slowCart(items)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = append([]models.CartEntry(nil), items...)
	return nil
}

func (s *fakeStore) LoadCart(_ context.Context) ([]models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartEntry(nil), s.cart...), nil
}

func (s *fakeStore) ClearCart(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
	return nil
}

func (s *fakeStore) SaveOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveOrder {
		return errors.New("order store down")
	}
	o.ID = uint(len(s.orders) + 1)
	s.orders = append(s.orders, *o)
	return nil
}

func (s *fakeStore) SaveProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

func (s *fakeStore) LoadProducts(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *fakeStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *fakeStore) persistedStock(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newModel(t *testing.T, products ...models.Product) (*cart.Model, *fakeStore) {
	t.Helper()
	storage := newFakeStore()
	m := cart.NewModel(storage)
	m.SetCatalog(products)
	return m, storage
}

func picanha(stock int) models.Product {
	return models.Product{ID: 1, Name: "Espetinho de Picanha", Price: 12, Stock: stock, Active: true}
}

func stockOf(m *cart.Model, id uint) int {
	p, _ := m.Product(id)
	return p.Stock
}

// ─── Reservation arithmetic ───────────────────────────────────────────────────

func TestAddReservesStock(t *testing.T) {
	m, _ := newModel(t, picanha(5))
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 3))
	assert.Equal(t, 2, stockOf(m, 1))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Quantity)
}

func TestSetQuantityReturnsAndTakesStock(t *testing.T) {
	m, _ := newModel(t, picanha(5))
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 3))
	require.NoError(t, m.SetQuantity(ctx, 1, 1))
	assert.Equal(t, 4, stockOf(m, 1))

	require.NoError(t, m.SetQuantity(ctx, 1, 4))
	assert.Equal(t, 1, stockOf(m, 1))
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	m, _ := newModel(t, picanha(5))
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 2))
	require.NoError(t, m.SetQuantity(ctx, 1, 0))

	assert.Equal(t, 5, stockOf(m, 1))
	assert.Empty(t, m.Entries())
}

func TestCancelAllRestoresEveryReservation(t *testing.T) {
	m, _ := newModel(t,
		picanha(5),
		models.Product{ID: 2, Name: "Coração", Price: 8, Stock: 10, Active: true},
	)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 3))
	require.NoError(t, m.Add(ctx, 2, 4))
	require.NoError(t, m.CancelAll(ctx))

	assert.Equal(t, 5, stockOf(m, 1))
	assert.Equal(t, 10, stockOf(m, 2))
	assert.Empty(t, m.Entries())
}

func TestInsufficientStockRejectedUnchanged(t *testing.T) {
	m, _ := newModel(t, picanha(5))
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 3))

	err := m.Add(ctx, 1, 3)
	var stockErr *cart.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	// Nothing moved.
	assert.Equal(t, 2, stockOf(m, 1))
	assert.Equal(t, 3, m.Entries()[0].Quantity)
}

func TestAddUnknownAndInactiveProducts(t *testing.T) {
	inactive := picanha(5)
	inactive.ID = 9
	inactive.Active = false
	m, _ := newModel(t, picanha(5), inactive)
	ctx := context.Background()

	assert.ErrorIs(t, m.Add(ctx, 42, 1), cart.ErrUnknownProduct)
	assert.ErrorIs(t, m.Add(ctx, 9, 1), cart.ErrProductInactive)
	assert.ErrorIs(t, m.Add(ctx, 1, 0), cart.ErrInvalidQuantity)
}

// ─── Promotion freezing ───────────────────────────────────────────────────────

func TestAddFreezesPromotionalPrice(t *testing.T) {
	p := picanha(5)
	p.Promotion = models.Promotion{Active: true, Type: "percent", Value: 25}
	m, _ := newModel(t, p)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 2))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.InDelta(t, 9, entries[0].EffectivePrice, 0.001)
	require.NotNil(t, entries[0].PromotionSnapshot)
	assert.Equal(t, "percent", entries[0].PromotionSnapshot.Type)
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

func TestCheckoutBuildsOrderAndKeepsStockDeducted(t *testing.T) {
	p := picanha(5)
	p.Promotion = models.Promotion{Active: true, Type: "fixed", Value: 10}
	m, storage := newModel(t, p)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 2))

	order, err := m.Checkout(ctx, cart.CheckoutInput{
		Customer:      models.Customer{Name: "João"},
		PaymentMethod: "pix",
		DeliveryType:  "pickup",
		DeliveryFee:   0,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, order.SequentialID)
	assert.InDelta(t, 24, order.Pricing.Subtotal, 0.001) // 2 × list price
	assert.InDelta(t, 4, order.Pricing.Discount, 0.001)  // 2 × (12 − 10)
	assert.InDelta(t, 20, order.Pricing.Total, 0.001)
	assert.Equal(t, "pix", order.Payment.Method)

	// Sold units stay deducted; the cart is empty.
	assert.Equal(t, 3, stockOf(m, 1))
	assert.Empty(t, m.Entries())
	assert.Equal(t, 1, storage.orderCount())
}

func TestCheckoutSequentialCounterAdvances(t *testing.T) {
	m, _ := newModel(t, picanha(10))
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		require.NoError(t, m.Add(ctx, 1, 1))
		order, err := m.Checkout(ctx, cart.CheckoutInput{PaymentMethod: "cash", DeliveryType: "pickup"})
		require.NoError(t, err)
		assert.Equal(t, want, order.SequentialID)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	m, _ := newModel(t, picanha(5))
	_, err := m.Checkout(context.Background(), cart.CheckoutInput{})
	assert.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestCheckoutFailureLeavesCartIntact(t *testing.T) {
	m, storage := newModel(t, picanha(5))
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 2))
	storage.failSaveOrder = true

	_, err := m.Checkout(ctx, cart.CheckoutInput{PaymentMethod: "cash", DeliveryType: "pickup"})
	require.Error(t, err)

	assert.Len(t, m.Entries(), 1)
	assert.Equal(t, 3, stockOf(m, 1))
}

func TestCheckoutPricesFromFrozenEntriesOnly(t *testing.T) {
	p := picanha(5)
	p.Promotion = models.Promotion{Active: true, Type: "fixed", Value: 10}
	m, _ := newModel(t, p)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, 1, 2))

	// The catalogue can change underneath the cart; pricing must not.
	m.SetCatalog(nil)

	order, err := m.Checkout(ctx, cart.CheckoutInput{PaymentMethod: "cash", DeliveryType: "pickup"})
	require.NoError(t, err)

	assert.InDelta(t, 24, order.Pricing.Subtotal, 0.001)
	assert.InDelta(t, 4, order.Pricing.Discount, 0.001)
	assert.InDelta(t, 20, order.Pricing.Total, 0.001)
}

// ─── Flush ordering ───────────────────────────────────────────────────────────

func TestStalledFlushCannotOverwriteNewerState(t *testing.T) {
	m, storage := newModel(t, picanha(5))
	ctx := context.Background()

	// Stall writes of the first snapshot so later mutations flush first.
	storage.slowCart = func(items []models.CartEntry) {
		if len(items) == 1 && items[0].Quantity == 1 {
			time.Sleep(100 * time.Millisecond)
		}
	}

	require.NoError(t, m.Add(ctx, 1, 1))
	require.NoError(t, m.SetQuantity(ctx, 1, 5))

	// Long enough for every in-flight flush, stalled one included.
	time.Sleep(400 * time.Millisecond)

	persisted, err := storage.LoadCart(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, 5, persisted[0].Quantity)
	assert.Equal(t, 0, storage.persistedStock(1))
}

// ─── Hydration ────────────────────────────────────────────────────────────────

func TestHydrateAdoptsPersistedState(t *testing.T) {
	storage := newFakeStore()
	ctx := context.Background()

	// Persisted stock already has the reservation applied.
	p := picanha(3)
	require.NoError(t, storage.SaveProduct(ctx, &p))
	require.NoError(t, storage.SaveCart(ctx, []models.CartEntry{
		{ProductID: 1, Name: p.Name, Quantity: 2, EffectivePrice: 12},
	}))
	storage.settings[models.SettingOrderCounter] = strconv.Itoa(7)

	m := cart.NewModel(storage)
	require.NoError(t, m.Hydrate(ctx))

	assert.Equal(t, 3, stockOf(m, 1))
	require.Len(t, m.Entries(), 1)
	assert.Equal(t, 2, m.Entries()[0].Quantity)
	assert.InDelta(t, 24, m.Total(), 0.001)

	// The counter carries on from the persisted value.
	require.NoError(t, m.Add(ctx, 1, 1))
	order, err := m.Checkout(ctx, cart.CheckoutInput{PaymentMethod: "card", DeliveryType: "delivery"})
	require.NoError(t, err)
	assert.Equal(t, 8, order.SequentialID)
}
