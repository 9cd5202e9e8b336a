// Package cart holds the in-memory cart/product state machine that
// enforces the inventory invariant: a product's stock plus the quantity
// reserved by cart entries referencing it always equals its original
// stock, and stock never goes negative.
//
// Every mutation computes the full state transition synchronously under
// the model lock before any asynchronous flush is issued, so interleaved
// flushes can never observe a half-updated cart/stock pair. The
// in-memory state is authoritative: a failed flush is logged and
// counted, never rolled back.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/pkg/logger"
	"github.com/rmoraes/braseiro/pkg/metrics"
)

// Store is the slice of the storage manager the cart model needs.
type Store interface {
	SaveCart(ctx context.Context, items []models.CartEntry) error
	LoadCart(ctx context.Context) ([]models.CartEntry, error)
	ClearCart(ctx context.Context) error
	SaveOrder(ctx context.Context, o *models.Order) error
	SaveProduct(ctx context.Context, p *models.Product) error
	LoadProducts(ctx context.Context) ([]models.Product, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// flushTimeout bounds the background persistence of a mutation.
const flushTimeout = 10 * time.Second

var (
	ErrUnknownProduct  = errors.New("cart: unknown product")
	ErrProductInactive = errors.New("cart: product is not for sale")
	ErrNotInCart       = errors.New("cart: product not in cart")
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrEmptyCart       = errors.New("cart: cart is empty")
)

// InsufficientStockError rejects a cart mutation that would take a
// product's stock below zero. No state changed.
type InsufficientStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("cart: product %d: requested %d, only %d in stock",
		e.ProductID, e.Requested, e.Available)
}

// Model is the live cart plus the product catalogue that owns all stock.
// Cart entries reference products by ID; every piece of stock arithmetic
// lives in this package.
type Model struct {
	mu      sync.Mutex
	storage Store

	products map[uint]*models.Product
	entries  map[uint]*models.CartEntry
	order    []uint // product IDs in insertion order, for stable listing

	// Flush ordering. Each mutation takes a sequence number under mu;
	// the flush path serializes on flushMu and drops any cart snapshot
	// older than one already persisted, so a slow early flush can never
	// overwrite a later state. Product rows go through the dirty map,
	// which always holds the newest copy per ID.
	flushSeq   uint64
	flushedSeq uint64 // guarded by flushMu
	dirty      map[uint]models.Product
	flushMu    sync.Mutex
}

func NewModel(storage Store) *Model {
	return &Model{
		storage:  storage,
		products: make(map[uint]*models.Product),
		entries:  make(map[uint]*models.CartEntry),
		dirty:    make(map[uint]models.Product),
	}
}

// Hydrate loads the persisted catalogue and cart into memory. Persisted
// stock already has cart reservations applied, so entries are adopted
// as-is without re-reserving.
func (m *Model) Hydrate(ctx context.Context) error {
	products, err := m.storage.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("cart: hydrate products: %w", err)
	}
	items, err := m.storage.LoadCart(ctx)
	if err != nil {
		return fmt.Errorf("cart: hydrate cart: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = make(map[uint]*models.Product, len(products))
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}

	m.entries = make(map[uint]*models.CartEntry, len(items))
	m.order = m.order[:0]
	for i := range items {
		e := items[i]
		m.entries[e.ProductID] = &e
		m.order = append(m.order, e.ProductID)
	}
	return nil
}

// SetCatalog replaces the in-memory catalogue (used at boot and after a
// restore) without touching reservations.
func (m *Model) SetCatalog(products []models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = make(map[uint]*models.Product, len(products))
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// Add reserves qty units of a product into the cart, freezing any active
// promotional price at this moment. Rejected without mutation when the
// product has fewer than qty units left.
func (m *Model) Add(ctx context.Context, productID uint, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return ErrUnknownProduct
	}
	if !p.Active {
		return ErrProductInactive
	}
	if p.Stock < qty {
		metrics.StockRejections.Inc()
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}

	p.Stock -= qty

	entry, ok := m.entries[productID]
	if !ok {
		entry = &models.CartEntry{
			ProductID:      productID,
			Name:           p.Name,
			ListPrice:      p.Price,
			EffectivePrice: p.EffectivePrice(),
		}
		if p.Promotion.Active {
			snap := p.Promotion
			entry.PromotionSnapshot = &snap
		}
		m.entries[productID] = entry
		m.order = append(m.order, productID)
	}
	entry.Quantity += qty

	m.flushLocked(*p)
	return nil
}

// SetQuantity adjusts a cart line to newQty. A positive diff needs that
// much free stock or the call is rejected unchanged; a negative diff
// returns stock; zero removes the line and releases its full
// reservation.
func (m *Model) SetQuantity(ctx context.Context, productID uint, newQty int) error {
	if newQty < 0 {
		return ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[productID]
	if !ok {
		return ErrNotInCart
	}
	p, ok := m.products[productID]
	if !ok {
		return ErrUnknownProduct
	}

	diff := newQty - entry.Quantity
	if diff > 0 && p.Stock < diff {
		metrics.StockRejections.Inc()
		return &InsufficientStockError{ProductID: productID, Requested: diff, Available: p.Stock}
	}

	p.Stock -= diff // diff may be negative, returning stock
	if newQty == 0 {
		m.removeEntryLocked(productID)
	} else {
		entry.Quantity = newQty
	}

	m.flushLocked(*p)
	return nil
}

// CancelAll returns every reservation to its product and empties the cart.
func (m *Model) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make([]models.Product, 0, len(m.entries))
	for id, entry := range m.entries {
		if p, ok := m.products[id]; ok {
			p.Stock += entry.Quantity
			touched = append(touched, *p)
		}
	}
	m.entries = make(map[uint]*models.CartEntry)
	m.order = m.order[:0]

	m.flushLocked(touched...)
	return nil
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

// CheckoutInput carries everything the cart cannot know by itself.
type CheckoutInput struct {
	Customer        models.Customer
	PaymentMethod   string
	ChangeRequested float64
	DeliveryType    string // "delivery" | "pickup"
	DeliveryFee     float64
	Notes           string
}

// Checkout turns the live cart into an immutable order: assigns the next
// business-facing sequential number, computes the pricing block from the
// frozen effective prices, persists the order, then empties the cart
// WITHOUT returning stock — the units are sold, not released.
//
// Order persistence and the sequential counter are synchronous: if the
// order cannot be saved the cart is left intact and the error surfaces.
func (m *Model) Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 {
		return nil, ErrEmptyCart
	}

	var (
		items    []models.OrderItem
		subtotal float64
		discount float64
	)
	for _, id := range m.order {
		entry := m.entries[id]
		items = append(items, models.OrderItem{
			ProductID:         entry.ProductID,
			Name:              entry.Name,
			UnitPrice:         entry.EffectivePrice,
			Quantity:          entry.Quantity,
			PromotionSnapshot: entry.PromotionSnapshot,
		})

		// Pricing comes from the prices frozen at add time, never from
		// the live catalogue. Entries persisted before list prices were
		// recorded fall back to the effective price (zero discount).
		listPrice := entry.ListPrice
		if listPrice == 0 {
			listPrice = entry.EffectivePrice
		}
		subtotal += listPrice * float64(entry.Quantity)
		discount += (listPrice - entry.EffectivePrice) * float64(entry.Quantity)
	}

	seq, err := m.nextSequential(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		SequentialID: seq,
		Timestamp:    time.Now(),
		Customer:     in.Customer,
		Items:        items,
		Pricing: models.Pricing{
			Subtotal:    subtotal,
			Discount:    discount,
			DeliveryFee: in.DeliveryFee,
			Total:       subtotal - discount + in.DeliveryFee,
		},
		Payment:  models.Payment{Method: in.PaymentMethod, ChangeRequested: in.ChangeRequested},
		Delivery: models.Delivery{Type: in.DeliveryType},
		Notes:    in.Notes,
	}

	if err := m.storage.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("cart: persist order: %w", err)
	}

	// Sold: reservations stay deducted from stock.
	m.entries = make(map[uint]*models.CartEntry)
	m.order = m.order[:0]
	m.clearPersistedCartLocked()

	return order, nil
}

func (m *Model) nextSequential(ctx context.Context) (int, error) {
	raw, _, err := m.storage.GetSetting(ctx, models.SettingOrderCounter)
	if err != nil {
		return 0, fmt.Errorf("cart: order counter: %w", err)
	}
	seq, _ := strconv.Atoi(raw)
	seq++
	if err := m.storage.SetSetting(ctx, models.SettingOrderCounter, strconv.Itoa(seq)); err != nil {
		return 0, fmt.Errorf("cart: order counter: %w", err)
	}
	return seq, nil
}

// ─── Read side ────────────────────────────────────────────────────────────────

// Entries returns a stable-order snapshot of the live cart.
func (m *Model) Entries() []models.CartEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Products returns a snapshot of the catalogue.
func (m *Model) Products() []models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out
}

// Product returns a copy of one catalogue row.
func (m *Model) Product(id uint) (models.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return models.Product{}, false
	}
	return *p, true
}

// Total is the payable sum of the live cart (before delivery fee).
func (m *Model) Total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64
	for _, e := range m.entries {
		total += e.Subtotal()
	}
	return total
}

// ─── Internals ────────────────────────────────────────────────────────────────

func (m *Model) removeEntryLocked(productID uint) {
	delete(m.entries, productID)
	for i, id := range m.order {
		if id == productID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Model) snapshotLocked() []models.CartEntry {
	out := make([]models.CartEntry, 0, len(m.entries))
	for _, id := range m.order {
		if e, ok := m.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// flushLocked snapshots state under the lock, then persists it in the
// background. Best-effort: failures are logged and counted, never rolled
// back — durability catches up on the next successful flush. Snapshots
// carry a sequence number so interleaved goroutines persist mutations
// in caller order: a flush that loses the race to a newer one drops its
// cart write instead of overwriting fresher state.
func (m *Model) flushLocked(touched ...models.Product) {
	m.flushSeq++
	seq := m.flushSeq
	items := m.snapshotLocked()
	for _, p := range touched {
		m.dirty[p.ID] = p
	}

	go func() {
		m.flushMu.Lock()
		defer m.flushMu.Unlock()

		m.mu.Lock()
		stale := seq <= m.flushedSeq
		if !stale {
			m.flushedSeq = seq
		}
		products := make([]models.Product, 0, len(m.dirty))
		for id, p := range m.dirty {
			products = append(products, p)
			delete(m.dirty, id)
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		if !stale {
			if err := m.storage.SaveCart(ctx, items); err != nil {
				metrics.CartFlushFailures.Inc()
				logger.Warn("cart: flush failed, in-memory state remains authoritative", "error", err)
			}
		}
		// Product rows always flush: the dirty map holds the newest copy
		// per product regardless of which snapshot drains it.
		for i := range products {
			if err := m.storage.SaveProduct(ctx, &products[i]); err != nil {
				logger.Warn("cart: product stock flush failed", "product", products[i].ID, "error", err)
			}
		}
	}()
}

// clearPersistedCartLocked schedules the post-checkout clear through the
// same ordered flush path, so a slow pre-checkout flush cannot
// resurrect the emptied cart.
func (m *Model) clearPersistedCartLocked() {
	m.flushSeq++
	seq := m.flushSeq

	go func() {
		m.flushMu.Lock()
		defer m.flushMu.Unlock()

		m.mu.Lock()
		stale := seq <= m.flushedSeq
		if !stale {
			m.flushedSeq = seq
		}
		m.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		if err := m.storage.ClearCart(ctx); err != nil {
			metrics.CartFlushFailures.Inc()
			logger.Warn("cart: persisted cart not cleared after checkout", "error", err)
		}
	}()
}
