package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rmoraes/braseiro/app/models"
)

// Fixed keys the flat store persists under. Each logical entity is one
// serialized blob; list-like entities are rewritten whole on every append.
const (
	FlatKeyCart     = "braseiro:cart"
	FlatKeyOrders   = "braseiro:order-history"
	FlatKeySettings = "braseiro:settings"
	FlatKeyProducts = "braseiro:products"
)

// FlatBackend is the fallback store: string keys, string values, no
// indexes. All order filtering happens in memory after a full load.
type FlatBackend struct {
	kv KV

	// Serializes read-modify-write cycles on the blob keys. The app is
	// single-writer by design; this only guards in-process interleaving.
	mu sync.Mutex
}

func NewFlatBackend(kv KV) *FlatBackend {
	return &FlatBackend{kv: kv}
}

func (b *FlatBackend) Name() string { return "flat" }

func (b *FlatBackend) WaitReady(ctx context.Context) error {
	if err := b.kv.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	return nil
}

func (b *FlatBackend) Close() error { return nil }

// ─── Cart ─────────────────────────────────────────────────────────────────────

func (b *FlatBackend) SaveCart(ctx context.Context, items []models.CartEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.putJSON(ctx, FlatKeyCart, items)
}

func (b *FlatBackend) LoadCart(ctx context.Context) ([]models.CartEntry, error) {
	var items []models.CartEntry
	if err := b.getJSON(ctx, FlatKeyCart, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (b *FlatBackend) ClearCart(ctx context.Context) error {
	return b.kv.Del(ctx, FlatKeyCart)
}

// ─── Orders ───────────────────────────────────────────────────────────────────

// SaveOrder appends with read-modify-write: load the full history, push,
// rewrite. The backend assigns the next monotonic ID when o.ID is zero.
func (b *FlatBackend) SaveOrder(ctx context.Context, o *models.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders, err := b.loadOrders(ctx)
	if err != nil {
		return err
	}

	if o.ID == 0 {
		var max uint
		for _, existing := range orders {
			if existing.ID > max {
				max = existing.ID
			}
		}
		o.ID = max + 1
	}
	o.DayKey = o.Day()

	orders = append(orders, *o)
	return b.putJSON(ctx, FlatKeyOrders, orders)
}

func (b *FlatBackend) QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	orders, err := b.loadOrders(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := orders[:0]
	for _, o := range orders {
		if f.matches(o, now) {
			out = append(out, o)
		}
	}
	sortOrdersDesc(out)
	return out, nil
}

func (b *FlatBackend) ClearOrders(ctx context.Context) error {
	return b.kv.Del(ctx, FlatKeyOrders)
}

// LoadRawOrders returns the stored history record by record, without
// decoding the orders themselves. The migration engine uses this so one
// corrupt record can be skipped instead of poisoning the whole list.
func (b *FlatBackend) LoadRawOrders(ctx context.Context) ([]json.RawMessage, error) {
	val, err := b.kv.Get(ctx, FlatKeyOrders)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(val), &raws); err != nil {
		return nil, fmt.Errorf("store/flat: decode %s: %w", FlatKeyOrders, err)
	}
	return raws, nil
}

func (b *FlatBackend) loadOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := b.getJSON(ctx, FlatKeyOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ─── Settings ─────────────────────────────────────────────────────────────────

func (b *FlatBackend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	settings, err := b.loadSettings(ctx)
	if err != nil {
		return "", false, err
	}
	val, ok := settings[key]
	return val, ok, nil
}

func (b *FlatBackend) SetSetting(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	settings, err := b.loadSettings(ctx)
	if err != nil {
		return err
	}
	settings[key] = value
	return b.putJSON(ctx, FlatKeySettings, settings)
}

func (b *FlatBackend) DeleteSetting(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	settings, err := b.loadSettings(ctx)
	if err != nil {
		return err
	}
	delete(settings, key)
	return b.putJSON(ctx, FlatKeySettings, settings)
}

func (b *FlatBackend) ListSettings(ctx context.Context) (map[string]string, error) {
	return b.loadSettings(ctx)
}

func (b *FlatBackend) loadSettings(ctx context.Context) (map[string]string, error) {
	settings := map[string]string{}
	if err := b.getJSON(ctx, FlatKeySettings, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ─── Products ─────────────────────────────────────────────────────────────────

func (b *FlatBackend) SaveProduct(ctx context.Context, p *models.Product) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	products, err := b.loadProducts(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range products {
		if products[i].ID == p.ID {
			products[i] = *p
			replaced = true
			break
		}
	}
	if !replaced {
		if p.ID == 0 {
			var max uint
			for _, existing := range products {
				if existing.ID > max {
					max = existing.ID
				}
			}
			p.ID = max + 1
		}
		products = append(products, *p)
	}
	return b.putJSON(ctx, FlatKeyProducts, products)
}

func (b *FlatBackend) LoadProducts(ctx context.Context) ([]models.Product, error) {
	return b.loadProducts(ctx)
}

func (b *FlatBackend) ClearProducts(ctx context.Context) error {
	return b.kv.Del(ctx, FlatKeyProducts)
}

func (b *FlatBackend) loadProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := b.getJSON(ctx, FlatKeyProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ─── Blob helpers ─────────────────────────────────────────────────────────────

func (b *FlatBackend) getJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil // absent blob reads as the zero value
		}
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("store/flat: decode %s: %w", key, err)
	}
	return nil
}

func (b *FlatBackend) putJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store/flat: encode %s: %w", key, err)
	}
	return b.kv.Set(ctx, key, string(data))
}
