package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/config"
	"github.com/rmoraes/braseiro/pkg/cache"
	"github.com/rmoraes/braseiro/pkg/database"
	"github.com/rmoraes/braseiro/pkg/logger"
	"github.com/rmoraes/braseiro/pkg/metrics"
)

// Mode names the backend-of-record chosen at initialization.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeFlat       Mode = "flat"
)

// Manager is the single storage entry point. It picks a backend once at
// Initialize — that decision holds for the process lifetime — and
// dispatches every operation to it. When a structured call fails, the
// manager retries that one call against the flat store; the mode never
// flips globally. If the retry also fails the caller gets a
// *StorageError.
type Manager struct {
	mode        Mode
	structured  Backend
	flat        Backend
	initialized bool
}

// NewManager assembles a manager from explicit backends. structured may
// be nil to force flat mode. Call Initialize before anything else.
func NewManager(structured, flat Backend) *Manager {
	return &Manager{structured: structured, flat: flat}
}

// Boot wires the production backends from config and initializes.
func Boot(ctx context.Context) (*Manager, error) {
	var structured Backend
	dialector, err := database.Dialector()
	if err != nil {
		logger.Warn("store: no structured backend configured", "error", err)
	} else {
		structured = NewStructuredBackend(dialector)
	}

	var kv KV
	switch config.FlatDriver() {
	case "memory":
		kv = NewMemoryKV()
	default:
		if cache.RDB == nil {
			if err := cache.Connect(); err != nil {
				logger.Warn("store: redis unreachable, flat store is in-memory only", "error", err)
			}
		}
		if cache.RDB != nil {
			kv = NewRedisKV(cache.RDB)
		} else {
			kv = NewMemoryKV()
		}
	}

	m := NewManager(structured, NewFlatBackend(kv))
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Initialize probes the structured backend and fixes the mode. In
// structured mode the one-time legacy migration runs before any other
// operation is accepted. Idempotent.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	if m.structured != nil {
		if err := m.structured.WaitReady(ctx); err == nil {
			m.mode = ModeStructured
			m.runMigration(ctx)
			m.initialized = true
			logger.Info("store: structured backend active")
			return nil
		} else {
			logger.Warn("store: structured backend unavailable, using flat store", "error", err)
		}
	}

	if err := m.flat.WaitReady(ctx); err != nil {
		return fmt.Errorf("store: no backend available: %w", err)
	}
	m.mode = ModeFlat
	m.initialized = true
	logger.Info("store: flat backend active")
	return nil
}

func (m *Manager) runMigration(ctx context.Context) {
	legacy, ok := m.flat.(*FlatBackend)
	if !ok {
		return
	}

	report, err := Migrate(ctx, m.structured, legacy)
	if err != nil {
		logger.Warn("store: legacy migration failed", "error", err)
		return
	}
	if report.AlreadyCompleted {
		return
	}

	ok2, failed := report.Orders.Counts()
	logger.Info("store: legacy flat-store data migrated",
		"orders", ok2, "skipped", failed, "cart_items", report.CartItems)
}

// Mode reports the backend-of-record. Mostly useful in logs and tests;
// callers must not branch on it.
func (m *Manager) Mode() Mode { return m.mode }

// Close releases both backends.
func (m *Manager) Close() error {
	var errs []error
	if m.structured != nil {
		errs = append(errs, m.structured.Close())
	}
	errs = append(errs, m.flat.Close())
	return errors.Join(errs...)
}

// run dispatches one operation, falling back structured→flat for that
// single call.
func (m *Manager) run(op string, fn func(Backend) error) error {
	if m.mode == ModeStructured {
		err := fn(m.structured)
		if err == nil {
			metrics.StorageOps.WithLabelValues("structured", op, "ok").Inc()
			return nil
		}
		metrics.StorageOps.WithLabelValues("structured", op, "error").Inc()
		metrics.StorageFallbacks.WithLabelValues(op).Inc()
		logger.Warn("store: structured call failed, retrying on flat store", "op", op, "error", err)

		if ferr := fn(m.flat); ferr != nil {
			metrics.StorageOps.WithLabelValues("flat", op, "error").Inc()
			return &StorageError{Op: op, Backend: "flat", Err: errors.Join(err, ferr)}
		}
		metrics.StorageOps.WithLabelValues("flat", op, "ok").Inc()
		return nil
	}

	if err := fn(m.flat); err != nil {
		metrics.StorageOps.WithLabelValues("flat", op, "error").Inc()
		return &StorageError{Op: op, Backend: "flat", Err: err}
	}
	metrics.StorageOps.WithLabelValues("flat", op, "ok").Inc()
	return nil
}

// ─── Uniform contract ─────────────────────────────────────────────────────────

func (m *Manager) SaveCart(ctx context.Context, items []models.CartEntry) error {
	return m.run("saveCart", func(b Backend) error { return b.SaveCart(ctx, items) })
}

func (m *Manager) LoadCart(ctx context.Context) ([]models.CartEntry, error) {
	var items []models.CartEntry
	err := m.run("loadCart", func(b Backend) error {
		var e error
		items, e = b.LoadCart(ctx)
		return e
	})
	return items, err
}

func (m *Manager) ClearCart(ctx context.Context) error {
	return m.run("clearCart", func(b Backend) error { return b.ClearCart(ctx) })
}

func (m *Manager) SaveOrder(ctx context.Context, o *models.Order) error {
	return m.run("saveOrder", func(b Backend) error { return b.SaveOrder(ctx, o) })
}

func (m *Manager) QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	err := m.run("queryOrders", func(b Backend) error {
		var e error
		orders, e = b.QueryOrders(ctx, f)
		return e
	})
	return orders, err
}

func (m *Manager) ClearOrders(ctx context.Context) error {
	return m.run("clearOrders", func(b Backend) error { return b.ClearOrders(ctx) })
}

func (m *Manager) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := m.run("getSetting", func(b Backend) error {
		var e error
		val, found, e = b.GetSetting(ctx, key)
		return e
	})
	return val, found, err
}

func (m *Manager) SetSetting(ctx context.Context, key, value string) error {
	return m.run("setSetting", func(b Backend) error { return b.SetSetting(ctx, key, value) })
}

func (m *Manager) DeleteSetting(ctx context.Context, key string) error {
	return m.run("deleteSetting", func(b Backend) error { return b.DeleteSetting(ctx, key) })
}

func (m *Manager) ListSettings(ctx context.Context) (map[string]string, error) {
	var settings map[string]string
	err := m.run("listSettings", func(b Backend) error {
		var e error
		settings, e = b.ListSettings(ctx)
		return e
	})
	return settings, err
}

func (m *Manager) SaveProduct(ctx context.Context, p *models.Product) error {
	return m.run("saveProduct", func(b Backend) error { return b.SaveProduct(ctx, p) })
}

func (m *Manager) LoadProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := m.run("loadProducts", func(b Backend) error {
		var e error
		products, e = b.LoadProducts(ctx)
		return e
	})
	return products, err
}

func (m *Manager) ClearProducts(ctx context.Context) error {
	return m.run("clearProducts", func(b Backend) error { return b.ClearProducts(ctx) })
}
