package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/pkg/database"
)

// readyTimeout bounds how long any operation waits for the backend to
// come up before reporting ErrInitialization.
const readyTimeout = 5 * time.Second

// StructuredBackend is the primary store: a relational database managed
// through GORM. Partitions map to tables — orders (with indexes on
// timestamp, day key, total, payment method and delivery type), a
// single-row cart record, settings by name, and products with category
// and price indexes.
//
// Opening is asynchronous: the constructor returns immediately and the
// connection plus schema migration complete in the background. Every
// operation gates on WaitReady first.
type StructuredBackend struct {
	db    *gorm.DB
	ready chan struct{}
	err   error // populated before ready closes
}

// NewStructuredBackend starts opening the database behind dialector and
// returns without waiting for it.
func NewStructuredBackend(dialector gorm.Dialector) *StructuredBackend {
	b := &StructuredBackend{ready: make(chan struct{})}
	go b.open(dialector)
	return b
}

func (b *StructuredBackend) open(dialector gorm.Dialector) {
	defer close(b.ready)

	db, err := database.Open(dialector)
	if err != nil {
		b.err = fmt.Errorf("store/structured: %w", err)
		return
	}

	if err := db.AutoMigrate(
		&models.Order{},
		&models.CartRecord{},
		&models.Setting{},
		&models.Product{},
	); err != nil {
		b.err = fmt.Errorf("store/structured: schema: %w", err)
		return
	}

	b.db = db
}

func (b *StructuredBackend) Name() string { return "structured" }

// WaitReady blocks until the background open finishes, the context is
// cancelled, or the bounded wait expires.
func (b *StructuredBackend) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return b.err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrInitialization, ctx.Err())
	case <-time.After(readyTimeout):
		return ErrInitialization
	}
}

func (b *StructuredBackend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// conn gates on readiness and returns a context-bound handle.
func (b *StructuredBackend) conn(ctx context.Context) (*gorm.DB, error) {
	if err := b.WaitReady(ctx); err != nil {
		return nil, err
	}
	return b.db.WithContext(ctx), nil
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

func (b *StructuredBackend) SaveCart(ctx context.Context, items []models.CartEntry) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}

	record := models.CartRecord{Key: models.CartKey, Items: items, UpdatedAt: time.Now()}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

func (b *StructuredBackend) LoadCart(ctx context.Context) ([]models.CartEntry, error) {
	db, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	var record models.CartRecord
	if err := db.First(&record, "key = ?", models.CartKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record.Items, nil
}

func (b *StructuredBackend) ClearCart(ctx context.Context) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}
	return db.Delete(&models.CartRecord{}, "key = ?", models.CartKey).Error
}

// ─── Orders ───────────────────────────────────────────────────────────────────

// SaveOrder inserts only — orders are immutable once persisted. The
// autoincrement primary key is assigned here when o.ID is zero; the
// derived day key feeds the exact-date lookup.
func (b *StructuredBackend) SaveOrder(ctx context.Context, o *models.Order) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}

	o.DayKey = o.Day()
	return db.Create(o).Error
}

func (b *StructuredBackend) QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	db, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	q := db.Model(&models.Order{})
	if f.Date != nil {
		// Exact-day queries hit the day-key index instead of scanning
		// a timestamp range.
		q = q.Where("day_key = ?", f.Date.Format(models.DayKeyLayout))
	} else {
		from, to := f.timeRange(time.Now())
		if from != nil {
			q = q.Where("timestamp >= ?", *from)
		}
		if to != nil {
			q = q.Where("timestamp <= ?", *to)
		}
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.DeliveryType != "" {
		q = q.Where("delivery_type = ?", f.DeliveryType)
	}

	var orders []models.Order
	if err := q.Order("timestamp DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (b *StructuredBackend) ClearOrders(ctx context.Context) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Order{}).Error
}

// ─── Settings ─────────────────────────────────────────────────────────────────

func (b *StructuredBackend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	db, err := b.conn(ctx)
	if err != nil {
		return "", false, err
	}

	var setting models.Setting
	if err := db.First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

func (b *StructuredBackend) SetSetting(ctx context.Context, key, value string) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}

	setting := models.Setting{Key: key, Value: value, Timestamp: time.Now()}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&setting).Error
}

func (b *StructuredBackend) DeleteSetting(ctx context.Context, key string) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}
	return db.Delete(&models.Setting{}, "key = ?", key).Error
}

func (b *StructuredBackend) ListSettings(ctx context.Context) (map[string]string, error) {
	db, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	var settings []models.Setting
	if err := db.Find(&settings).Error; err != nil {
		return nil, err
	}

	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out, nil
}

// ─── Products ─────────────────────────────────────────────────────────────────

func (b *StructuredBackend) SaveProduct(ctx context.Context, p *models.Product) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error
}

func (b *StructuredBackend) LoadProducts(ctx context.Context) ([]models.Product, error) {
	db, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := db.Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (b *StructuredBackend) ClearProducts(ctx context.Context) error {
	db, err := b.conn(ctx)
	if err != nil {
		return err
	}
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Product{}).Error
}
