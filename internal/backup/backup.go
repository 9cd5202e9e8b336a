// Package backup serializes the entire dataset into a portable,
// versioned envelope and applies incoming envelopes back onto the
// storage manager — validation first, an automatic emergency snapshot
// before anything destructive, per-record best-effort import.
//
// The engine never performs file or network I/O itself: Export hands
// serialized bytes to the caller (CLI, HTTP handler) and Restore takes
// an already-loaded envelope.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/logger"
	"github.com/rmoraes/braseiro/pkg/metrics"
)

// Store is the slice of the storage manager the engine reads and writes
// through. It never touches a backend directly.
type Store interface {
	LoadCart(ctx context.Context) ([]models.CartEntry, error)
	SaveCart(ctx context.Context, items []models.CartEntry) error
	ClearCart(ctx context.Context) error

	QueryOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	SaveOrder(ctx context.Context, o *models.Order) error
	ClearOrders(ctx context.Context) error

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) (map[string]string, error)

	LoadProducts(ctx context.Context) ([]models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	ClearProducts(ctx context.Context) error
}

type Engine struct {
	storage Store
}

func NewEngine(storage Store) *Engine {
	return &Engine{storage: storage}
}

// ─── Errors ───────────────────────────────────────────────────────────────────

// ValidationError means the envelope is malformed; no store was touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("backup: invalid envelope: %s", e.Reason)
}

// IncompatibleVersionError means the envelope was produced by a newer
// system and is refused outright.
type IncompatibleVersionError struct {
	Got     int
	Current int
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("backup: envelope version %d is newer than supported version %d", e.Got, e.Current)
}

// PartialImportError reports a restore that completed with some records
// skipped. Not fatal — the report carries the counts.
type PartialImportError struct {
	Report *RestoreReport
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("backup: restore completed with skipped records: orders %d/%d, cart %d/%d, settings %d/%d, products %d/%d",
		e.Report.Orders.Imported, e.Report.Orders.Total,
		e.Report.CartItems.Imported, e.Report.CartItems.Total,
		e.Report.Settings.Imported, e.Report.Settings.Total,
		e.Report.Products.Imported, e.Report.Products.Total)
}

// ErrNoSnapshot means Recover was called with no emergency snapshot stored.
var ErrNoSnapshot = &ValidationError{Reason: "no emergency snapshot available"}

// ─── Export ───────────────────────────────────────────────────────────────────

// Export collects the full current state through the storage manager and
// wraps it in a versioned envelope.
func (e *Engine) Export(ctx context.Context) (*models.BackupEnvelope, error) {
	orders, err := e.storage.QueryOrders(ctx, store.OrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("backup: collect orders: %w", err)
	}
	cart, err := e.storage.LoadCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: collect cart: %w", err)
	}
	settings, err := e.storage.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: collect settings: %w", err)
	}
	// The emergency slot is internal state, not part of a user backup —
	// exporting it would nest envelopes inside envelopes.
	delete(settings, models.SettingEmergencySnapshot)

	products, err := e.storage.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: collect products: %w", err)
	}

	return &models.BackupEnvelope{
		Backup: models.BackupMeta{
			Version:       models.SchemaVersion,
			Timestamp:     time.Now(),
			SystemVersion: models.SystemVersion,
		},
		Orders:   orders,
		Cart:     cart,
		Settings: settings,
		Products: products,
		Stats:    ComputeStats(orders),
	}, nil
}

// Encode serializes an envelope to the portable JSON form.
func Encode(env *models.BackupEnvelope) ([]byte, error) {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("backup: encode envelope: %w", err)
	}
	return data, nil
}

// Filename returns the conventional backup filename for brand at ts:
// <brand>-backup-<YYYY-MM-DD>-<HH-MM-SS>.json
func Filename(brand string, ts time.Time) string {
	return fmt.Sprintf("%s-backup-%s.json", brand, ts.Format("2006-01-02-15-04-05"))
}

// ─── Validate / Preview ───────────────────────────────────────────────────────

// Decode parses raw envelope bytes and validates the result. Nothing is
// mutated; a malformed or too-new envelope never gets further.
func Decode(data []byte) (*models.BackupEnvelope, error) {
	var env models.BackupEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("not a JSON envelope: %v", err)}
	}
	if err := Validate(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate performs the structural and version checks. An envelope is
// accepted only when its version is at most the current schema version.
func Validate(env *models.BackupEnvelope) error {
	if env == nil {
		return &ValidationError{Reason: "empty envelope"}
	}
	if env.Backup.Version == 0 {
		return &ValidationError{Reason: "missing backup version"}
	}
	if env.Orders == nil {
		return &ValidationError{Reason: "missing orders array"}
	}
	if env.Backup.Version > models.SchemaVersion {
		return &IncompatibleVersionError{Got: env.Backup.Version, Current: models.SchemaVersion}
	}
	return nil
}

// Summary is the human-readable preview that drives the external
// confirmation gate. Deriving it mutates nothing.
type Summary struct {
	OrderCount    int       `json:"orderCount"`
	TotalRevenue  float64   `json:"totalRevenue"`
	CartItems     int       `json:"cartItems"`
	Products      int       `json:"products"`
	BackupDate    time.Time `json:"backupDate"`
	SystemVersion string    `json:"systemVersion"`
}

// Preview summarizes an envelope. The decision to proceed belongs to the
// caller.
func Preview(env *models.BackupEnvelope) Summary {
	var revenue float64
	for _, o := range env.Orders {
		revenue += o.Pricing.Total
	}
	var cartItems int
	for _, e := range env.Cart {
		cartItems += e.Quantity
	}
	return Summary{
		OrderCount:    len(env.Orders),
		TotalRevenue:  revenue,
		CartItems:     cartItems,
		Products:      len(env.Products),
		BackupDate:    env.Backup.Timestamp,
		SystemVersion: env.Backup.SystemVersion,
	}
}

// ─── Restore ──────────────────────────────────────────────────────────────────

// ImportCount is records actually imported vs present in the envelope.
type ImportCount struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// RestoreReport is the outcome of one restore.
type RestoreReport struct {
	Orders    ImportCount `json:"orders"`
	CartItems ImportCount `json:"cartItems"`
	Settings  ImportCount `json:"settings"`
	Products  ImportCount `json:"products"`
}

// HasFailures reports whether any record present in the envelope was skipped.
func (r *RestoreReport) HasFailures() bool {
	return r.Orders.Imported < r.Orders.Total ||
		r.CartItems.Imported < r.CartItems.Total ||
		r.Settings.Imported < r.Settings.Total ||
		r.Products.Imported < r.Products.Total
}

// Restore validates env, stores an emergency snapshot of the current
// state, then replaces each partition with the envelope's contents.
// Each order insertion is attempted independently — a failing record is
// skipped and counted, not fatal. When records were skipped the report
// is returned together with a *PartialImportError.
func (e *Engine) Restore(ctx context.Context, env *models.BackupEnvelope) (*RestoreReport, error) {
	if err := Validate(env); err != nil {
		return nil, err
	}
	if err := e.Snapshot(ctx); err != nil {
		return nil, err
	}
	return e.apply(ctx, env)
}

// Snapshot exports the current state into the reserved emergency slot so
// a bad restore can always be undone. Called automatically by Restore.
func (e *Engine) Snapshot(ctx context.Context) error {
	current, err := e.Export(ctx)
	if err != nil {
		return fmt.Errorf("backup: pre-restore snapshot: %w", err)
	}
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("backup: pre-restore snapshot: %w", err)
	}
	if err := e.storage.SetSetting(ctx, models.SettingEmergencySnapshot, string(data)); err != nil {
		return fmt.Errorf("backup: store snapshot: %w", err)
	}
	return nil
}

// Recover performs the restore procedure against the emergency
// snapshot. The snapshot is discarded only after a clean recovery — a
// partial or failed one keeps it in place as the only remaining copy of
// the pre-restore state, so the operation can be retried.
func (e *Engine) Recover(ctx context.Context) (*RestoreReport, error) {
	raw, found, err := e.storage.GetSetting(ctx, models.SettingEmergencySnapshot)
	if err != nil {
		return nil, fmt.Errorf("backup: read snapshot: %w", err)
	}
	if !found {
		return nil, ErrNoSnapshot
	}

	env, err := Decode([]byte(raw))
	if err != nil {
		return nil, err
	}

	report, err := e.apply(ctx, env)
	if err != nil {
		return report, err
	}

	if derr := e.storage.DeleteSetting(ctx, models.SettingEmergencySnapshot); derr != nil {
		logger.Warn("backup: emergency snapshot not discarded", "error", derr)
	}
	return report, nil
}

// apply clears each target partition and re-inserts the envelope's
// contents. Per-record failures are counted, logged and skipped.
func (e *Engine) apply(ctx context.Context, env *models.BackupEnvelope) (*RestoreReport, error) {
	report := &RestoreReport{
		Orders:    ImportCount{Total: len(env.Orders)},
		CartItems: ImportCount{Total: len(env.Cart)},
		Settings:  ImportCount{Total: len(env.Settings)},
		Products:  ImportCount{Total: len(env.Products)},
	}

	// Orders.
	if err := e.storage.ClearOrders(ctx); err != nil {
		return nil, fmt.Errorf("backup: clear orders: %w", err)
	}
	for i := range env.Orders {
		o := env.Orders[i]
		if err := e.storage.SaveOrder(ctx, &o); err != nil {
			metrics.BackupRecords.WithLabelValues("order", "skipped").Inc()
			logger.Warn("backup: order not restored", "order", o.ID, "error", err)
			continue
		}
		metrics.BackupRecords.WithLabelValues("order", "imported").Inc()
		report.Orders.Imported++
	}

	// Cart — persisted as a single record, all-or-nothing.
	if err := e.storage.ClearCart(ctx); err != nil {
		return nil, fmt.Errorf("backup: clear cart: %w", err)
	}
	if len(env.Cart) > 0 {
		if err := e.storage.SaveCart(ctx, env.Cart); err != nil {
			metrics.BackupRecords.WithLabelValues("cart", "skipped").Inc()
			logger.Warn("backup: cart not restored", "error", err)
		} else {
			report.CartItems.Imported = len(env.Cart)
		}
	}

	// Settings. The reserved emergency slot survives the clear so the
	// restore that is running right now stays undoable.
	current, err := e.storage.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: list settings: %w", err)
	}
	for key := range current {
		if key == models.SettingEmergencySnapshot {
			continue
		}
		if err := e.storage.DeleteSetting(ctx, key); err != nil {
			return nil, fmt.Errorf("backup: clear setting %s: %w", key, err)
		}
	}
	for key, value := range env.Settings {
		if key == models.SettingEmergencySnapshot {
			report.Settings.Imported++ // never imported, never counted as a failure
			continue
		}
		if err := e.storage.SetSetting(ctx, key, value); err != nil {
			metrics.BackupRecords.WithLabelValues("setting", "skipped").Inc()
			logger.Warn("backup: setting not restored", "key", key, "error", err)
			continue
		}
		metrics.BackupRecords.WithLabelValues("setting", "imported").Inc()
		report.Settings.Imported++
	}

	// Products.
	if err := e.storage.ClearProducts(ctx); err != nil {
		return nil, fmt.Errorf("backup: clear products: %w", err)
	}
	for i := range env.Products {
		p := env.Products[i]
		if err := e.storage.SaveProduct(ctx, &p); err != nil {
			metrics.BackupRecords.WithLabelValues("product", "skipped").Inc()
			logger.Warn("backup: product not restored", "product", p.ID, "error", err)
			continue
		}
		metrics.BackupRecords.WithLabelValues("product", "imported").Inc()
		report.Products.Imported++
	}

	if report.HasFailures() {
		return report, &PartialImportError{Report: report}
	}
	return report, nil
}

// ClearAll wipes order history and the live cart after storing an
// emergency snapshot, and resets the sequential order counter. The
// product catalogue and remaining settings are kept.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := e.Snapshot(ctx); err != nil {
		return err
	}
	if err := e.storage.ClearOrders(ctx); err != nil {
		return fmt.Errorf("backup: clear orders: %w", err)
	}
	if err := e.storage.ClearCart(ctx); err != nil {
		return fmt.Errorf("backup: clear cart: %w", err)
	}
	if err := e.storage.DeleteSetting(ctx, models.SettingOrderCounter); err != nil {
		return fmt.Errorf("backup: reset order counter: %w", err)
	}
	return nil
}

// ─── Stats ────────────────────────────────────────────────────────────────────

// ComputeStats derives the envelope's summary block from an order list.
func ComputeStats(orders []models.Order) models.Stats {
	stats := models.Stats{TotalOrders: len(orders)}
	if len(orders) == 0 {
		return stats
	}

	first, last := orders[0].Timestamp, orders[0].Timestamp
	for _, o := range orders {
		stats.TotalRevenue += o.Pricing.Total
		if o.Timestamp.Before(first) {
			first = o.Timestamp
		}
		if o.Timestamp.After(last) {
			last = o.Timestamp
		}
	}
	stats.AverageTicket = stats.TotalRevenue / float64(len(orders))
	stats.FirstOrderAt = &first
	stats.LastOrderAt = &last
	return stats
}
