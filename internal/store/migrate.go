package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/pkg/logger"
)

// RecordFailure is one skipped record in a best-effort bulk operation.
type RecordFailure struct {
	Index int
	Err   error
}

// BulkResult is the explicit outcome of a best-effort bulk operation,
// so callers and tests can assert on partial-failure counts instead of
// relying on logs.
type BulkResult struct {
	Succeeded []uint
	Failed    []RecordFailure
}

// Counts returns (succeeded, failed).
func (r BulkResult) Counts() (int, int) {
	return len(r.Succeeded), len(r.Failed)
}

// MigrationReport summarizes one run of the legacy migration.
type MigrationReport struct {
	AlreadyCompleted bool
	Orders           BulkResult
	CartItems        int
}

// Migrate performs the one-time transfer of legacy flat-store data into
// the structured backend. It is gated solely by the migrationCompleted
// setting — never by re-inspecting data — so a completed migration is a
// no-op under retry. Each legacy order is rewritten individually; a
// corrupt or unwritable record is logged, counted and skipped. The flat
// store is left untouched as a safety net.
func Migrate(ctx context.Context, target Backend, legacy *FlatBackend) (*MigrationReport, error) {
	raw, found, err := target.GetSetting(ctx, models.SettingMigrationCompleted)
	if err != nil {
		return nil, fmt.Errorf("store: read migration flag: %w", err)
	}
	if found {
		var flag models.MigrationFlag
		if json.Unmarshal([]byte(raw), &flag) == nil && flag.Completed {
			return &MigrationReport{AlreadyCompleted: true}, nil
		}
	}

	report := &MigrationReport{}

	raws, err := legacy.LoadRawOrders(ctx)
	if err != nil {
		// An unreadable history blob is not fatal: migration still
		// completes so it does not retry forever against bad data.
		logger.Warn("store: legacy order history unreadable", "error", err)
	}
	for i, rawOrder := range raws {
		var o models.Order
		if err := json.Unmarshal(rawOrder, &o); err != nil {
			logger.Warn("store: skipping corrupt legacy order", "index", i, "error", err)
			report.Orders.Failed = append(report.Orders.Failed, RecordFailure{Index: i, Err: err})
			continue
		}
		if err := target.SaveOrder(ctx, &o); err != nil {
			logger.Warn("store: legacy order not migrated", "index", i, "error", err)
			report.Orders.Failed = append(report.Orders.Failed, RecordFailure{Index: i, Err: err})
			continue
		}
		report.Orders.Succeeded = append(report.Orders.Succeeded, o.ID)
	}

	cart, err := legacy.LoadCart(ctx)
	if err != nil {
		logger.Warn("store: legacy cart unreadable", "error", err)
	} else if len(cart) > 0 {
		if err := target.SaveCart(ctx, cart); err != nil {
			logger.Warn("store: legacy cart not migrated", "error", err)
		} else {
			// Item count means quantity sum, same as the backup preview.
			for _, e := range cart {
				report.CartItems += e.Quantity
			}
		}
	}

	flag := models.MigrationFlag{
		Completed:     true,
		Date:          time.Now(),
		SchemaVersion: models.SchemaVersion,
	}
	payload, _ := json.Marshal(flag)
	if err := target.SetSetting(ctx, models.SettingMigrationCompleted, string(payload)); err != nil {
		return report, fmt.Errorf("store: record migration flag: %w", err)
	}

	return report, nil
}
