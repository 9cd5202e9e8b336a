package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/store"
)

func seedLegacy(t *testing.T, kv store.KV, orders []json.RawMessage) *store.FlatBackend {
	t.Helper()
	data, err := json.Marshal(orders)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.FlatKeyOrders, string(data)))
	return store.NewFlatBackend(kv)
}

func rawOrder(t *testing.T, o models.Order) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(o)
	require.NoError(t, err)
	return data
}

func TestMigrateMovesOrdersAndCart(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	legacy := seedLegacy(t, kv, []json.RawMessage{
		rawOrder(t, models.Order{ID: 1, SequentialID: 1, Timestamp: time.Now().Add(-time.Hour)}),
		rawOrder(t, models.Order{ID: 2, SequentialID: 2, Timestamp: time.Now()}),
	})
	require.NoError(t, legacy.SaveCart(ctx, []models.CartEntry{{ProductID: 1, Quantity: 2}}))

	target := store.NewFlatBackend(store.NewMemoryKV())
	report, err := store.Migrate(ctx, target, legacy)
	require.NoError(t, err)

	assert.False(t, report.AlreadyCompleted)
	ok, failed := report.Orders.Counts()
	assert.Equal(t, 2, ok)
	assert.Zero(t, failed)
	assert.Equal(t, 2, report.CartItems)

	migrated, err := target.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, migrated, 2)

	// Legacy data stays as a safety net.
	remaining, err := legacy.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestMigrateSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	legacy := seedLegacy(t, store.NewMemoryKV(), []json.RawMessage{
		rawOrder(t, models.Order{ID: 1, Timestamp: time.Now()}),
		json.RawMessage(`{"id": "not-a-number"}`),
		rawOrder(t, models.Order{ID: 3, Timestamp: time.Now()}),
	})

	target := store.NewFlatBackend(store.NewMemoryKV())
	report, err := store.Migrate(ctx, target, legacy)
	require.NoError(t, err)

	ok, failed := report.Orders.Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, report.Orders.Failed[0].Index)

	migrated, err := target.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, migrated, 2)
}

func TestMigrateIsGatedByTheCompletionFlag(t *testing.T) {
	ctx := context.Background()
	legacy := seedLegacy(t, store.NewMemoryKV(), []json.RawMessage{
		rawOrder(t, models.Order{ID: 1, Timestamp: time.Now()}),
	})

	target := store.NewFlatBackend(store.NewMemoryKV())
	first, err := store.Migrate(ctx, target, legacy)
	require.NoError(t, err)
	require.False(t, first.AlreadyCompleted)

	// The flag, not the data, gates the rerun.
	second, err := store.Migrate(ctx, target, legacy)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)

	migrated, err := target.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, migrated, 1, "no duplicates on rerun")

	raw, found, err := target.GetSetting(ctx, models.SettingMigrationCompleted)
	require.NoError(t, err)
	require.True(t, found)
	var flag models.MigrationFlag
	require.NoError(t, json.Unmarshal([]byte(raw), &flag))
	assert.True(t, flag.Completed)
	assert.Equal(t, models.SchemaVersion, flag.SchemaVersion)
}

func TestMigrateCompletesOnUnreadableHistory(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, store.FlatKeyOrders, "not json at all"))
	legacy := store.NewFlatBackend(kv)

	target := store.NewFlatBackend(store.NewMemoryKV())
	report, err := store.Migrate(ctx, target, legacy)
	require.NoError(t, err)

	ok, failed := report.Orders.Counts()
	assert.Zero(t, ok)
	assert.Zero(t, failed)

	// Completed anyway, so it does not retry forever against bad data.
	second, err := store.Migrate(ctx, target, legacy)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
}
