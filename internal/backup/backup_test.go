package backup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/backup"
	"github.com/rmoraes/braseiro/internal/store"
)

func newStorage(t *testing.T) *store.Manager {
	t.Helper()
	m := store.NewManager(nil, store.NewFlatBackend(store.NewMemoryKV()))
	require.NoError(t, m.Initialize(context.Background()))
	return m
}

func seedStorage(t *testing.T, m *store.Manager) {
	t.Helper()
	ctx := context.Background()

	orders := []models.Order{
		{SequentialID: 1, Timestamp: time.Now().Add(-2 * time.Hour), Pricing: models.Pricing{Total: 30}, Payment: models.Payment{Method: "cash"}},
		{SequentialID: 2, Timestamp: time.Now(), Pricing: models.Pricing{Total: 50}, Payment: models.Payment{Method: "pix"}},
	}
	for i := range orders {
		require.NoError(t, m.SaveOrder(ctx, &orders[i]))
	}
	require.NoError(t, m.SaveCart(ctx, []models.CartEntry{{ProductID: 1, Name: "Espetinho", Quantity: 2, EffectivePrice: 10}}))
	require.NoError(t, m.SetSetting(ctx, models.SettingOrderCounter, "2"))
	require.NoError(t, m.SetSetting(ctx, "theme", "dark"))
	p := models.Product{Name: "Espetinho", Price: 12, Stock: 5, Active: true}
	require.NoError(t, m.SaveProduct(ctx, &p))
}

// ─── Export / envelope ────────────────────────────────────────────────────────

func TestExportCollectsEverything(t *testing.T) {
	m := newStorage(t)
	seedStorage(t, m)
	engine := backup.NewEngine(m)

	env, err := engine.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SchemaVersion, env.Backup.Version)
	assert.Equal(t, models.SystemVersion, env.Backup.SystemVersion)
	assert.Len(t, env.Orders, 2)
	assert.Len(t, env.Cart, 1)
	assert.Len(t, env.Products, 1)
	assert.Equal(t, "dark", env.Settings["theme"])

	assert.Equal(t, 2, env.Stats.TotalOrders)
	assert.InDelta(t, 80, env.Stats.TotalRevenue, 0.001)
	assert.InDelta(t, 40, env.Stats.AverageTicket, 0.001)
}

func TestExportExcludesEmergencySlot(t *testing.T) {
	m := newStorage(t)
	engine := backup.NewEngine(m)
	ctx := context.Background()

	require.NoError(t, engine.Snapshot(ctx))
	env, err := engine.Export(ctx)
	require.NoError(t, err)
	assert.NotContains(t, env.Settings, models.SettingEmergencySnapshot)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := newStorage(t)
	seedStorage(t, m)
	engine := backup.NewEngine(m)

	env, err := engine.Export(context.Background())
	require.NoError(t, err)
	data, err := backup.Encode(env)
	require.NoError(t, err)

	decoded, err := backup.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env.Backup.Version, decoded.Backup.Version)
	assert.Len(t, decoded.Orders, len(env.Orders))
}

func TestFilenameFormat(t *testing.T) {
	ts := time.Date(2026, 8, 29, 18, 5, 9, 0, time.UTC)
	assert.Equal(t, "braseiro-backup-2026-08-29-18-05-09.json", backup.Filename("braseiro", ts))
}

// ─── Validation ───────────────────────────────────────────────────────────────

func TestValidateRejectsMalformedEnvelopes(t *testing.T) {
	var invalid *backup.ValidationError

	_, err := backup.Decode([]byte("not json"))
	assert.ErrorAs(t, err, &invalid)

	err = backup.Validate(&models.BackupEnvelope{Orders: []models.Order{}})
	assert.ErrorAs(t, err, &invalid, "missing version")

	err = backup.Validate(&models.BackupEnvelope{Backup: models.BackupMeta{Version: 1}})
	assert.ErrorAs(t, err, &invalid, "missing orders array")
}

func TestValidateRejectsNewerVersions(t *testing.T) {
	env := &models.BackupEnvelope{
		Backup: models.BackupMeta{Version: models.SchemaVersion + 1},
		Orders: []models.Order{},
	}

	err := backup.Validate(env)
	var version *backup.IncompatibleVersionError
	require.ErrorAs(t, err, &version)
	assert.Equal(t, models.SchemaVersion+1, version.Got)

	// Older versions pass the gate.
	env.Backup.Version = 1
	assert.NoError(t, backup.Validate(env))
}

func TestPreviewSummarizesWithoutMutating(t *testing.T) {
	m := newStorage(t)
	seedStorage(t, m)
	engine := backup.NewEngine(m)
	ctx := context.Background()

	env, err := engine.Export(ctx)
	require.NoError(t, err)

	summary := backup.Preview(env)
	assert.Equal(t, 2, summary.OrderCount)
	assert.InDelta(t, 80, summary.TotalRevenue, 0.001)
	assert.Equal(t, 2, summary.CartItems)
	assert.Equal(t, 1, summary.Products)
}

// ─── Restore / recover ────────────────────────────────────────────────────────

func TestRestoreReplacesDataset(t *testing.T) {
	source := newStorage(t)
	seedStorage(t, source)
	env, err := backup.NewEngine(source).Export(context.Background())
	require.NoError(t, err)

	target := newStorage(t)
	ctx := context.Background()
	stale := models.Order{SequentialID: 99, Timestamp: time.Now(), Pricing: models.Pricing{Total: 999}}
	require.NoError(t, target.SaveOrder(ctx, &stale))
	require.NoError(t, target.SetSetting(ctx, "stale", "yes"))

	report, err := backup.NewEngine(target).Restore(ctx, env)
	require.NoError(t, err)
	assert.False(t, report.HasFailures())
	assert.Equal(t, 2, report.Orders.Imported)
	assert.Equal(t, 1, report.Products.Imported)

	orders, err := target.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.NotEqual(t, 99, o.SequentialID)
	}

	_, found, err := target.GetSetting(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, found, "pre-restore settings are replaced")

	// The pre-restore snapshot is in place and survived the settings clear.
	_, found, err = target.GetSetting(ctx, models.SettingEmergencySnapshot)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRecoverUndoesABadRestore(t *testing.T) {
	m := newStorage(t)
	seedStorage(t, m)
	engine := backup.NewEngine(m)
	ctx := context.Background()

	// Restore an empty dataset over the seeded one.
	empty := &models.BackupEnvelope{
		Backup: models.BackupMeta{Version: models.SchemaVersion, Timestamp: time.Now()},
		Orders: []models.Order{},
	}
	_, err := engine.Restore(ctx, empty)
	require.NoError(t, err)

	orders, err := m.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	require.Empty(t, orders)

	report, err := engine.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Orders.Imported)

	orders, err = m.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	// The snapshot is single-use.
	_, err = engine.Recover(ctx)
	assert.ErrorIs(t, err, backup.ErrNoSnapshot)
}

func TestRecoverWithoutSnapshot(t *testing.T) {
	engine := backup.NewEngine(newStorage(t))
	_, err := engine.Recover(context.Background())
	assert.ErrorIs(t, err, backup.ErrNoSnapshot)
}

type flakyStore struct {
	*store.Manager
	failSaveOrder bool
}

func (s *flakyStore) SaveOrder(ctx context.Context, o *models.Order) error {
	if s.failSaveOrder {
		return errors.New("disk full")
	}
	return s.Manager.SaveOrder(ctx, o)
}

func TestRecoverKeepsSnapshotAfterPartialImport(t *testing.T) {
	m := newStorage(t)
	seedStorage(t, m)
	flaky := &flakyStore{Manager: m}
	engine := backup.NewEngine(flaky)
	ctx := context.Background()

	require.NoError(t, engine.Snapshot(ctx))

	flaky.failSaveOrder = true
	_, err := engine.Recover(ctx)
	var partial *backup.PartialImportError
	require.ErrorAs(t, err, &partial)

	// The snapshot is still the only copy of the pre-restore state.
	_, found, err := m.GetSetting(ctx, models.SettingEmergencySnapshot)
	require.NoError(t, err)
	assert.True(t, found, "snapshot survives a partial recovery")

	// Once the store heals, the retry completes and the slot clears.
	flaky.failSaveOrder = false
	report, err := engine.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Orders.Imported)

	_, found, err = m.GetSetting(ctx, models.SettingEmergencySnapshot)
	require.NoError(t, err)
	assert.False(t, found)
}

// ─── Clear-all ────────────────────────────────────────────────────────────────

func TestClearAllKeepsCatalogue(t *testing.T) {
	m := newStorage(t)
	seedStorage(t, m)
	engine := backup.NewEngine(m)
	ctx := context.Background()

	require.NoError(t, engine.ClearAll(ctx))

	orders, err := m.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	cart, err := m.LoadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart)

	_, found, err := m.GetSetting(ctx, models.SettingOrderCounter)
	require.NoError(t, err)
	assert.False(t, found, "sequential counter resets")

	products, err := m.LoadProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1, "catalogue survives")

	// And the wipe is undoable.
	report, err := engine.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Orders.Imported)
}

// ─── Stats ────────────────────────────────────────────────────────────────────

func TestComputeStats(t *testing.T) {
	early := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 20, 21, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{Timestamp: late, Pricing: models.Pricing{Total: 50}},
		{Timestamp: early, Pricing: models.Pricing{Total: 30}},
	}

	stats := backup.ComputeStats(orders)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.InDelta(t, 80, stats.TotalRevenue, 0.001)
	assert.InDelta(t, 40, stats.AverageTicket, 0.001)
	require.NotNil(t, stats.FirstOrderAt)
	assert.True(t, stats.FirstOrderAt.Equal(early))
	assert.True(t, stats.LastOrderAt.Equal(late))

	empty := backup.ComputeStats(nil)
	assert.Zero(t, empty.TotalOrders)
	assert.Nil(t, empty.FirstOrderAt)
}
