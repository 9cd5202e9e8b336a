package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmoraes/braseiro/app/models"
	"github.com/rmoraes/braseiro/internal/store"
)

// flakyBackend wraps the flat store and fails selected operations, to
// exercise the per-call fallback path.
type flakyBackend struct {
	*store.FlatBackend
	failSaveOrder bool
	failReady     bool
}

func (b *flakyBackend) Name() string { return "flaky" }

func (b *flakyBackend) WaitReady(ctx context.Context) error {
	if b.failReady {
		return store.ErrInitialization
	}
	return b.FlatBackend.WaitReady(ctx)
}

func (b *flakyBackend) SaveOrder(ctx context.Context, o *models.Order) error {
	if b.failSaveOrder {
		return errors.New("disk full")
	}
	return b.FlatBackend.SaveOrder(ctx, o)
}

func TestManagerPicksStructuredWhenReady(t *testing.T) {
	primary := &flakyBackend{FlatBackend: store.NewFlatBackend(store.NewMemoryKV())}
	fallback := store.NewFlatBackend(store.NewMemoryKV())

	m := store.NewManager(primary, fallback)
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, store.ModeStructured, m.Mode())
}

func TestManagerFallsBackToFlatAtBoot(t *testing.T) {
	primary := &flakyBackend{FlatBackend: store.NewFlatBackend(store.NewMemoryKV()), failReady: true}
	fallback := store.NewFlatBackend(store.NewMemoryKV())

	m := store.NewManager(primary, fallback)
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, store.ModeFlat, m.Mode())
}

func TestManagerFlatOnlyWhenNoStructuredConfigured(t *testing.T) {
	m := store.NewManager(nil, store.NewFlatBackend(store.NewMemoryKV()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, store.ModeFlat, m.Mode())
}

func TestManagerPerCallFallback(t *testing.T) {
	primary := &flakyBackend{FlatBackend: store.NewFlatBackend(store.NewMemoryKV())}
	fallback := store.NewFlatBackend(store.NewMemoryKV())
	ctx := context.Background()

	m := store.NewManager(primary, fallback)
	require.NoError(t, m.Initialize(ctx))
	require.Equal(t, store.ModeStructured, m.Mode())

	// Primary breaks after initialization: the call lands on the flat
	// store, the mode does not flip.
	primary.failSaveOrder = true
	order := models.Order{SequentialID: 1, Timestamp: time.Now()}
	require.NoError(t, m.SaveOrder(ctx, &order))
	assert.Equal(t, store.ModeStructured, m.Mode())

	onFallback, err := fallback.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, onFallback, 1)

	// Reads still go to the (empty) primary first.
	primary.failSaveOrder = false
	fromPrimary, err := m.QueryOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, fromPrimary)
}

func TestManagerSurfacesStorageErrorWhenBothFail(t *testing.T) {
	primary := &flakyBackend{FlatBackend: store.NewFlatBackend(store.NewMemoryKV()), failSaveOrder: true}
	fallback := &flakyBackend{FlatBackend: store.NewFlatBackend(store.NewMemoryKV()), failSaveOrder: true}
	ctx := context.Background()

	m := store.NewManager(primary, fallback)
	require.NoError(t, m.Initialize(ctx))

	err := m.SaveOrder(ctx, &models.Order{Timestamp: time.Now()})
	var storageErr *store.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "saveOrder", storageErr.Op)
}
