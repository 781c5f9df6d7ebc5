package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/storage"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	store, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newDataset(deviceID string, createdAt time.Time, n int) *storage.Dataset {
	examples := make([]cycles.TrainingExample, n)
	for i := range examples {
		examples[i] = cycles.TrainingExample{
			OutdoorTemp:     5,
			IndoorTemp:      19,
			TargetTemp:      21,
			Humidity:        50,
			HourOfDay:       8,
			DurationMinutes: float64(30 + i),
			Timestamp:       createdAt.Add(-time.Duration(i) * time.Hour).UTC(),
		}
	}
	ds := storage.NewDataset(deviceID, cycles.Config{SplitMinutes: 60}, examples)
	ds.CreatedAt = createdAt.UTC()
	return ds
}

func TestBadgerStorage_PutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds := newDataset("living_room", time.Now(), 3)
	require.NoError(t, store.Put(ctx, ds))

	got, err := store.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.DeviceID, got.DeviceID)
	assert.Equal(t, 3, got.ExampleCount)
	assert.Equal(t, 60, got.SplitMinutes)
	require.Len(t, got.Examples, 3)
	assert.Equal(t, 31.0, got.Examples[1].DurationMinutes)
	assert.True(t, ds.CreatedAt.Equal(got.CreatedAt))

	// Second read may come from the cache; it must still be a copy.
	store.cache.Wait()
	got.Examples[0].DurationMinutes = 999
	again, err := store.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, again.Examples[0].DurationMinutes)
}

func TestBadgerStorage_PutReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds := newDataset("living_room", time.Now(), 1)
	require.NoError(t, store.Put(ctx, ds))
	_, err := store.Get(ctx, ds.ID)
	require.NoError(t, err)

	ds.DeviceID = "bedroom"
	ds.Examples = append(ds.Examples, ds.Examples[0])
	require.NoError(t, store.Put(ctx, ds))

	got, err := store.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "bedroom", got.DeviceID)
	assert.Len(t, got.Examples, 2)

	living, err := store.List(ctx, storage.ListRequest{DeviceID: "living_room"})
	require.NoError(t, err)
	assert.Empty(t, living)
}

func TestBadgerStorage_GetErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrInvalidID)

	_, err = store.Get(ctx, "5f0c4a4e-8f8e-4a55-9d1a-3f1b9c7a2e10")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBadgerStorage_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	older := newDataset("living_room", now.Add(-2*time.Hour), 2)
	newer := newDataset("living_room", now.Add(-time.Hour), 2)
	other := newDataset("bedroom", now, 1)
	for _, ds := range []*storage.Dataset{older, newer, other} {
		require.NoError(t, store.Put(ctx, ds))
	}

	all, err := store.List(ctx, storage.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID)
	for _, ds := range all {
		assert.Nil(t, ds.Examples)
		assert.NotZero(t, ds.ExampleCount)
	}

	living, err := store.List(ctx, storage.ListRequest{DeviceID: "living_room", Limit: 1})
	require.NoError(t, err)
	require.Len(t, living, 1)
	assert.Equal(t, newer.ID, living[0].ID)
}

func TestBadgerStorage_DeleteAndPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := newDataset("living_room", now.Add(-100*24*time.Hour), 1)
	recent := newDataset("living_room", now, 1)
	gone := newDataset("bedroom", now, 1)
	for _, ds := range []*storage.Dataset{old, recent, gone} {
		require.NoError(t, store.Put(ctx, ds))
	}

	require.NoError(t, store.Delete(ctx, gone.ID))
	_, err := store.Get(ctx, gone.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, gone.ID), storage.ErrNotFound)

	removed, err := store.Prune(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Get(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestBadgerStorage_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Put(ctx, newDataset("living_room", now.Add(-time.Hour), 3)))
	require.NoError(t, store.Put(ctx, newDataset("living_room", now, 2)))
	require.NoError(t, store.Put(ctx, newDataset("bedroom", now, 4)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalDatasets)
	assert.Equal(t, uint64(9), stats.TotalExamples)
	assert.Equal(t, uint64(2), stats.TotalDevices)
	assert.True(t, stats.OldestDataset.Equal(now.Add(-time.Hour)))
	assert.True(t, stats.NewestDataset.Equal(now))
}

func TestBadgerStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ds := newDataset("living_room", time.Now(), 2)

	{
		store, err := New(Config{Path: dir})
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, ds))
		require.NoError(t, store.Close())
	}

	store, err := New(Config{Path: dir, CacheMaxCost: -1})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Len(t, got.Examples, 2)
}

func TestBadgerStorage_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Put(ctx, newDataset("living_room", time.Now(), 1))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.List(ctx, storage.ListRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadgerStorage_ConcurrentOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds := newDataset("living_room", time.Now(), 2)
			if assert.NoError(t, store.Put(ctx, ds)) {
				_, err := store.Get(ctx, ds.ID)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	all, err := store.List(ctx, storage.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestDataKeyRoundTrip(t *testing.T) {
	ds := newDataset("living_room", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), 0)
	id, err := storage.ParseID(ds.ID)
	require.NoError(t, err)

	key := makeDataKey(ds.DeviceID, ds.CreatedAt, id)
	require.Len(t, key, dataKeyLen)

	createdAt, gotID, ok := parseDataKey(key)
	require.True(t, ok)
	assert.True(t, ds.CreatedAt.Equal(createdAt))
	assert.Equal(t, id, gotID)

	_, _, ok = parseDataKey(makeIndexKey(id))
	assert.False(t, ok)
}
