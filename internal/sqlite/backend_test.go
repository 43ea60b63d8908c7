package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

// setupBackend opens a Backend in a temp data dir and closes it on cleanup.
func setupBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}, opts...)
	require.NoError(t, b.Open(context.Background()))
	t.Cleanup(func() { b.Close() })
	return b
}

func makeTea(id, name string) types.Tea {
	return types.Tea{
		ID:           id,
		Name:         name,
		Brand:        "Test Brand",
		Type:         types.TeaTypeGreen,
		Form:         types.TeaFormLooseLeaf,
		Amount:       50,
		Unit:         types.UnitGrams,
		Rating:       4,
		TastingNotes: "grassy",
		BrewingInstructions: types.BrewingInstructions{
			Temperature:        80,
			TempUnit:           types.Celsius,
			SteepTimeInSeconds: 120,
		},
	}
}

func makeBatch(prefix string, n int) []types.Tea {
	teas := make([]types.Tea, n)
	for i := range teas {
		teas[i] = makeTea(fmt.Sprintf("%s-%d", prefix, i), fmt.Sprintf("%s tea %d", prefix, i))
	}
	return teas
}

func TestOpen(t *testing.T) {
	t.Run("creates data dir and database file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: dir})
		require.NoError(t, b.Open(context.Background()))
		defer b.Close()

		_, err := os.Stat(filepath.Join(dir, DBFileName))
		assert.NoError(t, err)
	})

	t.Run("is idempotent", func(t *testing.T) {
		b := setupBackend(t)
		require.NoError(t, b.Open(context.Background()))
		require.NoError(t, b.Open(context.Background()))
	})

	t.Run("unusable data dir reports store unavailable", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: file})
		err := b.Open(context.Background())
		assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	})

	t.Run("invalid config reports store unavailable", func(t *testing.T) {
		b := NewBackend(types.Config{Backend: "bogus", DataDir: t.TempDir()})
		err := b.Open(context.Background())
		assert.ErrorIs(t, err, types.ErrStoreUnavailable)
		assert.ErrorIs(t, err, types.ErrBackendUnknown)
	})
}

func TestOperationsRequireOpenStore(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})

	_, err := b.ReadAll(ctx)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.ErrorIs(t, b.ReplaceAll(ctx, nil), types.ErrStoreUnavailable)
	_, err = b.SnapshotBackup(ctx, nil)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	_, _, _, err = b.LatestBackup(ctx)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)

	require.NoError(t, b.Open(ctx))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	_, err = b.ReadAll(ctx)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestReadAllEmpty(t *testing.T) {
	b := setupBackend(t)
	teas, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, teas)
	assert.Empty(t, teas)
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips every field in insertion order", func(t *testing.T) {
		b := setupBackend(t)
		full := makeTea("full", "Everything Set")
		full.Origin = "Fujian"
		full.PurchaseDate = "2024-03-01"
		full.Price = types.Float(12.5)
		full.Currency = "USD"
		full.Ingredients = []string{"green tea", "jasmine"}
		full.Organic = types.Bool(true)
		full.CaffeineLevel = types.CaffeineLow
		full.FlavorTags = []types.FlavorProfile{types.FlavorFloral, types.FlavorSweet}
		full.LowStockThreshold = types.Float(10)
		_, err := full.RecordBrew(5, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		want := []types.Tea{makeTea("b", "Second"), full, makeTea("a", "First")}
		require.NoError(t, b.ReplaceAll(ctx, want))

		got, err := b.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("replaces rather than merges", func(t *testing.T) {
		b := setupBackend(t)
		require.NoError(t, b.ReplaceAll(ctx, makeBatch("old", 4)))
		require.NoError(t, b.ReplaceAll(ctx, makeBatch("new", 2)))

		got, err := b.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, makeBatch("new", 2), got)
	})

	t.Run("empty collection clears the table", func(t *testing.T) {
		b := setupBackend(t)
		require.NoError(t, b.ReplaceAll(ctx, makeBatch("old", 3)))
		require.NoError(t, b.ReplaceAll(ctx, nil))

		got, err := b.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("failed write leaves previous collection intact", func(t *testing.T) {
		b := setupBackend(t)
		before := makeBatch("keep", 3)
		require.NoError(t, b.ReplaceAll(ctx, before))

		dup := []types.Tea{makeTea("same", "One"), makeTea("same", "Two")}
		err := b.ReplaceAll(ctx, dup)
		require.ErrorIs(t, err, types.ErrTransactionFailed)

		got, err := b.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, got)
	})

	t.Run("cancelled context aborts without partial commit", func(t *testing.T) {
		b := setupBackend(t)
		before := makeBatch("keep", 2)
		require.NoError(t, b.ReplaceAll(ctx, before))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, b.ReplaceAll(cancelled, makeBatch("lost", 5)))

		got, err := b.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, got)
	})
}

func TestReplaceAllConcurrentReadersSeeWholeCollections(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	batchA := makeBatch("a", 3)
	batchB := makeBatch("b", 17)
	require.NoError(t, b.ReplaceAll(ctx, batchA))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(stop)
		for i := 0; i < 40; i++ {
			batch := batchA
			if i%2 == 0 {
				batch = batchB
			}
			if err := b.ReplaceAll(ctx, batch); err != nil {
				t.Errorf("ReplaceAll: %v", err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := b.ReadAll(ctx)
				if err != nil {
					t.Errorf("ReadAll: %v", err)
					return
				}
				switch len(got) {
				case len(batchA):
					assert.Equal(t, batchA, got)
				case len(batchB):
					assert.Equal(t, batchB, got)
				default:
					t.Errorf("observed mixed collection of %d teas", len(got))
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotBackup(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ring keeps the five newest", func(t *testing.T) {
		b := setupBackend(t, WithClock(stepClock(start)))

		var infos []types.BackupInfo
		for i := 0; i < 8; i++ {
			info, err := b.SnapshotBackup(ctx, makeBatch(fmt.Sprintf("s%d", i), i+1))
			require.NoError(t, err)
			infos = append(infos, info)
		}

		listed, err := b.ListBackups(ctx)
		require.NoError(t, err)
		require.Len(t, listed, types.MaxBackups)
		for i, info := range listed {
			assert.Equal(t, infos[len(infos)-1-i], info)
		}

		teas, latest, ok, err := b.LatestBackup(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, infos[7], latest)
		assert.Equal(t, makeBatch("s7", 8), teas)
	})

	t.Run("pruned snapshot is not found", func(t *testing.T) {
		b := setupBackend(t, WithClock(stepClock(start)))
		first, err := b.SnapshotBackup(ctx, makeBatch("first", 1))
		require.NoError(t, err)

		got, err := b.Backup(ctx, first.TakenAt)
		require.NoError(t, err)
		assert.Equal(t, makeBatch("first", 1), got)

		for i := 0; i < types.MaxBackups; i++ {
			_, err := b.SnapshotBackup(ctx, nil)
			require.NoError(t, err)
		}
		_, err = b.Backup(ctx, first.TakenAt)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("stalled clock still yields distinct keys", func(t *testing.T) {
		b := setupBackend(t, WithClock(func() time.Time { return start }))
		one, err := b.SnapshotBackup(ctx, nil)
		require.NoError(t, err)
		two, err := b.SnapshotBackup(ctx, nil)
		require.NoError(t, err)
		assert.True(t, two.TakenAt.After(one.TakenAt))

		listed, err := b.ListBackups(ctx)
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})

	t.Run("empty ring has no latest backup", func(t *testing.T) {
		b := setupBackend(t)
		teas, _, ok, err := b.LatestBackup(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, teas)
	})

	t.Run("empty snapshot restores as empty collection", func(t *testing.T) {
		b := setupBackend(t)
		_, err := b.SnapshotBackup(ctx, nil)
		require.NoError(t, err)

		teas, info, ok, err := b.LatestBackup(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 0, info.Count)
		assert.Empty(t, teas)
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := NewBackend(cfg, WithClock(stepClock(start)))
	require.NoError(t, first.Open(ctx))
	require.NoError(t, first.ReplaceAll(ctx, makeBatch("kept", 2)))
	saved, err := first.SnapshotBackup(ctx, makeBatch("kept", 2))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A clock behind the stored snapshot must not produce an older key.
	second := NewBackend(cfg, WithClock(func() time.Time { return start.Add(-time.Hour) }))
	require.NoError(t, second.Open(ctx))
	defer second.Close()

	got, err := second.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, makeBatch("kept", 2), got)

	next, err := second.SnapshotBackup(ctx, nil)
	require.NoError(t, err)
	assert.True(t, next.TakenAt.After(saved.TakenAt))
}
