package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository_SaveLoad(t *testing.T) {
	checkpoints, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	loaded, err := checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet("a", "b")))
	loaded, err = checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.TranscriptID{"a", "b"}, loaded.IDs())

	t.Run("grows", func(t *testing.T) {
		loaded.Add("c")
		require.NoError(t, checkpoints.SaveCheckpoint(ctx, loaded))
		again, err := checkpoints.LoadCheckpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.TranscriptID{"a", "b", "c"}, again.IDs())
	})

	t.Run("replaces", func(t *testing.T) {
		require.NoError(t, checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet("c")))
		again, err := checkpoints.LoadCheckpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.TranscriptID{"c"}, again.IDs())
	})
}

func TestCheckpointRepository_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NoError(t, NewCheckpointRepository(backend).SaveCheckpoint(ctx, core.NewCheckpointSet("x", "y")))
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	loaded, err := NewCheckpointRepository(backend).LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.TranscriptID{"x", "y"}, loaded.IDs())
}

func TestCheckpointRepository_CorruptLoadsEmpty(t *testing.T) {
	checkpoints, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet("a")))

	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCheckpointKey("b"), []byte{0xff}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	loaded, err := checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())
}

func TestCheckpointRepository_Closed(t *testing.T) {
	checkpoints, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	_, err = checkpoints.LoadCheckpoint(context.Background())
	assert.Error(t, err)
	assert.Error(t, checkpoints.SaveCheckpoint(context.Background(), core.NewCheckpointSet("a")))
}

func savedAt(t *testing.T, backend *Backend, id core.TranscriptID) time.Time {
	t.Helper()
	var entry storage.CheckpointEntry
	err := backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = storage.UnmarshalCheckpointEntry(val)
			return err
		})
	}, false)
	require.NoError(t, err)
	return entry.SavedAt
}

func TestCheckpointRepository_SaveWritesOnlyChanges(t *testing.T) {
	checkpoints, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet("a")))
	first := savedAt(t, backend, "a")

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet("a", "b")))

	assert.True(t, first.Equal(savedAt(t, backend, "a")), "unchanged ids are not rewritten")
	assert.True(t, savedAt(t, backend, "b").After(first))
}

func TestCheckpointRepository_LargeSet(t *testing.T) {
	checkpoints, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	set := core.NewCheckpointSet()
	for i := 0; i < 50000; i++ {
		set.Add(core.TranscriptID(fmt.Sprintf("01HXTRANSCRIPT%08d", i)))
	}
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, set))

	loaded, err := checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50000, loaded.Len())

	// Reset to a small set removes the rest in one save.
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, core.NewCheckpointSet("01HXTRANSCRIPT00000007")))
	loaded, err = checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.TranscriptID{"01HXTRANSCRIPT00000007"}, loaded.IDs())
}
