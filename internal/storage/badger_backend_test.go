package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "badger")

		store := NewBadgerStore()
		err := store.Initialize(dbPath, false)

		assert.NoError(t, err)
		assert.NotNil(t, store.db)
		assert.True(t, store.initialized)

		store.Close()
	})

	t.Run("ReadOnly", func(t *testing.T) {
		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), "badger")

		// First create the DB
		store1 := NewBadgerStore()
		require.NoError(t, store1.Initialize(dbPath, false))
		require.NoError(t, store1.Put(ctx, "taxons", []byte(`[]`)))
		require.NoError(t, store1.Close())

		store2 := NewBadgerStore()
		require.NoError(t, store2.Initialize(dbPath, true))
		defer store2.Close()

		got, err := store2.Get(ctx, "taxons")
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
		assert.ErrorIs(t, store2.Put(ctx, "taxons", nil), ErrReadOnly)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		store := NewBadgerStore()
		err := store.Initialize("/nonexistent/path/that/does/not/exist", true)

		assert.Error(t, err)
	})

	t.Run("NotInitialized", func(t *testing.T) {
		store := NewBadgerStore()
		_, err := store.Get(context.Background(), "taxons")
		assert.Error(t, err)
	})
}

func TestBadgerStore_Persistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "badger")

	store := NewBadgerStore()
	require.NoError(t, store.Initialize(dbPath, false))
	require.NoError(t, store.Replace(ctx, map[string][]byte{
		"natureareas":        []byte(`[{"Id":1}]`),
		SnapshotKeyAreaIndex: []byte(`{"Height":1}`),
	}))
	require.NoError(t, store.Close())

	reopened := NewBadgerStore()
	require.NoError(t, reopened.Initialize(dbPath, false))
	defer reopened.Close()

	keys, err := reopened.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"natureareas", SnapshotKeyAreaIndex}, keys)
}

func TestBadgerStore_CanceledContext(t *testing.T) {
	t.Parallel()

	store := NewBadgerStore()
	require.NoError(t, store.Initialize(filepath.Join(t.TempDir(), "badger"), false))
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "taxons")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, "taxons", nil), context.Canceled)
}

func TestBadgerStore_Close(t *testing.T) {
	t.Parallel()

	store := NewBadgerStore()
	require.NoError(t, store.Initialize(filepath.Join(t.TempDir(), "badger"), false))

	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)
	assert.NoError(t, store.Close())
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ReadsExistingFiles", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "taxons.json"), []byte(`[]`), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0o644))

		s := NewFileStore()
		require.NoError(t, s.Initialize(dir, true))

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"taxons"}, keys)
		assert.ErrorIs(t, s.Put(ctx, "taxons", nil), ErrReadOnly)
	})

	t.Run("ReadOnlyMissingDir", func(t *testing.T) {
		s := NewFileStore()
		assert.Error(t, s.Initialize(filepath.Join(t.TempDir(), "missing"), true))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		s := NewFileStore()
		require.NoError(t, s.Initialize(t.TempDir(), false))

		assert.Error(t, s.Put(ctx, "../escape", []byte(`1`)))
		assert.Error(t, s.Put(ctx, "", []byte(`1`)))
		_, err := s.Get(ctx, "/etc/passwd")
		assert.Error(t, err)
	})
}
