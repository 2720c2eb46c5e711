package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{"Memory", func(t *testing.T) Store {
			s := NewMemoryStore(nil)
			require.NoError(t, s.Initialize("", false))
			return s
		}},
		{"Badger", func(t *testing.T) Store {
			t.Helper()
			s := NewBadgerStore()
			require.NoError(t, s.Initialize(filepath.Join(t.TempDir(), "badger"), false))
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{"File", func(t *testing.T) Store {
			t.Helper()
			s := NewFileStore()
			require.NoError(t, s.Initialize(filepath.Join(t.TempDir(), "docs"), false))
			return s
		}},
	}
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()

			t.Run("GetMissing", func(t *testing.T) {
				s := f.open(t)
				_, err := s.Get(ctx, "taxons")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("PutGet", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Put(ctx, "taxons", []byte(`[1]`)))
				require.NoError(t, s.Put(ctx, "taxons", []byte(`[2]`)))

				got, err := s.Get(ctx, "taxons")
				require.NoError(t, err)
				assert.Equal(t, `[2]`, string(got))
			})

			t.Run("NestedKey", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Put(ctx, SnapshotKeyAreaIndex, []byte(`{}`)))
				require.NoError(t, s.Put(ctx, "code_tree", []byte(`{}`)))

				keys, err := s.Keys(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"code_tree", SnapshotKeyAreaIndex}, keys)
			})

			t.Run("Delete", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Put(ctx, "a", []byte(`1`)))
				require.NoError(t, s.Delete(ctx, "a"))
				require.NoError(t, s.Delete(ctx, "a"))

				_, err := s.Get(ctx, "a")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("Replace", func(t *testing.T) {
				s := f.open(t)
				require.NoError(t, s.Put(ctx, "old", []byte(`1`)))
				require.NoError(t, s.Replace(ctx, map[string][]byte{
					"natureareas": []byte(`[]`),
					"taxons":      []byte(`[]`),
				}))

				keys, err := s.Keys(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"natureareas", "taxons"}, keys)

				docs, err := Snapshot(ctx, s)
				require.NoError(t, err)
				assert.Equal(t, map[string][]byte{
					"natureareas": []byte(`[]`),
					"taxons":      []byte(`[]`),
				}, docs)
			})

			t.Run("JSON", func(t *testing.T) {
				s := f.open(t)
				type doc struct {
					ID   int
					Name string
				}
				require.NoError(t, PutJSON(ctx, s, "doc", []doc{{1, "a"}, {2, "b"}}))

				got, err := GetJSON[[]doc](ctx, s, "doc")
				require.NoError(t, err)
				assert.Equal(t, []doc{{1, "a"}, {2, "b"}}, got)

				_, err = GetJSON[[]doc](ctx, s, "missing")
				assert.ErrorIs(t, err, ErrNotFound)

				require.NoError(t, s.Put(ctx, "broken", []byte(`{`)))
				_, err = GetJSON[[]doc](ctx, s, "broken")
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrNotFound)
			})

			t.Run("ConcurrentAccess", func(t *testing.T) {
				s := f.open(t)
				var wg sync.WaitGroup
				for i := range 10 {
					wg.Add(1)
					go func(id int) {
						defer wg.Done()
						_ = s.Put(ctx, fmt.Sprintf("key%d", id), []byte(`true`))
					}(i)
				}
				wg.Wait()

				keys, err := s.Keys(ctx)
				require.NoError(t, err)
				assert.Len(t, keys, 10)
			})
		})
	}
}

func TestMemoryStore_ReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(map[string][]byte{"a": []byte(`1`)})
	require.NoError(t, s.Initialize("", true))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `1`, string(got))

	assert.ErrorIs(t, s.Put(ctx, "b", nil), ErrReadOnly)
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrReadOnly)
	assert.ErrorIs(t, s.Replace(ctx, nil), ErrReadOnly)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	value := []byte(`abc`)
	s := NewMemoryStore(map[string][]byte{"a": value})
	value[0] = 'x'

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `abc`, string(got))

	got[0] = 'y'
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `abc`, string(again))
}
