package ingestion

import (
	"maps"
	"path/filepath"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/ninmem-go/internal/metrics"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/rtree"
	"github.com/Benny93/ninmem-go/internal/storage"
)

// writeDataDir writes docs as a data directory, one file per key.
func writeDataDir(t *testing.T, docs map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{"README.md": "# test data"}
	for key, content := range docs {
		files[key+DocumentExt] = string(content)
	}
	writeFiles(t, dir, files)
	return dir
}

func snapshotOf(t *testing.T, areas []model.NatureAreaDto) []byte {
	t.Helper()
	tree, err := BuildAreaIndex(t.Context(), areas, rtree.DefaultMaxEntries)
	require.NoError(t, err)
	data, err := tree.ToJSON()
	require.NoError(t, err)
	return data
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	var phases []string
	opts := Options{
		Metrics: metrics.New(),
		Progress: func(phase string, progress float64) {
			if progress == 1.0 {
				phases = append(phases, phase)
			}
		},
	}

	engine, result, err := RunPipeline(t.Context(), newTestStore(t, testDocs()), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Loading input",
		"Building graph",
		"Indexing nature areas",
		"Indexing taxon points",
		"Indexing text",
	}, phases)

	t.Run("Result", func(t *testing.T) {
		assert.False(t, result.AreaIndexRestored)
		assert.Equal(t, 2, result.NatureAreas)
		assert.Equal(t, 2, result.Points)
		assert.Positive(t, result.TextIndexSize)
		assert.Positive(t, result.AreaIndexHeight)
		assert.Equal(t, engine.Graph.VertexCount(), result.Vertices)
	})

	t.Run("Engine", func(t *testing.T) {
		assert.True(t, engine.Graph.Frozen())
		assert.False(t, engine.Built.IsZero())

		hits, err := engine.Search.FreeText("gran", 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "ar_100", hits[0].Code)

		codes, err := engine.Search.SearchByBBox("0,0,12,12")
		require.NoError(t, err)
		assert.Equal(t, []string{"ar_100", "no_1"}, codes)

		stats, err := engine.StatTree.Stats("", "", "")
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TaxonCount)
		assert.Equal(t, 2, stats.NatureAreaCount)
		assert.InDelta(t, 14.5, stats.Area, 1e-9)
	})

	t.Run("Metrics", func(t *testing.T) {
		n, err := testutil.GatherAndCount(opts.Metrics.Registry(), "ninmem_graph_vertices")
		require.NoError(t, err)
		assert.Positive(t, n)
	})
}

func TestRunPipeline_AreaIndexSnapshot(t *testing.T) {
	t.Parallel()

	input := loadTestInput(t)

	tests := []struct {
		name         string
		snapshot     []byte
		wantRestored bool
	}{
		{name: "Matching", snapshot: snapshotOf(t, input.NatureAreas), wantRestored: true},
		{name: "Stale", snapshot: snapshotOf(t, input.NatureAreas[:1])},
		{name: "Corrupt", snapshot: []byte(`{"height":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			docs := testDocs()
			docs[storage.SnapshotKeyAreaIndex] = tt.snapshot

			engine, result, err := RunPipeline(t.Context(), newTestStore(t, docs), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantRestored, result.AreaIndexRestored)
			assert.Equal(t, 2, engine.Areas.Len())
		})
	}
}

func TestRunPipeline_Errors(t *testing.T) {
	t.Parallel()

	t.Run("MissingDocument", func(t *testing.T) {
		t.Parallel()
		docs := testDocs()
		delete(docs, model.KeyCodeTree)

		_, _, err := RunPipeline(t.Context(), newTestStore(t, docs), Options{})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("InvalidEnvelope", func(t *testing.T) {
		t.Parallel()
		docs := testDocs()
		docs[model.KeyNatureAreas] = []byte(`[{"Id": 1, "Area": 1, "Envelope": "POLYGON(("}]`)

		_, _, err := RunPipeline(t.Context(), newTestStore(t, docs), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Indexing nature areas")
	})
}

func TestImportDir(t *testing.T) {
	t.Parallel()

	dir := writeDataDir(t, testDocs())

	store := storage.NewBadgerStore()
	require.NoError(t, store.Initialize(filepath.Join(t.TempDir(), "badger"), false))
	t.Cleanup(func() { _ = store.Close() })

	result, err := ImportDir(t.Context(), dir, store, Options{})
	require.NoError(t, err)
	assert.Len(t, result.Documents, len(testDocs()))
	assert.Equal(t, 2, result.NatureAreas)

	keys, err := store.Keys(t.Context())
	require.NoError(t, err)
	want := append(slices.Collect(maps.Keys(testDocs())), storage.SnapshotKeyAreaIndex)
	assert.ElementsMatch(t, want, keys)

	_, pipeline, err := RunPipeline(t.Context(), store, Options{})
	require.NoError(t, err)
	assert.True(t, pipeline.AreaIndexRestored)
}

func TestImportDir_InvalidLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	docs := testDocs()
	docs[model.KeyTaxons] = []byte(`[{"ScientificNameId": "x"}]`)
	dir := writeDataDir(t, docs)

	store := storage.NewFileStore()
	require.NoError(t, store.Initialize(t.TempDir(), false))
	require.NoError(t, store.Put(t.Context(), "existing", []byte(`{}`)))

	_, err := ImportDir(t.Context(), dir, store, Options{})
	require.Error(t, err)

	keys, err := store.Keys(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"existing"}, keys)
}

func TestLiveEngine_Reload(t *testing.T) {
	t.Parallel()

	first, _, err := RunPipeline(t.Context(), newTestStore(t, testDocs()), Options{})
	require.NoError(t, err)
	live := NewLiveEngine(first)
	assert.Same(t, first, live.Load())

	store := newTestStore(t, nil)
	m := metrics.New()
	opts := Options{Metrics: m}

	t.Run("Failure", func(t *testing.T) {
		docs := testDocs()
		docs[model.KeyNatureAreas] = []byte(`not json`)

		err := live.Reload(t.Context(), writeDataDir(t, docs), store, opts)
		require.Error(t, err)
		assert.Same(t, first, live.Load())
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, live.Reload(t.Context(), writeDataDir(t, testDocs()), store, opts))

		current := live.Load()
		assert.NotSame(t, first, current)
		assert.Equal(t, first.Graph.VertexCount(), current.Graph.VertexCount())
	})

	n, err := testutil.GatherAndCount(m.Registry(), "ninmem_reloads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
