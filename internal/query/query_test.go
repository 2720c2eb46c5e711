package query

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/ninmem-go/internal/geo"
	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/ingestion"
	"github.com/Benny93/ninmem-go/internal/metrics"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/rtree"
	"github.com/Benny93/ninmem-go/internal/search"
	"github.com/Benny93/ninmem-go/internal/stattree"
)

// newTestEngine builds ~ ─ ao ─ ao_03 and ~ ─ ar ─ ar_100, with nature
// area no_1 and taxon ar_100 in ao_03.
func newTestEngine(t *testing.T) *ingestion.Engine {
	t.Helper()
	g := graph.New(model.Schema)

	add := func(label graph.Label, code, name, parent string) *graph.Vertex {
		v, err := g.AddV(label, code)
		require.NoError(t, err)
		require.NoError(t, v.AddP(model.PropName, name))
		if parent != "" {
			p, err := g.V(parent)
			require.NoError(t, err)
			_, err = v.AddE(model.Child, p)
			require.NoError(t, err)
		}
		return v
	}

	add(model.TreeNode, "~", "Katalog", "")
	add(model.TreeNode, "ao", "Fylker", "~")
	add(model.TreeNode, "ar", "Liv", "~")
	oslo := add(model.AdministrativeArea, "ao_03", "Oslo", "ao")
	spruce := add(model.Taxon, "ar_100", "Picea abies", "ar")
	require.NoError(t, spruce.AddP(model.PropNames, map[string]string{"nb": "gran", "la": "Picea abies"}))
	no1 := add(model.NatureArea, "no_1", "", "")
	require.NoError(t, no1.AddP(model.PropArea, 7.5))

	for _, member := range []*graph.Vertex{no1, spruce} {
		_, err := oslo.AddE(model.In, member)
		require.NoError(t, err)
	}
	g.Freeze()

	areas := rtree.New[string](rtree.DefaultMaxEntries)
	areas.Load([]*rtree.Node[string]{rtree.NewItem("no_1", rtree.NewBoundingBox(0, 0, 10, 10))})
	points := geo.NewPointIndex([]geo.Point{{Code: "ar_100", X: 50, Y: 50}})

	cs := search.New(g, areas, points)
	stats, err := stattree.NewService(stattree.NewAggregator(cs), 0, nil)
	require.NoError(t, err)

	return &ingestion.Engine{Graph: g, Areas: areas, Points: points, Search: cs, StatTree: stats}
}

func TestService_Queries(t *testing.T) {
	t.Parallel()

	s := New(ingestion.NewLiveEngine(newTestEngine(t)), nil)

	t.Run("Search", func(t *testing.T) {
		t.Parallel()
		hits, err := s.Search("gran", 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "ar_100", hits[0].Code)
		require.NotNil(t, hits[0].Parent)
		assert.Equal(t, "ar", hits[0].Parent.Code)
	})

	t.Run("Codes", func(t *testing.T) {
		t.Parallel()
		codes, err := s.Codes("ao_03", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"ar_100", "no_1"}, codes)

		codes, err = s.Codes("ao_03", "0,0,5,5")
		require.NoError(t, err)
		assert.Equal(t, []string{"no_1"}, codes)
	})

	t.Run("Stats", func(t *testing.T) {
		t.Parallel()
		r, err := s.Stats("", "", "")
		require.NoError(t, err)
		assert.Equal(t, 1, r.TaxonCount)
		assert.Equal(t, 1, r.NatureAreaCount)
		assert.InDelta(t, 7.5, r.Area, 1e-9)
	})

	t.Run("Tree", func(t *testing.T) {
		t.Parallel()
		node, err := s.Tree("ao")
		require.NoError(t, err)
		assert.Equal(t, "Fylker", node.Name)
		assert.Equal(t, []search.TreeChild{{Code: "ao_03", Name: "Oslo"}}, node.Children)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		t.Parallel()
		_, err := s.Tree("ao_99")
		assert.ErrorIs(t, err, graph.ErrNotFound)
	})
}

func TestService_Overview(t *testing.T) {
	t.Parallel()

	s := New(ingestion.NewLiveEngine(newTestEngine(t)), nil)

	o, err := s.Overview()
	require.NoError(t, err)
	assert.Equal(t, 6, o.Vertices)
	assert.Equal(t, 6, o.Edges)
	assert.Equal(t, 3, o.Labels["TreeNode"])
	assert.Equal(t, 1, o.AreaIndexSize)
	assert.Equal(t, 1, o.Points)
	assert.Positive(t, o.TextIndexSize)
	assert.Equal(t, []string{"AdministrativeArea", "NatureArea", "Taxon", "TreeNode"}, o.SortedLabels())
}

func TestService_NoEngine(t *testing.T) {
	t.Parallel()

	for name, s := range map[string]*Service{
		"NilEngines": New(nil, nil),
		"EmptyLive":  New(ingestion.NewLiveEngine(nil), nil),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := s.Search("gran", 5)
			assert.ErrorIs(t, err, ErrNoEngine)
			_, err = s.Codes("ao", "")
			assert.ErrorIs(t, err, ErrNoEngine)
			_, err = s.Stats("", "", "")
			assert.ErrorIs(t, err, ErrNoEngine)
			_, err = s.Tree("")
			assert.ErrorIs(t, err, ErrNoEngine)
			_, err = s.Overview()
			assert.ErrorIs(t, err, ErrNoEngine)
		})
	}
}

func TestService_Metrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	s := New(ingestion.NewLiveEngine(newTestEngine(t)), m)

	_, err := s.Search("gran", 5)
	require.NoError(t, err)
	_, err = s.Search("", 5)
	require.ErrorIs(t, err, search.ErrInvalidArgument)
	_, err = s.Tree("")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "ninmem_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
