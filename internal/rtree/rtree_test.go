package rtree

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPoints = [][4]float64{
	{0, 0, 0, 0}, {10, 10, 10, 10}, {20, 20, 20, 20}, {25, 0, 25, 0}, {35, 10, 35, 10}, {45, 20, 45, 20},
	{0, 25, 0, 25}, {10, 35, 10, 35}, {20, 45, 20, 45}, {25, 25, 25, 25}, {35, 35, 35, 35}, {45, 45, 45, 45},
	{50, 0, 50, 0}, {60, 10, 60, 10}, {70, 20, 70, 20}, {75, 0, 75, 0}, {85, 10, 85, 10}, {95, 20, 95, 20},
	{50, 25, 50, 25}, {60, 35, 60, 35}, {70, 45, 70, 45}, {75, 25, 75, 25}, {85, 35, 85, 35}, {95, 45, 95, 45},
	{0, 50, 0, 50}, {10, 60, 10, 60}, {20, 70, 20, 70}, {25, 50, 25, 50}, {35, 60, 35, 60}, {45, 70, 45, 70},
	{0, 75, 0, 75}, {10, 85, 10, 85}, {20, 95, 20, 95}, {25, 75, 25, 75}, {35, 85, 35, 85}, {45, 95, 45, 95},
	{50, 50, 50, 50}, {60, 60, 60, 60}, {70, 70, 70, 70}, {75, 50, 75, 50}, {85, 60, 85, 60}, {95, 70, 95, 70},
	{50, 75, 50, 75}, {60, 85, 60, 85}, {70, 95, 70, 95}, {75, 75, 75, 75}, {85, 85, 85, 85}, {95, 95, 95, 95},
}

// testData returns the fixture points with data values 1..48.
func testData() []*Node[int] {
	items := make([]*Node[int], len(testPoints))
	for i, p := range testPoints {
		items[i] = NewItem(i+1, NewBoundingBox(p[0], p[1], p[2], p[3]))
	}
	return items
}

func someData(n int) []*Node[int] {
	items := make([]*Node[int], n)
	for i := range n {
		f := float64(i)
		items[i] = NewItem(i, NewBoundingBox(f, f, f, f))
	}
	return items
}

func values(nodes []*Node[int]) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Data
	}
	slices.Sort(out)
	return out
}

// assertBoxesTight checks that every internal box is the union of its children
// and that no node exceeds the capacity.
func assertBoxesTight(t *testing.T, tree *RTree[int]) {
	t.Helper()

	stack := []*Node[int]{tree.root}
	for n := pop(&stack); n != nil; n = pop(&stack) {
		if len(n.Children) == 0 {
			continue
		}
		assert.LessOrEqual(t, len(n.Children), tree.MaxEntries())
		assert.Equal(t, boxOf(n.Children), n.BoundingBox)
		if !n.IsLeaf {
			stack = append(stack, n.Children...)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("DefaultCapacity", func(t *testing.T) {
		t.Parallel()
		tree := New[int](0)
		assert.Equal(t, 9, tree.MaxEntries())
		assert.Equal(t, 4, tree.MinEntries())
		assert.Equal(t, 1, tree.Height())
		assert.Empty(t, tree.All())
	})

	t.Run("MinimumCapacity", func(t *testing.T) {
		t.Parallel()
		tree := New[int](2)
		assert.Equal(t, 4, tree.MaxEntries())
		assert.Equal(t, 2, tree.MinEntries())
	})

	t.Run("DefaultHeightBoundary", func(t *testing.T) {
		t.Parallel()
		one := New[int](0)
		one.Load(someData(9))
		assert.Equal(t, 1, one.Height())

		two := New[int](0)
		two.Load(someData(10))
		assert.Equal(t, 2, two.Height())
	})
}

func TestRTree_Load(t *testing.T) {
	t.Parallel()

	t.Run("BulkLoad", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())

		assert.Equal(t, values(testData()), values(tree.All()))
		assertBoxesTight(t, tree)
	})

	t.Run("SmallBatchUsesInsert", func(t *testing.T) {
		t.Parallel()
		data := testData()[:3]

		loaded := New[int](8)
		loaded.Load(data)

		inserted := New[int](8)
		for _, item := range data {
			inserted.Insert(item)
		}

		a, err := loaded.ToJSON()
		require.NoError(t, err)
		b, err := inserted.ToJSON()
		require.NoError(t, err)
		assert.JSONEq(t, string(b), string(a))
	})

	t.Run("MergeEqualHeights", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())
		tree.Load(testData())

		assert.Equal(t, 4, tree.Height())
		assert.Len(t, tree.All(), 2*len(testPoints))
		assertBoxesTight(t, tree)
	})

	t.Run("MergeSmallerIntoTaller", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())
		tree.Load(testData()[:10])

		assert.Len(t, tree.All(), len(testPoints)+10)
		assertBoxesTight(t, tree)
	})

	t.Run("MergeTallerIntoSmaller", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData()[:10])
		tree.Load(testData())

		assert.Len(t, tree.All(), len(testPoints)+10)
		assertBoxesTight(t, tree)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(nil)
		assert.Empty(t, tree.All())
		assert.Equal(t, 1, tree.Height())
	})

	t.Run("DoesNotReorderCallerSlice", func(t *testing.T) {
		t.Parallel()
		data := testData()
		want := values(data)
		first := data[0]

		tree := New[int](4)
		tree.Load(data)

		assert.Same(t, first, data[0])
		assert.Equal(t, want, values(data))
	})
}

func TestRTree_Search(t *testing.T) {
	t.Parallel()

	tree := New[int](4)
	tree.Load(testData())

	t.Run("FindsMatchingPoints", func(t *testing.T) {
		t.Parallel()
		got := tree.Search(NewBoundingBox(40, 20, 80, 70))

		// points with 40<=x<=80 and 20<=y<=70
		assert.Equal(t, []int{6, 12, 15, 19, 20, 21, 22, 30, 37, 38, 39, 40}, values(got))
	})

	t.Run("NoMatch", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, tree.Search(NewBoundingBox(200, 200, 210, 210)))
	})

	t.Run("EmptyTree", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, New[int](4).Search(NewBoundingBox(0, 0, 100, 100)))
	})

	t.Run("SearchData", func(t *testing.T) {
		t.Parallel()
		got := tree.SearchData(NewBoundingBox(0, 0, 0, 0))
		assert.Equal(t, []int{1}, got)
	})
}

func TestRTree_Collides(t *testing.T) {
	t.Parallel()

	tree := New[int](4)
	tree.Load(testData())

	assert.True(t, tree.Collides(NewBoundingBox(40, 20, 80, 70)))
	assert.True(t, tree.Collides(NewBoundingBox(95, 95, 100, 100)))
	assert.False(t, tree.Collides(NewBoundingBox(200, 200, 210, 210)))
	assert.False(t, New[int](4).Collides(NewBoundingBox(0, 0, 1, 1)))
}

func TestRTree_Insert(t *testing.T) {
	t.Parallel()

	t.Run("SplitsOverflowingRoot", func(t *testing.T) {
		t.Parallel()
		data := testData()

		tree := New[int](4)
		tree.Load(data[:3])
		tree.Insert(data[3])
		assert.Equal(t, 1, tree.Height())
		assert.Equal(t, values(data[:4]), values(tree.All()))

		tree.Insert(NewItem(100, NewBoundingBox(1, 1, 2, 2)))
		assert.Equal(t, 2, tree.Height())
		assert.Len(t, tree.All(), 5)
		assertBoxesTight(t, tree)
	})

	t.Run("HeightCloseToBulkLoad", func(t *testing.T) {
		t.Parallel()
		bulk := New[int](4)
		bulk.Load(testData())

		single := New[int](4)
		for _, item := range testData() {
			single.Insert(item)
		}

		assert.InDelta(t, bulk.Height(), single.Height(), 1)
		assert.Equal(t, values(bulk.All()), values(single.All()))
		assertBoxesTight(t, single)
	})

	t.Run("SearchMatchesBulkLoad", func(t *testing.T) {
		t.Parallel()
		rng := rand.New(rand.NewPCG(7, 11))

		var items []*Node[int]
		for i := range 500 {
			x, y := rng.Float64()*1000, rng.Float64()*1000
			items = append(items, NewItem(i, NewBoundingBox(x, y, x+rng.Float64()*20, y+rng.Float64()*20)))
		}

		bulk := New[int](0)
		bulk.Load(items)

		single := New[int](0)
		for _, item := range items {
			single.Insert(item)
		}
		assertBoxesTight(t, bulk)
		assertBoxesTight(t, single)

		for i := range 20 {
			x, y := float64(i*50), float64(i*40)
			q := NewBoundingBox(x, y, x+150, y+150)
			assert.Equal(t, values(bulk.Search(q)), values(single.Search(q)), "query %s", q)
		}
	})
}

func TestRTree_Remove(t *testing.T) {
	t.Parallel()

	t.Run("RemovesItems", func(t *testing.T) {
		t.Parallel()
		data := testData()
		tree := New[int](4)
		tree.Load(data)

		for _, item := range slices.Concat(data[:3], data[len(data)-3:]) {
			tree.Remove(item)
		}

		assert.Equal(t, values(data[3:len(data)-3]), values(tree.All()))
		assertBoxesTight(t, tree)
	})

	t.Run("MissingItemIsNoop", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())

		tree.Remove(NewItem(999, NewBoundingBox(13, 13, 13, 13)))
		tree.Remove(NewItem(1, NewBoundingBox(500, 500, 500, 500)))
		assert.Len(t, tree.All(), len(testPoints))
	})

	t.Run("RemoveAllEmptiesTree", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())
		for _, item := range testData() {
			tree.Remove(item)
		}

		assert.Empty(t, tree.All())
		assert.Equal(t, 1, tree.Height())
		assert.True(t, tree.root.IsLeaf)
	})

	t.Run("InsertThenRemoveRestoresAll", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())
		before := values(tree.All())

		extra := NewItem(77, NewBoundingBox(12, 12, 14, 14))
		tree.Insert(extra)
		tree.Remove(extra)

		assert.Equal(t, before, values(tree.All()))
	})

	t.Run("RemovesEveryEqualEntry", func(t *testing.T) {
		t.Parallel()
		data := testData()
		tree := New[int](4)
		tree.Load(data)
		tree.Insert(data[0])
		tree.Remove(data[0])

		assert.Equal(t, values(data[1:]), values(tree.All()))
	})
}

func TestRTree_Clear(t *testing.T) {
	t.Parallel()

	tree := New[int](4)
	tree.Load(testData())
	tree.Clear()

	got, err := tree.ToJSON()
	require.NoError(t, err)
	want, err := New[int](4).ToJSON()
	require.NoError(t, err)

	assert.JSONEq(t, string(want), string(got))
}

func TestRTree_JSON(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()
		tree := New[int](4)
		tree.Load(testData())

		data, err := tree.ToJSON()
		require.NoError(t, err)

		restored := New[int](4)
		require.NoError(t, restored.FromJSON(data))

		assert.Equal(t, tree.Height(), restored.Height())
		assert.Equal(t, values(tree.All()), values(restored.All()))

		for _, q := range []BoundingBox{
			NewBoundingBox(40, 20, 80, 70),
			NewBoundingBox(0, 0, 30, 30),
			NewBoundingBox(90, 90, 100, 100),
		} {
			assert.Equal(t, values(tree.Search(q)), values(restored.Search(q)), fmt.Sprint(q))
		}
	})

	t.Run("EmptyTreeRoundTrip", func(t *testing.T) {
		t.Parallel()
		data, err := New[string](0).ToJSON()
		require.NoError(t, err)

		restored := New[string](0)
		require.NoError(t, restored.FromJSON(data))
		assert.Empty(t, restored.All())
		assert.False(t, restored.Collides(NewBoundingBox(0, 0, 1, 1)))
	})

	t.Run("Marshaler", func(t *testing.T) {
		t.Parallel()
		tree := New[string](0)
		tree.Insert(NewItem("no_1", NewBoundingBox(1, 2, 3, 4)))

		data, err := tree.MarshalJSON()
		require.NoError(t, err)

		var restored RTree[string]
		require.NoError(t, restored.UnmarshalJSON(data))
		assert.Equal(t, []string{"no_1"}, restored.SearchData(NewBoundingBox(0, 0, 10, 10)))
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, New[int](0).FromJSON([]byte("{")))
	})
}
