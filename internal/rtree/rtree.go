package rtree

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// DefaultMaxEntries is the node capacity used when New is given zero.
const DefaultMaxEntries = 9

// RTree indexes values of type T by bounding box.
//
// An RTree is not safe for concurrent mutation. Once fully built it may be
// shared between goroutines that only call the read methods.
type RTree[T comparable] struct {
	maxEntries int
	minEntries int
	root       *Node[T]
}

// New creates an empty tree. maxEntries <= 0 selects DefaultMaxEntries;
// values below 4 are raised to 4.
func New[T comparable](maxEntries int) *RTree[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	maxEntries = max(4, maxEntries)

	t := &RTree[T]{
		maxEntries: maxEntries,
		minEntries: max(2, int(math.Ceil(float64(maxEntries)*0.4))),
	}
	t.Clear()
	return t
}

// MaxEntries returns the node capacity.
func (t *RTree[T]) MaxEntries() int { return t.maxEntries }

// MinEntries returns the minimum fill used by splits and bulk loading.
func (t *RTree[T]) MinEntries() int { return t.minEntries }

// Height returns the height of the root; an empty tree has height 1.
func (t *RTree[T]) Height() int { return t.root.Height }

// Len returns the number of data entries.
func (t *RTree[T]) Len() int { return len(t.All()) }

// Clear removes every entry.
func (t *RTree[T]) Clear() {
	t.root = newLeaf[T](nil)
}

// All returns every data entry in the tree.
func (t *RTree[T]) All() []*Node[T] {
	return collect(t.root, nil)
}

// Search returns the data entries whose boxes intersect bbox.
func (t *RTree[T]) Search(bbox BoundingBox) []*Node[T] {
	node := t.root
	if !bbox.Intersects(node.BoundingBox) {
		return nil
	}

	var result []*Node[T]
	var stack []*Node[T]

	for node != nil {
		for _, child := range node.Children {
			if !bbox.Intersects(child.BoundingBox) {
				continue
			}
			switch {
			case node.IsLeaf:
				result = append(result, child)
			case bbox.Contains(child.BoundingBox):
				result = collect(child, result)
			default:
				stack = append(stack, child)
			}
		}
		node = pop(&stack)
	}

	return result
}

// SearchData is Search projected onto the stored values.
func (t *RTree[T]) SearchData(bbox BoundingBox) []T {
	nodes := t.Search(bbox)
	data := make([]T, len(nodes))
	for i, n := range nodes {
		data[i] = n.Data
	}
	return data
}

// Collides reports whether any entry intersects bbox.
func (t *RTree[T]) Collides(bbox BoundingBox) bool {
	node := t.root
	if !bbox.Intersects(node.BoundingBox) {
		return false
	}

	var stack []*Node[T]
	for node != nil {
		for _, child := range node.Children {
			if !bbox.Intersects(child.BoundingBox) {
				continue
			}
			if node.IsLeaf || bbox.Contains(child.BoundingBox) {
				return true
			}
			stack = append(stack, child)
		}
		node = pop(&stack)
	}

	return false
}

// Load bulk inserts items. Small batches fall back to Insert; larger ones
// are packed into a new subtree which is then merged with the current root.
func (t *RTree[T]) Load(items []*Node[T]) {
	if len(items) == 0 {
		return
	}

	if len(items) < t.minEntries {
		for _, item := range items {
			t.Insert(item)
		}
		return
	}

	node := t.build(slices.Clone(items), 0, 0)

	switch {
	case len(t.root.Children) == 0:
		t.root = node
	case t.root.Height == node.Height:
		t.splitRoot(t.root, node)
	default:
		if t.root.Height < node.Height {
			t.root, node = node, t.root
		}
		t.insertAt(node, t.root.Height-node.Height-1)
	}
}

// Insert adds a single data entry.
func (t *RTree[T]) Insert(item *Node[T]) {
	t.insertAt(item, t.root.Height-1)
}

// Remove deletes every entry whose data equals item.Data. Only subtrees
// whose box contains item.BoundingBox are searched. Removing an entry that
// is not present is a no-op.
func (t *RTree[T]) Remove(item *Node[T]) {
	type frame struct {
		node *Node[T]
		path []*Node[T]
	}

	bbox := item.BoundingBox
	var found [][]*Node[T]

	stack := []frame{{node: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := append(slices.Clone(f.path), f.node)

		if f.node.IsLeaf {
			if slices.ContainsFunc(f.node.Children, func(c *Node[T]) bool { return c.Data == item.Data }) {
				found = append(found, path)
			}
			continue
		}

		for _, child := range f.node.Children {
			if child.BoundingBox.Contains(bbox) {
				stack = append(stack, frame{node: child, path: path})
			}
		}
	}

	for _, path := range found {
		leaf := path[len(path)-1]
		leaf.Children = slices.DeleteFunc(leaf.Children, func(c *Node[T]) bool { return c.Data == item.Data })
		t.condense(path)
	}
}

// ToJSON serializes the node tree.
func (t *RTree[T]) ToJSON() ([]byte, error) {
	return json.Marshal(t.root)
}

// FromJSON replaces the tree with a node tree produced by ToJSON.
func (t *RTree[T]) FromJSON(data []byte) error {
	var root *Node[T]
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("decoding rtree: %w", err)
	}

	if root == nil || len(root.Children) == 0 {
		t.Clear()
		return nil
	}
	if root.Height < 1 {
		return fmt.Errorf("decoding rtree: invalid root height %d", root.Height)
	}

	t.root = root
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t *RTree[T]) MarshalJSON() ([]byte, error) { return t.ToJSON() }

// UnmarshalJSON implements json.Unmarshaler. The receiver keeps its node
// capacity; a zero RTree gets DefaultMaxEntries.
func (t *RTree[T]) UnmarshalJSON(data []byte) error {
	if t.maxEntries == 0 {
		*t = *New[T](0)
	}
	return t.FromJSON(data)
}

// build packs items into a subtree (OMT). level 0 computes the target
// height and root fan-out; deeper levels reuse them.
func (t *RTree[T]) build(items []*Node[T], level, height int) *Node[T] {
	n := len(items)
	m := t.maxEntries

	if n <= m {
		return newLeaf(slices.Clone(items))
	}

	if level == 0 {
		height = int(math.Ceil(math.Log(float64(n)) / math.Log(float64(m))))
		m = int(math.Ceil(float64(n) / math.Pow(float64(m), float64(height-1))))
		slices.SortStableFunc(items, compareByX[T])
	}

	node := &Node[T]{Height: height}

	n2 := int(math.Ceil(float64(n) / float64(m)))
	n1 := n2 * int(math.Ceil(math.Sqrt(float64(m))))

	compare := compareByY[T]
	if level%2 == 1 {
		compare = compareByX[T]
	}

	for i := 0; i < n; i += n1 {
		slice := items[i:min(i+n1, n)]
		slices.SortStableFunc(slice, compare)

		for j := 0; j < len(slice); j += n2 {
			child := t.build(slice[j:min(j+n2, len(slice))], level+1, height-1)
			node.Children = append(node.Children, child)
		}
	}

	node.refresh()
	return node
}

func (t *RTree[T]) insertAt(item *Node[T], level int) {
	bbox := item.BoundingBox
	node, path := t.chooseSubtree(bbox, t.root, level)

	node.Children = append(node.Children, item)
	node.BoundingBox = node.BoundingBox.Extend(bbox)

	for level >= 0 && len(path[level].Children) > t.maxEntries {
		t.split(path, level)
		level--
	}

	for i := level; i >= 0; i-- {
		path[i].BoundingBox = path[i].BoundingBox.Extend(bbox)
	}
}

// chooseSubtree descends to the node at depth level that needs the least
// area enlargement to include bbox, tie-broken by the smaller area.
func (t *RTree[T]) chooseSubtree(bbox BoundingBox, node *Node[T], level int) (*Node[T], []*Node[T]) {
	var path []*Node[T]

	for {
		path = append(path, node)
		if node.IsLeaf || len(path)-1 == level {
			return node, path
		}

		var target *Node[T]
		minEnlargement := math.Inf(1)
		minArea := math.Inf(1)

		for _, child := range node.Children {
			area := child.BoundingBox.Area()
			enlargement := child.BoundingBox.EnlargedArea(bbox) - area

			if enlargement < minEnlargement || (enlargement == minEnlargement && area < minArea) {
				minEnlargement = enlargement
				minArea = area
				target = child
			}
		}

		if target == nil {
			return node, path
		}
		node = target
	}
}

func (t *RTree[T]) split(path []*Node[T], level int) {
	node := path[level]
	total := len(node.Children)
	m := t.minEntries

	t.chooseSplitAxis(node, m, total)
	index := t.chooseSplitIndex(node, m, total)

	sibling := &Node[T]{
		IsLeaf:   node.IsLeaf,
		Height:   node.Height,
		Children: slices.Clone(node.Children[index:]),
	}
	node.Children = slices.Clip(node.Children[:index])

	node.refresh()
	sibling.refresh()

	if level > 0 {
		parent := path[level-1]
		parent.Children = append(parent.Children, sibling)
		return
	}
	t.splitRoot(node, sibling)
}

func (t *RTree[T]) splitRoot(a, b *Node[T]) {
	t.root = &Node[T]{
		Height:   a.Height + 1,
		Children: []*Node[T]{a, b},
	}
	t.root.refresh()
}

// chooseSplitAxis leaves the children sorted along the axis with the
// smaller total margin.
func (t *RTree[T]) chooseSplitAxis(node *Node[T], m, total int) {
	xMargin := allDistMargin(node, m, total, compareByX[T])
	yMargin := allDistMargin(node, m, total, compareByY[T])

	if xMargin < yMargin {
		slices.SortStableFunc(node.Children, compareByX[T])
	}
}

func (t *RTree[T]) chooseSplitIndex(node *Node[T], m, total int) int {
	index := total - m
	minOverlap := math.Inf(1)
	minArea := math.Inf(1)

	for i := m; i <= total-m; i++ {
		left := boxOf(node.Children[:i])
		right := boxOf(node.Children[i:])

		overlap := left.IntersectionArea(right)
		area := left.Area() + right.Area()

		switch {
		case overlap < minOverlap:
			minOverlap = overlap
			index = i
			minArea = math.Min(minArea, area)
		case overlap == minOverlap && area < minArea:
			minArea = area
			index = i
		}
	}

	return index
}

// allDistMargin sorts the children with compare and sums the margins of
// every distribution allowed by the minimum fill.
func allDistMargin[T comparable](node *Node[T], m, total int, compare func(a, b *Node[T]) int) float64 {
	slices.SortStableFunc(node.Children, compare)

	left := boxOf(node.Children[:m])
	right := boxOf(node.Children[total-m:])
	margin := left.Margin() + right.Margin()

	for i := m; i < total-m; i++ {
		left = left.Extend(node.Children[i].BoundingBox)
		margin += left.Margin()
	}

	for i := total - m - 1; i >= m; i-- {
		right = right.Extend(node.Children[i].BoundingBox)
		margin += right.Margin()
	}

	return margin
}

// condense walks a removal path bottom-up, dropping emptied nodes and
// refreshing the boxes of the rest.
func (t *RTree[T]) condense(path []*Node[T]) {
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		if len(node.Children) > 0 {
			node.refresh()
			continue
		}

		if i == 0 {
			t.Clear()
			return
		}

		parent := path[i-1]
		parent.Children = slices.DeleteFunc(parent.Children, func(c *Node[T]) bool { return c == node })
	}
}

// collect appends every data entry below node to result.
func collect[T comparable](node *Node[T], result []*Node[T]) []*Node[T] {
	stack := []*Node[T]{node}

	for n := pop(&stack); n != nil; n = pop(&stack) {
		if n.IsLeaf {
			result = append(result, n.Children...)
			continue
		}
		stack = append(stack, n.Children...)
	}

	return result
}
