package rtree

import "cmp"

// Node is either a data entry (Data plus its box, no children), a leaf
// holding data entries, or an internal node holding child nodes.
//
// Height is 1 for leaves and grows toward the root. Data entries have
// height 0 and IsLeaf false.
type Node[T comparable] struct {
	Data        T           `json:"Data"`
	BoundingBox BoundingBox `json:"BoundingBox"`
	IsLeaf      bool        `json:"IsLeaf"`
	Height      int         `json:"Height"`
	Children    []*Node[T]  `json:"Children"`
}

// NewItem creates a data entry ready to be inserted into a tree.
func NewItem[T comparable](data T, bbox BoundingBox) *Node[T] {
	return &Node[T]{Data: data, BoundingBox: bbox}
}

func newLeaf[T comparable](children []*Node[T]) *Node[T] {
	n := &Node[T]{IsLeaf: true, Height: 1, Children: children}
	n.refresh()
	return n
}

// refresh recomputes the box from the children.
func (n *Node[T]) refresh() {
	n.BoundingBox = boxOf(n.Children)
}

func boxOf[T comparable](nodes []*Node[T]) BoundingBox {
	b := EmptyBox()
	for _, child := range nodes {
		b = b.Extend(child.BoundingBox)
	}
	return b
}

func compareByX[T comparable](a, b *Node[T]) int {
	return cmp.Compare(a.BoundingBox.X1, b.BoundingBox.X1)
}

func compareByY[T comparable](a, b *Node[T]) int {
	return cmp.Compare(a.BoundingBox.Y1, b.BoundingBox.Y1)
}

func pop[T comparable](stack *[]*Node[T]) *Node[T] {
	s := *stack
	if len(s) == 0 {
		return nil
	}
	n := s[len(s)-1]
	*stack = s[:len(s)-1]
	return n
}
