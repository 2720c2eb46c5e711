// Package stattree aggregates taxon counts, nature area counts and area
// sums over one level of the code tree.
package stattree

// Node is one node of a statistics tree. Counting a taxon or nature area
// is idempotent per node and propagates to the parent, so an element
// reachable through several paths is counted once at every ancestor.
type Node struct {
	Code   string
	Name   string
	Parent *Node

	// HasDescendants is set when something was counted through a vertex
	// below the node rather than through the node itself.
	HasDescendants bool

	children    []*Node
	taxa        map[string]struct{}
	natureAreas map[string]struct{}
	area        float64
}

// NewNode creates a node and, when parent is set, appends it to the
// parent's children.
func NewNode(code, name string, parent *Node) *Node {
	n := &Node{
		Code:        code,
		Name:        name,
		Parent:      parent,
		taxa:        map[string]struct{}{},
		natureAreas: map[string]struct{}{},
	}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n
}

// Children returns the child nodes in insertion order.
func (n *Node) Children() []*Node { return n.children }

// TaxonCount returns the number of distinct taxa counted at n.
func (n *Node) TaxonCount() int { return len(n.taxa) }

// NatureAreaCount returns the number of distinct nature areas counted at n.
func (n *Node) NatureAreaCount() int { return len(n.natureAreas) }

// Area returns the summed area of the nature areas counted at n.
func (n *Node) Area() float64 { return n.area }

// CountTaxon counts taxon code at n and its ancestors.
func (n *Node) CountTaxon(code string) {
	for cur := n; cur != nil; cur = cur.Parent {
		if _, ok := cur.taxa[code]; ok {
			return
		}
		cur.taxa[code] = struct{}{}
	}
}

// CountNatureArea counts nature area code with the given area at n and its
// ancestors.
func (n *Node) CountNatureArea(code string, area float64) {
	for cur := n; cur != nil; cur = cur.Parent {
		if _, ok := cur.natureAreas[code]; ok {
			return
		}
		cur.natureAreas[code] = struct{}{}
		cur.area += area
	}
}
