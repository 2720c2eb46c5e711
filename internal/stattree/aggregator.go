package stattree

import (
	"fmt"

	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/search"
)

// Aggregator builds statistics trees from the graph behind a CodeSearch.
type Aggregator struct {
	g      *graph.G
	search *search.CodeSearch
}

// NewAggregator returns an Aggregator over s.
func NewAggregator(s *search.CodeSearch) *Aggregator {
	return &Aggregator{g: s.Graph(), search: s}
}

type walk struct {
	g    *graph.G
	top  map[string]*Node
	bbox map[string]struct{}
}

// Build counts, below root and each of its immediate children, the taxa
// and nature areas reachable from codes. A bbox that hits anything restricts
// the counted elements to those inside it. Unknown codes fail the whole build.
func (a *Aggregator) Build(root, codes, bbox string) (*Node, error) {
	rootVertex, err := a.g.V(root)
	if err != nil {
		return nil, err
	}

	groups := search.GroupCodes(codes)
	for _, group := range groups {
		for _, code := range group.Codes {
			if _, err := a.g.V(code); err != nil {
				return nil, err
			}
		}
	}

	w := &walk{g: a.g, top: map[string]*Node{}}
	if !isBlank(bbox) {
		hits, err := a.search.SearchByBBox(bbox)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			w.bbox = make(map[string]struct{}, len(hits))
			for _, code := range hits {
				w.bbox[code] = struct{}{}
			}
		}
	}

	rootNode := NewNode(rootVertex.ID(), rootVertex.Name(), nil)
	w.top[rootNode.Code] = rootNode
	for _, child := range rootVertex.In(model.Child) {
		if _, ok := w.top[child.ID()]; ok {
			continue
		}
		w.top[child.ID()] = NewNode(child.ID(), child.Name(), rootNode)
	}

	for _, group := range groups {
		for _, code := range group.Codes {
			start, _ := a.g.TryGetV(code)
			if err := w.from(start); err != nil {
				return nil, err
			}
		}
	}
	return rootNode, nil
}

// from walks the code subtree below start. A vertex that is not itself
// counted has the members it contains counted instead.
func (w *walk) from(start *graph.Vertex) error {
	processed := map[string]struct{}{}
	pushed := map[string]struct{}{start.ID(): {}}
	stack := []*graph.Vertex{start}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, done := processed[v.ID()]; !done && w.relevant(v) {
			if err := w.count(v); err != nil {
				return err
			}
			processed[v.ID()] = struct{}{}
		} else {
			for _, member := range v.Out(model.In) {
				if _, done := processed[member.ID()]; done || !w.relevant(member) {
					continue
				}
				if err := w.count(member); err != nil {
					return err
				}
				processed[member.ID()] = struct{}{}
			}
		}

		for _, child := range v.In(model.Child) {
			if _, ok := pushed[child.ID()]; ok {
				continue
			}
			pushed[child.ID()] = struct{}{}
			stack = append(stack, child)
		}
	}
	return nil
}

func (w *walk) relevant(v *graph.Vertex) bool {
	if v.Label() != model.NatureArea && v.Label() != model.Taxon {
		return false
	}
	if w.bbox == nil {
		return true
	}
	_, ok := w.bbox[v.ID()]
	return ok
}

func (w *walk) count(v *graph.Vertex) error {
	switch v.Label() {
	case model.NatureArea:
		area, err := graph.ValueOf[float64](v, model.PropArea)
		if err != nil {
			return fmt.Errorf("counting nature area: %w", err)
		}
		for _, container := range v.In(model.In) {
			if node := w.lowestTopNode(container); node != nil {
				node.CountNatureArea(v.ID(), area)
			}
		}
	case model.Taxon:
		if node := w.lowestTopNode(v); node != nil {
			node.CountTaxon(v.ID())
		}
		for _, container := range v.In(model.In) {
			if node := w.lowestTopNode(container); node != nil {
				node.CountTaxon(v.ID())
			}
		}
	}
	return nil
}

// lowestTopNode follows parent links from v to the first vertex that has a
// top node. The node is flagged as having descendants unless it belongs to
// v itself.
func (w *walk) lowestTopNode(v *graph.Vertex) *Node {
	limit := w.g.VertexCount()
	for cur, hops := v, 0; cur != nil && hops <= limit; cur, hops = cur.Parent(), hops+1 {
		node, ok := w.top[cur.ID()]
		if !ok {
			continue
		}
		if cur != v {
			node.HasDescendants = true
		}
		return node
	}
	return nil
}
