// Package graph provides the data model of the in-memory property graph.
//
// Vertices and edges carry an integer label and a property bag keyed by
// small integer property keys. Edges are only ever created through
// Vertex.AddE, which registers the edge with both endpoints and the owning
// graph in one step.
package graph

import (
	"errors"
	"fmt"
	"iter"
	"maps"
)

var (
	// ErrNotFound is returned when a vertex, edge or property does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an id or property key is added twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrFrozen is returned by every mutation attempted after G.Freeze.
	ErrFrozen = errors.New("graph is frozen")

	// ErrPropertyType is returned when a property holds a different type
	// than the one requested.
	ErrPropertyType = errors.New("unexpected property type")
)

// Label classifies a vertex or an edge.
type Label int

// PropertyKey identifies a property in an element's property bag.
type PropertyKey int

// Element is the part shared by vertices and edges.
type Element struct {
	id         string
	label      Label
	properties map[PropertyKey]any
	g          *G
}

// ID returns the lowercased id.
func (e *Element) ID() string { return e.id }

// Label returns the element's label.
func (e *Element) Label() Label { return e.label }

// HasValue reports whether the property is set.
func (e *Element) HasValue(key PropertyKey) bool {
	_, ok := e.properties[key]
	return ok
}

// Value returns the raw property value.
func (e *Element) Value(key PropertyKey) (any, bool) {
	v, ok := e.properties[key]
	return v, ok
}

// Properties returns a copy of the property bag.
func (e *Element) Properties() map[PropertyKey]any {
	return maps.Clone(e.properties)
}

func (e *Element) addP(key PropertyKey, value any) error {
	if e.g.frozen {
		return fmt.Errorf("set property %d on %q: %w", key, e.id, ErrFrozen)
	}
	if _, ok := e.properties[key]; ok {
		return fmt.Errorf("set property %d on %q: %w", key, e.id, ErrDuplicateKey)
	}
	if e.properties == nil {
		e.properties = make(map[PropertyKey]any)
	}
	e.properties[key] = value
	return nil
}

// PropertyHolder is implemented by *Vertex and *Edge.
type PropertyHolder interface {
	ID() string
	Value(key PropertyKey) (any, bool)
}

// ValueOf returns a typed property value.
func ValueOf[T any](h PropertyHolder, key PropertyKey) (T, error) {
	var zero T

	raw, ok := h.Value(key)
	if !ok {
		return zero, fmt.Errorf("property %d on %q: %w", key, h.ID(), ErrNotFound)
	}

	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("property %d on %q is %T: %w", key, h.ID(), raw, ErrPropertyType)
	}
	return v, nil
}

// Edge is a directed edge. Source is the vertex AddE was called on and
// Target the vertex passed to it.
type Edge struct {
	Element
	source *Vertex
	target *Vertex
}

// Source returns the vertex the edge starts at (the vertex that "owns" it
// as an out-edge).
func (e *Edge) Source() *Vertex { return e.source }

// Target returns the vertex the edge points at.
func (e *Edge) Target() *Vertex { return e.target }

// AddP sets a property on the edge.
func (e *Edge) AddP(key PropertyKey, value any) error {
	return e.addP(key, value)
}

type labelPair struct {
	edge   Label
	vertex Label
}

// Vertex is a node of the graph with its adjacency.
type Vertex struct {
	Element
	name   string
	parent *Vertex

	outEdges map[Label][]*Edge
	inEdges  map[Label][]*Edge
	outIDs   map[labelPair]map[string]struct{}
}

// Name returns the value of the graph's name property, or "".
func (v *Vertex) Name() string { return v.name }

// Parent returns the target of the vertex's parent edge. When several
// parent edges were added, the last one wins; Parents returns all of them.
func (v *Vertex) Parent() *Vertex { return v.parent }

// Parents returns the targets of every parent edge.
func (v *Vertex) Parents() []*Vertex { return v.Out(v.g.schema.ParentEdge) }

// AddP sets a property. Setting the graph's name property also sets Name.
func (v *Vertex) AddP(key PropertyKey, value any) error {
	if key == v.g.schema.NameProperty {
		name, ok := value.(string)
		if !ok {
			return fmt.Errorf("name of %q is %T: %w", v.id, value, ErrPropertyType)
		}
		if err := v.addP(key, value); err != nil {
			return err
		}
		v.name = name
		return nil
	}
	return v.addP(key, value)
}

// AddE creates an edge from v to target and registers it with both
// vertices and the graph. Nothing is registered when an error is returned.
func (v *Vertex) AddE(label Label, target *Vertex) (*Edge, error) {
	g := v.g

	if g.frozen {
		return nil, fmt.Errorf("add edge from %q: %w", v.id, ErrFrozen)
	}
	if target == nil || target.g != g || g.vertices[target.id] != target {
		return nil, fmt.Errorf("add edge from %q: target: %w", v.id, ErrNotFound)
	}

	id := g.newEdgeID()
	if _, ok := g.edges[id]; ok {
		return nil, fmt.Errorf("add edge %q: %w", id, ErrDuplicateKey)
	}

	e := &Edge{
		Element: Element{id: id, label: label, g: g},
		source:  v,
		target:  target,
	}

	v.outEdges[label] = append(v.outEdges[label], e)
	target.inEdges[label] = append(target.inEdges[label], e)

	key := labelPair{edge: label, vertex: target.label}
	if v.outIDs[key] == nil {
		v.outIDs[key] = make(map[string]struct{})
	}
	v.outIDs[key][target.id] = struct{}{}

	if label == g.schema.ParentEdge {
		v.parent = target
	}

	g.edges[id] = e
	g.edgeOrder = append(g.edgeOrder, e)
	g.edgesByLabel[label] = append(g.edgesByLabel[label], e)

	return e, nil
}

// Out returns the targets of v's out-edges with the given label.
func (v *Vertex) Out(label Label) []*Vertex {
	edges := v.outEdges[label]
	result := make([]*Vertex, len(edges))
	for i, e := range edges {
		result[i] = e.target
	}
	return result
}

// In returns the sources of the edges with the given label pointing at v.
func (v *Vertex) In(label Label) []*Vertex {
	edges := v.inEdges[label]
	result := make([]*Vertex, len(edges))
	for i, e := range edges {
		result[i] = e.source
	}
	return result
}

// OutE returns v's out-edges with the given label.
func (v *Vertex) OutE(label Label) []*Edge {
	return append([]*Edge(nil), v.outEdges[label]...)
}

// InE returns the edges with the given label pointing at v.
func (v *Vertex) InE(label Label) []*Edge {
	return append([]*Edge(nil), v.inEdges[label]...)
}

// OutIDs returns the ids of the vertices labeled vertexLabel that v points
// at through edgeLabel edges.
func (v *Vertex) OutIDs(edgeLabel, vertexLabel Label) IDSet {
	return IDSet{ids: v.outIDs[labelPair{edge: edgeLabel, vertex: vertexLabel}]}
}

// IDSet is a read-only set of vertex ids.
type IDSet struct {
	ids map[string]struct{}
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids.
func (s IDSet) Len() int { return len(s.ids) }

// All iterates over the ids in no particular order.
func (s IDSet) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for id := range s.ids {
			if !yield(id) {
				return
			}
		}
	}
}
