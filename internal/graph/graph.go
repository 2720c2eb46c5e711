// Package graph provides the in-memory property graph the query engines
// run on.
//
// A G is written by a single goroutine during a build phase and then
// frozen. Lookups by id are O(1) map reads; label partitions and adjacency
// lists are kept as secondary indexes so that traversals cost O(result)
// rather than O(graph). A frozen G performs no writes and may be shared
// between goroutines without locking.
package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Schema names the label and property the graph treats specially.
type Schema struct {
	// ParentEdge is the edge label whose target becomes Vertex.Parent.
	ParentEdge Label

	// NameProperty is the property copied into Vertex.Name.
	NameProperty PropertyKey
}

// Option configures a G.
type Option func(*G)

// WithEdgeIDs replaces the random edge id generator.
func WithEdgeIDs(next func() string) Option {
	return func(g *G) { g.nextEdgeID = next }
}

// G stores vertices and edges keyed by lowercased id.
type G struct {
	schema     Schema
	frozen     bool
	nextEdgeID func() string

	vertices map[string]*Vertex
	edges    map[string]*Edge

	// Secondary indexes, in insertion order.
	vertexOrder     []*Vertex
	edgeOrder       []*Edge
	verticesByLabel map[Label][]*Vertex
	edgesByLabel    map[Label][]*Edge
}

// New creates an empty, writable graph.
func New(schema Schema, opts ...Option) *G {
	g := &G{
		schema:          schema,
		nextEdgeID:      uuid.NewString,
		vertices:        make(map[string]*Vertex),
		edges:           make(map[string]*Edge),
		verticesByLabel: make(map[Label][]*Vertex),
		edgesByLabel:    make(map[Label][]*Edge),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Schema returns the schema the graph was created with.
func (g *G) Schema() Schema { return g.schema }

// Freeze ends the build phase. Every later mutation fails with ErrFrozen.
func (g *G) Freeze() { g.frozen = true }

// Frozen reports whether Freeze was called.
func (g *G) Frozen() bool { return g.frozen }

// AddV adds a vertex. The id is lowercased; adding an existing id fails
// with ErrDuplicateKey.
func (g *G) AddV(label Label, id string) (*Vertex, error) {
	id = strings.ToLower(id)

	if g.frozen {
		return nil, fmt.Errorf("add vertex %q: %w", id, ErrFrozen)
	}
	if _, ok := g.vertices[id]; ok {
		return nil, fmt.Errorf("add vertex %q: %w", id, ErrDuplicateKey)
	}

	v := &Vertex{
		Element:  Element{id: id, label: label, g: g},
		outEdges: make(map[Label][]*Edge),
		inEdges:  make(map[Label][]*Edge),
		outIDs:   make(map[labelPair]map[string]struct{}),
	}

	g.vertices[id] = v
	g.vertexOrder = append(g.vertexOrder, v)
	g.verticesByLabel[label] = append(g.verticesByLabel[label], v)

	return v, nil
}

// V returns the vertex with the given id.
func (g *G) V(id string) (*Vertex, error) {
	v, ok := g.TryGetV(id)
	if !ok {
		return nil, fmt.Errorf("vertex %q: %w", strings.ToLower(id), ErrNotFound)
	}
	return v, nil
}

// Vs returns the vertices for ids, failing on the first missing id.
func (g *G) Vs(ids ...string) ([]*Vertex, error) {
	result := make([]*Vertex, 0, len(ids))
	for _, id := range ids {
		v, err := g.V(id)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// TryGetV returns the vertex with the given id and whether it exists.
func (g *G) TryGetV(id string) (*Vertex, bool) {
	v, ok := g.vertices[strings.ToLower(id)]
	return v, ok
}

// HasV reports whether a vertex with the given id exists.
func (g *G) HasV(id string) bool {
	_, ok := g.TryGetV(id)
	return ok
}

// E returns the edge with the given id.
func (g *G) E(id string) (*Edge, error) {
	e, ok := g.edges[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("edge %q: %w", strings.ToLower(id), ErrNotFound)
	}
	return e, nil
}

// Vertices returns every vertex in insertion order.
func (g *G) Vertices() []*Vertex {
	return append([]*Vertex(nil), g.vertexOrder...)
}

// VerticesByLabel returns the vertices with the given label in insertion order.
func (g *G) VerticesByLabel(label Label) []*Vertex {
	return append([]*Vertex(nil), g.verticesByLabel[label]...)
}

// Edges returns every edge in insertion order.
func (g *G) Edges() []*Edge {
	return append([]*Edge(nil), g.edgeOrder...)
}

// EdgesByLabel returns the edges with the given label in insertion order.
func (g *G) EdgesByLabel(label Label) []*Edge {
	return append([]*Edge(nil), g.edgesByLabel[label]...)
}

// VertexCount returns the number of vertices.
func (g *G) VertexCount() int { return len(g.vertices) }

// EdgeCount returns the number of edges.
func (g *G) EdgeCount() int { return len(g.edges) }

// CountByLabel returns the number of vertices with the given label.
func (g *G) CountByLabel(label Label) int { return len(g.verticesByLabel[label]) }

// Stats returns a summary of graph size.
func (g *G) Stats() map[string]int {
	return map[string]int{
		"vertices": len(g.vertices),
		"edges":    len(g.edges),
	}
}

func (g *G) newEdgeID() string {
	return strings.ToLower(g.nextEdgeID())
}
