// Package search answers code queries against a built nature graph: free
// text over names and codes, grouped code filters, bounding box filters
// and code tree navigation.
package search

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Benny93/ninmem-go/internal/geo"
	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/rtree"
	"github.com/Benny93/ninmem-go/internal/trie"
)

// ErrInvalidArgument is returned for an empty free text query, a limit
// outside 1..MaxLimit or a malformed bounding box.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	// DefaultLimit is the free text result limit used when callers have no
	// preference.
	DefaultLimit = 10

	// MaxLimit is the largest accepted free text result limit.
	MaxLimit = 100

	// FieldCode is the trie field under which vertex codes are indexed.
	FieldCode = "code"
)

// PointSearcher finds the codes of point features inside a box.
type PointSearcher interface {
	Search(bbox rtree.BoundingBox) []string
}

// CodeSearch composes the graph, the nature area index, the taxon point
// index and a text index built over the graph. It is safe for concurrent
// use once constructed; nothing mutates it afterwards.
type CodeSearch struct {
	g      *graph.G
	text   *trie.Trie[string]
	areas  *rtree.RTree[string]
	points PointSearcher
}

// New builds the text index over g and returns a CodeSearch. areas and
// points may be nil when no spatial data is available.
func New(g *graph.G, areas *rtree.RTree[string], points PointSearcher) *CodeSearch {
	return &CodeSearch{
		g:      g,
		text:   BuildTextIndex(g),
		areas:  areas,
		points: points,
	}
}

// BuildTextIndex indexes every vertex except nature areas by its code, and
// by its localized names for taxa or its Norwegian name otherwise.
func BuildTextIndex(g *graph.G) *trie.Trie[string] {
	t := trie.New[string]()
	for _, v := range g.Vertices() {
		if v.Label() == model.NatureArea {
			continue
		}
		t.Insert(v.ID(), v.ID(), FieldCode)

		if v.Label() != model.Taxon {
			t.Insert(v.Name(), v.ID(), model.LangNorwegian)
			continue
		}
		names, err := graph.ValueOf[map[string]string](v, model.PropNames)
		if err != nil {
			continue
		}
		for _, lang := range slices.Sorted(maps.Keys(names)) {
			t.Insert(names[lang], v.ID(), lang)
		}
	}
	return t
}

// Graph returns the graph the search runs against.
func (s *CodeSearch) Graph() *graph.G { return s.g }

// TextIndexSize returns the number of indexed (code, field) pairs.
func (s *CodeSearch) TextIndexSize() int { return s.text.Len() }

// SearchByBBox returns the sorted codes of nature areas whose envelope
// intersects bbox and of taxa observed inside it. An empty bbox string
// yields no codes.
func (s *CodeSearch) SearchByBBox(bbox string) ([]string, error) {
	hits, err := s.bboxSet(bbox)
	if err != nil {
		return nil, err
	}
	return sortedKeys(hits), nil
}

func (s *CodeSearch) bboxSet(bbox string) (map[string]struct{}, error) {
	hits := map[string]struct{}{}
	if isBlank(bbox) {
		return hits, nil
	}

	box, err := geo.ParseBBox(bbox)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if s.areas != nil {
		for _, code := range s.areas.SearchData(box) {
			hits[code] = struct{}{}
		}
	}
	if s.points != nil {
		for _, code := range s.points.Search(box) {
			hits[code] = struct{}{}
		}
	}
	return hits, nil
}

func sortedKeys(set map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(set))
}
