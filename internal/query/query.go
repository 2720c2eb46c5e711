// Package query answers queries against the engine that is live at the
// time of the call. The CLI and the MCP server both go through it.
package query

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/Benny93/ninmem-go/internal/ingestion"
	"github.com/Benny93/ninmem-go/internal/metrics"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/search"
	"github.com/Benny93/ninmem-go/internal/stattree"
)

// ErrNoEngine is returned while no engine has been built.
var ErrNoEngine = errors.New("no engine loaded")

// Operation names used for metrics.
const (
	OpSearch = "search"
	OpCodes  = "codes"
	OpTree   = "tree"
)

// Engines hands out the engine serving queries. *ingestion.LiveEngine
// implements it.
type Engines interface {
	Load() *ingestion.Engine
}

// Service runs queries.
type Service struct {
	engines Engines
	metrics *metrics.Metrics
}

// New returns a Service over engines. m may be nil.
func New(engines Engines, m *metrics.Metrics) *Service {
	return &Service{engines: engines, metrics: m}
}

func (s *Service) engine() (*ingestion.Engine, error) {
	if s.engines == nil {
		return nil, ErrNoEngine
	}
	e := s.engines.Load()
	if e == nil {
		return nil, ErrNoEngine
	}
	return e, nil
}

// Search runs a free text search.
func (s *Service) Search(text string, limit int) (result []search.CodeName, err error) {
	defer s.observe(OpSearch, time.Now(), &err)
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Search.FreeText(text, limit)
}

// Codes returns the nature areas and taxa matching the grouped codes and
// the bounding box.
func (s *Service) Codes(codes, bbox string) (result []string, err error) {
	defer s.observe(OpCodes, time.Now(), &err)
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Search.NatureAreaTaxonCodesByCodesAndBBox(codes, bbox)
}

// Stats returns the statistics tree of node.
func (s *Service) Stats(node, codes, bbox string) (*stattree.Result, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.StatTree.Stats(node, codes, bbox)
}

// Tree returns code with its parent and children in the code hierarchy.
func (s *Service) Tree(code string) (result *search.TreeNode, err error) {
	defer s.observe(OpTree, time.Now(), &err)
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Search.Tree(code)
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveQuery(op, start, *err)
}

// Overview describes the live engine.
type Overview struct {
	Built         time.Time      `json:"built"`
	Vertices      int            `json:"vertices"`
	Edges         int            `json:"edges"`
	Labels        map[string]int `json:"labels"`
	AreaIndexSize int            `json:"areaIndexSize"`
	Points        int            `json:"points"`
	TextIndexSize int            `json:"textIndexSize"`
	CachedStats   int            `json:"cachedStats"`
}

// Overview returns counts describing the live engine.
func (s *Service) Overview() (*Overview, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	o := &Overview{
		Built:         e.Built,
		Vertices:      e.Graph.VertexCount(),
		Edges:         e.Graph.EdgeCount(),
		Labels:        map[string]int{},
		AreaIndexSize: e.Areas.Len(),
		Points:        e.Points.Len(),
		TextIndexSize: e.Search.TextIndexSize(),
		CachedStats:   e.StatTree.CacheLen(),
	}
	for _, v := range e.Graph.Vertices() {
		o.Labels[model.LabelName(v.Label())]++
	}
	return o, nil
}

// SortedLabels returns the label names of o in ascending order.
func (o *Overview) SortedLabels() []string {
	return slices.Sorted(maps.Keys(o.Labels))
}
