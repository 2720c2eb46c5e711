package stattree

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Benny93/ninmem-go/internal/metrics"
	"github.com/Benny93/ninmem-go/internal/model"
)

// DefaultCacheSize is the number of unfiltered results kept by a Service.
const DefaultCacheSize = 100

// Ref names a code.
type Ref struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ChildStats holds the statistics of one immediate child of a Result.
type ChildStats struct {
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	TaxonCount      int     `json:"taxonCount"`
	NatureAreaCount int     `json:"natureAreaCount"`
	Area            float64 `json:"area"`
	HasChildren     bool    `json:"hasChildren"`
}

// Result is the statistics tree of one code and its immediate children.
// Results may be shared between callers and must not be modified.
type Result struct {
	Code            string       `json:"code"`
	Name            string       `json:"name"`
	TaxonCount      int          `json:"taxonCount"`
	NatureAreaCount int          `json:"natureAreaCount"`
	Area            float64      `json:"area"`
	Parent          *Ref         `json:"parent,omitempty"`
	Children        []ChildStats `json:"children,omitempty"`
}

// Service answers statistics queries, caching results of queries without
// a bounding box.
type Service struct {
	agg     *Aggregator
	cache   *lru.Cache[string, *Result]
	metrics *metrics.Metrics
}

// NewService wraps agg with an LRU cache holding cacheSize results. A
// non-positive cacheSize selects DefaultCacheSize. m may be nil.
func NewService(agg *Aggregator, cacheSize int, m *metrics.Metrics) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating stat cache: %w", err)
	}
	return &Service{agg: agg, cache: cache, metrics: m}, nil
}

// Stats returns the statistics of node filtered by codes and bbox. A blank
// node means the catalogue root and blank codes mean node itself.
func (s *Service) Stats(node, codes, bbox string) (*Result, error) {
	node = strings.ToLower(strings.TrimSpace(node))
	if node == "" {
		node = model.RootCode
	}
	codes = strings.TrimSpace(codes)
	if codes == "" {
		codes = node
	}

	key := node + "_" + codes
	cacheable := isBlank(bbox)
	if cacheable {
		if r, ok := s.cache.Get(key); ok {
			s.metrics.CacheHit()
			return r, nil
		}
		s.metrics.CacheMiss()
	}

	r, err := s.build(node, codes, bbox)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.Add(key, r)
	}
	return r, nil
}

// CacheLen returns the number of cached results.
func (s *Service) CacheLen() int { return s.cache.Len() }

func (s *Service) build(node, codes, bbox string) (*Result, error) {
	start := time.Now()
	root, err := s.agg.Build(node, codes, bbox)
	s.metrics.ObserveQuery("stats", start, err)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Code:            root.Code,
		Name:            root.Name,
		TaxonCount:      root.TaxonCount(),
		NatureAreaCount: root.NatureAreaCount(),
		Area:            root.Area(),
	}
	if v, ok := s.agg.g.TryGetV(root.Code); ok && v.Parent() != nil {
		r.Parent = &Ref{Code: v.Parent().ID(), Name: v.Parent().Name()}
	}
	for _, c := range root.Children() {
		r.Children = append(r.Children, ChildStats{
			Code:            c.Code,
			Name:            c.Name,
			TaxonCount:      c.TaxonCount(),
			NatureAreaCount: c.NatureAreaCount(),
			Area:            c.Area(),
			HasChildren:     c.HasDescendants,
		})
	}
	return r, nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
