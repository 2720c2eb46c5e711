// Package ingestion turns the stored input bundle into a queryable engine:
// it loads the documents, builds the knowledge graph and the spatial
// indexes, and keeps the live engine swappable for hot reloads.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Benny93/ninmem-go/internal/geo"
	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/metrics"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/rtree"
	"github.com/Benny93/ninmem-go/internal/search"
	"github.com/Benny93/ninmem-go/internal/stattree"
	"github.com/Benny93/ninmem-go/internal/storage"
)

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Options configures an engine build.
type Options struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Progress   ProgressCallback
	MaxEntries int
	CacheSize  int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = rtree.DefaultMaxEntries
	}
	if o.CacheSize <= 0 {
		o.CacheSize = stattree.DefaultCacheSize
	}
	return o
}

// Engine is a fully built, read-only query engine.
type Engine struct {
	Graph    *graph.G
	Areas    *rtree.RTree[string]
	Points   *geo.PointIndex
	Search   *search.CodeSearch
	StatTree *stattree.Service
	Built    time.Time
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	BuildStats
	AreaIndexRestored bool
	AreaIndexHeight   int
	Points            int
	TextIndexSize     int
	DurationSecs      float64
}

type phaseRunner struct {
	opts Options
}

func (p phaseRunner) run(phase string, fn func() error) error {
	if p.opts.Progress != nil {
		p.opts.Progress(phase, 0.0)
	}
	start := time.Now()
	err := fn()
	p.opts.Metrics.ObserveBuild(phase, time.Since(start))
	p.opts.Logger.Debug("phase done", "phase", phase, "duration", time.Since(start), "error", err)
	if err != nil {
		return fmt.Errorf("%s: %w", phase, err)
	}
	if p.opts.Progress != nil {
		p.opts.Progress(phase, 1.0)
	}
	return nil
}

// RunPipeline loads the input bundle from store and builds an engine. The
// nature area index is restored from its snapshot when the store holds
// one that matches the input, and built from the WKT envelopes otherwise.
func RunPipeline(ctx context.Context, store storage.Store, opts Options) (*Engine, *PipelineResult, error) {
	opts = opts.withDefaults()
	phases := phaseRunner{opts: opts}
	start := time.Now()
	result := &PipelineResult{}
	engine := &Engine{}

	var input *model.GraphInput
	err := phases.run("Loading input", func() (err error) {
		input, err = LoadInput(ctx, store, opts.Logger)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = phases.run("Building graph", func() (err error) {
		engine.Graph, result.BuildStats, err = BuildGraph(input, opts.Logger)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = phases.run("Indexing nature areas", func() (err error) {
		engine.Areas, result.AreaIndexRestored, err = loadAreaIndex(ctx, store, input.NatureAreas, opts)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = phases.run("Indexing taxon points", func() error {
		engine.Points = BuildPointIndex(input.Taxons, engine.Graph)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	engine.Graph.Freeze()

	err = phases.run("Indexing text", func() (err error) {
		engine.Search = search.New(engine.Graph, engine.Areas, engine.Points)
		engine.StatTree, err = stattree.NewService(stattree.NewAggregator(engine.Search), opts.CacheSize, opts.Metrics)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	engine.Built = time.Now()
	opts.Metrics.SetGraphVertices(vertexCounts(engine.Graph))

	result.AreaIndexHeight = engine.Areas.Height()
	result.Points = engine.Points.Len()
	result.TextIndexSize = engine.Search.TextIndexSize()
	result.DurationSecs = time.Since(start).Seconds()

	opts.Logger.Info("engine built",
		"vertices", result.Vertices,
		"edges", result.Edges,
		"areaIndexRestored", result.AreaIndexRestored,
		"points", result.Points,
		"duration", time.Since(start),
	)
	return engine, result, nil
}

func loadAreaIndex(ctx context.Context, store storage.Store, areas []model.NatureAreaDto, opts Options) (*rtree.RTree[string], bool, error) {
	data, err := store.Get(ctx, storage.SnapshotKeyAreaIndex)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, false, err
	default:
		tree, err := RestoreAreaIndex(data, opts.MaxEntries)
		if err == nil && tree.Len() == len(areas) {
			return tree, true, nil
		}
		opts.Logger.Warn("area index snapshot unusable, rebuilding", "error", err, "areas", len(areas))
	}

	tree, err := BuildAreaIndex(ctx, areas, opts.MaxEntries)
	return tree, false, err
}

func vertexCounts(g *graph.G) map[string]int {
	counts := map[string]int{}
	for _, v := range g.Vertices() {
		counts[model.LabelName(v.Label())]++
	}
	return counts
}

// ImportResult summarizes an import.
type ImportResult struct {
	Documents    []DocumentEntry
	NatureAreas  int
	DurationSecs float64
}

// ImportDir replaces the contents of store with the documents found in dir
// and a snapshot of the nature area index built from them. The documents
// are validated by building a complete engine first; store is left
// untouched when that fails.
func ImportDir(ctx context.Context, dir string, store storage.Store, opts Options) (*ImportResult, error) {
	opts = opts.withDefaults()
	start := time.Now()

	entries, err := WalkDataDir(dir)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	docs := make(map[string][]byte, len(entries)+1)
	for _, e := range entries {
		docs[e.Key] = e.Content
	}
	delete(docs, storage.SnapshotKeyAreaIndex)

	staged := storage.NewMemoryStore(docs)
	if err := staged.Initialize("", false); err != nil {
		return nil, err
	}

	validate := opts
	validate.Metrics = nil
	engine, _, err := RunPipeline(ctx, staged, validate)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", dir, err)
	}

	snapshot, err := engine.Areas.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding area index: %w", err)
	}
	docs[storage.SnapshotKeyAreaIndex] = snapshot

	if err := store.Replace(ctx, docs); err != nil {
		return nil, fmt.Errorf("storing documents: %w", err)
	}

	result := &ImportResult{
		Documents:    entries,
		NatureAreas:  engine.Areas.Len(),
		DurationSecs: time.Since(start).Seconds(),
	}
	opts.Logger.Info("imported data directory", "dir", dir, "documents", len(entries), "natureAreas", result.NatureAreas)
	return result, nil
}

// LiveEngine holds the engine currently serving queries. Readers always
// see a complete engine; Swap replaces it in one step.
type LiveEngine struct {
	current atomic.Pointer[Engine]
}

// NewLiveEngine returns a holder serving e.
func NewLiveEngine(e *Engine) *LiveEngine {
	l := &LiveEngine{}
	l.current.Store(e)
	return l
}

// Load returns the current engine.
func (l *LiveEngine) Load() *Engine { return l.current.Load() }

// Swap installs e and returns the engine it replaced.
func (l *LiveEngine) Swap(e *Engine) *Engine { return l.current.Swap(e) }

// Reload imports dir into store, builds a fresh engine from it and swaps
// it in. The live engine keeps serving when any step fails.
func (l *LiveEngine) Reload(ctx context.Context, dir string, store storage.Store, opts Options) error {
	opts = opts.withDefaults()

	err := l.reload(ctx, dir, store, opts)
	opts.Metrics.Reload(err)
	if err != nil {
		opts.Logger.Error("reload failed, keeping current engine", "error", err)
		return err
	}
	opts.Logger.Info("engine reloaded", "dir", dir)
	return nil
}

func (l *LiveEngine) reload(ctx context.Context, dir string, store storage.Store, opts Options) error {
	if _, err := ImportDir(ctx, dir, store, opts); err != nil {
		return err
	}
	engine, _, err := RunPipeline(ctx, store, opts)
	if err != nil {
		return err
	}
	l.Swap(engine)
	return nil
}
