package ingestion

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/ninmem-go/internal/geo"
	"github.com/Benny93/ninmem-go/internal/graph"
	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/rtree"
)

// BuildAreaIndex parses the WKT envelope of every nature area in parallel
// and bulk loads the boxes, keyed by nature area code, in input order.
func BuildAreaIndex(ctx context.Context, areas []model.NatureAreaDto, maxEntries int) (*rtree.RTree[string], error) {
	items := make([]*rtree.Node[string], len(areas))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, na := range areas {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			box, err := geo.EnvelopeFromWKT(na.Envelope)
			if err != nil {
				return fmt.Errorf("nature area %d: %w", na.ID, err)
			}
			items[i] = rtree.NewItem(model.NatureAreaCode(na.ID), box)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	tree := rtree.New[string](maxEntries)
	tree.Load(items)
	return tree, nil
}

// RestoreAreaIndex rebuilds an area index from its JSON snapshot.
func RestoreAreaIndex(data []byte, maxEntries int) (*rtree.RTree[string], error) {
	tree := rtree.New[string](maxEntries)
	if err := tree.FromJSON(data); err != nil {
		return nil, fmt.Errorf("restoring area index: %w", err)
	}
	return tree, nil
}

// BuildPointIndex indexes the observation points of every taxon that made
// it into g.
func BuildPointIndex(taxa []model.TaxonDto, g *graph.G) *geo.PointIndex {
	var points []geo.Point
	for _, t := range taxa {
		code := model.TaxonCode(t.ScientificNameID)
		v, ok := g.TryGetV(code)
		if !ok || v.Label() != model.Taxon {
			continue
		}
		for _, en := range t.EastNorths {
			if len(en) < 2 {
				continue
			}
			points = append(points, geo.Point{Code: code, X: float64(en[0]), Y: float64(en[1])})
		}
	}
	return geo.NewPointIndex(points)
}
