package geo

import (
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/Benny93/ninmem-go/internal/rtree"
)

const (
	minChildren = 25
	maxChildren = 50

	// Observation points are whole metres; the tolerance gives each point
	// a non-degenerate box in the index.
	pointTolerance = 0.5
)

// Point is one observation of a code at (X, Y).
type Point struct {
	Code string
	X, Y float64
}

type spatialPoint struct {
	Point
	loc rtreego.Point
}

func (p *spatialPoint) Bounds() rtreego.Rect { return p.loc.ToRect(pointTolerance) }

// PointIndex answers which codes have an observation inside a box. It is
// built once and read concurrently.
type PointIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewPointIndex bulk loads points.
func NewPointIndex(points []Point) *PointIndex {
	objs := make([]rtreego.Spatial, 0, len(points))
	for _, p := range points {
		objs = append(objs, &spatialPoint{Point: p, loc: rtreego.Point{p.X, p.Y}})
	}
	return &PointIndex{
		tree: rtreego.NewTree(2, minChildren, maxChildren, objs...),
		size: len(objs),
	}
}

// Len returns the number of indexed points.
func (ix *PointIndex) Len() int { return ix.size }

// Search returns the sorted distinct codes with a point inside bbox,
// edges included.
func (ix *PointIndex) Search(bbox rtree.BoundingBox) []string {
	if ix == nil || ix.size == 0 || bbox.IsEmpty() {
		return nil
	}
	query, err := rtreego.NewRectFromPoints(rtreego.Point{bbox.X1, bbox.Y1}, rtreego.Point{bbox.X2, bbox.Y2})
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var codes []string
	for _, s := range ix.tree.SearchIntersect(query) {
		p := s.(*spatialPoint)
		if p.X < bbox.X1 || p.X > bbox.X2 || p.Y < bbox.Y1 || p.Y > bbox.Y2 {
			continue
		}
		if _, ok := seen[p.Code]; ok {
			continue
		}
		seen[p.Code] = struct{}{}
		codes = append(codes, p.Code)
	}
	slices.Sort(codes)
	return codes
}
