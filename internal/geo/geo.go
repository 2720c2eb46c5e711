// Package geo converts external geometry into index boxes and keeps the
// exact-point index used for taxon observations.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/Benny93/ninmem-go/internal/rtree"
)

// ErrInvalidBBox is returned for bbox strings that are not four finite numbers.
var ErrInvalidBBox = errors.New("invalid bbox")

// ParseBBox parses "minx,miny,maxx,maxy". Empty parts are ignored, so a
// trailing comma is accepted.
func ParseBBox(s string) (rtree.BoundingBox, error) {
	var coords []float64
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return rtree.BoundingBox{}, fmt.Errorf("%w: %q: %v", ErrInvalidBBox, s, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return rtree.BoundingBox{}, fmt.Errorf("%w: %q: coordinate %q is not finite", ErrInvalidBBox, s, part)
		}
		coords = append(coords, f)
	}
	if len(coords) != 4 {
		return rtree.BoundingBox{}, fmt.Errorf("%w: %q: want 4 coordinates, got %d", ErrInvalidBBox, s, len(coords))
	}
	return rtree.NewBoundingBox(coords[0], coords[1], coords[2], coords[3]), nil
}

// EnvelopeFromWKT returns the axis-aligned bounds of a WKT geometry.
func EnvelopeFromWKT(s string) (rtree.BoundingBox, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return rtree.BoundingBox{}, fmt.Errorf("parse wkt: %w", err)
	}
	b := g.Bound()
	return rtree.NewBoundingBox(b.Min[0], b.Min[1], b.Max[0], b.Max[1]), nil
}
