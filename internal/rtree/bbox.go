// Package rtree provides a generic in-memory R-tree for two dimensional
// bounding boxes.
//
// The tree supports bulk loading with Overlap-Minimizing Top-down packing,
// incremental insertion with R*-style node splits, removal by data
// equality, range search and collision tests. Every traversal uses an
// explicit stack so that search depth never grows the goroutine stack.
package rtree

import (
	"fmt"
	"math"
)

// BoundingBox is an axis-aligned rectangle. X1/Y1 is the lower corner and
// X2/Y2 the upper corner.
type BoundingBox struct {
	X1 float64 `json:"X1"`
	Y1 float64 `json:"Y1"`
	X2 float64 `json:"X2"`
	Y2 float64 `json:"Y2"`
}

// NewBoundingBox creates a box from two corners, ordering the coordinates
// so that X1 <= X2 and Y1 <= Y2.
func NewBoundingBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{
		X1: math.Min(x1, x2),
		Y1: math.Min(y1, y2),
		X2: math.Max(x1, x2),
		Y2: math.Max(y1, y2),
	}
}

// EmptyBox returns the identity element for Extend. It intersects and
// contains nothing.
func EmptyBox() BoundingBox {
	return BoundingBox{
		X1: math.MaxFloat64,
		Y1: math.MaxFloat64,
		X2: -math.MaxFloat64,
		Y2: -math.MaxFloat64,
	}
}

// IsEmpty reports whether the box covers no point at all.
func (b BoundingBox) IsEmpty() bool {
	return b.X1 > b.X2 || b.Y1 > b.Y2
}

// Extend returns the smallest box covering both b and other.
func (b BoundingBox) Extend(other BoundingBox) BoundingBox {
	return BoundingBox{
		X1: math.Min(b.X1, other.X1),
		Y1: math.Min(b.Y1, other.Y1),
		X2: math.Max(b.X2, other.X2),
		Y2: math.Max(b.Y2, other.Y2),
	}
}

// Area returns the surface of the box. The empty box has area zero.
func (b BoundingBox) Area() float64 {
	if b.IsEmpty() {
		return 0
	}
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Margin returns half the perimeter of the box.
func (b BoundingBox) Margin() float64 {
	if b.IsEmpty() {
		return 0
	}
	return (b.X2 - b.X1) + (b.Y2 - b.Y1)
}

// Intersects reports whether b and other share at least one point.
// Touching edges count as an intersection.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return other.X1 <= b.X2 &&
		other.Y1 <= b.Y2 &&
		other.X2 >= b.X1 &&
		other.Y2 >= b.Y1
}

// Contains reports whether other lies completely inside b.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return b.X1 <= other.X1 &&
		b.Y1 <= other.Y1 &&
		other.X2 <= b.X2 &&
		other.Y2 <= b.Y2
}

// IntersectionArea returns the area shared by b and other.
func (b BoundingBox) IntersectionArea(other BoundingBox) float64 {
	minX := math.Max(b.X1, other.X1)
	minY := math.Max(b.Y1, other.Y1)
	maxX := math.Min(b.X2, other.X2)
	maxY := math.Min(b.Y2, other.Y2)

	return math.Max(0, maxX-minX) * math.Max(0, maxY-minY)
}

// EnlargedArea returns the area of the union of b and other.
func (b BoundingBox) EnlargedArea(other BoundingBox) float64 {
	return b.Extend(other).Area()
}

// String formats the box as "x1,y1,x2,y2", the same order used by bbox
// query strings.
func (b BoundingBox) String() string {
	if b.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("%g,%g,%g,%g", b.X1, b.Y1, b.X2, b.Y2)
}
