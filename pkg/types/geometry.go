// Package types defines the spatial data model shared by the query encoder,
// the index client and the benchmark harness.
package types

import (
	"fmt"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
)

// MaxDimensions is the highest dimensionality supported by point fields in the index.
const MaxDimensions = 4

// Point is an ordered sequence of 1 to MaxDimensions coordinates.
type Point []float64

// Label names an object of interest (an "oid"); one label links to many points.
type Label string

// ReferenceSpace names the coordinate frame a point is expressed in.
type ReferenceSpace string

// Validate checks the dimensionality invariant.
func (p Point) Validate() error {
	if len(p) < 1 || len(p) > MaxDimensions {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidDimensions,
			fmt.Sprintf("point must have between 1 and %d coordinates, got %d", MaxDimensions, len(p)))
	}
	return nil
}

// Dimensions returns the number of coordinates.
func (p Point) Dimensions() int {
	return len(p)
}

// Clone returns a copy that does not share the backing array.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}
	cp := make(Point, len(p))
	copy(cp, p)
	return cp
}

// BoundingBox is an axis-aligned box given by its low and high corners.
type BoundingBox struct {
	Low  Point `json:"low"`
	High Point `json:"high"`
}

// NewBoundingBox builds a box and validates it.
func NewBoundingBox(low, high Point) (BoundingBox, error) {
	b := BoundingBox{Low: low, High: high}
	return b, b.Validate()
}

// Validate checks both corners and that they share the same dimensionality.
func (b BoundingBox) Validate() error {
	if err := b.Low.Validate(); err != nil {
		return err
	}
	if err := b.High.Validate(); err != nil {
		return err
	}
	if len(b.Low) != len(b.High) {
		return spatialerrors.NewValidationError(spatialerrors.CodeMismatchedBox,
			fmt.Sprintf("bounding box corners differ in dimensionality: %d vs %d", len(b.Low), len(b.High)))
	}
	return nil
}

// Dimensions returns the dimensionality of the box.
func (b BoundingBox) Dimensions() int {
	return len(b.Low)
}

// Contains reports whether p lies in the box. With inclusive set, points on
// the surface are inside; otherwise only strictly interior points are.
func (b BoundingBox) Contains(p Point, inclusive bool) bool {
	if len(p) != len(b.Low) {
		return false
	}
	for d := range p {
		if inclusive {
			if p[d] < b.Low[d] || p[d] > b.High[d] {
				return false
			}
		} else if p[d] <= b.Low[d] || p[d] >= b.High[d] {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both b and other.
// Both boxes must have the same dimensionality.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	u := BoundingBox{Low: b.Low.Clone(), High: b.High.Clone()}
	for d := range u.Low {
		if other.Low[d] < u.Low[d] {
			u.Low[d] = other.Low[d]
		}
		if other.High[d] > u.High[d] {
			u.High[d] = other.High[d]
		}
	}
	return u
}

// Volume returns the product of the box extents.
func (b BoundingBox) Volume() float64 {
	v := 1.0
	for d := range b.Low {
		v *= b.High[d] - b.Low[d]
	}
	return v
}
