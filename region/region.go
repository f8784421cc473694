// Package region describes rectangular areas of 1D and 2D detector readouts.
//
// Regions are immutable half-open index ranges.  They are built through the
// New* and List* factories, which validate the coordinates once, so that every
// Region held by the rest of the module already satisfies x0 < x1 (and y0 < y1).
//
// The clocking convention is that index 0 of each axis is the edge nearest the
// readout register.  The "front" of a region is therefore its low-index edge
// and its "trails" begin at its high-index edge.
package region

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRegion is returned when a region violates x0 < x1 (or y0 < y1),
	// or does not lie inside the grid it is applied to
	ErrInvalidRegion = errors.New("invalid region")

	// ErrEmptyRegionList is returned by operations which cannot produce a result
	// without at least one region, e.g. stacking
	ErrEmptyRegionList = errors.New("empty region list")
)

// Region1D is the half-open range [x0, x1) along a 1D readout
type Region1D struct {
	x0, x1 int
}

// NewRegion1D returns a Region1D spanning [x0, x1)
func NewRegion1D(x0, x1 int) (Region1D, error) {
	if x0 >= x1 {
		return Region1D{}, fmt.Errorf("%w: (%d, %d) requires x0 < x1", ErrInvalidRegion, x0, x1)
	}
	return Region1D{x0: x0, x1: x1}, nil
}

// List1D converts plain coordinate pairs into regions.  The output preserves
// the input order
func List1D(coords [][2]int) ([]Region1D, error) {
	out := make([]Region1D, 0, len(coords))
	for i, c := range coords {
		r, err := NewRegion1D(c[0], c[1])
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// X0 is the first pixel of the region
func (r Region1D) X0() int { return r.x0 }

// X1 is one past the last pixel of the region
func (r Region1D) X1() int { return r.x1 }

// Length is the number of pixels in the region
func (r Region1D) Length() int { return r.x1 - r.x0 }

// Bounds returns (x0, x1)
func (r Region1D) Bounds() (int, int) { return r.x0, r.x1 }

// Within returns ErrInvalidRegion if the region does not fit in an array of n pixels
func (r Region1D) Within(n int) error {
	if r.x0 < 0 || r.x1 > n {
		return fmt.Errorf("%w: %s outside array of %d pixels", ErrInvalidRegion, r, n)
	}
	return nil
}

// Shift moves the region by d pixels
func (r Region1D) Shift(d int) Region1D {
	return Region1D{x0: r.x0 + d, x1: r.x1 + d}
}

// FrontRegion returns [x0+start, x0+end).  The result is not clipped to r.
func (r Region1D) FrontRegion(start, end int) (Region1D, error) {
	return NewRegion1D(r.x0+start, r.x0+end)
}

// TrailsRegion returns [x1+start, x1+end).  The result is not clipped to r.
func (r Region1D) TrailsRegion(start, end int) (Region1D, error) {
	return NewRegion1D(r.x1+start, r.x1+end)
}

// Intersect returns the overlap of r and o.  ok is false if they do not overlap
func (r Region1D) Intersect(o Region1D) (Region1D, bool) {
	x0, x1 := max(r.x0, o.x0), min(r.x1, o.x1)
	if x0 >= x1 {
		return Region1D{}, false
	}
	return Region1D{x0: x0, x1: x1}, true
}

func (r Region1D) String() string {
	return fmt.Sprintf("(%d, %d)", r.x0, r.x1)
}

// Region2D is the rectangle [y0, y1) x [x0, x1).  y indexes rows (the parallel
// direction) and x indexes columns (the serial direction)
type Region2D struct {
	y0, y1, x0, x1 int
}

// NewRegion2D returns a Region2D spanning rows [y0, y1) and columns [x0, x1)
func NewRegion2D(y0, y1, x0, x1 int) (Region2D, error) {
	if y0 >= y1 || x0 >= x1 {
		return Region2D{}, fmt.Errorf("%w: (%d, %d, %d, %d) requires y0 < y1 and x0 < x1",
			ErrInvalidRegion, y0, y1, x0, x1)
	}
	return Region2D{y0: y0, y1: y1, x0: x0, x1: x1}, nil
}

// List2D converts plain (y0, y1, x0, x1) quadruples into regions.  The output
// preserves the input order
func List2D(coords [][4]int) ([]Region2D, error) {
	out := make([]Region2D, 0, len(coords))
	for i, c := range coords {
		r, err := NewRegion2D(c[0], c[1], c[2], c[3])
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Y0 is the first row
func (r Region2D) Y0() int { return r.y0 }

// Y1 is one past the last row
func (r Region2D) Y1() int { return r.y1 }

// X0 is the first column
func (r Region2D) X0() int { return r.x0 }

// X1 is one past the last column
func (r Region2D) X1() int { return r.x1 }

// TotalRows is the number of rows spanned by the region
func (r Region2D) TotalRows() int { return r.y1 - r.y0 }

// TotalColumns is the number of columns spanned by the region
func (r Region2D) TotalColumns() int { return r.x1 - r.x0 }

// Shape returns (rows, columns)
func (r Region2D) Shape() (int, int) { return r.TotalRows(), r.TotalColumns() }

// Bounds returns (y0, y1, x0, x1), the index ranges addressing the region's
// cells in its parent grid
func (r Region2D) Bounds() (int, int, int, int) { return r.y0, r.y1, r.x0, r.x1 }

// Quad returns the region as a plain quadruple
func (r Region2D) Quad() [4]int { return [4]int{r.y0, r.y1, r.x0, r.x1} }

// Within returns ErrInvalidRegion if the region does not fit in a rows x cols grid
func (r Region2D) Within(rows, cols int) error {
	if r.y0 < 0 || r.x0 < 0 || r.y1 > rows || r.x1 > cols {
		return fmt.Errorf("%w: %s outside grid of shape (%d, %d)", ErrInvalidRegion, r, rows, cols)
	}
	return nil
}

// Rows returns the parallel extent of the region as a Region1D
func (r Region2D) Rows() Region1D { return Region1D{x0: r.y0, x1: r.y1} }

// Columns returns the serial extent of the region as a Region1D
func (r Region2D) Columns() Region1D { return Region1D{x0: r.x0, x1: r.x1} }

// WithRows replaces the row range of r
func (r Region2D) WithRows(y0, y1 int) (Region2D, error) {
	return NewRegion2D(y0, y1, r.x0, r.x1)
}

// WithColumns replaces the column range of r
func (r Region2D) WithColumns(x0, x1 int) (Region2D, error) {
	return NewRegion2D(r.y0, r.y1, x0, x1)
}

// ParallelFrontRegion returns rows [y0+start, y0+end) over the columns of r
func (r Region2D) ParallelFrontRegion(start, end int) (Region2D, error) {
	return r.WithRows(r.y0+start, r.y0+end)
}

// ParallelTrailsRegion returns rows [y1+start, y1+end) over the columns of r
func (r Region2D) ParallelTrailsRegion(start, end int) (Region2D, error) {
	return r.WithRows(r.y1+start, r.y1+end)
}

// SerialFrontRegion returns columns [x0+start, x0+end) over the rows of r
func (r Region2D) SerialFrontRegion(start, end int) (Region2D, error) {
	return r.WithColumns(r.x0+start, r.x0+end)
}

// SerialTrailsRegion returns columns [x1+start, x1+end) over the rows of r
func (r Region2D) SerialTrailsRegion(start, end int) (Region2D, error) {
	return r.WithColumns(r.x1+start, r.x1+end)
}

// Intersect returns the overlap of r and o.  ok is false if they do not overlap
func (r Region2D) Intersect(o Region2D) (Region2D, bool) {
	rows, ok := r.Rows().Intersect(o.Rows())
	if !ok {
		return Region2D{}, false
	}
	cols, ok := r.Columns().Intersect(o.Columns())
	if !ok {
		return Region2D{}, false
	}
	return Region2D{y0: rows.x0, y1: rows.x1, x0: cols.x0, x1: cols.x1}, true
}

// Translate moves the region by dy rows and dx columns
func (r Region2D) Translate(dy, dx int) Region2D {
	return Region2D{y0: r.y0 + dy, y1: r.y1 + dy, x0: r.x0 + dx, x1: r.x1 + dx}
}

func (r Region2D) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", r.y0, r.y1, r.x0, r.x1)
}
