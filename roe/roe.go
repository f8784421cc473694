// Package roe normalizes raw readouts so the readout electronics (ROE) sit at
// index (0, 0).
//
// Detectors are read out through any one of their four corners.  The transform
// bringing that corner to the origin is one of identity, a row flip, a column
// flip or both; rows and columns are never swapped since the parallel and
// serial clocking directions are fixed by the wiring.  Each flip is its own
// inverse, so Denormalize reproduces raw input bit for bit.
package roe

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/region"
)

// ErrUnsupportedOrientation is returned for a corner other than the four canonical values
var ErrUnsupportedOrientation = errors.New("unsupported readout orientation")

// Corner is the corner of the raw array nearest the readout electronics, as
// (row, column) in {0, 1}; 1 means the far end of that axis
type Corner struct {
	Row int `yaml:"row" koanf:"row" json:"row"`
	Col int `yaml:"col" koanf:"col" json:"col"`
}

var (
	// TopLeft is raw index (0, 0), already canonical
	TopLeft = Corner{0, 0}

	// TopRight is raw index (0, cols-1), normalized by flipping columns
	TopRight = Corner{0, 1}

	// BottomLeft is raw index (rows-1, 0), normalized by flipping rows
	BottomLeft = Corner{1, 0}

	// BottomRight is raw index (rows-1, cols-1), normalized by flipping both
	BottomRight = Corner{1, 1}
)

var cornerNames = map[string]Corner{
	"top-left":     TopLeft,
	"top-right":    TopRight,
	"bottom-left":  BottomLeft,
	"bottom-right": BottomRight,
}

var tupleRE = regexp.MustCompile(`^\(?\s*(-?\d+)\s*,\s*(-?\d+)\s*\)?$`)

// ParseCorner accepts "top-left" style names or "(row, col)" tuples
func ParseCorner(s string) (Corner, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := cornerNames[s]; ok {
		return c, nil
	}
	m := tupleRE.FindStringSubmatch(s)
	if m == nil {
		return Corner{}, fmt.Errorf("%w: %q", ErrUnsupportedOrientation, s)
	}
	row, _ := strconv.Atoi(m[1])
	col, _ := strconv.Atoi(m[2])
	c := Corner{Row: row, Col: col}
	return c, c.Validate()
}

// Validate returns ErrUnsupportedOrientation unless Row and Col are 0 or 1
func (c Corner) Validate() error {
	if (c.Row != 0 && c.Row != 1) || (c.Col != 0 && c.Col != 1) {
		return fmt.Errorf("%w: %s", ErrUnsupportedOrientation, c)
	}
	return nil
}

// FlipRows is true if the corner is normalized by reversing the row order
func (c Corner) FlipRows() bool { return c.Row == 1 }

// FlipColumns is true if the corner is normalized by reversing the column order
func (c Corner) FlipColumns() bool { return c.Col == 1 }

func (c Corner) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// flip2D reflects a into a new array.  Values and mask move together
func flip2D(a *grid.Array2D, rows, cols bool) *grid.Array2D {
	r, c := a.Dims()
	out := grid.ZerosLike(a)
	for i := 0; i < r; i++ {
		si := i
		if rows {
			si = r - 1 - i
		}
		src := a.RawRowView(si)
		for j := 0; j < c; j++ {
			sj := j
			if cols {
				sj = c - 1 - j
			}
			out.Set(i, j, src[sj])
			out.SetMasked(i, j, a.Masked(si, sj))
		}
	}
	return out
}

// Normalize2D returns a copy of raw with the readout corner moved to (0, 0)
func Normalize2D(raw *grid.Array2D, c Corner) (*grid.Array2D, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return flip2D(raw, c.FlipRows(), c.FlipColumns()), nil
}

// Denormalize2D is the inverse of Normalize2D
func Denormalize2D(canonical *grid.Array2D, c Corner) (*grid.Array2D, error) {
	return Normalize2D(canonical, c)
}

// NormalizeRegion maps a region declared on a raw array of the given shape
// (rows, cols) into the canonical orientation
func NormalizeRegion(r region.Region2D, shape [2]int, c Corner) (region.Region2D, error) {
	if err := c.Validate(); err != nil {
		return region.Region2D{}, err
	}
	y0, y1, x0, x1 := r.Bounds()
	if c.FlipRows() {
		y0, y1 = shape[0]-y1, shape[0]-y0
	}
	if c.FlipColumns() {
		x0, x1 = shape[1]-x1, shape[1]-x0
	}
	return region.NewRegion2D(y0, y1, x0, x1)
}

// DenormalizeRegion is the inverse of NormalizeRegion
func DenormalizeRegion(r region.Region2D, shape [2]int, c Corner) (region.Region2D, error) {
	return NormalizeRegion(r, shape, c)
}

func normalizeOptional(r *region.Region2D, shape [2]int, c Corner) (*region.Region2D, error) {
	if r == nil {
		return nil, nil
	}
	out, err := NormalizeRegion(*r, shape, c)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// NormalizeLayout maps every region and strip of a raw layout into the
// canonical orientation.  Region order is preserved
func NormalizeLayout(raw *layout.Layout2D, c Corner) (*layout.Layout2D, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	regions := make([]region.Region2D, len(raw.Regions))
	for i, r := range raw.Regions {
		nr, err := NormalizeRegion(r, raw.Shape, c)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		regions[i] = nr
	}
	po, err := normalizeOptional(raw.ParallelOverscan, raw.Shape, c)
	if err != nil {
		return nil, err
	}
	sp, err := normalizeOptional(raw.SerialPrescan, raw.Shape, c)
	if err != nil {
		return nil, err
	}
	so, err := normalizeOptional(raw.SerialOverscan, raw.Shape, c)
	if err != nil {
		return nil, err
	}
	return layout.New2D(raw.Shape, regions, po, sp, so)
}

// DenormalizeLayout is the inverse of NormalizeLayout
func DenormalizeLayout(canonical *layout.Layout2D, c Corner) (*layout.Layout2D, error) {
	return NormalizeLayout(canonical, c)
}

// Table maps a quadrant identifier to the corner its readout electronics sit at.
// It is filled from instrument configuration
type Table map[string]Corner

// Lookup returns the corner for quadrant id
func (t Table) Lookup(id string) (Corner, error) {
	c, ok := t[id]
	if !ok {
		return Corner{}, fmt.Errorf("%w: no corner known for quadrant %q", ErrUnsupportedOrientation, id)
	}
	return c, c.Validate()
}
