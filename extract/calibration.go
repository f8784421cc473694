package extract

import (
	"fmt"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/region"
)

// ParallelCalibration crops a frame to a range of columns over its full height,
// keeping everything needed to fit parallel CTI on those columns
type ParallelCalibration struct {
	Layout *layout.Layout2D
}

// Region is the crop (0, rows, columns[0], columns[1])
func (c ParallelCalibration) Region(columns [2]int) (region.Region2D, error) {
	r, err := region.NewRegion2D(0, c.Layout.Rows(), columns[0], columns[1])
	if err != nil {
		return region.Region2D{}, fmt.Errorf("parallel calibration columns %v: %w", columns, err)
	}
	if err := r.Within(c.Layout.Rows(), c.Layout.Columns()); err != nil {
		return region.Region2D{}, fmt.Errorf("parallel calibration columns %v: %w", columns, err)
	}
	return r, nil
}

// Array crops a to the columns
func (c ParallelCalibration) Array(a *grid.Array2D, columns [2]int) (*grid.Array2D, error) {
	if err := checkLayoutShape(c.Layout, a); err != nil {
		return nil, err
	}
	crop, err := c.Region(columns)
	if err != nil {
		return nil, err
	}
	return a.Sub(crop)
}

// remap intersects r with crop and moves it into the crop's coordinates
func remap(r *region.Region2D, crop region.Region2D, dy, dx int) *region.Region2D {
	if r == nil {
		return nil
	}
	in, ok := r.Intersect(crop)
	if !ok {
		return nil
	}
	out := in.Translate(dy, dx)
	return &out
}

// ExtractedLayout returns the layout of the cropped frame.  Regions and strips
// are cut to the crop and renumbered into its coordinates; those falling wholly
// outside it are dropped
func (c ParallelCalibration) ExtractedLayout(columns [2]int) (*layout.Layout2D, error) {
	crop, err := c.Region(columns)
	if err != nil {
		return nil, err
	}
	l := c.Layout
	var regions []region.Region2D
	for i := range l.Regions {
		if r := remap(&l.Regions[i], crop, 0, -columns[0]); r != nil {
			regions = append(regions, *r)
		}
	}
	shape := [2]int{l.Rows(), columns[1] - columns[0]}
	return layout.New2D(shape, regions,
		remap(l.ParallelOverscan, crop, 0, -columns[0]),
		remap(l.SerialPrescan, crop, 0, -columns[0]),
		remap(l.SerialOverscan, crop, 0, -columns[0]))
}

// SerialCalibration takes the same range of rows, relative to the first row of
// each region, from every region and stacks the blocks vertically, keeping the
// full width so the serial prescan and overscan come along
type SerialCalibration struct {
	Layout *layout.Layout2D
}

// RegionList returns one full-width block per charge injection region, rows
// [y0+rows[0], y0+rows[1])
func (c SerialCalibration) RegionList(rows [2]int) ([]region.Region2D, error) {
	l := c.Layout
	out := make([]region.Region2D, 0, len(l.Regions))
	for i, r := range l.Regions {
		b, err := region.NewRegion2D(r.Y0()+rows[0], r.Y0()+rows[1], 0, l.Columns())
		if err == nil {
			err = b.Within(l.Rows(), l.Columns())
		}
		if err != nil {
			return nil, fmt.Errorf("serial calibration rows %v, region %d %s: %w", rows, i, r, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Array concatenates the blocks of a named by RegionList, in region order
func (c SerialCalibration) Array(a *grid.Array2D, rows [2]int) (*grid.Array2D, error) {
	if err := checkLayoutShape(c.Layout, a); err != nil {
		return nil, err
	}
	blocks, err := c.RegionList(rows)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("serial calibration: %w", region.ErrEmptyRegionList)
	}
	cols := c.Layout.Columns()
	height := rows[1] - rows[0]
	data := make([]float64, 0, len(blocks)*height*cols)
	mask := make([]bool, 0, len(blocks)*height*cols)
	for _, b := range blocks {
		sub, err := a.Sub(b)
		if err != nil {
			return nil, err
		}
		data = append(data, sub.Values()...)
		mask = append(mask, sub.Mask()...)
	}
	return grid.New2D(len(blocks)*height, cols, data, mask, a.Scales)
}

// ExtractedLayout returns the layout of the frame built by Array.  Within each
// block every region it touches is cut to the block and renumbered, so a block
// boundary falling in the gap between two regions leaves them separate.  The
// serial prescan and overscan span the new height; the parallel overscan is
// dropped
func (c SerialCalibration) ExtractedLayout(rows [2]int) (*layout.Layout2D, error) {
	blocks, err := c.RegionList(rows)
	if err != nil {
		return nil, err
	}
	l := c.Layout
	height := rows[1] - rows[0]
	var regions []region.Region2D
	for bi, b := range blocks {
		for ri := range l.Regions {
			if r := remap(&l.Regions[ri], b, bi*height-b.Y0(), 0); r != nil {
				regions = append(regions, *r)
			}
		}
	}
	newRows := len(blocks) * height
	if newRows == 0 {
		return nil, fmt.Errorf("serial calibration: %w", region.ErrEmptyRegionList)
	}
	fullHeight := func(s *region.Region2D) (*region.Region2D, error) {
		if s == nil {
			return nil, nil
		}
		r, err := region.NewRegion2D(0, newRows, s.X0(), s.X1())
		return &r, err
	}
	prescan, err := fullHeight(l.SerialPrescan)
	if err != nil {
		return nil, err
	}
	overscan, err := fullHeight(l.SerialOverscan)
	if err != nil {
		return nil, err
	}
	return layout.New2D([2]int{newRows, l.Columns()}, regions, nil, prescan, overscan)
}

func checkLayoutShape(l *layout.Layout2D, a *grid.Array2D) error {
	r, c := a.Dims()
	if r != l.Rows() || c != l.Columns() {
		return fmt.Errorf("%w: layout is %v, array is (%d, %d)", grid.ErrShapeMismatch, l.Shape, r, c)
	}
	return nil
}
