// Package layout describes where the charge injection regions and the
// non-photosensitive prescan and overscan strips sit on a detector readout.
package layout

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/region"
)

// Layout2D is the geometry of a 2D charge injection frame in the canonical
// orientation, with row 0 and column 0 nearest the readout electronics
type Layout2D struct {
	// Shape is (rows, columns)
	Shape [2]int

	// Regions holds one region per charge injection stripe
	Regions []region.Region2D

	// ParallelOverscan, SerialPrescan and SerialOverscan are nil if absent
	ParallelOverscan *region.Region2D
	SerialPrescan    *region.Region2D
	SerialOverscan   *region.Region2D
}

// New2D validates that every region and strip lies inside shape.
// Overlapping regions and an empty region list are accepted
func New2D(shape [2]int, regions []region.Region2D, parallelOverscan, serialPrescan, serialOverscan *region.Region2D) (*Layout2D, error) {
	if shape[0] <= 0 || shape[1] <= 0 {
		return nil, fmt.Errorf("%w: layout shape %v", grid.ErrEmptyShape, shape)
	}
	for i, r := range regions {
		if err := r.Within(shape[0], shape[1]); err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
	}
	named := []struct {
		name string
		r    *region.Region2D
	}{
		{"parallel overscan", parallelOverscan},
		{"serial prescan", serialPrescan},
		{"serial overscan", serialOverscan},
	}
	for _, n := range named {
		if n.r == nil {
			continue
		}
		if err := n.r.Within(shape[0], shape[1]); err != nil {
			return nil, fmt.Errorf("%s: %w", n.name, err)
		}
	}
	return &Layout2D{
		Shape:            shape,
		Regions:          append([]region.Region2D(nil), regions...),
		ParallelOverscan: parallelOverscan,
		SerialPrescan:    serialPrescan,
		SerialOverscan:   serialOverscan,
	}, nil
}

// Rows is the number of rows in the frame
func (l *Layout2D) Rows() int { return l.Shape[0] }

// Columns is the number of columns in the frame
func (l *Layout2D) Columns() int { return l.Shape[1] }

// ParallelRowsBetweenRegions returns the number of rows separating each region
// from the next one in the list
func (l *Layout2D) ParallelRowsBetweenRegions() []int {
	if len(l.Regions) < 2 {
		return nil
	}
	out := make([]int, len(l.Regions)-1)
	for i := range out {
		out[i] = l.Regions[i+1].Y0() - l.Regions[i].Y1()
	}
	return out
}

// SmallestParallelRowsBetweenRegions is the minimum of ParallelRowsBetweenRegions,
// or zero for fewer than two regions
func (l *Layout2D) SmallestParallelRowsBetweenRegions() int {
	gaps := l.ParallelRowsBetweenRegions()
	if len(gaps) == 0 {
		return 0
	}
	m := gaps[0]
	for _, g := range gaps[1:] {
		m = min(m, g)
	}
	return m
}

// ParallelRowsToArrayEdge is the number of rows between the furthest region
// edge and the end of the frame
func (l *Layout2D) ParallelRowsToArrayEdge() int {
	far := 0
	for _, r := range l.Regions {
		far = max(far, r.Y1())
	}
	return l.Shape[0] - far
}

// SerialColumnsToArrayEdge is the number of columns between the furthest region
// edge and the end of the frame
func (l *Layout2D) SerialColumnsToArrayEdge() int {
	far := 0
	for _, r := range l.Regions {
		far = max(far, r.X1())
	}
	return l.Shape[1] - far
}

// SmallestParallelRowsWithinRegions is the height of the shortest region
func (l *Layout2D) SmallestParallelRowsWithinRegions() int {
	if len(l.Regions) == 0 {
		return 0
	}
	m := l.Regions[0].TotalRows()
	for _, r := range l.Regions[1:] {
		m = min(m, r.TotalRows())
	}
	return m
}

// PreCTIDataUniform returns the frame with every injection region filled with norm
// and zeros elsewhere
func (l *Layout2D) PreCTIDataUniform(norm float64, scales grid.PixelScales) (*grid.Array2D, error) {
	a, err := grid.Zeros2D(l.Shape[0], l.Shape[1], scales)
	if err != nil {
		return nil, err
	}
	for _, r := range l.Regions {
		y0, y1, x0, x1 := r.Bounds()
		for i := y0; i < y1; i++ {
			for j := x0; j < x1; j++ {
				a.Set(i, j, norm)
			}
		}
	}
	return a, nil
}

// NonUniform parameterises a charge injection whose level varies between columns
// and decays along each column
type NonUniform struct {
	// Norm is the mean injection level
	Norm float64 `yaml:"norm" koanf:"norm"`

	// ColumnSigma is the standard deviation of the per-column level
	ColumnSigma float64 `yaml:"columnSigma" koanf:"columnSigma"`

	// MaxNorm bounds the per-column level from above, ignored if zero
	MaxNorm float64 `yaml:"maxNorm" koanf:"maxNorm"`

	// RowSlope is the power law index of the level along a column, row k
	// of a region receives level*(k+1)^RowSlope
	RowSlope float64 `yaml:"rowSlope" koanf:"rowSlope"`
}

// maxDraws bounds the rejection sampling of a column level
const maxDraws = 1000

func (n NonUniform) columnLevel(rng *rand.Rand) float64 {
	for k := 0; k < maxDraws; k++ {
		v := n.Norm + n.ColumnSigma*rng.NormFloat64()
		if v <= 0 || (n.MaxNorm > 0 && v >= n.MaxNorm) {
			continue
		}
		return v
	}
	if n.MaxNorm > 0 {
		return math.Min(n.Norm, n.MaxNorm)
	}
	return n.Norm
}

// PreCTIDataNonUniform returns the frame with every injection region filled by
// a column-wise varying, row-wise decaying level drawn from rng
func (l *Layout2D) PreCTIDataNonUniform(n NonUniform, rng *rand.Rand, scales grid.PixelScales) (*grid.Array2D, error) {
	a, err := grid.Zeros2D(l.Shape[0], l.Shape[1], scales)
	if err != nil {
		return nil, err
	}
	for _, r := range l.Regions {
		y0, y1, x0, x1 := r.Bounds()
		for j := x0; j < x1; j++ {
			level := n.columnLevel(rng)
			for i := y0; i < y1; i++ {
				a.Set(i, j, level*math.Pow(float64(i-y0+1), n.RowSlope))
			}
		}
	}
	return a, nil
}

// Layout1D is the geometry of a 1D charge injection readout, index 0 nearest
// the readout
type Layout1D struct {
	Shape    int
	Regions  []region.Region1D
	Prescan  *region.Region1D
	Overscan *region.Region1D
}

// New1D validates that every region and strip lies inside shape
func New1D(shape int, regions []region.Region1D, prescan, overscan *region.Region1D) (*Layout1D, error) {
	if shape <= 0 {
		return nil, fmt.Errorf("%w: layout shape %d", grid.ErrEmptyShape, shape)
	}
	for i, r := range regions {
		if err := r.Within(shape); err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
	}
	if prescan != nil {
		if err := prescan.Within(shape); err != nil {
			return nil, fmt.Errorf("prescan: %w", err)
		}
	}
	if overscan != nil {
		if err := overscan.Within(shape); err != nil {
			return nil, fmt.Errorf("overscan: %w", err)
		}
	}
	return &Layout1D{
		Shape:    shape,
		Regions:  append([]region.Region1D(nil), regions...),
		Prescan:  prescan,
		Overscan: overscan,
	}, nil
}

// TrailsPixelsToArrayEdge is the number of pixels between the furthest region
// edge and the end of the readout
func (l *Layout1D) TrailsPixelsToArrayEdge() int {
	far := 0
	for _, r := range l.Regions {
		far = max(far, r.X1())
	}
	return l.Shape - far
}

// PreCTIDataUniform returns the readout with every injection region filled with norm
func (l *Layout1D) PreCTIDataUniform(norm, scale float64) (*grid.Array1D, error) {
	a, err := grid.Zeros1D(l.Shape, scale)
	if err != nil {
		return nil, err
	}
	for _, r := range l.Regions {
		for i := r.X0(); i < r.X1(); i++ {
			a.Set(i, norm)
		}
	}
	return a, nil
}
