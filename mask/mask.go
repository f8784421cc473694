// Package mask builds the boolean masks that exclude pixels from a charge
// injection frame before it is fit.
//
// true marks a pixel as excluded, the same convention as grid.
package mask

import (
	"fmt"

	"github.com/nasa-jpl/cticalib/extract"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/region"
)

// Mask2D is a row-major boolean mask over a frame
type Mask2D struct {
	rows, cols int
	data       []bool
}

// Unmasked2D returns a mask that excludes nothing
func Unmasked2D(rows, cols int) (*Mask2D, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: mask shape (%d, %d)", grid.ErrEmptyShape, rows, cols)
	}
	return &Mask2D{rows: rows, cols: cols, data: make([]bool, rows*cols)}, nil
}

// FromRegions2D returns a mask excluding every pixel inside any of regions
func FromRegions2D(rows, cols int, regions []region.Region2D) (*Mask2D, error) {
	m, err := Unmasked2D(rows, cols)
	if err != nil {
		return nil, err
	}
	for i, r := range regions {
		if err := r.Within(rows, cols); err != nil {
			return nil, fmt.Errorf("mask region %d: %w", i, err)
		}
		for y := r.Y0(); y < r.Y1(); y++ {
			for x := r.X0(); x < r.X1(); x++ {
				m.data[y*cols+x] = true
			}
		}
	}
	return m, nil
}

// Dims returns the shape of the mask
func (m *Mask2D) Dims() (int, int) { return m.rows, m.cols }

// At reports if pixel (i, j) is excluded
func (m *Mask2D) At(i, j int) bool { return m.data[i*m.cols+j] }

// Count is the number of excluded pixels
func (m *Mask2D) Count() int {
	n := 0
	for _, b := range m.data {
		if b {
			n++
		}
	}
	return n
}

// Bools returns a copy of the row-major mask
func (m *Mask2D) Bools() []bool { return append([]bool(nil), m.data...) }

// Or returns the union of m and o
func (m *Mask2D) Or(o *Mask2D) (*Mask2D, error) {
	if m.rows != o.rows || m.cols != o.cols {
		return nil, fmt.Errorf("%w: mask (%d, %d) vs (%d, %d)", grid.ErrShapeMismatch, m.rows, m.cols, o.rows, o.cols)
	}
	out := &Mask2D{rows: m.rows, cols: m.cols, data: make([]bool, len(m.data))}
	for i := range out.data {
		out.data[i] = m.data[i] || o.data[i]
	}
	return out, nil
}

// Apply returns a copy of a whose mask is the union of a's own mask and m
func (m *Mask2D) Apply(a *grid.Array2D) (*grid.Array2D, error) {
	r, c := a.Dims()
	if r != m.rows || c != m.cols {
		return nil, fmt.Errorf("%w: mask (%d, %d) vs array (%d, %d)", grid.ErrShapeMismatch, m.rows, m.cols, r, c)
	}
	combined := a.Mask()
	for i, b := range m.data {
		combined[i] = combined[i] || b
	}
	return a.WithMask(combined)
}

// Settings selects which charge injection features FPRAndEPER2D masks.  A nil
// window leaves that feature unmasked
type Settings struct {
	ParallelFPR  *region.Window `yaml:"parallelFPR" koanf:"parallelFPR" json:"parallelFPR,omitempty"`
	ParallelEPER *region.Window `yaml:"parallelEPER" koanf:"parallelEPER" json:"parallelEPER,omitempty"`
	SerialFPR    *region.Window `yaml:"serialFPR" koanf:"serialFPR" json:"serialFPR,omitempty"`
	SerialEPER   *region.Window `yaml:"serialEPER" koanf:"serialEPER" json:"serialEPER,omitempty"`
}

// FPRAndEPER2D masks every region the layout's FPR and EPER extractors derive
// from the windows in s
func FPRAndEPER2D(l *layout.Layout2D, s Settings) (*Mask2D, error) {
	set := extract.New2D(l)
	var all []region.Region2D
	for _, sel := range []struct {
		e *extract.Extractor2D
		w *region.Window
	}{
		{set.ParallelFPR, s.ParallelFPR},
		{set.ParallelEPER, s.ParallelEPER},
		{set.SerialFPR, s.SerialFPR},
		{set.SerialEPER, s.SerialEPER},
	} {
		if sel.w == nil {
			continue
		}
		rs, err := sel.e.RegionList(*sel.w)
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		all = append(all, rs...)
	}
	return FromRegions2D(l.Rows(), l.Columns(), all)
}

// Mask1D is a boolean mask over a 1D readout
type Mask1D struct {
	data []bool
}

// FromRegions1D returns a mask of n pixels excluding every pixel inside any of regions
func FromRegions1D(n int, regions []region.Region1D) (*Mask1D, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: mask length %d", grid.ErrEmptyShape, n)
	}
	m := &Mask1D{data: make([]bool, n)}
	for i, r := range regions {
		if err := r.Within(n); err != nil {
			return nil, fmt.Errorf("mask region %d: %w", i, err)
		}
		for x := r.X0(); x < r.X1(); x++ {
			m.data[x] = true
		}
	}
	return m, nil
}

// Len is the number of pixels
func (m *Mask1D) Len() int { return len(m.data) }

// At reports if pixel i is excluded
func (m *Mask1D) At(i int) bool { return m.data[i] }

// Bools returns a copy of the mask
func (m *Mask1D) Bools() []bool { return append([]bool(nil), m.data...) }

// Or returns the union of m and o
func (m *Mask1D) Or(o *Mask1D) (*Mask1D, error) {
	if len(m.data) != len(o.data) {
		return nil, fmt.Errorf("%w: mask %d vs %d", grid.ErrShapeMismatch, len(m.data), len(o.data))
	}
	out := &Mask1D{data: make([]bool, len(m.data))}
	for i := range out.data {
		out.data[i] = m.data[i] || o.data[i]
	}
	return out, nil
}

// Apply returns a copy of a whose mask is the union of a's own mask and m
func (m *Mask1D) Apply(a *grid.Array1D) (*grid.Array1D, error) {
	if a.Len() != len(m.data) {
		return nil, fmt.Errorf("%w: mask %d vs array %d", grid.ErrShapeMismatch, len(m.data), a.Len())
	}
	combined := a.Mask()
	for i, b := range m.data {
		combined[i] = combined[i] || b
	}
	return a.WithMask(combined)
}

// Settings1D selects which features FPRAndEPER1D masks
type Settings1D struct {
	FPR  *region.Window `yaml:"fpr" koanf:"fpr" json:"fpr,omitempty"`
	EPER *region.Window `yaml:"eper" koanf:"eper" json:"eper,omitempty"`
}

// FPRAndEPER1D masks every region the layout's FPR and EPER extractors derive
// from the windows in s
func FPRAndEPER1D(l *layout.Layout1D, s Settings1D) (*Mask1D, error) {
	set := extract.New1D(l)
	var all []region.Region1D
	if s.FPR != nil {
		rs, err := set.FPR.RegionList(*s.FPR)
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		all = append(all, rs...)
	}
	if s.EPER != nil {
		rs, err := set.EPER.RegionList(*s.EPER)
		if err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		all = append(all, rs...)
	}
	return FromRegions1D(l.Shape, all)
}
