// Package extract slices, stacks and bins the sub-regions of a charge injection
// frame that carry the CTI signal: the first pixels of each injection region
// (FPR, the leading edge nearest the readout), the pixels after it (EPER, the
// trailing edge where deferred charge appears), and the prescan and overscan
// strips alongside each region.
//
// Every extractor is one generic type fixed by a Variant, the axis its window
// runs along and the anchor the window is measured from, and a derive
// function applying the window to one region.  All operations are pure
// functions of their arguments except AddTo, which accumulates into the array
// it is given.
package extract

import (
	"errors"
	"fmt"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/mathx"
	"github.com/nasa-jpl/cticalib/region"
)

// ErrAliasedAccumulator is returned by AddTo when the accumulator is also the source
var ErrAliasedAccumulator = errors.New("accumulator and source are the same array")

// Axis is the direction an extraction window runs along
type Axis int

const (
	// Parallel windows run along rows, towards the readout register
	Parallel Axis = iota

	// Serial windows run along columns, through the serial register
	Serial
)

func (a Axis) String() string {
	if a == Serial {
		return "serial"
	}
	return "parallel"
}

// Anchor is the edge a window is measured from
type Anchor int

const (
	// Leading anchors on the edge of each region nearest the readout
	Leading Anchor = iota

	// Trailing anchors on the edge of each region away from the readout
	Trailing

	// Structure anchors on the near edge of a prescan or overscan strip, taking
	// the extent across the axis from each region
	Structure
)

// Variant fixes an extractor's axis and anchor
type Variant struct {
	Axis   Axis
	Anchor Anchor
}

// deriveFunc applies an explicit window (start, end) to one region
type deriveFunc func(r region.Region2D, start, end int) (region.Region2D, error)

// Extractor2D extracts one kind of sub-region from every charge injection
// region of a 2D frame
type Extractor2D struct {
	name    string
	variant Variant
	shape   [2]int
	regions []region.Region2D
	derive  deriveFunc

	// span is the length from-end windows count back from, for region i
	span func(i int) int
}

// Name identifies the extractor, e.g. "parallel-eper"
func (e *Extractor2D) Name() string { return e.name }

// Variant returns the axis and anchor of the extractor
func (e *Extractor2D) Variant() Variant { return e.variant }

// Regions returns the charge injection regions the extractor works from
func (e *Extractor2D) Regions() []region.Region2D {
	return append([]region.Region2D(nil), e.regions...)
}

// along returns the extent of r along the extractor's axis
func (e *Extractor2D) along(r region.Region2D) region.Region1D {
	if e.variant.Axis == Serial {
		return r.Columns()
	}
	return r.Rows()
}

// across returns the extent of r across the extractor's axis
func (e *Extractor2D) across(r region.Region2D) region.Region1D {
	if e.variant.Axis == Serial {
		return r.Rows()
	}
	return r.Columns()
}

func (e *Extractor2D) extent() int {
	if e.variant.Axis == Serial {
		return e.shape[1]
	}
	return e.shape[0]
}

// trailingSpan is the smallest gap between a region's far edge and the next
// structure along the axis: the nearest region that starts after it and shares
// part of its extent across the axis, or the edge of the frame
func (e *Extractor2D) trailingSpan() int {
	smallest := e.extent()
	for i, r := range e.regions {
		far := e.along(r).X1()
		next := e.extent()
		for j, o := range e.regions {
			if i == j {
				continue
			}
			near := e.along(o).X0()
			if near < far || near >= next {
				continue
			}
			if _, ok := e.across(r).Intersect(e.across(o)); ok {
				next = near
			}
		}
		smallest = min(smallest, next-far)
	}
	return smallest
}

// RegionList applies the window to every region, preserving order.  Derived
// regions which do not lie inside the frame are an error, never clipped
func (e *Extractor2D) RegionList(w region.Window) ([]region.Region2D, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	out := make([]region.Region2D, 0, len(e.regions))
	for i, r := range e.regions {
		start, end := w.Resolve(e.span(i))
		d, err := e.derive(r, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: region %d %s window %s: %w", e.name, i, r, w, err)
		}
		if err := d.Within(e.shape[0], e.shape[1]); err != nil {
			return nil, fmt.Errorf("%s: region %d %s window %s: %w", e.name, i, r, w, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (e *Extractor2D) checkShape(a *grid.Array2D) error {
	r, c := a.Dims()
	if r != e.shape[0] || c != e.shape[1] {
		return fmt.Errorf("%w: %s extractor built for (%d, %d), array is (%d, %d)",
			grid.ErrShapeMismatch, e.name, e.shape[0], e.shape[1], r, c)
	}
	return nil
}

// Patches copies the values and mask of a at every derived region, one patch
// per charge injection region
func (e *Extractor2D) Patches(a *grid.Array2D, w region.Window) ([]*grid.Array2D, error) {
	if err := e.checkShape(a); err != nil {
		return nil, err
	}
	regions, err := e.RegionList(w)
	if err != nil {
		return nil, err
	}
	out := make([]*grid.Array2D, len(regions))
	for i, r := range regions {
		p, err := a.Sub(r)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// samePatchShape returns the shared shape of patches or ErrShapeMismatch
func samePatchShape(name string, patches []*grid.Array2D) (int, int, error) {
	if len(patches) == 0 {
		return 0, 0, fmt.Errorf("%s: %w", name, region.ErrEmptyRegionList)
	}
	for i, p := range patches[1:] {
		if err := p.SameShape(patches[0]); err != nil {
			return 0, 0, fmt.Errorf("%s: patch %d cannot be stacked on patch 0: %w", name, i+1, err)
		}
	}
	r, c := patches[0].Dims()
	return r, c, nil
}

// Stacked is the cell by cell mean of every patch.  Masked contributors are
// skipped; a cell masked in every patch is masked in the result, with value 0.
// The result does not depend on the order of the region list
func (e *Extractor2D) Stacked(a *grid.Array2D, w region.Window) (*grid.Array2D, error) {
	patches, err := e.Patches(a, w)
	if err != nil {
		return nil, err
	}
	rows, cols, err := samePatchShape(e.name, patches)
	if err != nil {
		return nil, err
	}
	out, err := grid.Zeros2D(rows, cols, a.Scales)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, 0, len(patches))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			vals = vals[:0]
			for _, p := range patches {
				if !p.Masked(i, j) {
					vals = append(vals, p.At(i, j))
				}
			}
			if len(vals) == 0 {
				out.SetMasked(i, j, true)
				continue
			}
			out.Set(i, j, mathx.StableMean(vals))
		}
	}
	return out, nil
}

// StackedTotalPixels counts the unmasked contributors to every cell of Stacked
func (e *Extractor2D) StackedTotalPixels(a *grid.Array2D, w region.Window) ([][]int, error) {
	patches, err := e.Patches(a, w)
	if err != nil {
		return nil, err
	}
	rows, cols, err := samePatchShape(e.name, patches)
	if err != nil {
		return nil, err
	}
	out := make([][]int, rows)
	for i := range out {
		out[i] = make([]int, cols)
		for j := range out[i] {
			for _, p := range patches {
				if !p.Masked(i, j) {
					out[i][j]++
				}
			}
		}
	}
	return out, nil
}

// collapse averages a stacked patch across the extractor's axis, giving one
// value per pixel along it
func (e *Extractor2D) collapse(stacked *grid.Array2D) (*grid.Array1D, error) {
	rows, cols := stacked.Dims()
	n, m := rows, cols
	scale := stacked.Scales[0]
	if e.variant.Axis == Serial {
		n, m = cols, rows
		scale = stacked.Scales[1]
	}
	out, err := grid.Zeros1D(n, scale)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, 0, m)
	for k := 0; k < n; k++ {
		vals = vals[:0]
		for l := 0; l < m; l++ {
			i, j := k, l
			if e.variant.Axis == Serial {
				i, j = l, k
			}
			if !stacked.Masked(i, j) {
				vals = append(vals, stacked.At(i, j))
			}
		}
		if len(vals) == 0 {
			out.SetMasked(k, true)
			continue
		}
		out.Set(k, mathx.StableMean(vals))
	}
	return out, nil
}

// Binned collapses Stacked across the extractor's axis into a 1D profile
// along it
func (e *Extractor2D) Binned(a *grid.Array2D, w region.Window) (*grid.Array1D, error) {
	stacked, err := e.Stacked(a, w)
	if err != nil {
		return nil, err
	}
	return e.collapse(stacked)
}

// StatisticList reduces every patch to a single value.  A patch with every
// pixel masked gives NaN
func (e *Extractor2D) StatisticList(a *grid.Array2D, w region.Window, s mathx.Statistic) ([]float64, error) {
	patches, err := e.Patches(a, w)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(patches))
	for i, p := range patches {
		out[i] = s.Apply(p.Unmasked())
	}
	return out, nil
}

// StatisticListOfLists reduces every patch along the extractor's axis, giving
// for each region one value per row (serial) or column (parallel) across it
func (e *Extractor2D) StatisticListOfLists(a *grid.Array2D, w region.Window, s mathx.Statistic) ([][]float64, error) {
	patches, err := e.Patches(a, w)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(patches))
	for pi, p := range patches {
		rows, cols := p.Dims()
		n, m := cols, rows
		if e.variant.Axis == Serial {
			n, m = rows, cols
		}
		list := make([]float64, n)
		vals := make([]float64, 0, m)
		for k := 0; k < n; k++ {
			vals = vals[:0]
			for l := 0; l < m; l++ {
				i, j := l, k
				if e.variant.Axis == Serial {
					i, j = k, l
				}
				if !p.Masked(i, j) {
					vals = append(vals, p.At(i, j))
				}
			}
			list[k] = s.Apply(vals)
		}
		out[pi] = list
	}
	return out, nil
}

// AddTo adds the patches of a into acc at the coordinates they were extracted
// from; acc is modified.  Scattering into an array of zeros reproduces the
// patches exactly and leaves every other pixel at zero.  Masks are not touched.
// Nothing is added unless every region is valid
func (e *Extractor2D) AddTo(acc, a *grid.Array2D, w region.Window) error {
	if acc == a {
		return ErrAliasedAccumulator
	}
	if err := e.checkShape(acc); err != nil {
		return err
	}
	regions, err := e.RegionList(w)
	if err != nil {
		return err
	}
	patches, err := e.Patches(a, w)
	if err != nil {
		return err
	}
	for k, r := range regions {
		p := patches[k]
		y0, y1, x0, x1 := r.Bounds()
		for i := y0; i < y1; i++ {
			row := p.RawRowView(i - y0)
			for j := x0; j < x1; j++ {
				acc.Add(i, j, row[j-x0])
			}
		}
	}
	return nil
}

// BinnedRegion1D returns the part of a Binned profile which lies inside the
// charge injection regions, in profile coordinates.  ok is false when the
// window holds no injected pixels, always so for prescan and overscan
// extractors
func (e *Extractor2D) BinnedRegion1D(w region.Window) (r region.Region1D, ok bool, err error) {
	if err := w.Validate(); err != nil {
		return region.Region1D{}, false, fmt.Errorf("%s: %w", e.name, err)
	}
	if len(e.regions) == 0 {
		return region.Region1D{}, false, fmt.Errorf("%s: %w", e.name, region.ErrEmptyRegionList)
	}
	shortest := 0
	for i, reg := range e.regions {
		if e.along(reg).Length() < e.along(e.regions[shortest]).Length() {
			shortest = i
		}
	}
	length := e.along(e.regions[shortest]).Length()
	start, end := w.Resolve(e.span(shortest))

	var lo, hi int
	switch e.variant.Anchor {
	case Leading:
		lo, hi = 0, length
	case Trailing:
		lo, hi = -length, 0
	default:
		return region.Region1D{}, false, nil
	}
	lo, hi = max(lo, start), min(hi, end)
	if lo >= hi {
		return region.Region1D{}, false, nil
	}
	r, err = region.NewRegion1D(lo-start, hi-start)
	return r, err == nil, err
}
