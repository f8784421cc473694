package extract

import (
	"fmt"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/mathx"
	"github.com/nasa-jpl/cticalib/region"
)

type deriveFunc1D func(r region.Region1D, start, end int) (region.Region1D, error)

// Extractor1D extracts one kind of sub-region from every charge injection
// region of a 1D readout
type Extractor1D struct {
	name    string
	anchor  Anchor
	shape   int
	regions []region.Region1D
	derive  deriveFunc1D
	span    func(i int) int
}

func newExtractor1D(name string, anchor Anchor, shape int, regions []region.Region1D, derive deriveFunc1D) *Extractor1D {
	e := &Extractor1D{
		name:    name,
		anchor:  anchor,
		shape:   shape,
		regions: append([]region.Region1D(nil), regions...),
		derive:  derive,
	}
	switch anchor {
	case Leading:
		e.span = func(i int) int { return e.regions[i].Length() }
	case Trailing:
		gap := e.trailingSpan()
		e.span = func(int) int { return gap }
	}
	return e
}

func (e *Extractor1D) trailingSpan() int {
	smallest := e.shape
	for i, r := range e.regions {
		next := e.shape
		for j, o := range e.regions {
			if i != j && o.X0() >= r.X1() && o.X0() < next {
				next = o.X0()
			}
		}
		smallest = min(smallest, next-r.X1())
	}
	return smallest
}

// NewFPR1D extracts pixels measured from the first pixel of each region
func NewFPR1D(shape int, regions []region.Region1D) *Extractor1D {
	return newExtractor1D("fpr", Leading, shape, regions, region.Region1D.FrontRegion)
}

// NewEPER1D extracts pixels measured from the pixel after each region
func NewEPER1D(shape int, regions []region.Region1D) *Extractor1D {
	return newExtractor1D("eper", Trailing, shape, regions, region.Region1D.TrailsRegion)
}

func newStructure1D(name string, shape int, regions []region.Region1D, strip region.Region1D) *Extractor1D {
	derive := func(_ region.Region1D, start, end int) (region.Region1D, error) {
		return region.NewRegion1D(strip.X0()+start, strip.X0()+end)
	}
	e := newExtractor1D(name, Structure, shape, regions, derive)
	e.span = func(int) int { return strip.Length() }
	return e
}

// NewPrescan1D extracts pixels of the prescan, once per region
func NewPrescan1D(shape int, regions []region.Region1D, prescan region.Region1D) *Extractor1D {
	return newStructure1D("prescan", shape, regions, prescan)
}

// NewOverscan1D extracts pixels of the overscan, once per region
func NewOverscan1D(shape int, regions []region.Region1D, overscan region.Region1D) *Extractor1D {
	return newStructure1D("overscan", shape, regions, overscan)
}

// Name identifies the extractor, e.g. "eper"
func (e *Extractor1D) Name() string { return e.name }

// RegionList applies the window to every region, preserving order
func (e *Extractor1D) RegionList(w region.Window) ([]region.Region1D, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	out := make([]region.Region1D, 0, len(e.regions))
	for i, r := range e.regions {
		start, end := w.Resolve(e.span(i))
		d, err := e.derive(r, start, end)
		if err == nil {
			err = d.Within(e.shape)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: region %d %s window %s: %w", e.name, i, r, w, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Patches copies the values and mask of a at every derived region
func (e *Extractor1D) Patches(a *grid.Array1D, w region.Window) ([]*grid.Array1D, error) {
	if a.Len() != e.shape {
		return nil, fmt.Errorf("%w: %s extractor built for %d pixels, array has %d",
			grid.ErrShapeMismatch, e.name, e.shape, a.Len())
	}
	regions, err := e.RegionList(w)
	if err != nil {
		return nil, err
	}
	out := make([]*grid.Array1D, len(regions))
	for i, r := range regions {
		if out[i], err = a.Sub(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Stacked is the pixel by pixel mean of every patch, skipping masked contributors
func (e *Extractor1D) Stacked(a *grid.Array1D, w region.Window) (*grid.Array1D, error) {
	patches, err := e.Patches(a, w)
	if err != nil {
		return nil, err
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("%s: %w", e.name, region.ErrEmptyRegionList)
	}
	n := patches[0].Len()
	out, err := grid.Zeros1D(n, a.Scale)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, 0, len(patches))
	for k := 0; k < n; k++ {
		vals = vals[:0]
		for _, p := range patches {
			if !p.Masked(k) {
				vals = append(vals, p.At(k))
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

// StatisticList reduces every patch to a single value, NaN if fully masked
func (e *Extractor1D) StatisticList(a *grid.Array1D, w region.Window, s mathx.Statistic) ([]float64, error) {
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

// AddTo adds the patches of a into acc at the pixels they were extracted from
func (e *Extractor1D) AddTo(acc, a *grid.Array1D, w region.Window) error {
	if acc == a {
		return ErrAliasedAccumulator
	}
	if err := acc.SameShape(a); err != nil {
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
		for i := r.X0(); i < r.X1(); i++ {
			acc.Add(i, patches[k].At(i-r.X0()))
		}
	}
	return nil
}

// BinnedRegion1D returns the part of a Stacked profile inside the injection
// regions, see Extractor2D.BinnedRegion1D
func (e *Extractor1D) BinnedRegion1D(w region.Window) (region.Region1D, bool, error) {
	if err := w.Validate(); err != nil {
		return region.Region1D{}, false, fmt.Errorf("%s: %w", e.name, err)
	}
	if len(e.regions) == 0 {
		return region.Region1D{}, false, fmt.Errorf("%s: %w", e.name, region.ErrEmptyRegionList)
	}
	shortest := 0
	for i, r := range e.regions {
		if r.Length() < e.regions[shortest].Length() {
			shortest = i
		}
	}
	length := e.regions[shortest].Length()
	start, end := w.Resolve(e.span(shortest))
	var lo, hi int
	switch e.anchor {
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
	r, err := region.NewRegion1D(lo-start, hi-start)
	return r, err == nil, err
}

// Set1D holds every extractor for one 1D layout
type Set1D struct {
	FPR      *Extractor1D
	EPER     *Extractor1D
	Prescan  *Extractor1D
	Overscan *Extractor1D
}

// New1D builds every extractor for the layout
func New1D(l *layout.Layout1D) *Set1D {
	s := &Set1D{
		FPR:  NewFPR1D(l.Shape, l.Regions),
		EPER: NewEPER1D(l.Shape, l.Regions),
	}
	if l.Prescan != nil {
		s.Prescan = NewPrescan1D(l.Shape, l.Regions, *l.Prescan)
	}
	if l.Overscan != nil {
		s.Overscan = NewOverscan1D(l.Shape, l.Regions, *l.Overscan)
	}
	return s
}
