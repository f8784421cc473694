package extract

import (
	"fmt"
	"sort"

	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/region"
)

func newExtractor2D(name string, v Variant, shape [2]int, regions []region.Region2D, derive deriveFunc) *Extractor2D {
	e := &Extractor2D{
		name:    name,
		variant: v,
		shape:   shape,
		regions: append([]region.Region2D(nil), regions...),
		derive:  derive,
	}
	switch v.Anchor {
	case Leading:
		e.span = func(i int) int { return e.along(e.regions[i]).Length() }
	case Trailing:
		gap := e.trailingSpan()
		e.span = func(int) int { return gap }
	}
	return e
}

// NewParallelFPR extracts rows measured from the first row of each region
func NewParallelFPR(shape [2]int, regions []region.Region2D) *Extractor2D {
	return newExtractor2D("parallel-fpr", Variant{Parallel, Leading}, shape, regions,
		region.Region2D.ParallelFrontRegion)
}

// NewParallelEPER extracts rows measured from the row after each region.
// From-end windows count back from the smallest gap to the next region or
// frame edge, so every patch has the same offset
func NewParallelEPER(shape [2]int, regions []region.Region2D) *Extractor2D {
	return newExtractor2D("parallel-eper", Variant{Parallel, Trailing}, shape, regions,
		region.Region2D.ParallelTrailsRegion)
}

// NewSerialFPR extracts columns measured from the first column of each region
func NewSerialFPR(shape [2]int, regions []region.Region2D) *Extractor2D {
	return newExtractor2D("serial-fpr", Variant{Serial, Leading}, shape, regions,
		region.Region2D.SerialFrontRegion)
}

// NewSerialEPER extracts columns measured from the column after each region
func NewSerialEPER(shape [2]int, regions []region.Region2D) *Extractor2D {
	return newExtractor2D("serial-eper", Variant{Serial, Trailing}, shape, regions,
		region.Region2D.SerialTrailsRegion)
}

// newStructure builds an extractor anchored on a prescan or overscan strip.
// The window runs along the strip from its near edge; the extent across the
// axis comes from each region
func newStructure(name string, axis Axis, shape [2]int, regions []region.Region2D, strip region.Region2D) *Extractor2D {
	v := Variant{axis, Structure}
	var derive deriveFunc
	if axis == Parallel {
		derive = func(r region.Region2D, start, end int) (region.Region2D, error) {
			return region.NewRegion2D(strip.Y0()+start, strip.Y0()+end, r.X0(), r.X1())
		}
	} else {
		derive = func(r region.Region2D, start, end int) (region.Region2D, error) {
			return region.NewRegion2D(r.Y0(), r.Y1(), strip.X0()+start, strip.X0()+end)
		}
	}
	e := newExtractor2D(name, v, shape, regions, derive)
	length := e.along(strip).Length()
	e.span = func(int) int { return length }
	return e
}

// NewParallelOverscan extracts rows of the parallel overscan below each region's columns
func NewParallelOverscan(shape [2]int, regions []region.Region2D, overscan region.Region2D) *Extractor2D {
	return newStructure("parallel-overscan", Parallel, shape, regions, overscan)
}

// NewSerialPrescan extracts columns of the serial prescan beside each region's rows
func NewSerialPrescan(shape [2]int, regions []region.Region2D, prescan region.Region2D) *Extractor2D {
	return newStructure("serial-prescan", Serial, shape, regions, prescan)
}

// NewSerialOverscan extracts columns of the serial overscan beside each region's rows
func NewSerialOverscan(shape [2]int, regions []region.Region2D, overscan region.Region2D) *Extractor2D {
	return newStructure("serial-overscan", Serial, shape, regions, overscan)
}

// Set2D holds every extractor for one layout.  Strip extractors are nil when
// the layout has no such strip
type Set2D struct {
	ParallelFPR      *Extractor2D
	ParallelEPER     *Extractor2D
	SerialFPR        *Extractor2D
	SerialEPER       *Extractor2D
	ParallelOverscan *Extractor2D
	SerialPrescan    *Extractor2D
	SerialOverscan   *Extractor2D

	ParallelCalibration ParallelCalibration
	SerialCalibration   SerialCalibration
}

// New2D builds every extractor for the layout
func New2D(l *layout.Layout2D) *Set2D {
	s := &Set2D{
		ParallelFPR:         NewParallelFPR(l.Shape, l.Regions),
		ParallelEPER:        NewParallelEPER(l.Shape, l.Regions),
		SerialFPR:           NewSerialFPR(l.Shape, l.Regions),
		SerialEPER:          NewSerialEPER(l.Shape, l.Regions),
		ParallelCalibration: ParallelCalibration{Layout: l},
		SerialCalibration:   SerialCalibration{Layout: l},
	}
	if l.ParallelOverscan != nil {
		s.ParallelOverscan = NewParallelOverscan(l.Shape, l.Regions, *l.ParallelOverscan)
	}
	if l.SerialPrescan != nil {
		s.SerialPrescan = NewSerialPrescan(l.Shape, l.Regions, *l.SerialPrescan)
	}
	if l.SerialOverscan != nil {
		s.SerialOverscan = NewSerialOverscan(l.Shape, l.Regions, *l.SerialOverscan)
	}
	return s
}

func (s *Set2D) all() []*Extractor2D {
	out := []*Extractor2D{}
	for _, e := range []*Extractor2D{s.ParallelFPR, s.ParallelEPER, s.SerialFPR, s.SerialEPER,
		s.ParallelOverscan, s.SerialPrescan, s.SerialOverscan} {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Names lists the extractors available in the set, sorted
func (s *Set2D) Names() []string {
	var names []string
	for _, e := range s.all() {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// ByName returns the extractor called name, e.g. "serial-eper"
func (s *Set2D) ByName(name string) (*Extractor2D, error) {
	for _, e := range s.all() {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("extractor %q not available, must be one of %v", name, s.Names())
}
