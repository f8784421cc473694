// Package simulate builds synthetic charge injection frames for exercising the
// extraction and calibration code.
//
// Charge transfer itself is not modelled.  Frames are composed from an injected
// image by copying its FPR and EPER patches, and noise and residual charge are
// layered on top.  Every random draw comes from an explicit *rand.Rand so
// frames are reproducible.
package simulate

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nasa-jpl/cticalib/extract"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/region"
)

// EdgeImage returns a zeroed frame holding only the parallel FPR and EPER
// patches of src.  Pixels covered by both windows receive both contributions
func EdgeImage(l *layout.Layout2D, src *grid.Array2D, fpr, eper region.Window) (*grid.Array2D, error) {
	set := extract.New2D(l)
	out := grid.ZerosLike(src)
	if err := set.ParallelFPR.AddTo(out, src, fpr); err != nil {
		return nil, fmt.Errorf("fpr: %w", err)
	}
	if err := set.ParallelEPER.AddTo(out, src, eper); err != nil {
		return nil, fmt.Errorf("eper: %w", err)
	}
	return out, nil
}

// AddReadNoise adds zero mean gaussian noise of standard deviation sigma to
// every pixel of a, in place
func AddReadNoise(a *grid.Array2D, sigma float64, rng *rand.Rand) {
	rows, cols := a.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Add(i, j, sigma*rng.NormFloat64())
		}
	}
}

// Persistence describes residual charge left behind each injection region
type Persistence struct {
	// Amplitude is the residual level in the first row after a region
	Amplitude float64 `yaml:"amplitude" koanf:"amplitude"`

	// Scatter is the relative standard deviation of the amplitude between columns
	Scatter float64 `yaml:"scatter" koanf:"scatter"`

	// Decay is the e-folding length in rows
	Decay float64 `yaml:"decay" koanf:"decay"`
}

// AddReadoutPersistence adds exponentially decaying residual charge after the
// far edge of every region of l, in place.  The residual continues until the
// next region along the column or the frame edge
func AddReadoutPersistence(a *grid.Array2D, l *layout.Layout2D, p Persistence, rng *rand.Rand) error {
	rows, cols := a.Dims()
	if rows != l.Rows() || cols != l.Columns() {
		return fmt.Errorf("%w: layout is %v, array is (%d, %d)", grid.ErrShapeMismatch, l.Shape, rows, cols)
	}
	if p.Decay <= 0 {
		return fmt.Errorf("persistence decay must be positive, got %g", p.Decay)
	}
	for _, r := range l.Regions {
		for j := r.X0(); j < r.X1(); j++ {
			amp := p.Amplitude * (1 + p.Scatter*rng.NormFloat64())
			stop := nextRegionRow(l, r.Y1(), j)
			for i := r.Y1(); i < stop; i++ {
				a.Add(i, j, amp*math.Exp(-float64(i-r.Y1())/p.Decay))
			}
		}
	}
	return nil
}

// nextRegionRow is the first row at or after from where a region covers column j
func nextRegionRow(l *layout.Layout2D, from, j int) int {
	next := l.Rows()
	for _, r := range l.Regions {
		if r.Y0() >= from && r.Y0() < next && j >= r.X0() && j < r.X1() {
			next = r.Y0()
		}
	}
	return next
}
