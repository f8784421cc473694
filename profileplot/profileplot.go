// Package profileplot draws binned charge injection profiles as PNG line plots.
package profileplot

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg" // png

	"github.com/nasa-jpl/cticalib/grid"
)

// ErrNothingToPlot is generated when every profile is empty or fully masked
var ErrNothingToPlot = errors.New("no unmasked pixels to plot")

// Width and Height are the size of the rendered image
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Profile is one line of the plot
type Profile struct {
	// Name labels the line in the legend
	Name string

	// Data is the binned profile; masked pixels are left out
	Data *grid.Array1D

	// Offset is the pixel coordinate of Data[0] relative to the anchor edge,
	// i.e. the window start
	Offset int
}

func points(p Profile) plotter.XYs {
	pts := make(plotter.XYs, 0, p.Data.Len())
	for i := 0; i < p.Data.Len(); i++ {
		if p.Data.Masked(i) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(p.Offset + i), Y: p.Data.At(i)})
	}
	return pts
}

// New builds the plot of profiles
func New(title string, profiles []Profile) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "pixels from anchor edge"
	p.Y.Label.Text = "mean value"
	lines := 0
	for i, prof := range profiles {
		pts := points(prof)
		if len(pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", prof.Name, err)
		}
		l.Color = plotutil.Color(i)
		l.Dashes = plotutil.Dashes(i)
		p.Add(l)
		p.Legend.Add(prof.Name, l)
		lines++
	}
	if lines == 0 {
		return nil, ErrNothingToPlot
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// WritePNG renders the plot of profiles to w as a PNG
func WritePNG(w io.Writer, title string, profiles []Profile) error {
	p, err := New(title, profiles)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
