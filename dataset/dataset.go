// Package dataset bundles a charge injection frame with its noise map, the
// injection it was expected to receive, and its layout, in the canonical
// orientation.
package dataset

import (
	"fmt"

	"github.com/nasa-jpl/cticalib/extract"
	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/layout"
	"github.com/nasa-jpl/cticalib/mask"
	"github.com/nasa-jpl/cticalib/roe"
)

// ImagingCI is one charge injection frame ready to be fit
type ImagingCI struct {
	// Data is the observed frame
	Data *grid.Array2D

	// NoiseMap is the per-pixel uncertainty on Data
	NoiseMap *grid.Array2D

	// PreCTIData is the injection before any charge transfer
	PreCTIData *grid.Array2D

	Layout *layout.Layout2D
}

// NewImagingCI checks that every array has the layout's shape
func NewImagingCI(data, noiseMap, preCTI *grid.Array2D, l *layout.Layout2D) (*ImagingCI, error) {
	for _, named := range []struct {
		name string
		a    *grid.Array2D
	}{{"data", data}, {"noise map", noiseMap}, {"pre-CTI data", preCTI}} {
		if named.a == nil {
			return nil, fmt.Errorf("%s: %w", named.name, grid.ErrEmptyShape)
		}
		r, c := named.a.Dims()
		if r != l.Rows() || c != l.Columns() {
			return nil, fmt.Errorf("%w: %s is (%d, %d), layout is %v", grid.ErrShapeMismatch, named.name, r, c, l.Shape)
		}
	}
	return &ImagingCI{Data: data, NoiseMap: noiseMap, PreCTIData: preCTI, Layout: l}, nil
}

// Extractors returns every extractor for the dataset's layout
func (d *ImagingCI) Extractors() *extract.Set2D {
	return extract.New2D(d.Layout)
}

// ApplyMask returns a copy of d whose data and noise map exclude the pixels of m
func (d *ImagingCI) ApplyMask(m *mask.Mask2D) (*ImagingCI, error) {
	data, err := m.Apply(d.Data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	noise, err := m.Apply(d.NoiseMap)
	if err != nil {
		return nil, fmt.Errorf("noise map: %w", err)
	}
	return &ImagingCI{Data: data, NoiseMap: noise, PreCTIData: d.PreCTIData.Copy(), Layout: d.Layout}, nil
}

type cropper interface {
	Array(a *grid.Array2D, span [2]int) (*grid.Array2D, error)
	ExtractedLayout(span [2]int) (*layout.Layout2D, error)
}

func (d *ImagingCI) crop(c cropper, span [2]int) (*ImagingCI, error) {
	l, err := c.ExtractedLayout(span)
	if err != nil {
		return nil, err
	}
	arrays := make([]*grid.Array2D, 3)
	for i, a := range []*grid.Array2D{d.Data, d.NoiseMap, d.PreCTIData} {
		if arrays[i], err = c.Array(a, span); err != nil {
			return nil, err
		}
	}
	return NewImagingCI(arrays[0], arrays[1], arrays[2], l)
}

// ParallelCalibration crops the dataset to columns over the full height
func (d *ImagingCI) ParallelCalibration(columns [2]int) (*ImagingCI, error) {
	return d.crop(extract.ParallelCalibration{Layout: d.Layout}, columns)
}

// SerialCalibration keeps rows, relative to the first row of each injection
// region, stacked into one frame
func (d *ImagingCI) SerialCalibration(rows [2]int) (*ImagingCI, error) {
	return d.crop(extract.SerialCalibration{Layout: d.Layout}, rows)
}

func (d *ImagingCI) orient(c roe.Corner, f func(*grid.Array2D, roe.Corner) (*grid.Array2D, error),
	lf func(*layout.Layout2D, roe.Corner) (*layout.Layout2D, error)) (*ImagingCI, error) {
	l, err := lf(d.Layout, c)
	if err != nil {
		return nil, err
	}
	arrays := make([]*grid.Array2D, 3)
	for i, a := range []*grid.Array2D{d.Data, d.NoiseMap, d.PreCTIData} {
		if arrays[i], err = f(a, c); err != nil {
			return nil, err
		}
	}
	return NewImagingCI(arrays[0], arrays[1], arrays[2], l)
}

// Normalize maps a dataset read out at corner c into the canonical orientation
func (d *ImagingCI) Normalize(c roe.Corner) (*ImagingCI, error) {
	return d.orient(c, roe.Normalize2D, roe.NormalizeLayout)
}

// Denormalize is the inverse of Normalize
func (d *ImagingCI) Denormalize(c roe.Corner) (*ImagingCI, error) {
	return d.orient(c, roe.Denormalize2D, roe.DenormalizeLayout)
}

// Loader reads a frame from storage
type Loader interface {
	Load(path string) (*grid.Array2D, error)
}

// Paths names the files of one dataset.  NoiseMap and PreCTIData may be empty
type Paths struct {
	Data       string `yaml:"data" koanf:"data" json:"data"`
	NoiseMap   string `yaml:"noiseMap" koanf:"noiseMap" json:"noiseMap"`
	PreCTIData string `yaml:"preCTIData" koanf:"preCTIData" json:"preCTIData"`
}

// LoadOptions fill in arrays whose path is empty
type LoadOptions struct {
	// NoiseMapValue is used everywhere when there is no noise map file
	NoiseMapValue float64 `yaml:"noiseMapValue" koanf:"noiseMapValue" json:"noiseMapValue"`

	// PreCTINorm is the uniform injection level when there is no pre-CTI file
	PreCTINorm float64 `yaml:"preCTINorm" koanf:"preCTINorm" json:"preCTINorm"`
}

// LoadImagingCI reads a dataset whose files and layout are in the detector's
// raw orientation, read out at corner c, and normalizes it
func LoadImagingCI(ld Loader, p Paths, raw *layout.Layout2D, c roe.Corner, opts LoadOptions) (*ImagingCI, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	data, err := ld.Load(p.Data)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	var noise *grid.Array2D
	if p.NoiseMap != "" {
		if noise, err = ld.Load(p.NoiseMap); err != nil {
			return nil, fmt.Errorf("loading noise map: %w", err)
		}
	} else {
		r, cols := data.Dims()
		if noise, err = grid.Full2D(r, cols, opts.NoiseMapValue, data.Scales); err != nil {
			return nil, err
		}
	}
	var pre *grid.Array2D
	if p.PreCTIData != "" {
		if pre, err = ld.Load(p.PreCTIData); err != nil {
			return nil, fmt.Errorf("loading pre-CTI data: %w", err)
		}
	} else if pre, err = raw.PreCTIDataUniform(opts.PreCTINorm, data.Scales); err != nil {
		return nil, err
	}
	d, err := NewImagingCI(data, noise, pre, raw)
	if err != nil {
		return nil, err
	}
	return d.Normalize(c)
}
