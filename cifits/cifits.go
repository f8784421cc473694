// Package cifits reads and writes charge injection frames as FITS files.
//
// Values are stored as BITPIX -64 in the primary HDU.  When any pixel is
// masked, an 8-bit IMAGE extension named MASK follows, nonzero where a pixel
// is excluded.  Pixel scales travel in the PIXSCAL1 (rows) and PIXSCAL2
// (columns) cards.
package cifits

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/cticalib/grid"
)

const (
	maskExtName = "MASK"
	rowScaleKey = "PIXSCAL1"
	colScaleKey = "PIXSCAL2"
)

var (
	// ErrNotImage is generated when an HDU does not hold a 2D image
	ErrNotImage = errors.New("HDU is not a 2D image")
)

func readImage(f *fitsio.File, hdu int, scales grid.PixelScales) (*grid.Array2D, error) {
	if hdu < 0 || hdu >= len(f.HDUs()) {
		return nil, fmt.Errorf("HDU %d of %d: %w", hdu, len(f.HDUs()), ErrNotImage)
	}
	img, ok := f.HDU(hdu).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("HDU %d: %w", hdu, ErrNotImage)
	}
	axes := img.Header().Axes()
	if len(axes) != 2 {
		return nil, fmt.Errorf("HDU %d has %d axes: %w", hdu, len(axes), ErrNotImage)
	}
	// NAXIS1 is the fast axis
	cols, rows := axes[0], axes[1]
	data := make([]float64, rows*cols)
	if err := img.Read(&data); err != nil {
		return nil, err
	}
	return grid.New2D(rows, cols, data, nil, headerScales(img.Header(), scales))
}

func headerScales(h *fitsio.Header, fallback grid.PixelScales) grid.PixelScales {
	out := fallback
	for i, key := range []string{rowScaleKey, colScaleKey} {
		c := h.Get(key)
		if c == nil {
			continue
		}
		switch v := c.Value.(type) {
		case float64:
			out[i] = v
		case int:
			out[i] = float64(v)
		}
	}
	return out
}

func readMask(f *fitsio.File, rows, cols int) ([]bool, error) {
	for _, h := range f.HDUs()[1:] {
		img, ok := h.(fitsio.Image)
		if !ok || h.Name() != maskExtName {
			continue
		}
		axes := img.Header().Axes()
		if len(axes) != 2 || axes[0] != cols || axes[1] != rows {
			return nil, fmt.Errorf("%w: mask HDU is %v, values are (%d, %d)", grid.ErrShapeMismatch, axes, rows, cols)
		}
		raw := make([]byte, rows*cols)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		mask := make([]bool, len(raw))
		for i, b := range raw {
			mask[i] = b != 0
		}
		return mask, nil
	}
	return nil, nil
}

// Read2D reads the image in HDU number hdu, unmasked.  scales are used when
// the header does not carry pixel scales
func Read2D(r io.Reader, hdu int, scales grid.PixelScales) (*grid.Array2D, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readImage(f, hdu, scales)
}

// ReadMasked2D reads the primary HDU and, if present, the MASK extension
func ReadMasked2D(r io.Reader, scales grid.PixelScales) (*grid.Array2D, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, err := readImage(f, 0, scales)
	if err != nil {
		return nil, err
	}
	rows, cols := a.Dims()
	mask, err := readMask(f, rows, cols)
	if err != nil || mask == nil {
		return a, err
	}
	return a.WithMask(mask)
}

// Write2D streams a as a FITS file to w.  metadata is appended to the primary header
func Write2D(w io.Writer, a *grid.Array2D, metadata []fitsio.Card) error {
	rows, cols := a.Dims()
	dims := []int{cols, rows}
	metadata = append(metadata,
		fitsio.Card{Name: rowScaleKey, Value: a.Scales[0], Comment: "pixel scale along rows"},
		fitsio.Card{Name: colScaleKey, Value: a.Scales[1], Comment: "pixel scale along columns"})

	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	im := fitsio.NewImage(-64, dims)
	defer im.Close()
	if err = im.Header().Append(metadata...); err != nil {
		return err
	}
	if err = im.Write(a.Values()); err != nil {
		return err
	}
	if err = fits.Write(im); err != nil {
		return err
	}
	if !a.AnyMasked() {
		return nil
	}

	mk := fitsio.NewImage(8, dims)
	defer mk.Close()
	err = mk.Header().Append(fitsio.Card{Name: "EXTNAME", Value: maskExtName, Comment: "nonzero pixels are excluded"})
	if err != nil {
		return err
	}
	m := a.Mask()
	raw := make([]byte, len(m))
	for i, b := range m {
		if b {
			raw[i] = 1
		}
	}
	if err = mk.Write(raw); err != nil {
		return err
	}
	return fits.Write(mk)
}

// FileLoader loads masked frames from FITS files on disk
type FileLoader struct {
	// Scales are used when a file does not carry pixel scales
	Scales grid.PixelScales
}

// Load reads the frame at path
func (l FileLoader) Load(path string) (*grid.Array2D, error) {
	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()
	a, err := ReadMasked2D(fid, l.Scales)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// WriteFile writes a to a new file at path
func WriteFile(path string, a *grid.Array2D, metadata []fitsio.Card) error {
	fid, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write2D(fid, a, metadata); err != nil {
		fid.Close()
		return err
	}
	return fid.Close()
}
