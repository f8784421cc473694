// Package grid holds detector readouts as real-valued arrays with an aligned
// exclusion mask.
//
// A true mask entry excludes that pixel from statistics; its value is kept.
// Arrays are treated as immutable by the rest of the module except where a
// function documents that it mutates its argument.
package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/cticalib/region"
)

var (
	// ErrShapeMismatch is returned when values and mask, or two arrays which
	// must agree, differ in shape
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrEmptyShape is returned when asked to allocate an array with no pixels
	ErrEmptyShape = errors.New("arrays must have at least one pixel")
)

// PixelScales is the (row, column) size of a pixel in arcseconds
type PixelScales [2]float64

// Array2D is a 2D readout.  Rows are the parallel direction, columns the serial
type Array2D struct {
	data *mat.Dense

	// mask is row-major, len rows*cols
	mask []bool

	// Scales is carried along unchanged by every operation
	Scales PixelScales
}

// New2D wraps row-major data of shape (rows, cols).  A nil mask is all false
func New2D(rows, cols int, data []float64, mask []bool, scales PixelScales) (*Array2D, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrEmptyShape, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for shape (%d, %d)", ErrShapeMismatch, len(data), rows, cols)
	}
	if mask == nil {
		mask = make([]bool, rows*cols)
	}
	if len(mask) != rows*cols {
		return nil, fmt.Errorf("%w: %d mask entries for shape (%d, %d)", ErrShapeMismatch, len(mask), rows, cols)
	}
	return &Array2D{data: mat.NewDense(rows, cols, data), mask: mask, Scales: scales}, nil
}

// FromRows builds an unmasked array from a slice of equal length rows
func FromRows(rows [][]float64, scales PixelScales) (*Array2D, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyShape
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShapeMismatch, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return New2D(len(rows), cols, data, nil, scales)
}

// FromDense wraps d without copying.  A nil mask is all false
func FromDense(d *mat.Dense, mask []bool, scales PixelScales) (*Array2D, error) {
	r, c := d.Dims()
	if mask == nil {
		mask = make([]bool, r*c)
	}
	if len(mask) != r*c {
		return nil, fmt.Errorf("%w: %d mask entries for shape (%d, %d)", ErrShapeMismatch, len(mask), r, c)
	}
	return &Array2D{data: d, mask: mask, Scales: scales}, nil
}

// Full2D returns an unmasked array with every value set to v
func Full2D(rows, cols int, v float64, scales PixelScales) (*Array2D, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrEmptyShape, rows, cols)
	}
	data := make([]float64, rows*cols)
	if v != 0 {
		for i := range data {
			data[i] = v
		}
	}
	return New2D(rows, cols, data, nil, scales)
}

// Zeros2D returns an unmasked array of zeros
func Zeros2D(rows, cols int, scales PixelScales) (*Array2D, error) {
	return Full2D(rows, cols, 0, scales)
}

// ZerosLike returns an unmasked array of zeros with the shape and scales of a
func ZerosLike(a *Array2D) *Array2D {
	r, c := a.Dims()
	return &Array2D{data: mat.NewDense(r, c, nil), mask: make([]bool, r*c), Scales: a.Scales}
}

// Dims returns (rows, columns)
func (a *Array2D) Dims() (int, int) {
	return a.data.Dims()
}

// SameShape returns ErrShapeMismatch if a and b differ in shape
func (a *Array2D) SameShape(b *Array2D) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("%w: (%d, %d) vs (%d, %d)", ErrShapeMismatch, ar, ac, br, bc)
	}
	return nil
}

// At returns the value at row i, column j
func (a *Array2D) At(i, j int) float64 { return a.data.At(i, j) }

// Set sets the value at row i, column j
func (a *Array2D) Set(i, j int, v float64) { a.data.Set(i, j, v) }

// Add adds v to the value at row i, column j
func (a *Array2D) Add(i, j int, v float64) { a.data.Set(i, j, a.data.At(i, j)+v) }

// Masked reports if the pixel at row i, column j is excluded
func (a *Array2D) Masked(i, j int) bool {
	_, c := a.Dims()
	return a.mask[i*c+j]
}

// SetMasked includes (false) or excludes (true) the pixel at row i, column j
func (a *Array2D) SetMasked(i, j int, m bool) {
	_, c := a.Dims()
	a.mask[i*c+j] = m
}

// Mask returns a copy of the row-major mask
func (a *Array2D) Mask() []bool {
	return append([]bool(nil), a.mask...)
}

// AnyMasked is true if at least one pixel is excluded
func (a *Array2D) AnyMasked() bool {
	for _, m := range a.mask {
		if m {
			return true
		}
	}
	return false
}

// Matrix returns a read-only view of the values
func (a *Array2D) Matrix() mat.Matrix {
	return a.data
}

// RawRowView returns row i of the values.  The slice aliases the array
func (a *Array2D) RawRowView(i int) []float64 {
	return a.data.RawRowView(i)
}

// Values returns a row-major copy of the values
func (a *Array2D) Values() []float64 {
	r, c := a.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, a.data.RawRowView(i)...)
	}
	return out
}

// Copy returns a deep copy of a
func (a *Array2D) Copy() *Array2D {
	return &Array2D{data: mat.DenseCopyOf(a.data), mask: a.Mask(), Scales: a.Scales}
}

// WithMask returns a copy of a carrying mask m
func (a *Array2D) WithMask(m []bool) (*Array2D, error) {
	r, c := a.Dims()
	if len(m) != r*c {
		return nil, fmt.Errorf("%w: %d mask entries for shape (%d, %d)", ErrShapeMismatch, len(m), r, c)
	}
	return &Array2D{data: mat.DenseCopyOf(a.data), mask: append([]bool(nil), m...), Scales: a.Scales}, nil
}

// Sub copies the values and mask inside reg into a new array.
// ErrInvalidRegion is returned if reg does not lie inside a
func (a *Array2D) Sub(reg region.Region2D) (*Array2D, error) {
	rows, cols := a.Dims()
	if err := reg.Within(rows, cols); err != nil {
		return nil, err
	}
	y0, y1, x0, x1 := reg.Bounds()
	view := a.data.Slice(y0, y1, x0, x1)
	sr, sc := reg.Shape()
	mask := make([]bool, 0, sr*sc)
	for i := y0; i < y1; i++ {
		mask = append(mask, a.mask[i*cols+x0:i*cols+x1]...)
	}
	return &Array2D{data: mat.DenseCopyOf(view), mask: mask, Scales: a.Scales}, nil
}

// Unmasked returns the values of every included pixel, row-major
func (a *Array2D) Unmasked() []float64 {
	r, c := a.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		row := a.data.RawRowView(i)
		for j, v := range row {
			if !a.mask[i*c+j] {
				out = append(out, v)
			}
		}
	}
	return out
}

// Array1D is a 1D readout
type Array1D struct {
	data *mat.VecDense
	mask []bool

	// Scale is the pixel size in arcseconds
	Scale float64
}

// New1D wraps data.  A nil mask is all false
func New1D(data []float64, mask []bool, scale float64) (*Array1D, error) {
	if len(data) == 0 {
		return nil, ErrEmptyShape
	}
	if mask == nil {
		mask = make([]bool, len(data))
	}
	if len(mask) != len(data) {
		return nil, fmt.Errorf("%w: %d mask entries for %d values", ErrShapeMismatch, len(mask), len(data))
	}
	return &Array1D{data: mat.NewVecDense(len(data), data), mask: mask, Scale: scale}, nil
}

// Zeros1D returns an unmasked array of n zeros
func Zeros1D(n int, scale float64) (*Array1D, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrEmptyShape, n)
	}
	return New1D(make([]float64, n), nil, scale)
}

// ZerosLike1D returns an unmasked array of zeros with the length and scale of a
func ZerosLike1D(a *Array1D) *Array1D {
	n := a.Len()
	return &Array1D{data: mat.NewVecDense(n, nil), mask: make([]bool, n), Scale: a.Scale}
}

// Len is the number of pixels
func (a *Array1D) Len() int { return a.data.Len() }

// At returns the value at pixel i
func (a *Array1D) At(i int) float64 { return a.data.AtVec(i) }

// Set sets the value at pixel i
func (a *Array1D) Set(i int, v float64) { a.data.SetVec(i, v) }

// Add adds v to the value at pixel i
func (a *Array1D) Add(i int, v float64) { a.data.SetVec(i, a.data.AtVec(i)+v) }

// Masked reports if pixel i is excluded
func (a *Array1D) Masked(i int) bool { return a.mask[i] }

// SetMasked includes (false) or excludes (true) pixel i
func (a *Array1D) SetMasked(i int, m bool) { a.mask[i] = m }

// Mask returns a copy of the mask
func (a *Array1D) Mask() []bool { return append([]bool(nil), a.mask...) }

// Values returns a copy of the values
func (a *Array1D) Values() []float64 {
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = a.data.AtVec(i)
	}
	return out
}

// Copy returns a deep copy of a
func (a *Array1D) Copy() *Array1D {
	return &Array1D{data: mat.VecDenseCopyOf(a.data), mask: a.Mask(), Scale: a.Scale}
}

// WithMask returns a copy of a carrying mask m
func (a *Array1D) WithMask(m []bool) (*Array1D, error) {
	if len(m) != a.Len() {
		return nil, fmt.Errorf("%w: %d mask entries for %d values", ErrShapeMismatch, len(m), a.Len())
	}
	return &Array1D{data: mat.VecDenseCopyOf(a.data), mask: append([]bool(nil), m...), Scale: a.Scale}, nil
}

// SameShape returns ErrShapeMismatch if a and b differ in length
func (a *Array1D) SameShape(b *Array1D) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("%w: %d vs %d pixels", ErrShapeMismatch, a.Len(), b.Len())
	}
	return nil
}

// Sub copies the values and mask inside reg into a new array
func (a *Array1D) Sub(reg region.Region1D) (*Array1D, error) {
	if err := reg.Within(a.Len()); err != nil {
		return nil, err
	}
	x0, x1 := reg.Bounds()
	view := a.data.SliceVec(x0, x1)
	return &Array1D{
		data:  mat.VecDenseCopyOf(view),
		mask:  append([]bool(nil), a.mask[x0:x1]...),
		Scale: a.Scale,
	}, nil
}

// Unmasked returns the values of every included pixel
func (a *Array1D) Unmasked() []float64 {
	out := make([]float64, 0, a.Len())
	for i, m := range a.mask {
		if !m {
			out = append(out, a.data.AtVec(i))
		}
	}
	return out
}
