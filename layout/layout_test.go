package layout

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/region"
)

func twoRegions(t *testing.T) *Layout2D {
	t.Helper()
	rs, err := region.List2D([][4]int{{1, 3, 1, 4}, {5, 7, 1, 4}})
	require.NoError(t, err)
	l, err := New2D([2]int{10, 6}, rs, nil, nil, nil)
	require.NoError(t, err)
	return l
}

func TestNew2DRejectsRegionOutsideShape(t *testing.T) {
	rs, _ := region.List2D([][4]int{{0, 11, 0, 1}})
	_, err := New2D([2]int{10, 6}, rs, nil, nil, nil)
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))

	po, _ := region.NewRegion2D(8, 12, 0, 6)
	_, err = New2D([2]int{10, 6}, nil, &po, nil, nil)
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))
}

func TestGeometryHelpers(t *testing.T) {
	l := twoRegions(t)
	assert.Equal(t, []int{2}, l.ParallelRowsBetweenRegions())
	assert.Equal(t, 2, l.SmallestParallelRowsBetweenRegions())
	assert.Equal(t, 3, l.ParallelRowsToArrayEdge())
	assert.Equal(t, 2, l.SerialColumnsToArrayEdge())
	assert.Equal(t, 2, l.SmallestParallelRowsWithinRegions())
}

func TestPreCTIDataUniform(t *testing.T) {
	l := twoRegions(t)
	a, err := l.PreCTIDataUniform(100, grid.PixelScales{0.1, 0.1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.At(1, 1))
	assert.Equal(t, 100.0, a.At(6, 3))
	assert.Equal(t, 0.0, a.At(0, 1))
	assert.Equal(t, 0.0, a.At(1, 4))
	assert.Equal(t, 0.0, a.At(3, 2))
}

func TestPreCTIDataNonUniformIsReproducible(t *testing.T) {
	l := twoRegions(t)
	n := NonUniform{Norm: 100, ColumnSigma: 10, MaxNorm: 130, RowSlope: -0.1}
	a, err := l.PreCTIDataNonUniform(n, rand.New(rand.NewSource(1)), grid.PixelScales{})
	require.NoError(t, err)
	b, err := l.PreCTIDataNonUniform(n, rand.New(rand.NewSource(1)), grid.PixelScales{})
	require.NoError(t, err)
	assert.Equal(t, a.Values(), b.Values())

	// row k of a region is level*(k+1)^slope
	first := a.At(1, 2)
	second := a.At(2, 2)
	assert.InDelta(t, first*math.Pow(2, -0.1), second, 1e-9)
	assert.True(t, first > 0 && first < 130)
	assert.Equal(t, 0.0, a.At(4, 2))
}

func TestLayout1D(t *testing.T) {
	rs, _ := region.List1D([][2]int{{1, 3}, {6, 8}})
	l, err := New1D(10, rs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, l.TrailsPixelsToArrayEdge())
	a, err := l.PreCTIDataUniform(5, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 5, 0, 0, 0, 5, 5, 0, 0}, a.Values())

	bad, _ := region.NewRegion1D(9, 11)
	_, err = New1D(10, []region.Region1D{bad}, nil, nil)
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))
}
