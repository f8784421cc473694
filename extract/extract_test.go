package extract

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/cticalib/grid"
	"github.com/nasa-jpl/cticalib/mathx"
	"github.com/nasa-jpl/cticalib/region"
)

// columnRamp returns a rows x cols frame whose value at column c is c
func columnRamp(t *testing.T, rows, cols int) *grid.Array2D {
	t.Helper()
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i % cols)
	}
	a, err := grid.New2D(rows, cols, data, nil, grid.PixelScales{0.1, 0.1})
	require.NoError(t, err)
	return a
}

// counting returns a rows x cols frame of distinct values
func counting(t *testing.T, rows, cols int) *grid.Array2D {
	t.Helper()
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i) + 0.5
	}
	a, err := grid.New2D(rows, cols, data, nil, grid.PixelScales{0.1, 0.1})
	require.NoError(t, err)
	return a
}

func regions(t *testing.T, quads ...[4]int) []region.Region2D {
	t.Helper()
	rs, err := region.List2D(quads)
	require.NoError(t, err)
	return rs
}

func values(p *grid.Array2D) [][]float64 {
	r, _ := p.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), p.RawRowView(i)...)
	}
	return out
}

func TestSerialEPERColumnAfterRegion(t *testing.T) {
	a := columnRamp(t, 3, 10)
	e := NewSerialEPER([2]int{3, 10}, regions(t, [4]int{0, 3, 1, 4}))
	patches, err := e.Patches(a, region.Pixels(0, 1))
	require.NoError(t, err)
	require.Len(t, patches, 1)
	want := [][]float64{{4}, {4}, {4}}
	if diff := cmp.Diff(want, values(patches[0])); diff != "" {
		t.Errorf("EPER patch (-want +got):\n%s", diff)
	}
}

func TestSerialFPRFirstColumnOfRegion(t *testing.T) {
	a := columnRamp(t, 3, 10)
	e := NewSerialFPR([2]int{3, 10}, regions(t, [4]int{0, 3, 1, 4}))
	patches, err := e.Patches(a, region.Pixels(0, 1))
	require.NoError(t, err)
	want := [][]float64{{1}, {1}, {1}}
	if diff := cmp.Diff(want, values(patches[0])); diff != "" {
		t.Errorf("FPR patch (-want +got):\n%s", diff)
	}
}

func TestRegionListPerVariant(t *testing.T) {
	shape := [2]int{20, 12}
	rs := regions(t, [4]int{2, 6, 3, 8}, [4]int{10, 14, 3, 8})
	tests := []struct {
		e    *Extractor2D
		w    region.Window
		want [][4]int
	}{
		{NewParallelFPR(shape, rs), region.Pixels(0, 2), [][4]int{{2, 4, 3, 8}, {10, 12, 3, 8}}},
		{NewParallelFPR(shape, rs), region.Pixels(-1, 1), [][4]int{{1, 3, 3, 8}, {9, 11, 3, 8}}},
		{NewParallelEPER(shape, rs), region.Pixels(0, 3), [][4]int{{6, 9, 3, 8}, {14, 17, 3, 8}}},
		{NewParallelEPER(shape, rs), region.Pixels(-1, 3), [][4]int{{5, 9, 3, 8}, {13, 17, 3, 8}}},
		{NewSerialFPR(shape, rs), region.Pixels(0, 2), [][4]int{{2, 6, 3, 5}, {10, 14, 3, 5}}},
		{NewSerialEPER(shape, rs), region.Pixels(1, 3), [][4]int{{2, 6, 9, 11}, {10, 14, 9, 11}}},
	}
	for _, tt := range tests {
		got, err := tt.e.RegionList(tt.w)
		require.NoError(t, err, tt.e.Name())
		var quads [][4]int
		for _, r := range got {
			quads = append(quads, r.Quad())
		}
		if diff := cmp.Diff(tt.want, quads); diff != "" {
			t.Errorf("%s %s (-want +got):\n%s", tt.e.Name(), tt.w, diff)
		}
	}
}

func TestPatchSizeDependsOnWindowOnly(t *testing.T) {
	shape := [2]int{30, 10}
	rs := regions(t, [4]int{1, 4, 0, 10}, [4]int{8, 17, 0, 10})
	a := counting(t, 30, 10)
	for _, e := range []*Extractor2D{NewParallelFPR(shape, rs), NewParallelEPER(shape, rs)} {
		for _, w := range []region.Window{region.Pixels(0, 2), region.Pixels(-1, 4), region.PixelsFromEnd(2)} {
			patches, err := e.Patches(a, w)
			require.NoError(t, err, "%s %s", e.Name(), w)
			for i, p := range patches {
				rows, cols := p.Dims()
				assert.Equal(t, w.Size(), rows, "%s %s patch %d", e.Name(), w, i)
				assert.Equal(t, 10, cols)
			}
		}
	}
}

func TestFromEndWindows(t *testing.T) {
	shape := [2]int{30, 4}
	rs := regions(t, [4]int{0, 3, 0, 4}, [4]int{8, 17, 0, 4})

	fpr, err := NewParallelFPR(shape, rs).RegionList(region.PixelsFromEnd(2))
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 3, 0, 4}, fpr[0].Quad())
	assert.Equal(t, [4]int{15, 17, 0, 4}, fpr[1].Quad())

	// gaps are 5 (to the second region) and 13 (to the frame edge)
	eper, err := NewParallelEPER(shape, rs).RegionList(region.PixelsFromEnd(2))
	require.NoError(t, err)
	assert.Equal(t, [4]int{6, 8, 0, 4}, eper[0].Quad())
	assert.Equal(t, [4]int{20, 22, 0, 4}, eper[1].Quad())
}

func TestOutOfBoundsIsAnError(t *testing.T) {
	shape := [2]int{10, 10}
	rs := regions(t, [4]int{0, 3, 1, 4}, [4]int{6, 9, 1, 4})
	_, err := NewParallelEPER(shape, rs).RegionList(region.Pixels(0, 2))
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))

	_, err = NewParallelFPR(shape, rs).RegionList(region.Pixels(-1, 1))
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))

	_, err = NewParallelFPR(shape, rs).RegionList(region.Pixels(2, 1))
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))
}

func TestShapeMismatch(t *testing.T) {
	e := NewParallelFPR([2]int{10, 10}, regions(t, [4]int{0, 3, 1, 4}))
	_, err := e.Patches(counting(t, 9, 10), region.Pixels(0, 1))
	assert.True(t, errors.Is(err, grid.ErrShapeMismatch))

	// patches of different widths cannot be stacked
	e = NewParallelFPR([2]int{10, 10}, regions(t, [4]int{0, 3, 1, 4}, [4]int{5, 8, 1, 6}))
	_, err = e.Stacked(counting(t, 10, 10), region.Pixels(0, 1))
	assert.True(t, errors.Is(err, grid.ErrShapeMismatch))
}

func TestStackedMaskedInOnePatch(t *testing.T) {
	shape := [2]int{10, 3}
	rs := regions(t, [4]int{0, 3, 0, 3}, [4]int{5, 8, 0, 3})
	a := counting(t, 10, 3)
	a.SetMasked(6, 1, true)

	stacked, err := NewParallelFPR(shape, rs).Stacked(a, region.Pixels(0, 3))
	require.NoError(t, err)
	assert.Equal(t, a.At(1, 1), stacked.At(1, 1))
	assert.False(t, stacked.Masked(1, 1))
	assert.Equal(t, (a.At(0, 0)+a.At(5, 0))/2, stacked.At(0, 0))

	counts, err := NewParallelFPR(shape, rs).StackedTotalPixels(a, region.Pixels(0, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[1][1])
	assert.Equal(t, 2, counts[0][0])
}

func TestStackedMaskedEverywhere(t *testing.T) {
	shape := [2]int{10, 3}
	rs := regions(t, [4]int{0, 3, 0, 3}, [4]int{5, 8, 0, 3})
	a := counting(t, 10, 3)
	a.SetMasked(1, 2, true)
	a.SetMasked(6, 2, true)
	stacked, err := NewParallelFPR(shape, rs).Stacked(a, region.Pixels(0, 3))
	require.NoError(t, err)
	assert.True(t, stacked.Masked(1, 2))
}

func TestStackedIgnoresRegionOrder(t *testing.T) {
	shape := [2]int{40, 5}
	quads := [][4]int{{0, 4, 0, 5}, {10, 14, 0, 5}, {20, 24, 0, 5}, {30, 34, 0, 5}}
	a := counting(t, 40, 5)
	for i := 0; i < 40; i++ {
		a.Set(i, 2, 1/float64(i+3))
	}
	a.SetMasked(11, 1, true)
	w := region.Pixels(0, 3)

	ref, err := NewParallelEPER(shape, regions(t, quads...)).Stacked(a, w)
	require.NoError(t, err)
	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, p := range perms {
		permuted := make([][4]int, len(quads))
		for i, k := range p {
			permuted[i] = quads[k]
		}
		got, err := NewParallelEPER(shape, regions(t, permuted...)).Stacked(a, w)
		require.NoError(t, err)
		assert.Equal(t, ref.Values(), got.Values(), "permutation %v", p)
		assert.Equal(t, ref.Mask(), got.Mask(), "permutation %v", p)
	}
}

func TestBinnedIsMeanOfStacked(t *testing.T) {
	shape := [2]int{20, 8}
	rs := regions(t, [4]int{1, 5, 1, 5}, [4]int{10, 14, 1, 5})
	a := counting(t, 20, 8)
	a.SetMasked(5, 3, true)
	w := region.Pixels(-1, 3)
	for _, e := range []*Extractor2D{NewParallelEPER(shape, rs), NewSerialEPER(shape, rs), NewParallelFPR(shape, rs)} {
		stacked, err := e.Stacked(a, w)
		require.NoError(t, err)
		binned, err := e.Binned(a, w)
		require.NoError(t, err)
		rows, cols := stacked.Dims()
		if e.Variant().Axis == Parallel {
			require.Equal(t, rows, binned.Len())
			for i := 0; i < rows; i++ {
				var vals []float64
				for j := 0; j < cols; j++ {
					if !stacked.Masked(i, j) {
						vals = append(vals, stacked.At(i, j))
					}
				}
				assert.Equal(t, mathx.StableMean(vals), binned.At(i), "%s row %d", e.Name(), i)
			}
		} else {
			require.Equal(t, cols, binned.Len())
			for j := 0; j < cols; j++ {
				var vals []float64
				for i := 0; i < rows; i++ {
					if !stacked.Masked(i, j) {
						vals = append(vals, stacked.At(i, j))
					}
				}
				assert.Equal(t, mathx.StableMean(vals), binned.At(j), "%s column %d", e.Name(), j)
			}
		}
	}
}

func TestAddToRoundTrip(t *testing.T) {
	shape := [2]int{20, 8}
	rs := regions(t, [4]int{0, 4, 1, 5}, [4]int{10, 14, 1, 5})
	a := counting(t, 20, 8)
	w := region.Pixels(0, 3)
	for _, e := range []*Extractor2D{NewParallelFPR(shape, rs), NewParallelEPER(shape, rs), NewSerialFPR(shape, rs), NewSerialEPER(shape, rs)} {
		acc := grid.ZerosLike(a)
		require.NoError(t, e.AddTo(acc, a, w))
		patches, err := e.Patches(a, w)
		require.NoError(t, err)
		rl, err := e.RegionList(w)
		require.NoError(t, err)

		inside := make([]bool, 20*8)
		for k, r := range rl {
			y0, y1, x0, x1 := r.Bounds()
			for i := y0; i < y1; i++ {
				for j := x0; j < x1; j++ {
					inside[i*8+j] = true
					assert.Equal(t, patches[k].At(i-y0, j-x0), acc.At(i, j), "%s (%d, %d)", e.Name(), i, j)
				}
			}
		}
		for i := 0; i < 20; i++ {
			for j := 0; j < 8; j++ {
				if !inside[i*8+j] {
					assert.Equal(t, 0.0, acc.At(i, j), "%s (%d, %d) outside patches", e.Name(), i, j)
				}
			}
		}
	}
}

func TestAddToAccumulates(t *testing.T) {
	shape := [2]int{3, 10}
	e := NewSerialEPER(shape, regions(t, [4]int{0, 3, 1, 4}))
	a := columnRamp(t, 3, 10)
	acc := grid.ZerosLike(a)
	acc.Set(0, 4, 1)
	require.NoError(t, e.AddTo(acc, a, region.Pixels(0, 1)))
	assert.Equal(t, 5.0, acc.At(0, 4))
	assert.Equal(t, 4.0, acc.At(1, 4))
}

func TestAddToErrors(t *testing.T) {
	shape := [2]int{3, 10}
	e := NewSerialEPER(shape, regions(t, [4]int{0, 3, 1, 4}))
	a := columnRamp(t, 3, 10)
	assert.True(t, errors.Is(e.AddTo(a, a, region.Pixels(0, 1)), ErrAliasedAccumulator))

	small, _ := grid.Zeros2D(3, 9, a.Scales)
	assert.True(t, errors.Is(e.AddTo(small, a, region.Pixels(0, 1)), grid.ErrShapeMismatch))

	acc := grid.ZerosLike(a)
	err := e.AddTo(acc, a, region.Pixels(0, 7))
	assert.True(t, errors.Is(err, region.ErrInvalidRegion))
	assert.Equal(t, make([]float64, 30), acc.Values(), "failed AddTo must not modify the accumulator")
}

func TestStatisticLists(t *testing.T) {
	shape := [2]int{10, 3}
	rs := regions(t, [4]int{0, 3, 0, 3}, [4]int{5, 8, 0, 3})
	a := counting(t, 10, 3)
	e := NewParallelFPR(shape, rs)

	medians, err := e.StatisticList(a, region.Pixels(0, 3), mathx.Median)
	require.NoError(t, err)
	assert.Equal(t, []float64{a.At(1, 1), a.At(6, 1)}, medians)

	means, err := e.StatisticListOfLists(a, region.Pixels(0, 3), mathx.Mean)
	require.NoError(t, err)
	require.Len(t, means, 2)
	require.Len(t, means[0], 3)
	assert.Equal(t, a.At(1, 2), means[0][2])

	serial := NewSerialFPR(shape, rs)
	rowMeans, err := serial.StatisticListOfLists(a, region.Pixels(0, 3), mathx.Mean)
	require.NoError(t, err)
	require.Len(t, rowMeans[1], 3)
	assert.Equal(t, a.At(7, 1), rowMeans[1][2])

	a.SetMasked(0, 0, true)
	a.SetMasked(0, 1, true)
	a.SetMasked(0, 2, true)
	onePixel, err := e.StatisticList(a, region.Pixels(0, 1), mathx.Mean)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(onePixel[0]))
}

func TestStructureExtractors(t *testing.T) {
	shape := [2]int{12, 10}
	rs := regions(t, [4]int{0, 3, 2, 8}, [4]int{5, 8, 2, 8})
	po, _ := region.NewRegion2D(9, 12, 2, 8)
	sp, _ := region.NewRegion2D(0, 9, 0, 2)
	so, _ := region.NewRegion2D(0, 9, 8, 10)

	got, err := NewParallelOverscan(shape, rs, po).RegionList(region.Pixels(0, 2))
	require.NoError(t, err)
	assert.Equal(t, [4]int{9, 11, 2, 8}, got[0].Quad())
	assert.Equal(t, [4]int{9, 11, 2, 8}, got[1].Quad())

	got, err = NewSerialPrescan(shape, rs, sp).RegionList(region.PixelsFromEnd(1))
	require.NoError(t, err)
	assert.Equal(t, [4]int{0, 3, 1, 2}, got[0].Quad())

	got, err = NewSerialOverscan(shape, rs, so).RegionList(region.Pixels(0, 2))
	require.NoError(t, err)
	assert.Equal(t, [4]int{5, 8, 8, 10}, got[1].Quad())

	_, ok, err := NewSerialOverscan(shape, rs, so).BinnedRegion1D(region.Pixels(0, 2))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBinnedRegion1D(t *testing.T) {
	shape := [2]int{30, 4}
	rs := regions(t, [4]int{0, 5, 0, 4}, [4]int{10, 15, 0, 4})
	tests := []struct {
		e    *Extractor2D
		w    region.Window
		ok   bool
		want [2]int
	}{
		{NewParallelFPR(shape, rs), region.Pixels(0, 3), true, [2]int{0, 3}},
		{NewParallelFPR(shape, rs), region.Pixels(-2, 3), true, [2]int{2, 5}},
		{NewParallelFPR(shape, rs), region.Pixels(3, 8), true, [2]int{0, 2}},
		{NewParallelEPER(shape, rs), region.Pixels(0, 3), false, [2]int{}},
		{NewParallelEPER(shape, rs), region.Pixels(-2, 3), true, [2]int{0, 2}},
	}
	for _, tt := range tests {
		r, ok, err := tt.e.BinnedRegion1D(tt.w)
		require.NoError(t, err)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.e.Name(), tt.w)
		if ok {
			x0, x1 := r.Bounds()
			assert.Equal(t, tt.want, [2]int{x0, x1}, "%s %s", tt.e.Name(), tt.w)
		}
	}
}

func TestEmptyRegionList(t *testing.T) {
	e := NewParallelEPER([2]int{10, 10}, nil)
	rl, err := e.RegionList(region.Pixels(0, 2))
	require.NoError(t, err)
	assert.Empty(t, rl)

	_, err = e.Stacked(counting(t, 10, 10), region.Pixels(0, 2))
	assert.True(t, errors.Is(err, region.ErrEmptyRegionList))
	_, err = e.Binned(counting(t, 10, 10), region.Pixels(0, 2))
	assert.True(t, errors.Is(err, region.ErrEmptyRegionList))
}
