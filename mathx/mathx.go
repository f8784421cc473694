// Package mathx contains the small statistics used to reduce extracted pixels.
// Every function ignores the order of its input where that matters for
// reproducibility.
package mathx

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistic selects the reduction applied to a set of pixel values
type Statistic int

const (
	// Mean is the arithmetic mean
	Mean Statistic = iota

	// Median is the median, averaging the two central values for even counts
	Median
)

// ParseStatistic converts "mean" or "median" (case insensitive) to a Statistic
func ParseStatistic(s string) (Statistic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "":
		return Mean, nil
	case "median":
		return Median, nil
	default:
		return Mean, fmt.Errorf("statistic %q not understood, must be one of {mean, median}", s)
	}
}

func (s Statistic) String() string {
	if s == Median {
		return "median"
	}
	return "mean"
}

// Apply reduces xs with the statistic.  xs is not modified.
func (s Statistic) Apply(xs []float64) float64 {
	if s == Median {
		return MedianOf(xs)
	}
	return StableMean(xs)
}

// StableMean is the mean of xs summed in ascending order, so any permutation
// of xs produces the identical float.  NaN for empty input
func StableMean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Mean(sorted, nil)
}

// MedianOf returns the median of xs without modifying it.  NaN for empty input
func MedianOf(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Sum is the sum of xs in ascending order
func Sum(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return floats.Sum(sorted)
}

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}
