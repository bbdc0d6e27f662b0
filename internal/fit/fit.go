// Package fit relates the values of two grids sampled at the same tiles,
// using gonum for the statistics.
package fit

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kass/go-geogrid/pkg/geogrid"
)

var errTooFewPoints = errors.New("at least two points are required")

// Line is a fitted y = Intercept + Slope*x.
type Line struct {
	Intercept float64
	Slope     float64
	RSquared  float64
}

// Pairs samples x at every populated tile of y. The returned slices are
// index-aligned: xs[i] and ys[i] come from the same tile.
func Pairs(x, y *geogrid.Grid) (xs, ys []float64, err error) {
	if x.Rect() != y.Rect() {
		return nil, nil, fmt.Errorf("%w: %s and %s", geogrid.ErrIncompatibleGrid, x.Rect(), y.Rect())
	}
	for anchor, v := range y.All() {
		xs = append(xs, x.Get(anchor))
		ys = append(ys, v)
	}
	return xs, ys, nil
}

func checkSamples(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("sample length mismatch: %d x values, %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return errTooFewPoints
	}
	for _, v := range xs[1:] {
		if v != xs[0] {
			return nil
		}
	}
	return errors.New("x values are all equal")
}

// Linear fits a least-squares line through the samples.
func Linear(xs, ys []float64) (Line, error) {
	if err := checkSamples(xs, ys); err != nil {
		return Line{}, err
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Line{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
	}, nil
}

// TheilSen fits a line whose slope is the median of all pairwise slopes
// and whose intercept is the median of y - slope*x.
func TheilSen(xs, ys []float64) (Line, error) {
	if err := checkSamples(xs, ys); err != nil {
		return Line{}, err
	}

	var slopes []float64
	for i := range xs {
		for j := i + 1; j < len(xs); j++ {
			if dx := xs[j] - xs[i]; dx != 0 {
				slopes = append(slopes, (ys[j]-ys[i])/dx)
			}
		}
	}
	slope := median(slopes)

	residuals := make([]float64, len(xs))
	for i := range xs {
		residuals[i] = ys[i] - slope*xs[i]
	}
	intercept := median(residuals)

	return Line{
		Intercept: intercept,
		Slope:     slope,
		RSquared:  stat.RSquared(xs, ys, nil, intercept, slope),
	}, nil
}

// median sorts v in place.
func median(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}
