package renderer

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"gonum.org/v1/gonum/floats"
)

// Criteria decides which blocks are refined. Each criterion with a positive
// cut flags a block when more than its fraction of valid pixels reach the cut
type Criteria struct {
	config.AdaptiveConfig
}

// Enabled reports whether any criterion is active
func (c Criteria) Enabled() bool {
	return c.ValCut > 0 || c.AbsGradCut > 0 || c.RelGradCut > 0 || c.AbsLaplCut > 0 || c.RelLaplCut > 0
}

// ShouldRefine scores a block on total intensity. spacing is the pixel size
// at the block's level in units of M
func (c Criteria) ShouldRefine(b *Block, spacing float64) bool {
	if !c.Enabled() {
		return false
	}

	n := b.Size
	intensity := make([]float64, n*n)
	valid := 0
	for p := range intensity {
		intensity[p] = b.Stokes[p][0]
		if !b.Pixels[p].Invalid {
			valid++
		}
	}
	if valid == 0 {
		return false
	}

	grad := make([]float64, n*n)
	lapl := make([]float64, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			at := func(i, j int) float64 { return intensity[i*n+j] }
			rowAt := func(i int) float64 { return at(row, i) }
			colAt := func(i int) float64 { return at(i, col) }
			du := firstDifference(rowAt, col, n, spacing)
			dv := firstDifference(colAt, row, n, spacing)
			grad[row*n+col] = math.Hypot(du, dv)
			lapl[row*n+col] = math.Abs(secondDifference(rowAt, col, n, spacing) + secondDifference(colAt, row, n, spacing))
		}
	}

	metric := make([]float64, n*n)
	check := func(cut, frac float64, value func(p int) float64) bool {
		if cut <= 0 {
			return false
		}
		for p := range metric {
			metric[p] = math.NaN()
			if !b.Pixels[p].Invalid {
				metric[p] = value(p)
			}
		}
		hits := floats.Count(func(v float64) bool { return v >= cut }, metric)
		return float64(hits) > frac*float64(valid)
	}
	relative := func(values []float64) func(p int) float64 {
		return func(p int) float64 {
			if intensity[p] <= 0 {
				return math.NaN()
			}
			return values[p] / intensity[p]
		}
	}

	return check(c.ValCut, c.ValFrac, func(p int) float64 { return intensity[p] }) ||
		check(c.AbsGradCut, c.AbsGradFrac, func(p int) float64 { return grad[p] }) ||
		check(c.RelGradCut, c.RelGradFrac, relative(grad)) ||
		check(c.AbsLaplCut, c.AbsLaplFrac, func(p int) float64 { return lapl[p] }) ||
		check(c.RelLaplCut, c.RelLaplFrac, relative(lapl))
}

// firstDifference is centred inside [0, n) and one-sided at the ends
func firstDifference(f func(int) float64, i, n int, h float64) float64 {
	switch {
	case n < 2:
		return 0
	case i == 0:
		return (f(1) - f(0)) / h
	case i == n-1:
		return (f(n-1) - f(n-2)) / h
	default:
		return (f(i+1) - f(i-1)) / (2 * h)
	}
}

// secondDifference is centred inside [0, n) and shifted inward at the ends
func secondDifference(f func(int) float64, i, n int, h float64) float64 {
	if n < 3 {
		return 0
	}
	c := min(max(i, 1), n-2)
	return (f(c+1) - 2*f(c) + f(c-1)) / (h * h)
}
