package simulation

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
)

// State is the plasma state at a point, in code units. U holds the
// normal-frame velocity ũ^i and B the cell magnetic field B^i, both in the
// grid's coordinate system
type State struct {
	Rho   float64
	Pgas  float64
	Kappa float64
	U     [3]float64
	B     [3]float64
}

// Sampler resolves points against a Grid. It holds no mutable state; callers
// that want block-locality keep their own hint
type Sampler struct {
	grid      *Grid
	spacetime metric.Spacetime
	interp    config.Interp
	fallback  config.FallbackConfig
}

// NewSampler creates a sampler over a read-only grid
func NewSampler(grid *Grid, st metric.Spacetime, interp config.Interp, fallback config.FallbackConfig) *Sampler {
	return &Sampler{grid: grid, spacetime: st, interp: interp, fallback: fallback}
}

// Fallback returns the state substituted for points without valid data
func (s *Sampler) Fallback() State {
	if s.fallback.NaN {
		nan := math.NaN()
		return State{
			Rho: nan, Pgas: nan, Kappa: nan,
			U: [3]float64{nan, nan, nan},
			B: [3]float64{nan, nan, nan},
		}
	}
	return State{Rho: s.fallback.Rho, Pgas: s.fallback.Pgas, Kappa: s.fallback.Kappa}
}

// GridCoordinates converts a CKS point to the grid's coordinate system,
// wrapping the azimuth into [0, 2π) for spherical grids
func (s *Sampler) GridCoordinates(x, y, z float64) (float64, float64, float64) {
	if s.grid.Coords != metric.SKS {
		return x, y, z
	}
	r, theta, phi := s.spacetime.CKSToSKS(x, y, z)
	return r, theta, wrapPhi(phi)
}

func wrapPhi(phi float64) float64 {
	phi = math.Mod(phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}

// Sample returns the plasma state at a CKS point. The flag is false when the
// point is outside the grid or the data there is unusable, in which case the
// configured fallback state is returned
func (s *Sampler) Sample(x, y, z float64) (State, bool) {
	hint := -1
	return s.SampleHint(x, y, z, &hint)
}

// SampleHint is Sample with a caller-owned block hint that is updated in place
func (s *Sampler) SampleHint(x, y, z float64, hint *int) (State, bool) {
	x1, x2, x3 := s.GridCoordinates(x, y, z)
	h := -1
	if hint != nil {
		h = *hint
	}
	n := s.grid.Locate(x1, x2, x3, h)
	if n < 0 {
		return s.Fallback(), false
	}
	if hint != nil {
		*hint = n
	}

	var vals [numFields]float64
	var ok bool
	switch s.interp {
	case config.InterpNearest:
		vals, ok = s.nearest(n, x1, x2, x3)
	case config.InterpBlock:
		vals, ok = s.linear(n, x1, x2, x3, true)
	default:
		vals, ok = s.linear(n, x1, x2, x3, false)
	}
	if !ok {
		return s.Fallback(), false
	}

	state := State{
		Rho:   vals[Rho],
		Pgas:  vals[Pgas],
		Kappa: vals[Kappa],
		U:     [3]float64{vals[Uu1], vals[Uu2], vals[Uu3]},
		B:     [3]float64{vals[Bb1], vals[Bb2], vals[Bb3]},
	}
	if !state.valid() {
		return s.Fallback(), false
	}
	return state, true
}

func (st *State) valid() bool {
	all := []float64{st.Rho, st.Pgas, st.Kappa, st.U[0], st.U[1], st.U[2], st.B[0], st.B[1], st.B[2]}
	for _, v := range all {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return st.Rho > 0 && st.Pgas > 0
}

func (s *Sampler) nearest(n int, x1, x2, x3 float64) ([numFields]float64, bool) {
	var vals [numFields]float64
	b := &s.grid.Blocks[n]
	i, j, k := b.Cell(x1, x2, x3)
	if i < 0 || j < 0 || k < 0 {
		return vals, false
	}
	for f := Field(0); f < numFields; f++ {
		vals[f] = b.Value(f, i, j, k)
	}
	return vals, true
}

// tap is one of the two interpolation points along a direction
type tap struct {
	index  int     // Cell index within the home block, or -1 if outside it
	coord  float64 // Coordinate used to find the cell in a neighbouring block
	weight float64
}

// taps returns the two interpolation points bracketing x along one direction
// Without crossBlock, points beyond the outermost cell centres clamp to them
func taps(faces, centres []float64, x float64, crossBlock bool) [2]tap {
	n := len(centres)
	i := faceIndex(faces, x)
	c := centres[i]
	width := faces[i+1] - faces[i]

	if x >= c {
		if i+1 < n {
			w := (x - c) / (centres[i+1] - c)
			return [2]tap{{i, c, 1 - w}, {i + 1, centres[i+1], w}}
		}
		if crossBlock {
			w := (x - c) / width
			return [2]tap{{i, c, 1 - w}, {-1, c + width, w}}
		}
		return [2]tap{{i, c, 1}, {i, c, 0}}
	}
	if i > 0 {
		w := (x - centres[i-1]) / (c - centres[i-1])
		return [2]tap{{i - 1, centres[i-1], 1 - w}, {i, c, w}}
	}
	if crossBlock {
		w := (x - (c - width)) / width
		return [2]tap{{-1, c - width, 1 - w}, {i, c, w}}
	}
	return [2]tap{{i, c, 0}, {i, c, 1}}
}

// linear performs trilinear interpolation between cell centres. With
// crossBlock, corners outside block n are read from whichever block holds
// them; corners outside the grid are dropped and the weights renormalized
func (s *Sampler) linear(n int, x1, x2, x3 float64, crossBlock bool) ([numFields]float64, bool) {
	var vals [numFields]float64
	b := &s.grid.Blocks[n]
	t1 := taps(b.X1F, b.X1V, x1, crossBlock)
	t2 := taps(b.X2F, b.X2V, x2, crossBlock)
	t3 := taps(b.X3F, b.X3V, x3, crossBlock)

	total := 0.0
	for _, a := range t1 {
		for _, c := range t2 {
			for _, d := range t3 {
				w := a.weight * c.weight * d.weight
				if w == 0 {
					continue
				}
				cb, ci, cj, ck := n, a.index, c.index, d.index
				if ci < 0 || cj < 0 || ck < 0 {
					var ok bool
					cb, ci, cj, ck, ok = s.findCell(a.coord, c.coord, d.coord, n)
					if !ok {
						continue
					}
				}
				blk := &s.grid.Blocks[cb]
				for f := Field(0); f < numFields; f++ {
					vals[f] += w * blk.Value(f, ci, cj, ck)
				}
				total += w
			}
		}
	}
	if total == 0 {
		return vals, false
	}
	if total != 1 {
		for f := range vals {
			vals[f] /= total
		}
	}
	return vals, true
}

// findCell locates the cell containing a grid-coordinate point anywhere in the grid
func (s *Sampler) findCell(x1, x2, x3 float64, hint int) (n, i, j, k int, ok bool) {
	if s.grid.Coords == metric.SKS {
		x3 = wrapPhi(x3)
	}
	n = s.grid.Locate(x1, x2, x3, hint)
	if n < 0 {
		return 0, 0, 0, 0, false
	}
	i, j, k = s.grid.Blocks[n].Cell(x1, x2, x3)
	return n, i, j, k, i >= 0 && j >= 0 && k >= 0
}

// FluidFrame converts a sampled state into the CKS fluid 4-velocity u^μ and
// magnetic 4-vector b^μ at a CKS point
func (s *Sampler) FluidFrame(state State, x, y, z float64) (ucon, bcon core.Vec4) {
	coords := s.grid.Coords
	gcov := s.spacetime.SimulationCovariant(coords, x, y, z)
	gcon := s.spacetime.SimulationContravariant(coords, x, y, z)

	alpha := 1 / math.Sqrt(-gcon[0][0])
	gamma := 1.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			gamma += gcov[i+1][j+1] * state.U[i] * state.U[j]
		}
	}
	gamma = math.Sqrt(gamma)

	ucon[0] = gamma / alpha
	for i := 0; i < 3; i++ {
		ucon[i+1] = state.U[i] - gamma*alpha*gcon[0][i+1]
	}

	ucov := gcov.Lower(ucon)
	b0 := 0.0
	for i := 0; i < 3; i++ {
		b0 += state.B[i] * ucov[i+1]
	}
	bcon[0] = b0
	for i := 0; i < 3; i++ {
		bcon[i+1] = (state.B[i] + b0*ucon[i+1]) / ucon[0]
	}

	return s.spacetime.ToCKS(coords, x, y, z, ucon), s.spacetime.ToCKS(coords, x, y, z, bcon)
}
