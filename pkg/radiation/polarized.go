package radiation

import (
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"gonum.org/v1/gonum/mat"
)

// Polarized integrates the full Stokes vector. Over each step the
// coefficients are constant, so S ← e^{-KΔ} S + K⁻¹(1 - e^{-KΔ}) J exactly
// When K is singular the source term ∫_0^Δ e^{-Ks} ds J is read from the
// exponential of the block matrix [[-KΔ, Δ], [0, 0]]
type Polarized struct {
	Settings
}

// transferMatrix fills K from invariant absorption a and rotation r coefficients
func transferMatrix(k *mat.Dense, a [4]float64, r [3]float64) {
	k.SetRow(0, []float64{a[0], a[1], a[2], a[3]})
	k.SetRow(1, []float64{a[1], a[0], r[2], -r[1]})
	k.SetRow(2, []float64{a[2], -r[2], a[0], r[0]})
	k.SetRow(3, []float64{a[3], r[1], -r[0], a[0]})
}

// Integrate implements Integrator. Samples are visited from the far end of the
// ray toward the camera
func (p *Polarized) Integrate(ray *geodesic.Ray, model CoefficientModel, hint *int) Transfer {
	var out Transfer
	if ray.Invalid {
		return out
	}

	stokes := mat.NewVecDense(4, nil)
	emission := mat.NewVecDense(4, nil)
	k := mat.NewDense(4, 4, nil)
	scaled := mat.NewDense(4, 4, nil)
	augmented := mat.NewDense(8, 8, nil)
	var propagator, augmentedExp mat.Dense
	var attenuated, source, rhs, tmp mat.VecDense

	for n := len(ray.Samples) - 1; n >= 0; n-- {
		s := ray.Samples[n]
		if s.Weight == 0 {
			continue
		}
		c, info := model.Coefficients(s, hint)
		out.Samples++
		if info.Fallback {
			out.Fallbacks++
		}
		nu := info.Nu
		if !(nu > 0) || c.IsZero() {
			continue
		}

		nu2 := nu * nu
		emission.SetVec(0, c.JI/nu2)
		emission.SetVec(1, c.JQ/nu2)
		emission.SetVec(2, c.JU/nu2)
		emission.SetVec(3, c.JV/nu2)
		a := [4]float64{c.AI * nu, c.AQ * nu, c.AU * nu, c.AV * nu}
		r := [3]float64{c.RQ * nu, c.RU * nu, c.RV * nu}

		dl := s.Weight * p.LengthUnit
		if a[0]*dl > p.MaxDeltaTau {
			dl = p.MaxDeltaTau / a[0]
		}

		if a == [4]float64{} && r == [3]float64{} {
			stokes.AddScaledVec(stokes, dl, emission)
			continue
		}

		transferMatrix(k, a, r)
		scaled.Scale(-dl, k)
		propagator.Exp(scaled)

		// rhs = (1 - e^{-KΔ}) J
		tmp.MulVec(&propagator, emission)
		rhs.SubVec(emission, &tmp)
		if err := source.SolveVec(k, &rhs); err != nil {
			augmented.Zero()
			for i := 0; i < 4; i++ {
				for j := 0; j < 4; j++ {
					augmented.Set(i, j, scaled.At(i, j))
				}
				augmented.Set(i, 4+i, dl)
			}
			augmentedExp.Exp(augmented)
			source.MulVec(augmentedExp.Slice(0, 4, 4, 8), emission)
		}
		attenuated.MulVec(&propagator, stokes)
		stokes.AddVec(&attenuated, &source)
	}

	nu3 := p.frequencyCubed()
	for i := 0; i < 4; i++ {
		out.Stokes[i] = stokes.AtVec(i) * nu3
	}
	return out
}
