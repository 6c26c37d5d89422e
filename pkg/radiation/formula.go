package radiation

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
)

// FormulaModel is an analytic, unpolarized emitter: a Gaussian torus in
// r and cos θ orbiting with specific angular momentum ℓ(r)
type FormulaModel struct {
	spacetime metric.Spacetime
	params    config.FormulaConfig
}

// NewFormulaModel creates a FormulaModel
func NewFormulaModel(st metric.Spacetime, params config.FormulaConfig) *FormulaModel {
	return &FormulaModel{spacetime: st, params: params}
}

// Coefficients implements CoefficientModel
func (m *FormulaModel) Coefficients(s geodesic.Sample, _ *int) (Coefficients, SampleInfo) {
	p := m.params
	x, y, z := s.Position[1], s.Position[2], s.Position[3]

	ucon := m.FluidVelocity(x, y, z)
	g := m.spacetime.Covariant(x, y, z)
	nu := fluidFrequency(g, s.Momentum, ucon)
	info := SampleInfo{Nu: nu}
	if !(nu > 0) {
		return Coefficients{}, info
	}

	r := m.spacetime.Radius(x, y, z)
	cth := 0.0
	if r > 0 {
		cth = z / r
	}
	rr := r / p.R0
	n := math.Exp(-0.5 * (rr*rr + cth*cth/(p.H*p.H)))

	ratio := nu / p.NuP
	j := p.CN0 * n * math.Pow(ratio, -p.Alpha)
	alpha := p.A * p.CN0 * n * math.Pow(ratio, -(p.Beta + p.Alpha))
	return Coefficients{JI: j, AI: alpha}, info
}

// FluidVelocity returns the CKS u^μ of a fluid with covariant SKS velocity
// proportional to (-1, 0, 0, ℓ). If that is not timelike the fluid is static
// in the sense ℓ = 0
func (m *FormulaModel) FluidVelocity(x, y, z float64) core.Vec4 {
	p := m.params
	st := m.spacetime
	r, theta, _ := st.CKSToSKS(x, y, z)
	gcon := st.SKSContravariant(r, theta)

	ell := p.L0 * math.Pow(r, 1+p.Q) / (1 + r)
	ucon, ok := normalizeCovariant(gcon, core.Vec4{-1, 0, 0, ell})
	if !ok {
		ucon, ok = normalizeCovariant(gcon, core.Vec4{-1, 0, 0, 0})
	}
	if !ok {
		// Ring singularity
		return core.Vec4{1, 0, 0, 0}
	}
	return st.ToCKS(metric.SKS, x, y, z, ucon)
}

// normalizeCovariant raises a covariant direction and scales it to unit norm
// Zero components are skipped so the coordinate singularities of g^{θθ} and
// g^{φφ} on the axis do not leak into the result
func normalizeCovariant(gcon core.Mat4, ucov core.Vec4) (core.Vec4, bool) {
	var ucon core.Vec4
	for nu, c := range ucov {
		if c == 0 {
			continue
		}
		for mu := range ucon {
			ucon[mu] += gcon[mu][nu] * c
		}
	}
	norm := core.Dot(ucov, ucon)
	if !(norm < 0) {
		return core.Vec4{}, false
	}
	ucon = ucon.Multiply(1 / math.Sqrt(-norm))
	if ucon[0] < 0 {
		ucon = ucon.Multiply(-1)
	}
	return ucon, true
}
