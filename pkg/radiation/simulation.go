package radiation

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
	"github.com/df07/go-kerr-raytracer/pkg/simulation"
)

// SimulationModel computes thermal synchrotron coefficients from plasma
// sampled on a simulation grid
type SimulationModel struct {
	sampler   *simulation.Sampler
	spacetime metric.Spacetime
	plasma    config.PlasmaConfig
	model     config.PlasmaModel
	rhoCgs    float64
	polarized bool
}

// NewSimulationModel creates a SimulationModel from a validated configuration
func NewSimulationModel(sampler *simulation.Sampler, st metric.Spacetime, cfg *config.Config) *SimulationModel {
	return &SimulationModel{
		sampler:   sampler,
		spacetime: st,
		plasma:    cfg.Plasma,
		model:     cfg.Derived.PlasmaModel,
		rhoCgs:    cfg.Simulation.RhoCgs,
		polarized: cfg.Camera.Polarization,
	}
}

// Coefficients implements CoefficientModel. Samples without valid plasma
// data, zero field or σ above the cutoff emit nothing
func (m *SimulationModel) Coefficients(s geodesic.Sample, hint *int) (Coefficients, SampleInfo) {
	x, y, z := s.Position[1], s.Position[2], s.Position[3]
	state, ok := m.sampler.SampleHint(x, y, z, hint)
	if !ok {
		return Coefficients{}, SampleInfo{Fallback: true}
	}

	ucon, bcon := m.sampler.FluidFrame(state, x, y, z)
	g := m.spacetime.Covariant(x, y, z)
	nu := fluidFrequency(g, s.Momentum, ucon)
	info := SampleInfo{Nu: nu}
	if !(nu > 0) {
		return Coefficients{}, info
	}

	bsq := g.Contract(bcon, bcon)
	if !(bsq > 0) {
		return Coefficients{}, info
	}
	if m.plasma.SigmaMax > 0 && bsq/state.Rho > m.plasma.SigmaMax {
		return Coefficients{}, info
	}

	ne, thetaE := m.electrons(state, bsq)
	c := core.SpeedOfLight
	bCgs := math.Sqrt(4*math.Pi*m.rhoCgs) * c * math.Sqrt(bsq)
	bmag := math.Sqrt(bsq)
	cosTheta := g.Contract(bcon, s.Momentum) / (bmag * nu)

	aligned := thermalSynchrotron(synchrotronInput{
		Ne:       ne,
		ThetaE:   thetaE,
		B:        bCgs,
		Nu:       nu,
		CosTheta: cosTheta,
		Polarize: m.polarized,
	})
	if !m.polarized {
		return Coefficients{JI: aligned.JI, AI: aligned.AI}, info
	}

	gcon := m.spacetime.Contravariant(x, y, z)
	tetrad, ok := NewTetrad(g, gcon, ucon, s.Momentum, s.Polarization)
	if !ok {
		return Coefficients{JI: aligned.JI, AI: aligned.AI}, info
	}
	return aligned.rotate(tetrad.FieldAngle(g, bcon)), info
}

// electrons returns the electron number density in cm^-3 and the
// dimensionless electron temperature for the configured plasma model
func (m *SimulationModel) electrons(state simulation.State, bsq float64) (ne, thetaE float64) {
	c := core.SpeedOfLight
	p := m.plasma
	nTotal := state.Rho * m.rhoCgs / (p.Mu * core.ProtonMass)
	ne = nTotal * p.NeNi / (1 + p.NeNi)
	ni := nTotal / (1 + p.NeNi)
	pCgs := state.Pgas * m.rhoCgs * c * c

	var kT float64
	switch m.model {
	case config.PlasmaTiTeBeta:
		ratio := p.RatHigh
		if bsq > 0 {
			// (R_high β² + R_low)/(1 + β²), finite as β → ∞
			beta := 2 * state.Pgas / bsq
			ratio = p.RatHigh - (p.RatHigh-p.RatLow)/(1+beta*beta)
		}
		kT = pCgs / (ne + ratio*ni)
	case config.PlasmaCodeKappa:
		pe := state.Kappa * math.Pow(state.Rho, 4.0/3.0) * m.rhoCgs * c * c
		kT = pe / ne
	default:
		kT = pCgs / nTotal
	}
	return ne, kT / electronRest
}
