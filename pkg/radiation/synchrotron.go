package radiation

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/core"
)

// Thermal synchrotron coefficients in the fluid frame, from the fitting
// functions of Dexter (2016). All inputs and outputs are CGS

const (
	electronRest = core.ElectronMass * core.SpeedOfLight * core.SpeedOfLight
	sqrt3        = 1.7320508075688772
)

// synchrotronInput describes the emitting plasma at one sample
type synchrotronInput struct {
	Ne       float64 // Electron number density, cm^-3
	ThetaE   float64 // kT_e / (m_e c^2)
	B        float64 // Field strength, G
	Nu       float64 // Fluid-frame frequency, Hz
	CosTheta float64 // Cosine of the pitch angle between field and photon
	Polarize bool
}

// fieldAligned holds coefficients in the basis where Stokes Q is positive
// along the projected field
type fieldAligned struct {
	JI, JQ, JV float64
	AI, AQ, AV float64
	RQ, RV     float64
}

func fitI(x float64) float64 {
	x3 := math.Cbrt(x)
	return 2.5651 * (1 + 1.92/x3 + 0.9977/(x3*x3)) * math.Exp(-1.8899*x3)
}

func fitQ(x float64) float64 {
	x3 := math.Cbrt(x)
	return 2.5651 * (1 + 0.93193/x3 + 0.499873/(x3*x3)) * math.Exp(-1.8899*x3)
}

func fitV(x float64) float64 {
	x3 := math.Cbrt(x)
	return (1.81384/x + 3.42153/(x3*x3) + 0.0292608/math.Sqrt(x) + 2.09333/x3) * math.Exp(-1.8899*x3)
}

// planck returns B_ν(T) for a temperature given as kT / (m_e c^2)
func planck(nu, thetaE float64) float64 {
	c := core.SpeedOfLight
	h := core.PlanckConstant
	return 2 * h * nu * nu * nu / (c * c) / math.Expm1(h*nu/(thetaE*electronRest))
}

// faradayF and faradayG are the Shcherbakov (2008) corrections as fit by Dexter (2016)
func faradayF(x float64) float64 {
	return 2.011*math.Exp(-math.Pow(x, 1.035)/4.7) -
		math.Cos(x/2)*math.Exp(-math.Pow(x, 1.2)/2.73) -
		0.011*math.Exp(-x/47.2)
}

func faradayG(x float64) float64 {
	return 1 - 0.11*math.Log(1+0.035*x)
}

// thermalSynchrotron evaluates emission, Kirchhoff absorption and, when
// polarizing, Faraday rotation and conversion. Emission is polarized
// perpendicular to the projected field, so JQ and AQ are non-positive
func thermalSynchrotron(in synchrotronInput) fieldAligned {
	var out fieldAligned
	cosT := math.Max(-1, math.Min(1, in.CosTheta))
	sinT := math.Sqrt(1 - cosT*cosT)
	if in.Ne <= 0 || in.ThetaE <= 0 || in.B <= 0 || in.Nu <= 0 || sinT == 0 {
		return out
	}

	e := core.ElementaryCharge
	c := core.SpeedOfLight
	me := core.ElectronMass
	theta := in.ThetaE
	nu := in.Nu

	nuB := e * in.B / (2 * math.Pi * me * c)
	nuC := 1.5 * nuB * sinT * theta * theta
	x := nu / nuC

	bnu := planck(nu, theta)
	prefactor := in.Ne * e * e * nu / (2 * sqrt3 * c * theta * theta)
	out.JI = prefactor * fitI(x)
	if bnu > 0 && !math.IsInf(bnu, 0) {
		out.AI = out.JI / bnu
	}
	if !in.Polarize {
		return out
	}

	out.JQ = -prefactor * fitQ(x)
	out.JV = 2 * in.Ne * e * e * nu * cosT / (sinT * 3 * sqrt3 * c * theta * theta * theta) * fitV(x)
	if bnu > 0 && !math.IsInf(bnu, 0) {
		out.AQ = out.JQ / bnu
		out.AV = out.JV / bnu
	}

	k0k2, k1k2 := besselRatios(1 / theta)
	xf := theta * math.Sqrt(math.Sqrt2*sinT*1e3*nuB/nu)
	out.RQ = in.Ne * e * e * nuB * nuB * sinT * sinT / (me * c * nu * nu * nu) * faradayF(xf) * (k1k2 + 6*theta)
	out.RV = 2 * in.Ne * e * e * nuB * cosT / (me * c * nu * nu) * k0k2 * faradayG(xf)
	return out
}

// rotate expresses field-aligned coefficients in a basis whose first axis
// makes angle chi with the projected field
func (f fieldAligned) rotate(chi float64) Coefficients {
	c2, s2 := math.Cos(2*chi), math.Sin(2*chi)
	return Coefficients{
		JI: f.JI, JQ: f.JQ * c2, JU: f.JQ * s2, JV: f.JV,
		AI: f.AI, AQ: f.AQ * c2, AU: f.AQ * s2, AV: f.AV,
		RQ: f.RQ * c2, RU: f.RQ * s2, RV: f.RV,
	}
}
