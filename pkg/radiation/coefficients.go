// Package radiation computes transfer coefficients along traced rays and
// integrates the radiative transfer equation
package radiation

import (
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
)

// Coefficients are fluid-frame emission (erg s^-1 cm^-3 sr^-1 Hz^-1),
// absorption (cm^-1) and rotation (cm^-1) coefficients. Polarized components
// are expressed in the ray's parallel-transported Stokes basis
type Coefficients struct {
	JI, JQ, JU, JV float64
	AI, AQ, AU, AV float64
	RQ, RU, RV     float64
}

// IsZero reports whether the sample neither emits nor interacts
func (c *Coefficients) IsZero() bool {
	return *c == Coefficients{}
}

// SampleInfo carries per-sample diagnostics alongside the coefficients
type SampleInfo struct {
	Nu       float64 // Fluid-frame frequency in Hz
	Fallback bool    // Plasma data was missing or invalid
}

// CoefficientModel evaluates coefficients at a ray sample. Implementations
// must be safe for concurrent use; hint is caller-owned scratch state for
// spatial lookups and may be nil
type CoefficientModel interface {
	Coefficients(s geodesic.Sample, hint *int) (Coefficients, SampleInfo)
}

// fluidFrequency returns ν = -k_μ u^μ
func fluidFrequency(g core.Mat4, k, ucon core.Vec4) float64 {
	return -g.Contract(k, ucon)
}
