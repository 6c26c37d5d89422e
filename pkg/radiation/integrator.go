package radiation

import (
	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
)

// Stokes holds the I, Q, U, V parameters of a pixel in erg s^-1 cm^-2 sr^-1 Hz^-1
type Stokes [4]float64

// Transfer is the result of integrating one ray
type Transfer struct {
	Stokes    Stokes
	Samples   int // Samples whose coefficients were evaluated
	Fallbacks int // Samples that used fallback plasma
}

// Integrator solves the transfer equation along a traced ray. Implementations
// are safe for concurrent use; hint is the caller's grid-locality scratch
type Integrator interface {
	Integrate(ray *geodesic.Ray, model CoefficientModel, hint *int) Transfer
}

// Settings are the physical scalings shared by both integrators
type Settings struct {
	LengthUnit  float64 // GM/c^2 in cm
	Frequency   float64 // Image frequency in Hz
	MaxDeltaTau float64 // Largest optical depth taken in one step
}

// SettingsFrom extracts integrator settings from a validated configuration
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		LengthUnit:  cfg.Derived.LengthUnit,
		Frequency:   cfg.Camera.Frequency,
		MaxDeltaTau: cfg.Render.MaxDeltaTau,
	}
}

// NewIntegrator returns the polarized integrator when polarization is
// enabled and the unpolarized one otherwise
func NewIntegrator(cfg *config.Config) Integrator {
	settings := SettingsFrom(cfg)
	if cfg.Camera.Polarization {
		return &Polarized{Settings: settings}
	}
	return &Unpolarized{Settings: settings}
}

func (s Settings) frequencyCubed() float64 {
	return s.Frequency * s.Frequency * s.Frequency
}
