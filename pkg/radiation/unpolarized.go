package radiation

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
)

// Unpolarized integrates total intensity in the invariant form
// d(I/ν³)/dλ = j/ν² - να I/ν³
type Unpolarized struct {
	Settings
}

// Integrate implements Integrator. Samples are visited from the far end of the
// ray toward the camera
func (u *Unpolarized) Integrate(ray *geodesic.Ray, model CoefficientModel, hint *int) Transfer {
	var out Transfer
	if ray.Invalid {
		return out
	}

	intensity := 0.0
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

		j := c.JI / (nu * nu)
		alpha := c.AI * nu
		dl := s.Weight * u.LengthUnit
		if alpha > 0 {
			dtau := math.Min(alpha*dl, u.MaxDeltaTau)
			intensity = intensity*math.Exp(-dtau) - j/alpha*math.Expm1(-dtau)
		} else {
			intensity += j * dl
		}
	}

	out.Stokes[0] = intensity * u.frequencyCubed()
	return out
}
