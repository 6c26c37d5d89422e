package radiation

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// besselNodes is the Gauss-Legendre order used for the K_n integrals
const besselNodes = 64

// ScaledBesselK returns e^z K_n(z) for z > 0, from
// K_n(z) = ∫_0^∞ exp(-z cosh t) cosh(n t) dt
// The integrand decays past z(cosh t - 1) ≈ 50, which sets the upper limit
func ScaledBesselK(n int, z float64) float64 {
	if z <= 0 {
		return math.Inf(1)
	}
	upper := math.Acosh(1 + 50/z)
	nf := float64(n)
	f := func(t float64) float64 {
		return math.Exp(-z*(math.Cosh(t)-1)) * math.Cosh(nf*t)
	}
	return quad.Fixed(f, 0, upper, besselNodes, nil, 0)
}

// besselRatios returns K0(z)/K2(z) and K1(z)/K2(z). Large arguments use the
// asymptotic series, where the ratios tend to one
func besselRatios(z float64) (k0k2, k1k2 float64) {
	if z > 500 {
		// K_ν(z) ∝ 1 + (4ν²-1)/(8z) + ...
		k0 := 1 - 1/(8*z)
		k1 := 1 + 3/(8*z)
		k2 := 1 + 15/(8*z)
		return k0 / k2, k1 / k2
	}
	k2 := ScaledBesselK(2, z)
	return ScaledBesselK(0, z) / k2, ScaledBesselK(1, z) / k2
}
