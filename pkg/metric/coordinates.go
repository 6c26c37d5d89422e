package metric

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/core"
)

// CKSToSKS converts Cartesian Kerr-Schild coordinates to spherical Kerr-Schild
func (s Spacetime) CKSToSKS(x, y, z float64) (r, theta, phi float64) {
	r = s.Radius(x, y, z)
	if r == 0 {
		return 0, 0.5 * math.Pi, 0
	}
	theta = math.Acos(math.Max(-1, math.Min(1, z/r)))
	phi = math.Atan2(y, x) - math.Atan2(s.a(), r)
	return r, theta, phi
}

// SKSToCKS converts spherical Kerr-Schild coordinates to Cartesian Kerr-Schild
func (s Spacetime) SKSToCKS(r, theta, phi float64) (x, y, z float64) {
	a := s.a()
	sth, cth := math.Sincos(theta)
	sph, cph := math.Sincos(phi)
	x = sth * (r*cph - a*sph)
	y = sth * (r*sph + a*cph)
	z = r * cth
	return x, y, z
}

// SphericalJacobian returns ∂(x,y,z)/∂(r,θ,φ) as [row x_i][column r,θ,φ]
func (s Spacetime) SphericalJacobian(r, theta, phi float64) [3][3]float64 {
	a := s.a()
	sth, cth := math.Sincos(theta)
	sph, cph := math.Sincos(phi)
	return [3][3]float64{
		{sth * cph, cth * (r*cph - a*sph), sth * (-r*sph - a*cph)},
		{sth * sph, cth * (r*sph + a*cph), sth * (r*cph - a*sph)},
		{cth, -r * sth, 0},
	}
}

// CoordinateJacobian returns the 4x4 Jacobian ∂x_CKS^μ/∂x_SKS^ν at a CKS point
// Time is shared between the two coordinate systems
func (s Spacetime) CoordinateJacobian(x, y, z float64) core.Mat4 {
	r, theta, phi := s.CKSToSKS(x, y, z)
	j3 := s.SphericalJacobian(r, theta, phi)
	jac := core.Mat4{{1, 0, 0, 0}}
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			jac[i+1][k+1] = j3[i][k]
		}
	}
	return jac
}

// SKSCovariant returns the spherical Kerr-Schild metric g_{μν} at (r, θ)
func (s Spacetime) SKSCovariant(r, theta float64) core.Mat4 {
	sth, cth := math.Sincos(theta)
	s2 := sth * sth
	var g core.Mat4
	if s.Flat {
		g[0][0] = -1
		g[1][1] = 1
		g[2][2] = r * r
		g[3][3] = r * r * s2
		return g
	}
	a := s.Spin
	m := s.Mass
	sigma := r*r + a*a*cth*cth
	w := 2 * m * r / sigma
	g[0][0] = -(1 - w)
	g[0][1], g[1][0] = w, w
	g[0][3] = -w * a * s2
	g[3][0] = g[0][3]
	g[1][1] = 1 + w
	g[1][3] = -(1 + w) * a * s2
	g[3][1] = g[1][3]
	g[2][2] = sigma
	g[3][3] = (r*r + a*a + w*a*a*s2) * s2
	return g
}

// SKSContravariant returns the spherical Kerr-Schild metric g^{μν} at (r, θ)
func (s Spacetime) SKSContravariant(r, theta float64) core.Mat4 {
	sth, cth := math.Sincos(theta)
	s2 := sth * sth
	var g core.Mat4
	if s.Flat {
		g[0][0] = -1
		g[1][1] = 1
		g[2][2] = 1 / (r * r)
		g[3][3] = 1 / (r * r * s2)
		return g
	}
	a := s.Spin
	m := s.Mass
	sigma := r*r + a*a*cth*cth
	delta := r*r - 2*m*r + a*a
	w := 2 * m * r / sigma
	g[0][0] = -(1 + w)
	g[0][1], g[1][0] = w, w
	g[1][1] = delta / sigma
	g[1][3] = a / sigma
	g[3][1] = g[1][3]
	g[2][2] = 1 / sigma
	g[3][3] = 1 / (sigma * s2)
	return g
}

// Coordinates identifies the coordinate system of simulation data
type Coordinates int

const (
	CKS Coordinates = iota
	SKS
)

// SimulationCovariant returns g_{μν} in the grid's coordinate system at a CKS point
func (s Spacetime) SimulationCovariant(coords Coordinates, x, y, z float64) core.Mat4 {
	if coords == SKS {
		r, theta, _ := s.CKSToSKS(x, y, z)
		return s.SKSCovariant(r, theta)
	}
	return s.Covariant(x, y, z)
}

// SimulationContravariant returns g^{μν} in the grid's coordinate system at a CKS point
func (s Spacetime) SimulationContravariant(coords Coordinates, x, y, z float64) core.Mat4 {
	if coords == SKS {
		r, theta, _ := s.CKSToSKS(x, y, z)
		return s.SKSContravariant(r, theta)
	}
	return s.Contravariant(x, y, z)
}

// ToCKS maps a contravariant vector from the grid's coordinates to CKS at a CKS point
func (s Spacetime) ToCKS(coords Coordinates, x, y, z float64, v core.Vec4) core.Vec4 {
	if coords == CKS {
		return v
	}
	jac := s.CoordinateJacobian(x, y, z)
	return jac.MulVec(v)
}
