// Package metric provides the Kerr spacetime in Cartesian Kerr-Schild (CKS)
// coordinates, the spherical Kerr-Schild (SKS) form used by simulation grids,
// and the Jacobians relating them
package metric

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/core"
)

// Connection holds Γ^μ_{αβ} indexed as [μ][α][β]
type Connection [4][4][4]float64

// Spacetime describes a Kerr black hole. When Flat is set every method
// reduces to Minkowski space in Cartesian/spherical coordinates
type Spacetime struct {
	Mass float64
	Spin float64
	Flat bool
}

// New creates a new Spacetime
func New(mass, spin float64, flat bool) Spacetime {
	return Spacetime{Mass: mass, Spin: spin, Flat: flat}
}

// a returns the spin used by coordinate relations, which is zero in flat mode
func (s Spacetime) a() float64 {
	if s.Flat {
		return 0
	}
	return s.Spin
}

// HorizonRadius returns the outer horizon r_h = M + sqrt(M^2 - a^2)
func (s Spacetime) HorizonRadius() float64 {
	return s.Mass + math.Sqrt(s.Mass*s.Mass-s.Spin*s.Spin)
}

// Radius returns the spheroidal radius r solving
// (x^2 + y^2)/(r^2 + a^2) + z^2/r^2 = 1
func (s Spacetime) Radius(x, y, z float64) float64 {
	a := s.a()
	a2 := a * a
	rr2 := x*x + y*y + z*z
	if a2 == 0 {
		return math.Sqrt(rr2)
	}
	b := rr2 - a2
	return math.Sqrt(0.5 * (b + math.Sqrt(b*b+4*a2*z*z)))
}

// kerrSchild returns f and l_μ at a point
func (s Spacetime) kerrSchild(x, y, z float64) (r, f float64, l core.Vec4) {
	a := s.a()
	r = s.Radius(x, y, z)
	if s.Flat {
		return r, 0, core.Vec4{1, 0, 0, 0}
	}
	r2 := r * r
	a2 := a * a
	f = 2 * s.Mass * r2 * r / (r2*r2 + a2*z*z)
	l = core.Vec4{1, (r*x + a*y) / (r2 + a2), (r*y - a*x) / (r2 + a2), z / r}
	return r, f, l
}

// Covariant returns g_{μν} = η_{μν} + f l_μ l_ν
func (s Spacetime) Covariant(x, y, z float64) core.Mat4 {
	_, f, l := s.kerrSchild(x, y, z)
	g := core.Minkowski()
	for mu := 0; mu < 4; mu++ {
		for nu := 0; nu < 4; nu++ {
			g[mu][nu] += f * l[mu] * l[nu]
		}
	}
	return g
}

// Contravariant returns g^{μν} = η^{μν} - f l^μ l^ν
func (s Spacetime) Contravariant(x, y, z float64) core.Mat4 {
	_, f, l := s.kerrSchild(x, y, z)
	l[0] = -l[0]
	g := core.Minkowski()
	for mu := 0; mu < 4; mu++ {
		for nu := 0; nu < 4; nu++ {
			g[mu][nu] -= f * l[mu] * l[nu]
		}
	}
	return g
}

// Connection returns the Christoffel symbols of the CKS metric, computed from
// analytic derivatives of r, f and l
func (s Spacetime) Connection(x, y, z float64) Connection {
	var gamma Connection
	if s.Flat {
		return gamma
	}

	a := s.a()
	a2 := a * a
	m := s.Mass
	r, f, l := s.kerrSchild(x, y, z)
	r2 := r * r
	rr2 := x*x + y*y + z*z

	// Partial derivatives of r
	den := 2*r2 - rr2 + a2
	dr := [3]float64{x * r / den, y * r / den, z * (r2 + a2) / (r * den)}

	// Partial derivatives of f
	q := r2*r2 + a2*z*z
	var df [3]float64
	for i := 0; i < 3; i++ {
		dq := 4 * r2 * r * dr[i]
		if i == 2 {
			dq += 2 * a2 * z
		}
		df[i] = 2 * m * (3*r2*dr[i]*q - r2*r*dq) / (q * q)
	}

	// Partial derivatives of l_μ, as dl[i][μ]
	var dl [3]core.Vec4
	s2 := r2 + a2
	lxNum := r*x + a*y
	lyNum := r*y - a*x
	for i := 0; i < 3; i++ {
		dLx := dr[i] * x
		dLy := dr[i] * y
		switch i {
		case 0:
			dLx += r
			dLy -= a
		case 1:
			dLx += a
			dLy += r
		}
		dl[i][1] = (dLx*s2 - lxNum*2*r*dr[i]) / (s2 * s2)
		dl[i][2] = (dLy*s2 - lyNum*2*r*dr[i]) / (s2 * s2)
		dz := -z * dr[i]
		if i == 2 {
			dz += r
		}
		dl[i][3] = dz / r2
	}

	// dg[α][μ][ν] = ∂_α g_{μν}; the metric is stationary so α = 0 vanishes
	var dg [4]core.Mat4
	for i := 0; i < 3; i++ {
		for mu := 0; mu < 4; mu++ {
			for nu := mu; nu < 4; nu++ {
				v := df[i]*l[mu]*l[nu] + f*(dl[i][mu]*l[nu]+l[mu]*dl[i][nu])
				dg[i+1][mu][nu] = v
				dg[i+1][nu][mu] = v
			}
		}
	}

	gcon := s.Contravariant(x, y, z)
	for mu := 0; mu < 4; mu++ {
		for al := 0; al < 4; al++ {
			for be := al; be < 4; be++ {
				sum := 0.0
				for nu := 0; nu < 4; nu++ {
					if gcon[mu][nu] == 0 {
						continue
					}
					sum += gcon[mu][nu] * (dg[al][nu][be] + dg[be][nu][al] - dg[nu][al][be])
				}
				gamma[mu][al][be] = 0.5 * sum
				gamma[mu][be][al] = 0.5 * sum
			}
		}
	}
	return gamma
}

// Acceleration returns Γ^μ_{αβ} u^α v^β
func (c *Connection) Acceleration(u, v core.Vec4) core.Vec4 {
	var out core.Vec4
	for mu := 0; mu < 4; mu++ {
		sum := 0.0
		for al := 0; al < 4; al++ {
			for be := 0; be < 4; be++ {
				sum += c[mu][al][be] * u[al] * v[be]
			}
		}
		out[mu] = sum
	}
	return out
}

// Norm returns g_{μν} k^μ k^ν
func Norm(g core.Mat4, k core.Vec4) float64 {
	return g.Contract(k, k)
}

// nullRoots returns both solutions of g_{μν} k^μ k^ν = 0 for k^t. The first
// is written in conjugate form so it stays finite where g_tt vanishes
func nullRoots(g core.Mat4, k core.Vec4) (float64, float64) {
	b := 2 * (g[0][1]*k[1] + g[0][2]*k[2] + g[0][3]*k[3])
	c := 0.0
	for i := 1; i < 4; i++ {
		for j := 1; j < 4; j++ {
			c += g[i][j] * k[i] * k[j]
		}
	}
	disc := b*b - 4*g[0][0]*c
	if disc < 0 {
		return math.NaN(), math.NaN()
	}
	sq := math.Sqrt(disc)
	first := math.NaN()
	if den := -b + sq; den != 0 {
		first = 2 * c / den
	}
	second := math.NaN()
	if g[0][0] != 0 {
		second = (-b + sq) / (2 * g[0][0])
	}
	return first, second
}

// NullTimeComponent returns the future-directed k^t satisfying g_{μν} k^μ k^ν = 0
// for the given spatial components, or NaN if no real root exists
func NullTimeComponent(g core.Mat4, k core.Vec4) float64 {
	first, _ := nullRoots(g, k)
	return first
}

// NullTimeComponentNear returns the root closest to the current k^t. Inside the
// ergoregion both roots can be positive and the nearer one is the continuous branch
func NullTimeComponentNear(g core.Mat4, k core.Vec4) float64 {
	first, second := nullRoots(g, k)
	if math.IsNaN(second) || (!math.IsNaN(first) && math.Abs(first-k[0]) <= math.Abs(second-k[0])) {
		return first
	}
	return second
}
