package radiation

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/core"
)

// Tetrad is an orthonormal fluid-frame basis adapted to a photon: E0 is the
// fluid velocity, E3 the photon's spatial direction and E2 the projection of
// the transported polarization reference. E1, E2, E3 are right-handed
type Tetrad struct {
	E0, E1, E2, E3 core.Vec4
}

// NewTetrad builds the tetrad at a point with metric g (det g = -1), fluid
// velocity u, photon momentum k and reference vector f. It reports false
// when f is degenerate with the photon direction
func NewTetrad(g, gcon core.Mat4, u, k, f core.Vec4) (Tetrad, bool) {
	var t Tetrad
	omega := -g.Contract(k, u)
	if !(omega > 0) {
		return t, false
	}
	t.E0 = u
	t.E3 = k.Multiply(1 / omega).Subtract(u)

	fu := g.Contract(f, u)
	fe3 := g.Contract(f, t.E3)
	e2 := f.Add(u.Multiply(fu)).Subtract(t.E3.Multiply(fe3))
	norm := g.Contract(e2, e2)
	if !(norm > 1e-24) {
		return t, false
	}
	t.E2 = e2.Multiply(1 / math.Sqrt(norm))

	// e1_μ = -ε_{μνρσ} e0^ν e2^ρ e3^σ with ε_{0123} = 1
	var e1 core.Vec4
	rows := [3]core.Vec4{t.E0, t.E2, t.E3}
	for mu := 0; mu < 4; mu++ {
		var m [3][3]float64
		col := 0
		for nu := 0; nu < 4; nu++ {
			if nu == mu {
				continue
			}
			for r := 0; r < 3; r++ {
				m[r][col] = rows[r][nu]
			}
			col++
		}
		sign := 1.0
		if mu%2 == 1 {
			sign = -1
		}
		e1[mu] = -sign * det3(m)
	}
	t.E1 = gcon.Raise(e1)
	return t, true
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// FieldAngle returns the angle of b projected onto the (E1, E2) plane, measured from E1
func (t *Tetrad) FieldAngle(g core.Mat4, b core.Vec4) float64 {
	return math.Atan2(g.Contract(b, t.E2), g.Contract(b, t.E1))
}
