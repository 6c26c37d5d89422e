// Package camera builds the observer's local frame and maps image-plane
// coordinates to initial ray positions and momenta
package camera

import (
	"fmt"
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is the observer's local reference frame. Vectors suffixed with C are
// expressed in the camera frame, whose basis is e_t = u and e_i = ∂_i - (u_i/u_t) ∂_t
type Frame struct {
	Position core.Vec4 // CKS camera location
	UCon     core.Vec4 // Observer 4-velocity u^μ
	UCov     core.Vec4 // Observer 4-velocity u_μ

	NormalC     core.Vec4 // Unit line-of-sight direction, camera frame
	Normal      core.Vec4 // Unit line-of-sight direction, coordinate frame
	HorizontalC core.Vec4 // Image right, camera frame
	VerticalC   core.Vec4 // Image up, camera frame

	// MomentumFactor scales unit camera-frame directions so the photon has the
	// configured frequency in the normalization frame
	MomentumFactor float64

	Distance float64 // Camera radius r, used as the pinhole distance
	Scale    float64 // Image width in length units (M * width)
}

// spatialMetric is a 3x3 symmetric tensor on the camera's spatial slice
type spatialMetric [3][3]float64

func (g *spatialMetric) apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: g[0][0]*v.X + g[0][1]*v.Y + g[0][2]*v.Z,
		Y: g[1][0]*v.X + g[1][1]*v.Y + g[1][2]*v.Z,
		Z: g[2][0]*v.X + g[2][1]*v.Y + g[2][2]*v.Z,
	}
}

func (g *spatialMetric) det() float64 {
	return g[0][0]*(g[1][1]*g[2][2]-g[1][2]*g[2][1]) -
		g[0][1]*(g[1][0]*g[2][2]-g[1][2]*g[2][0]) +
		g[0][2]*(g[1][0]*g[2][1]-g[1][1]*g[2][0])
}

func spatial(v core.Vec4) r3.Vec {
	return r3.Vec{X: v[1], Y: v[2], Z: v[3]}
}

func withTime(t float64, v r3.Vec) core.Vec4 {
	return core.Vec4{t, v.X, v.Y, v.Z}
}

// NewFrame builds the camera frame for an observer at (r, θ, φ) moving with the
// given normal-frame velocity and looking along the given covariant photon momentum
func NewFrame(st metric.Spacetime, cam config.CameraConfig, norm config.Normalization) (*Frame, error) {
	r, theta, phi := cam.R, cam.Theta, cam.Phi
	x, y, z := st.SKSToCKS(r, theta, phi)
	f := &Frame{
		Position: core.Vec4{0, x, y, z},
		Distance: r,
		Scale:    st.Mass * cam.Width,
	}

	// Lapse and shift from the spherical metric
	gs := st.SKSCovariant(r, theta)
	gsi := st.SKSContravariant(r, theta)
	alpha := 1 / math.Sqrt(-gsi[0][0])
	var beta [3]float64
	for i := 0; i < 3; i++ {
		beta[i] = -gsi[0][i+1] / gsi[0][0]
	}

	// Boost the normal observer
	un := [3]float64{cam.URN, cam.UThN, cam.UPhN}
	utn := 1.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			utn += gs[i+1][j+1] * un[i] * un[j]
		}
	}
	utn = math.Sqrt(utn)
	var usks [3]float64
	for i := 0; i < 3; i++ {
		usks[i] = un[i] - beta[i]*utn/alpha
	}
	jac := st.SphericalJacobian(r, theta, phi)
	f.UCon[0] = utn / alpha
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			f.UCon[i+1] += jac[i][j] * usks[j]
		}
	}
	gcov := st.Covariant(x, y, z)
	gcon := st.Contravariant(x, y, z)
	f.UCov = gcov.Lower(f.UCon)

	// Photon momentum: null in the normal frame, then mapped to CKS
	ks := [3]float64{cam.KR, cam.KTheta, cam.KPhi}
	ktn := 0.0
	kt := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			gammaInv := gsi[i+1][j+1] - gsi[0][i+1]*gsi[0][j+1]/gsi[0][0]
			ktn += gammaInv * ks[i] * ks[j]
		}
		kt += beta[i] * ks[i]
	}
	kt += -alpha * math.Sqrt(ktn)

	jm := mat.NewDense(3, 3, []float64{
		jac[0][0], jac[0][1], jac[0][2],
		jac[1][0], jac[1][1], jac[1][2],
		jac[2][0], jac[2][1], jac[2][2],
	})
	var inv mat.Dense
	if err := inv.Inverse(jm); err != nil {
		return nil, fmt.Errorf("inverting camera Jacobian at theta = %g: %w", theta, err)
	}
	var kc r3.Vec
	kc.X = inv.At(0, 0)*ks[0] + inv.At(1, 0)*ks[1] + inv.At(2, 0)*ks[2]
	kc.Y = inv.At(0, 1)*ks[0] + inv.At(1, 1)*ks[1] + inv.At(2, 1)*ks[2]
	kc.Z = inv.At(0, 2)*ks[0] + inv.At(1, 2)*ks[1] + inv.At(2, 2)*ks[2]
	ktc := f.UCon[0]*kt + r3.Dot(spatial(f.UCon), kc)

	switch norm {
	case config.NormalizeCamera:
		f.MomentumFactor = -cam.Frequency / ktc
	case config.NormalizeInfinity:
		f.MomentumFactor = -cam.Frequency / kt
	default:
		return nil, core.NewConfigError("camera.normalization", "unknown normalization %d", norm)
	}

	// Camera-frame spatial metrics
	u0 := f.UCov[0]
	var gc, gci spatialMetric
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ui, uj := f.UCov[i+1], f.UCov[j+1]
			gc[i][j] = gcov[i+1][j+1] - ui/u0*gcov[j+1][0] - uj/u0*gcov[i+1][0] + ui*uj/(u0*u0)*gcov[0][0]
			gci[i][j] = gcon[i+1][j+1] + f.UCon[i+1]*f.UCon[j+1]
		}
	}

	// Normal direction
	normCov := r3.Sub(kc, r3.Scale(kt/u0, spatial(f.UCov)))
	normCon := gci.apply(normCov)
	normNorm := math.Sqrt(r3.Dot(normCov, normCon))
	if normNorm == 0 || math.IsNaN(normNorm) {
		return nil, core.NewConfigError("camera.k_r", "photon direction has no spatial extent in the camera frame")
	}
	normCov = r3.Scale(1/normNorm, normCov)
	normCon = r3.Scale(1/normNorm, normCon)
	f.NormalC = withTime(-ktc/normNorm, normCon)
	f.MomentumFactor *= normNorm
	f.Normal = f.ToCoordinate(f.NormalC)

	// Vertical direction by Gram-Schmidt against the normal
	up := r3.Vec{Z: 1}
	if cam.Pole {
		up = r3.Vec{Y: 1}
	}
	vert := r3.Sub(up, r3.Scale(r3.Dot(up, normCov), normCon))
	vertCov := gc.apply(vert)
	vertNorm := math.Sqrt(r3.Dot(vertCov, vert))
	if !(vertNorm > 1e-10) {
		return nil, core.NewConfigError("camera.pole", "line of sight is parallel to the up vector")
	}
	vert = r3.Scale(1/vertNorm, vert)
	vertCov = r3.Scale(1/vertNorm, vertCov)

	// Horizontal direction completes the right-handed triad
	hor := r3.Scale(1/math.Sqrt(gc.det()), r3.Cross(vertCov, normCov))

	sr, cr := math.Sincos(cam.Rotation)
	f.HorizontalC = withTime(0, r3.Sub(r3.Scale(cr, hor), r3.Scale(sr, vert)))
	f.VerticalC = withTime(0, r3.Add(r3.Scale(cr, vert), r3.Scale(sr, hor)))
	return f, nil
}

// ToCoordinate maps a camera-frame contravariant vector to the coordinate frame
func (f *Frame) ToCoordinate(vc core.Vec4) core.Vec4 {
	out := core.Vec4{f.UCon[0] * vc[0]}
	for i := 1; i < 4; i++ {
		out[0] -= f.UCov[i] * vc[i] / f.UCov[0]
		out[i] = vc[i] + f.UCon[i]*vc[0]
	}
	return out
}

// Vertical returns the image-up direction in the coordinate frame. It seeds the
// polarization reference vector for every ray
func (f *Frame) Vertical() core.Vec4 {
	return f.ToCoordinate(f.VerticalC)
}
