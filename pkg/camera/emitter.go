package camera

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
)

// Emitter maps fractional image-plane coordinates u, v in [-0.5, 0.5] to the
// initial position and future-directed contravariant momentum of a ray
// Implementations hold no mutable state and are safe for concurrent use
type Emitter interface {
	EmitPixel(u, v float64) (pos, mom core.Vec4)
}

// NewEmitter creates the emitter for the configured projection
func NewEmitter(frame *Frame, st metric.Spacetime, kind config.CameraType) Emitter {
	if kind == config.CameraPlane {
		return &PlaneEmitter{frame: frame, spacetime: st}
	}
	return &PinholeEmitter{frame: frame, spacetime: st}
}

// PixelCoordinate returns the fractional coordinate of a pixel centre for an
// image of the given effective resolution
func PixelCoordinate(index, resolution int) float64 {
	n := float64(resolution)
	return (float64(index) - n/2 + 0.5) / n
}

// PlaneEmitter implements a parallel projection: every pixel looks along the
// same direction from a position offset within the image plane
type PlaneEmitter struct {
	frame     *Frame
	spacetime metric.Spacetime
}

// EmitPixel returns the ray for image-plane coordinates (u, v)
func (e *PlaneEmitter) EmitPixel(u, v float64) (core.Vec4, core.Vec4) {
	f := e.frame
	du := u * f.Scale
	dv := v * f.Scale
	offset := f.HorizontalC.Multiply(du).Add(f.VerticalC.Multiply(dv))
	pos := f.Position.Add(f.ToCoordinate(offset))
	return pos, finishMomentum(e.spacetime, pos, f.Normal, f.MomentumFactor)
}

// PinholeEmitter implements a perspective projection: every pixel shares the
// camera position and looks through a pinhole at distance r behind the plane
type PinholeEmitter struct {
	frame     *Frame
	spacetime metric.Spacetime
}

// EmitPixel returns the ray for image-plane coordinates (u, v)
func (e *PinholeEmitter) EmitPixel(u, v float64) (core.Vec4, core.Vec4) {
	f := e.frame
	du := u * f.Scale
	dv := v * f.Scale
	dist := math.Sqrt(du*du + dv*dv + f.Distance*f.Distance)

	dirC := f.NormalC.Multiply(f.Distance / dist).
		Subtract(f.HorizontalC.Multiply(du / dist)).
		Subtract(f.VerticalC.Multiply(dv / dist))
	dirC[0] = f.NormalC[0]

	return f.Position, finishMomentum(e.spacetime, f.Position, f.ToCoordinate(dirC), f.MomentumFactor)
}

// finishMomentum scales a coordinate-frame direction and solves the null
// condition for its time component at pos
func finishMomentum(st metric.Spacetime, pos, dir core.Vec4, factor float64) core.Vec4 {
	mom := dir.Multiply(factor)
	g := st.Covariant(pos[1], pos[2], pos[3])
	mom[0] = metric.NullTimeComponent(g, mom)
	return mom
}
