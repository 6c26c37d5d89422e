// Package geodesic integrates null geodesics backward from the camera
package geodesic

import "github.com/df07/go-kerr-raytracer/pkg/core"

// Status is the terminal state of a traced ray
type Status int

const (
	Active Status = iota
	Captured
	Escaped
	StepLimitExceeded
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Captured:
		return "captured"
	case Escaped:
		return "escaped"
	case StepLimitExceeded:
		return "step_limit"
	default:
		return "unknown"
	}
}

// Sample is one retained point along a ray
type Sample struct {
	Position     core.Vec4 // CKS coordinates
	Momentum     core.Vec4 // Future-directed k^μ, scaled so the camera sees the image frequency
	Polarization core.Vec4 // Parallel-transported reference f^μ, zero when not transported
	Weight       float64   // Trapezoid affine-parameter weight
}

// Ray is the traced path of one pixel. Samples run from the camera outward,
// backward in time. A Ray is read-only after tracing
type Ray struct {
	ID      int
	Samples []Sample
	Status  Status
	Steps   int
	Invalid bool // Numerical degeneracy; contributes nothing to the image

	// MaxNullResidual is the largest relative null-condition error seen
	// before re-normalization
	MaxNullResidual float64
}

// Terminated reports whether the ray reached a terminal state
func (r *Ray) Terminated() bool {
	return r.Status != Active
}
