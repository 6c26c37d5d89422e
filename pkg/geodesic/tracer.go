package geodesic

import (
	"math"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
)

// Config holds integration parameters for the tracer
type Config struct {
	Step          float64 // Maximum Euclidean step as a fraction of r
	MaxSteps      int
	MaxRetries    int
	TolAbs        float64
	TolRel        float64
	Safety        float64
	MinFactor     float64
	MaxFactor     float64
	HorizonMargin float64
	EscapeRadius  float64
	NullTolerance float64
}

// ConfigFrom extracts tracer parameters from a validated configuration
func ConfigFrom(cfg *config.Config) Config {
	r := cfg.Ray
	return Config{
		Step:          r.Step,
		MaxSteps:      r.MaxSteps,
		MaxRetries:    r.MaxRetries,
		TolAbs:        r.TolAbs,
		TolRel:        r.TolRel,
		Safety:        r.Safety,
		MinFactor:     r.MinFactor,
		MaxFactor:     r.MaxFactor,
		HorizonMargin: r.HorizonMargin,
		EscapeRadius:  cfg.Derived.EscapeRadius,
		NullTolerance: r.NullTolerance,
	}
}

// driftFactor sets how far past the null tolerance a single step may drift
// before the ray is declared degenerate rather than re-normalized
const driftFactor = 1e4

// Tracer integrates rays through a fixed spacetime. It is safe for concurrent use
type Tracer struct {
	spacetime metric.Spacetime
	config    Config
	capture   float64
}

// NewTracer creates a tracer
func NewTracer(st metric.Spacetime, cfg Config) *Tracer {
	capture := 0.0
	if !st.Flat {
		capture = st.HorizonRadius() * (1 + cfg.HorizonMargin)
	}
	return &Tracer{spacetime: st, config: cfg, capture: capture}
}

// state packs position, momentum and the optional polarization vector
type state [12]float64

func (s *state) position() core.Vec4 { return core.Vec4{s[0], s[1], s[2], s[3]} }
func (s *state) momentum() core.Vec4 { return core.Vec4{s[4], s[5], s[6], s[7]} }
func (s *state) polarization() core.Vec4 {
	return core.Vec4{s[8], s[9], s[10], s[11]}
}

// derivative evaluates the backward geodesic equations:
// dx/ds = -k, dk/ds = Γ k k and df/ds = Γ f k
func (t *Tracer) derivative(y *state, n int) state {
	var dy state
	for mu := 0; mu < 4; mu++ {
		dy[mu] = -y[4+mu]
	}
	if t.spacetime.Flat {
		return dy
	}
	gamma := t.spacetime.Connection(y[1], y[2], y[3])
	k := y.momentum()
	acc := gamma.Acceleration(k, k)
	copy(dy[4:8], acc[:])
	if n > 8 {
		facc := gamma.Acceleration(y.polarization(), k)
		copy(dy[8:12], facc[:])
	}
	return dy
}

// Dormand-Prince 5(4) tableau
var (
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpE = [7]float64{
		71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40,
	}
)

// step takes one Dormand-Prince step of size h from y with derivative dy0
// It returns the fifth-order solution, its derivative and the scaled error norm
func (t *Tracer) step(y *state, dy0 state, h float64, n int) (state, state, float64) {
	var k [7]state
	k[0] = dy0
	var tmp state
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < s; j++ {
				sum += dpA[s][j] * k[j][i]
			}
			tmp[i] = y[i] + h*sum
		}
		k[s] = t.derivative(&tmp, n)
	}
	// The seventh stage is evaluated at the fifth-order solution
	next := tmp

	errSum := 0.0
	for i := 0; i < n; i++ {
		e := 0.0
		for s := 0; s < 7; s++ {
			e += dpE[s] * k[s][i]
		}
		e *= h
		scale := t.config.TolAbs + t.config.TolRel*math.Max(math.Abs(y[i]), math.Abs(next[i]))
		errSum += (e / scale) * (e / scale)
	}
	return next, k[6], math.Sqrt(errSum / float64(n))
}

// maxStep bounds the affine step so the spatial displacement stays below Step*r
func (t *Tracer) maxStep(y *state, r float64) float64 {
	speed := math.Sqrt(y[5]*y[5] + y[6]*y[6] + y[7]*y[7])
	if speed == 0 {
		return math.Inf(1)
	}
	return t.config.Step * math.Max(r, t.spacetime.Mass) / speed
}

// Trace integrates a ray from the camera. pos and mom are the initial position
// and future-directed momentum; pol, if non-nil, is transported alongside
func (t *Tracer) Trace(id int, pos, mom core.Vec4, pol *core.Vec4) *Ray {
	ray := &Ray{ID: id}

	n := 8
	var y state
	copy(y[0:4], pos[:])
	copy(y[4:8], mom[:])
	if pol != nil {
		n = 12
		copy(y[8:12], pol[:])
	}

	if !pos.IsFinite() || !mom.IsFinite() {
		ray.Invalid = true
		ray.Status = StepLimitExceeded
		return ray
	}

	ray.Samples = append(ray.Samples, t.sample(&y, n))
	st := t.spacetime
	r := st.Radius(y[1], y[2], y[3])
	h := t.maxStep(&y, r)
	dy := t.derivative(&y, n)

	for ray.Status == Active {
		if ray.Steps >= t.config.MaxSteps {
			ray.Status = StepLimitExceeded
			break
		}

		// Attempt a step, shrinking on rejection
		var next, dyNext state
		accepted := false
		for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
			h = math.Min(h, t.maxStep(&y, r))
			var errNorm float64
			next, dyNext, errNorm = t.step(&y, dy, h, n)
			if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
				h *= t.config.MinFactor
				continue
			}
			factor := t.config.MaxFactor
			if errNorm > 0 {
				factor = math.Min(t.config.MaxFactor, math.Max(t.config.MinFactor, t.config.Safety*math.Pow(errNorm, -0.2)))
			}
			if errNorm <= 1 {
				accepted = true
				ray.Steps++
				taken := h
				h *= factor
				y, dy = next, dyNext
				if !t.renormalize(ray, &y) {
					return t.fail(ray)
				}
				rNew := st.Radius(y[1], y[2], y[3])
				if status := t.terminal(&y, rNew); status != Active {
					ray.Status = status
					break
				}
				r = rNew
				ray.Samples[len(ray.Samples)-1].Weight += 0.5 * taken
				s := t.sample(&y, n)
				s.Weight = 0.5 * taken
				ray.Samples = append(ray.Samples, s)
				// Re-normalization changed k^t, so refresh the stored derivative
				dy = t.derivative(&y, n)
				break
			}
			h *= math.Min(1, factor)
		}
		if !accepted {
			return t.fail(ray)
		}
	}
	return ray
}

// renormalize re-solves k^t from the null condition. It reports false if the
// step left the state non-finite or drifted grossly off the light cone
func (t *Tracer) renormalize(ray *Ray, y *state) bool {
	pos := y.position()
	mom := y.momentum()
	if !pos.IsFinite() || !mom.IsFinite() {
		return false
	}
	g := t.spacetime.Covariant(pos[1], pos[2], pos[3])
	residual := NullResidual(g, mom)
	if residual > ray.MaxNullResidual {
		ray.MaxNullResidual = residual
	}
	if residual > t.config.NullTolerance*driftFactor {
		return false
	}
	kt := metric.NullTimeComponentNear(g, mom)
	if math.IsNaN(kt) || kt <= 0 {
		return false
	}
	y[4] = kt
	return true
}

func (t *Tracer) fail(ray *Ray) *Ray {
	ray.Invalid = true
	ray.Status = StepLimitExceeded
	return ray
}

// terminal tests capture and escape at a new position
func (t *Tracer) terminal(y *state, r float64) Status {
	if r < t.capture {
		return Captured
	}
	if r > t.config.EscapeRadius {
		// The ray moves along -k
		radial := -(y[1]*y[5] + y[2]*y[6] + y[3]*y[7])
		if radial > 0 {
			return Escaped
		}
	}
	return Active
}

func (t *Tracer) sample(y *state, n int) Sample {
	s := Sample{Position: y.position(), Momentum: y.momentum()}
	if n > 8 {
		s.Polarization = y.polarization()
	}
	return s
}

// NullResidual returns |g_{μν} k^μ k^ν| relative to |g_tt| (k^t)^2
func NullResidual(g core.Mat4, k core.Vec4) float64 {
	scale := math.Abs(g[0][0]) * k[0] * k[0]
	if scale == 0 {
		scale = k[0] * k[0]
	}
	if scale == 0 {
		return 0
	}
	return math.Abs(metric.Norm(g, k)) / scale
}
