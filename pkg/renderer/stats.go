package renderer

import (
	"log/slog"
	"time"

	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
)

// RenderStats summarises the rays traced for one refinement level
type RenderStats struct {
	Level      int
	Resolution int
	Blocks     int
	Refined    int // Blocks flagged for the next level
	Workers    int
	Rays       int
	Captured   int
	Escaped    int
	StepLimit  int
	Invalid    int
	Steps      int // Total integration steps
	MaxSteps   int // Most steps taken by a single ray
	Samples    int // Total samples integrated
	Fallbacks  int // Samples that used the fallback state
	Duration   time.Duration
}

// addRay accounts for one traced pixel
func (s *RenderStats) addRay(d PixelDiagnostics, samples int) {
	s.Rays++
	s.Steps += d.Steps
	s.MaxSteps = max(s.MaxSteps, d.Steps)
	s.Samples += samples
	s.Fallbacks += d.Fallbacks
	if d.Invalid {
		s.Invalid++
	}
	switch d.Status {
	case geodesic.Captured:
		s.Captured++
	case geodesic.Escaped:
		s.Escaped++
	case geodesic.StepLimitExceeded:
		s.StepLimit++
	}
}

// Merge folds another set of counters into s. Level metadata is kept
func (s *RenderStats) Merge(o RenderStats) {
	s.Rays += o.Rays
	s.Captured += o.Captured
	s.Escaped += o.Escaped
	s.StepLimit += o.StepLimit
	s.Invalid += o.Invalid
	s.Steps += o.Steps
	s.MaxSteps = max(s.MaxSteps, o.MaxSteps)
	s.Samples += o.Samples
	s.Fallbacks += o.Fallbacks
}

// AverageSteps returns the mean number of integration steps per ray
func (s RenderStats) AverageSteps() float64 {
	if s.Rays == 0 {
		return 0
	}
	return float64(s.Steps) / float64(s.Rays)
}

func (s RenderStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("level", s.Level),
		slog.Int("resolution", s.Resolution),
		slog.Int("blocks", s.Blocks),
		slog.Int("refined", s.Refined),
		slog.Int("workers", s.Workers),
		slog.Int("rays", s.Rays),
		slog.Int("captured", s.Captured),
		slog.Int("escaped", s.Escaped),
		slog.Int("step_limit", s.StepLimit),
		slog.Int("invalid", s.Invalid),
		slog.Float64("avg_steps", s.AverageSteps()),
		slog.Int("max_steps", s.MaxSteps),
		slog.Int("fallbacks", s.Fallbacks),
		slog.Duration("duration", s.Duration),
	)
}
