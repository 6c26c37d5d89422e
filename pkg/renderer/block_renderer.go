package renderer

import (
	"github.com/df07/go-kerr-raytracer/pkg/camera"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"github.com/df07/go-kerr-raytracer/pkg/radiation"
	"github.com/df07/go-kerr-raytracer/pkg/telemetry"
)

// BlockRenderer traces and integrates the pixels of image blocks. It holds no
// per-ray state and is shared by all workers
type BlockRenderer struct {
	emitter    camera.Emitter
	tracer     *geodesic.Tracer
	integrator radiation.Integrator
	model      radiation.CoefficientModel
	resolution int        // Root image resolution
	reference  *core.Vec4 // Polarization reference, nil when not transported
	metrics    *telemetry.Metrics
}

// NewBlockRenderer creates a block renderer. reference may be nil
func NewBlockRenderer(emitter camera.Emitter, tracer *geodesic.Tracer, integrator radiation.Integrator,
	model radiation.CoefficientModel, resolution int, reference *core.Vec4, metrics *telemetry.Metrics) *BlockRenderer {
	return &BlockRenderer{
		emitter:    emitter,
		tracer:     tracer,
		integrator: integrator,
		model:      model,
		resolution: resolution,
		reference:  reference,
		metrics:    metrics,
	}
}

// levelResolution returns the effective image resolution at a refinement level
func (br *BlockRenderer) levelResolution(level int) int {
	return br.resolution << level
}

// RenderRange renders local pixels [start, end) of a block. hint is the
// caller's simulation block hint
func (br *BlockRenderer) RenderRange(b *Block, start, end int, hint *int) RenderStats {
	stats := RenderStats{Level: b.Level}
	res := br.levelResolution(b.Level)

	for p := start; p < end; p++ {
		row, col := b.PixelPosition(p)
		u := camera.PixelCoordinate(col, res)
		v := camera.PixelCoordinate(row, res)

		pos, mom := br.emitter.EmitPixel(u, v)
		ray := br.tracer.Trace(row*res+col, pos, mom, br.reference)
		transfer := br.integrator.Integrate(ray, br.model, hint)

		diag := PixelDiagnostics{
			Status:       ray.Status,
			Steps:        ray.Steps,
			Invalid:      ray.Invalid,
			Fallbacks:    transfer.Fallbacks,
			NullResidual: ray.MaxNullResidual,
		}
		b.Stokes[p] = transfer.Stokes
		b.Pixels[p] = diag
		stats.addRay(diag, transfer.Samples)

		br.metrics.ObserveRay(ray.Status.String(), ray.Steps, ray.Invalid)
		br.metrics.AddFallbacks(transfer.Fallbacks)
	}

	return stats
}
