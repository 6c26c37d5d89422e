// Package renderer drives a ray-tracing run: it tiles the image into blocks,
// traces them on a worker pool, refines blocks level by level and assembles
// the final image
package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/df07/go-kerr-raytracer/pkg/camera"
	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
	"github.com/df07/go-kerr-raytracer/pkg/radiation"
	"github.com/df07/go-kerr-raytracer/pkg/simulation"
	"github.com/df07/go-kerr-raytracer/pkg/telemetry"
	"github.com/google/uuid"
)

// Options holds execution settings that are not part of the run configuration
type Options struct {
	Logger  core.Logger        // Defaults to core.NewDefaultLogger
	Metrics *telemetry.Metrics // Optional
	Workers int                // Overrides render.workers when positive
}

// Result is the assembled image of a run. Image is row-major at the finest
// level's resolution with Channels values per pixel; row 0 is the bottom of
// the image plane
type Result struct {
	RunID      uuid.UUID
	Resolution int
	Channels   int // 1 for intensity, 4 for Stokes I, Q, U, V
	Image      []float64

	Status    []geodesic.Status
	Steps     []int
	Fallbacks []int
	Invalid   []bool

	Levels []Level
	Stats  []RenderStats
}

// At returns one channel of a pixel in the final image
func (r *Result) At(row, col, channel int) float64 {
	return r.Image[(row*r.Resolution+col)*r.Channels+channel]
}

// Total sums the per-level statistics
func (r *Result) Total() RenderStats {
	total := RenderStats{Resolution: r.Resolution, Level: len(r.Levels) - 1}
	for _, s := range r.Stats {
		total.Merge(s)
		total.Blocks += s.Blocks
		total.Refined += s.Refined
		total.Duration += s.Duration
	}
	return total
}

// Diagnostics returns one record per traced pixel, at the level it was traced
func (r *Result) Diagnostics() []telemetry.PixelRecord {
	var records []telemetry.PixelRecord
	for _, level := range r.Levels {
		for _, b := range level.Blocks {
			for p := range b.Pixels {
				row, col := b.PixelPosition(p)
				d := b.Pixels[p]
				records = append(records, telemetry.PixelRecord{
					Level:        level.Index,
					Row:          row,
					Col:          col,
					Status:       d.Status.String(),
					Steps:        d.Steps,
					Invalid:      d.Invalid,
					Fallbacks:    d.Fallbacks,
					NullResidual: d.NullResidual,
					I:            b.Stokes[p][0],
				})
			}
		}
	}
	return records
}

var gridCoordinates = map[config.Coord]metric.Coordinates{
	config.CoordCKS: metric.CKS,
	config.CoordSKS: metric.SKS,
}

// newModel builds the coefficient model selected by the configuration
func newModel(cfg *config.Config, st metric.Spacetime, grid *simulation.Grid) (radiation.CoefficientModel, error) {
	if cfg.Derived.Model == config.ModelFormula {
		return radiation.NewFormulaModel(st, cfg.Formula), nil
	}

	if grid == nil {
		return nil, fmt.Errorf("%w: %w", core.NewConfigError("model.type", "simulation model needs plasma data"), core.ErrNoGrid)
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation grid: %w", err)
	}
	if want := gridCoordinates[cfg.Derived.Coord]; grid.Coords != want {
		return nil, core.NewConfigError("simulation.coord", "grid data uses different coordinates than %q", cfg.Simulation.Coord)
	}

	sampler := simulation.NewSampler(grid, st, cfg.Derived.Interp, cfg.Fallback)
	return radiation.NewSimulationModel(sampler, st, cfg), nil
}

// Render runs the whole pipeline. grid may be nil for the formula model
// The context is checked between levels and between task submissions
func Render(ctx context.Context, cfg *config.Config, grid *simulation.Grid, opts Options) (*Result, error) {
	if cfg == nil {
		return nil, core.NewConfigError("config", "required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	runID := uuid.New()
	if sl, ok := logger.(*core.SlogLogger); ok {
		logger = sl.With("run_id", runID.String())
	}

	geom := cfg.Geometry
	st := metric.New(geom.Mass, geom.Spin, cfg.Ray.Flat)

	frame, err := camera.NewFrame(st, cfg.Camera, cfg.Derived.Normalization)
	if err != nil {
		return nil, err
	}
	model, err := newModel(cfg, st, grid)
	if err != nil {
		return nil, err
	}

	var reference *core.Vec4
	if cfg.Camera.Polarization {
		vertical := frame.Vertical()
		reference = &vertical
	}

	renderer := NewBlockRenderer(
		camera.NewEmitter(frame, st, cfg.Derived.CameraType),
		geodesic.NewTracer(st, geodesic.ConfigFrom(cfg)),
		radiation.NewIntegrator(cfg),
		model,
		cfg.Camera.Resolution,
		reference,
		opts.Metrics,
	)

	workers := cfg.Render.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	criteria := Criteria{cfg.Adaptive}
	blocks := rootBlocks(cfg.Camera.Resolution, cfg.Derived.BlockSize)
	result := &Result{RunID: runID}

	logger.Printf("Rendering %dx%d image, %d root blocks of %d pixels, up to %d refinement levels\n",
		cfg.Camera.Resolution, cfg.Camera.Resolution, len(blocks), cfg.Derived.BlockSize, cfg.Adaptive.MaxLevel)

	for level := 0; ; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stats, err := renderLevel(ctx, renderer, blocks, workers, cfg.Render.ChunkSize)
		if err != nil {
			return nil, err
		}
		stats.Level = level
		stats.Resolution = renderer.levelResolution(level)
		stats.Blocks = len(blocks)
		opts.Metrics.AddBlocks(level, len(blocks))

		var children []*Block
		if level < cfg.Adaptive.MaxLevel && criteria.Enabled() {
			spacing := frame.Scale / float64(stats.Resolution)
			for _, b := range blocks {
				if criteria.ShouldRefine(b, spacing) {
					b.Refine = true
					children = append(children, b.Children()...)
				}
			}
		}
		stats.Refined = len(children) / 4

		result.Levels = append(result.Levels, Level{Index: level, Resolution: stats.Resolution, Blocks: blocks})
		result.Stats = append(result.Stats, stats)
		logStats(logger, stats)

		if len(children) == 0 {
			break
		}
		blocks = children
	}

	result.assemble(cfg.Camera.Polarization)
	return result, nil
}

// renderLevel traces every pixel of the given blocks
func renderLevel(ctx context.Context, renderer *BlockRenderer, blocks []*Block, workers, chunk int) (RenderStats, error) {
	start := time.Now()
	tasks := splitTasks(blocks, chunk)

	pool := NewWorkerPool(renderer, workers, len(tasks))
	pool.Start()

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			// Queues hold every task, so Stop cannot block on results
			pool.Stop()
			return RenderStats{}, err
		}
		pool.SubmitTask(task)
	}

	var stats RenderStats
	for range tasks {
		result, ok := pool.GetResult()
		if !ok {
			return RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		stats.Merge(result.Stats)
	}
	pool.Stop()

	stats.Duration = time.Since(start)
	stats.Workers = pool.GetNumWorkers()
	return stats, nil
}

func logStats(logger core.Logger, stats RenderStats) {
	if sl, ok := logger.(*core.SlogLogger); ok {
		sl.Slog().Info("level complete", "stats", stats)
		return
	}
	logger.Printf("Level %d: %d blocks, %d rays (%d captured, %d escaped, %d step limit, %d invalid), %.1f steps/ray, %d refined in %v using %d workers\n",
		stats.Level, stats.Blocks, stats.Rays, stats.Captured, stats.Escaped, stats.StepLimit, stats.Invalid,
		stats.AverageSteps(), stats.Refined, stats.Duration, stats.Workers)
}

// assemble writes levels coarse to fine into an image at the finest
// resolution, so refined pixels overwrite the coarse values they replace
func (r *Result) assemble(polarized bool) {
	r.Channels = 1
	if polarized {
		r.Channels = 4
	}
	finest := len(r.Levels) - 1
	r.Resolution = r.Levels[finest].Resolution

	n := r.Resolution * r.Resolution
	r.Image = make([]float64, n*r.Channels)
	r.Status = make([]geodesic.Status, n)
	r.Steps = make([]int, n)
	r.Fallbacks = make([]int, n)
	r.Invalid = make([]bool, n)

	for _, level := range r.Levels {
		footprint := 1 << (finest - level.Index)
		for _, b := range level.Blocks {
			for p := range b.Pixels {
				row, col := b.PixelPosition(p)
				for i := 0; i < footprint; i++ {
					for j := 0; j < footprint; j++ {
						idx := (row*footprint+i)*r.Resolution + col*footprint + j
						copy(r.Image[idx*r.Channels:(idx+1)*r.Channels], b.Stokes[p][:r.Channels])
						r.Status[idx] = b.Pixels[p].Status
						r.Steps[idx] = b.Pixels[p].Steps
						r.Fallbacks[idx] = b.Pixels[p].Fallbacks
						r.Invalid[idx] = b.Pixels[p].Invalid
					}
				}
			}
		}
	}
}
