package renderer

import (
	"context"
	"math"
	"testing"

	"github.com/df07/go-kerr-raytracer/pkg/camera"
	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/geodesic"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
	"github.com/df07/go-kerr-raytracer/pkg/simulation"
	"github.com/df07/go-kerr-raytracer/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/integrate/quad"
)

// gaussianConfig renders a static, spherically symmetric Gaussian emitter in
// flat spacetime, whose image is known in closed form
func gaussianConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Camera.Normalization = "camera"
	cfg.Camera.Resolution = 32
	cfg.Camera.Width = 20
	cfg.Ray.Flat = true
	cfg.Formula.H = 1e6
	cfg.Formula.L0 = 0
	cfg.Render.Workers = 3
	cfg.Render.ChunkSize = 10
	require.NoError(t, cfg.Validate())
	return cfg
}

// gaussianIntensity is the line integral of j = cn0 exp(-r^2 / 2 r0^2)
// through a pinhole pixel of an image at the given resolution
func gaussianIntensity(cfg *config.Config, row, col, resolution int) float64 {
	d := cfg.Camera.R
	du := camera.PixelCoordinate(col, resolution) * cfg.Camera.Width
	dv := camera.PixelCoordinate(row, resolution) * cfg.Camera.Width
	offset := math.Hypot(du, dv)
	b := d * offset / math.Hypot(offset, d)

	f := cfg.Formula
	peak := f.CN0 * cfg.Derived.LengthUnit * math.Sqrt(2*math.Pi) * f.R0
	return peak * math.Exp(-b*b/(2*f.R0*f.R0))
}

func quietOptions() Options {
	return Options{Logger: core.NopLogger{}}
}

// counterValue sums every series of a counter family
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestRender_FormulaGaussian(t *testing.T) {
	cfg := gaussianConfig(t)
	reg := prometheus.NewRegistry()
	opts := quietOptions()
	opts.Metrics = telemetry.NewMetrics(reg)

	result, err := Render(context.Background(), cfg, nil, opts)
	require.NoError(t, err)

	const n = 32
	assert.NotEqual(t, uuid.Nil, result.RunID)
	assert.Equal(t, n, result.Resolution)
	assert.Equal(t, 1, result.Channels)
	require.Len(t, result.Image, n*n)
	require.Len(t, result.Levels, 1)
	assert.Len(t, result.Levels[0].Blocks, 1)
	assert.Equal(t, 3, result.Stats[0].Workers)

	peak := gaussianIntensity(cfg, n/2, n/2, n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			idx := row*n + col
			assert.Equal(t, geodesic.Escaped, result.Status[idx])
			assert.False(t, result.Invalid[idx])
			assert.Zero(t, result.Fallbacks[idx])
			assert.InDelta(t, gaussianIntensity(cfg, row, col, n), result.At(row, col, 0), 0.01*peak,
				"pixel (%d, %d)", row, col)
		}
	}

	total := result.Total()
	assert.Equal(t, n*n, total.Rays)
	assert.Equal(t, n*n, total.Escaped)
	assert.Greater(t, total.AverageSteps(), 10.0)
	assert.Equal(t, float64(n*n), counterValue(t, reg, "kerr_rays_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "kerr_blocks_total"))
	assert.Len(t, result.Diagnostics(), n*n)
}

func TestRender_RefinesBrightCentre(t *testing.T) {
	cfg := gaussianConfig(t)
	cfg.Adaptive.BlockSize = 8
	cfg.Adaptive.MaxLevel = 1
	f := cfg.Formula
	cfg.Adaptive.ValCut = 0.5 * f.CN0 * core.GravitationalLength(cfg.Geometry.MassMsun) * math.Sqrt(2*math.Pi) * f.R0
	require.NoError(t, cfg.Validate())

	result, err := Render(context.Background(), cfg, nil, quietOptions())
	require.NoError(t, err)

	// Only the four blocks around the image centre hold bright pixels
	require.Len(t, result.Levels, 2)
	assert.Equal(t, 4, result.Stats[0].Refined)
	assert.Len(t, result.Levels[1].Blocks, 16)
	for _, b := range result.Levels[0].Blocks {
		central := (b.Row == 1 || b.Row == 2) && (b.Col == 1 || b.Col == 2)
		assert.Equal(t, central, b.Refine, "block (%d, %d)", b.Row, b.Col)
	}

	const res = 64
	assert.Equal(t, res, result.Resolution)
	peak := gaussianIntensity(cfg, res/2, res/2, res)

	// Corners keep their coarse value, replicated over the footprint
	assert.Equal(t, result.At(0, 0, 0), result.At(1, 1, 0))
	assert.InDelta(t, gaussianIntensity(cfg, 0, 0, res/2), result.At(0, 0, 0), 0.01*peak)

	// The centre was traced at the finer level
	for _, rc := range [][2]int{{res / 2, res / 2}, {res/2 - 1, res / 2}, {20, 40}} {
		row, col := rc[0], rc[1]
		assert.InDelta(t, gaussianIntensity(cfg, row, col, res), result.At(row, col, 0), 0.01*peak,
			"pixel (%d, %d)", row, col)
	}
	assert.NotEqual(t, result.At(res/2, res/2, 0), result.At(res/2+1, res/2+1, 0))
}

// schwarzschildIntensity integrates the emitter of gaussianConfig along the
// Schwarzschild photon orbit with impact parameter b. The fluid and the camera
// are both Kerr-Schild normal observers, which see a photon of unit energy at
// radius r with frequency (1 ± 2/r √R) / ((1 - 2/r) √(1 + 2/r)), where
// R = 1 - (1 - 2/r) b²/r² and the sign is that of dr/dλ. nuObs is the camera
// frequency in units of the photon energy
func schwarzschildIntensity(cfg *config.Config, b, nuObs float64) float64 {
	r0 := cfg.Formula.R0
	radial := func(r float64) float64 { return 1 - (1-2/r)*b*b/(r*r) }
	emission := func(r, sign float64) float64 {
		nuEm := (1 + sign*2/r*math.Sqrt(radial(r))) / ((1 - 2/r) * math.Sqrt(1+2/r))
		g := nuObs / nuEm
		return math.Exp(-r*r/(2*r0*r0)) * g * g * nuObs
	}

	rMax := 12 * r0
	var integral float64
	if b < 3*math.Sqrt(3) {
		// Captured orbits have only the outgoing leg
		rIn := 2 * (1 + cfg.Ray.HorizonMargin)
		integral = quad.Fixed(func(r float64) float64 {
			return emission(r, 1) / math.Sqrt(radial(r))
		}, rIn, rMax, 128, nil, 0)
	} else {
		// r = rMin + x² removes the turning-point singularity
		rMin := 2 * b / math.Sqrt(3) * math.Cos(math.Acos(-3*math.Sqrt(3)/b)/3)
		if rMin >= rMax {
			return 0
		}
		integral = quad.Fixed(func(x float64) float64 {
			r := rMin + x*x
			return (emission(r, 1) + emission(r, -1)) * 2 * x / math.Sqrt(radial(r))
		}, 0, math.Sqrt(rMax-rMin), 128, nil, 0)
	}
	return cfg.Formula.CN0 * cfg.Derived.LengthUnit * integral
}

func TestRender_SchwarzschildGaussian(t *testing.T) {
	cfg := gaussianConfig(t)
	cfg.Ray.Flat = false
	cfg.Camera.Width = 40
	require.NoError(t, cfg.Validate())
	require.Zero(t, cfg.Geometry.Spin)
	require.Equal(t, 1000.0, cfg.Camera.R)

	result, err := Render(context.Background(), cfg, nil, quietOptions())
	require.NoError(t, err)

	// Energy and angular momentum of each camera ray fix its orbit
	st := metric.New(cfg.Geometry.Mass, 0, false)
	frame, err := camera.NewFrame(st, cfg.Camera, cfg.Derived.Normalization)
	require.NoError(t, err)
	emitter := camera.NewEmitter(frame, st, cfg.Derived.CameraType)

	const n = 32
	impact := make([]float64, n*n)
	expected := make([]float64, n*n)
	peak := 0.0
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			pos, mom := emitter.EmitPixel(camera.PixelCoordinate(col, n), camera.PixelCoordinate(row, n))
			g := st.Covariant(pos[1], pos[2], pos[3])
			k := g.Lower(mom)
			lx := pos[2]*k[3] - pos[3]*k[2]
			ly := pos[3]*k[1] - pos[1]*k[3]
			lz := pos[1]*k[2] - pos[2]*k[1]
			energy := -k[0]

			idx := row*n + col
			impact[idx] = math.Sqrt(lx*lx+ly*ly+lz*lz) / energy
			expected[idx] = schwarzschildIntensity(cfg, impact[idx], cfg.Camera.Frequency/energy)
			peak = math.Max(peak, expected[idx])
		}
	}

	// 1% of the peak covers the trapezoidal weights along each ray
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			idx := row*n + col
			status := result.Status[idx]
			assert.Contains(t, []geodesic.Status{geodesic.Escaped, geodesic.Captured}, status, "pixel (%d, %d)", row, col)
			assert.False(t, result.Invalid[idx], "pixel (%d, %d)", row, col)
			assert.Equal(t, impact[idx] < 3*math.Sqrt(3), status == geodesic.Captured, "pixel (%d, %d)", row, col)
			assert.InDelta(t, expected[idx], result.At(row, col, 0), 0.01*peak, "pixel (%d, %d)", row, col)
		}
	}

	total := result.Total()
	assert.Equal(t, n*n, total.Captured+total.Escaped)
	assert.Positive(t, total.Captured)
	assert.Zero(t, total.Invalid)

	// The shadow darkens the centre far below the flat-space profile
	assert.Less(t, result.At(n/2, n/2, 0), 0.1*gaussianIntensity(cfg, n/2, n/2, n))
}

func TestRender_DisabledCriteriaKeepOneLevel(t *testing.T) {
	cfg := gaussianConfig(t)
	cfg.Camera.Resolution = 16
	cfg.Adaptive.MaxLevel = 4
	require.NoError(t, cfg.Validate())

	result, err := Render(context.Background(), cfg, nil, quietOptions())
	require.NoError(t, err)

	require.Len(t, result.Levels, 1)
	require.Len(t, result.Levels[0].Blocks, 1)
	assert.False(t, result.Levels[0].Blocks[0].Refine)
	require.Len(t, result.Stats, 1)
	assert.Zero(t, result.Stats[0].Refined)
	assert.Equal(t, 16, result.Resolution)
}

// uniformPlasma is at rest with a vertical field
func uniformPlasma(f simulation.Field, _, _, _ float64) float64 {
	switch f {
	case simulation.Rho:
		return 1
	case simulation.Pgas:
		return 0.01
	case simulation.Kappa:
		return 0.001
	case simulation.Bb3:
		return 0.1
	default:
		return 0
	}
}

// splitGrid fills [-20, 20)³ with two CKS blocks meeting at x = 0
func splitGrid() *simulation.Grid {
	return &simulation.Grid{
		Coords:     metric.CKS,
		RootBlocks: [3]int{2, 1, 1},
		Blocks: []simulation.Block{
			simulation.UniformBlock([3]float64{-20, -20, -20}, [3]float64{0, 20, 20}, 4, uniformPlasma),
			simulation.UniformBlock([3]float64{0, -20, -20}, [3]float64{20, 20, 20}, 4, uniformPlasma),
		},
	}
}

func wholeGrid() *simulation.Grid {
	return &simulation.Grid{
		Coords:     metric.CKS,
		RootBlocks: [3]int{1, 1, 1},
		Blocks: []simulation.Block{
			simulation.UniformBlock([3]float64{-20, -20, -20}, [3]float64{20, 20, 20}, 4, uniformPlasma),
		},
	}
}

// simulationConfig views the grid edge-on from +x, with the outer pixels
// looking past it
func simulationConfig(t *testing.T, polarized bool) *config.Config {
	cfg := config.Default()
	cfg.Model.Type = "simulation"
	cfg.Camera.Normalization = "camera"
	cfg.Camera.Polarization = polarized
	cfg.Camera.Resolution = 16
	cfg.Camera.Width = 60
	cfg.Ray.Flat = true
	cfg.Render.Workers = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRender_SimulationGrid(t *testing.T) {
	tests := []struct {
		name      string
		polarized bool
		channels  int
	}{
		{"unpolarized", false, 1},
		{"polarized", true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simulationConfig(t, tt.polarized)
			reg := prometheus.NewRegistry()
			opts := quietOptions()
			opts.Metrics = telemetry.NewMetrics(reg)

			result, err := Render(context.Background(), cfg, splitGrid(), opts)
			require.NoError(t, err)

			const n = 16
			assert.Equal(t, tt.channels, result.Channels)
			require.Len(t, result.Image, n*n*tt.channels)

			centre := result.At(n/2, n/2, 0)
			assert.Positive(t, centre)
			if tt.polarized {
				q, u, v := result.At(n/2, n/2, 1), result.At(n/2, n/2, 2), result.At(n/2, n/2, 3)
				pol := math.Sqrt(q*q + u*u + v*v)
				assert.Positive(t, pol)
				assert.LessOrEqual(t, pol, centre)
			}

			// Corner rays never enter the grid
			for c := 0; c < tt.channels; c++ {
				assert.Zero(t, result.At(0, 0, c))
			}
			assert.Equal(t, geodesic.Escaped, result.Status[0])
			assert.Positive(t, result.Fallbacks[0])

			total := result.Total()
			fallbacks := 0
			for _, f := range result.Fallbacks {
				fallbacks += f
			}
			assert.Equal(t, fallbacks, total.Fallbacks)
			assert.Equal(t, fallbacks, result.Stats[0].Fallbacks)
			assert.Equal(t, float64(fallbacks), counterValue(t, reg, "kerr_fallback_samples_total"))
			assert.Zero(t, total.Invalid)

			// Splitting uniform plasma across blocks leaves no seam
			whole, err := Render(context.Background(), cfg, wholeGrid(), quietOptions())
			require.NoError(t, err)
			for i := range result.Image {
				assert.InDelta(t, whole.Image[i], result.Image[i], 1e-9*centre, "value %d", i)
			}
		})
	}
}

func TestRender_Errors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := Render(context.Background(), nil, nil, quietOptions())
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := gaussianConfig(t)
		cfg.Camera.Resolution = 12
		_, err := Render(context.Background(), cfg, nil, quietOptions())
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "camera.resolution", cfgErr.Param)
	})

	t.Run("simulation without grid", func(t *testing.T) {
		cfg := gaussianConfig(t)
		cfg.Model.Type = "simulation"
		_, err := Render(context.Background(), cfg, nil, quietOptions())
		assert.ErrorIs(t, err, core.ErrNoGrid)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("grid coordinates differ", func(t *testing.T) {
		grid := splitGrid()
		grid.Coords = metric.SKS
		_, err := Render(context.Background(), simulationConfig(t, false), grid, quietOptions())
		var cfgErr *core.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "simulation.coord", cfgErr.Param)
	})

	t.Run("malformed grid", func(t *testing.T) {
		grid := splitGrid()
		grid.Blocks[1].Fields[simulation.Rho] = grid.Blocks[1].Fields[simulation.Rho][:10]
		_, err := Render(context.Background(), simulationConfig(t, false), grid, quietOptions())
		require.Error(t, err)
		assert.ErrorContains(t, err, "invalid simulation grid")
		assert.ErrorContains(t, err, "field rho")
	})

	t.Run("empty grid", func(t *testing.T) {
		_, err := Render(context.Background(), simulationConfig(t, false), &simulation.Grid{Coords: metric.CKS}, quietOptions())
		assert.ErrorContains(t, err, "grid has no blocks")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Render(ctx, gaussianConfig(t), nil, quietOptions())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestResult_AssembleFinestWins(t *testing.T) {
	coarse := NewBlock(0, 0, 0, 2)
	for p := range coarse.Stokes {
		coarse.Stokes[p] = [4]float64{1, 2, 3, 4}
		coarse.Pixels[p].Steps = 10
	}
	coarse.Refine = true
	fine := coarse.Children()[3]
	for p := range fine.Stokes {
		fine.Stokes[p] = [4]float64{5, 6, 7, 8}
		fine.Pixels[p] = PixelDiagnostics{Status: geodesic.Captured, Steps: 20}
	}

	result := &Result{Levels: []Level{
		{Index: 0, Resolution: 2, Blocks: []*Block{coarse}},
		{Index: 1, Resolution: 4, Blocks: []*Block{fine}},
	}}
	result.assemble(true)

	assert.Equal(t, 4, result.Resolution)
	assert.Equal(t, 4, result.Channels)
	require.Len(t, result.Image, 64)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			refined := row >= 2 && col >= 2
			want, steps := 1.0, 10
			if refined {
				want, steps = 5.0, 20
			}
			assert.Equal(t, want, result.At(row, col, 0), "pixel (%d, %d)", row, col)
			assert.Equal(t, want+3, result.At(row, col, 3), "pixel (%d, %d)", row, col)
			assert.Equal(t, steps, result.Steps[row*4+col])
		}
	}

	// Diagnostics list each traced pixel once, at its own level
	records := result.Diagnostics()
	require.Len(t, records, 8)
	assert.Equal(t, 1, records[4].Level)
	assert.Equal(t, 2, records[4].Row)
	assert.Equal(t, 2, records[4].Col)
	assert.Equal(t, "captured", records[4].Status)
	assert.Equal(t, 5.0, records[4].I)
}
