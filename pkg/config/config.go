// Package config provides the immutable configuration snapshot for a ray-tracing run
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-kerr-raytracer/pkg/core"
	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all ray-tracing configuration parameters
// Field tags name the same keys for YAML (snake_case) and INI (dash-case) files
type Config struct {
	Model      ModelConfig      `yaml:"model" gcfg:"model"`
	Geometry   GeometryConfig   `yaml:"geometry" gcfg:"geometry"`
	Camera     CameraConfig     `yaml:"camera" gcfg:"camera"`
	Ray        RayConfig        `yaml:"ray" gcfg:"ray"`
	Adaptive   AdaptiveConfig   `yaml:"adaptive" gcfg:"adaptive"`
	Formula    FormulaConfig    `yaml:"formula" gcfg:"formula"`
	Simulation SimulationConfig `yaml:"simulation" gcfg:"simulation"`
	Plasma     PlasmaConfig     `yaml:"plasma" gcfg:"plasma"`
	Fallback   FallbackConfig   `yaml:"fallback" gcfg:"fallback"`
	Render     RenderConfig     `yaml:"render" gcfg:"render"`

	// Derived values computed by Validate
	Derived DerivedConfig `yaml:"-" gcfg:"-"`
}

// ModelConfig selects the emission model
type ModelConfig struct {
	Type string `yaml:"type" gcfg:"type"` // formula or simulation
}

// GeometryConfig describes the black hole
type GeometryConfig struct {
	Mass     float64 `yaml:"mass" gcfg:"mass"`           // M in code units, normally 1
	Spin     float64 `yaml:"spin" gcfg:"spin"`           // a, with |a| <= M
	MassMsun float64 `yaml:"mass_msun" gcfg:"mass-msun"` // Physical mass for the length unit
}

// CameraConfig describes the observer and the image plane
type CameraConfig struct {
	Type          string  `yaml:"type" gcfg:"type"` // plane or pinhole
	R             float64 `yaml:"r" gcfg:"r"`
	Theta         float64 `yaml:"theta" gcfg:"theta"`
	Phi           float64 `yaml:"phi" gcfg:"phi"`
	Rotation      float64 `yaml:"rotation" gcfg:"rotation"`
	URN           float64 `yaml:"urn" gcfg:"urn"`   // Observer radial velocity in the normal frame
	UThN          float64 `yaml:"uthn" gcfg:"uthn"` // Observer polar velocity in the normal frame
	UPhN          float64 `yaml:"uphn" gcfg:"uphn"` // Observer azimuthal velocity in the normal frame
	KR            float64 `yaml:"k_r" gcfg:"k-r"`   // Covariant photon components defining the line of sight
	KTheta        float64 `yaml:"k_theta" gcfg:"k-theta"`
	KPhi          float64 `yaml:"k_phi" gcfg:"k-phi"`
	Width         float64 `yaml:"width" gcfg:"width"` // Full image width in units of M
	Resolution    int     `yaml:"resolution" gcfg:"resolution"`
	Frequency     float64 `yaml:"frequency" gcfg:"frequency"` // Hz
	Normalization string  `yaml:"normalization" gcfg:"normalization"`
	Polarization  bool    `yaml:"polarization" gcfg:"polarization"`
	Pole          bool    `yaml:"pole" gcfg:"pole"`
}

// RayConfig controls geodesic integration
type RayConfig struct {
	Flat          bool    `yaml:"flat" gcfg:"flat"`
	Step          float64 `yaml:"step" gcfg:"step"` // Max spatial step as a fraction of r
	MaxSteps      int     `yaml:"max_steps" gcfg:"max-steps"`
	MaxRetries    int     `yaml:"max_retries" gcfg:"max-retries"`
	TolAbs        float64 `yaml:"tol_abs" gcfg:"tol-abs"`
	TolRel        float64 `yaml:"tol_rel" gcfg:"tol-rel"`
	Safety        float64 `yaml:"safety" gcfg:"safety"`
	MinFactor     float64 `yaml:"min_factor" gcfg:"min-factor"`
	MaxFactor     float64 `yaml:"max_factor" gcfg:"max-factor"`
	HorizonMargin float64 `yaml:"horizon_margin" gcfg:"horizon-margin"`
	EscapeRadius  float64 `yaml:"escape_radius" gcfg:"escape-radius"` // 0 means the camera radius
	NullTolerance float64 `yaml:"null_tolerance" gcfg:"null-tolerance"`
}

// AdaptiveConfig controls image-plane refinement. A cut <= 0 disables its criterion
type AdaptiveConfig struct {
	MaxLevel    int     `yaml:"max_level" gcfg:"max-level"`
	BlockSize   int     `yaml:"block_size" gcfg:"block-size"` // 0 means the full resolution
	ValCut      float64 `yaml:"val_cut" gcfg:"val-cut"`
	ValFrac     float64 `yaml:"val_frac" gcfg:"val-frac"`
	AbsGradCut  float64 `yaml:"abs_grad_cut" gcfg:"abs-grad-cut"`
	AbsGradFrac float64 `yaml:"abs_grad_frac" gcfg:"abs-grad-frac"`
	RelGradCut  float64 `yaml:"rel_grad_cut" gcfg:"rel-grad-cut"`
	RelGradFrac float64 `yaml:"rel_grad_frac" gcfg:"rel-grad-frac"`
	AbsLaplCut  float64 `yaml:"abs_lapl_cut" gcfg:"abs-lapl-cut"`
	AbsLaplFrac float64 `yaml:"abs_lapl_frac" gcfg:"abs-lapl-frac"`
	RelLaplCut  float64 `yaml:"rel_lapl_cut" gcfg:"rel-lapl-cut"`
	RelLaplFrac float64 `yaml:"rel_lapl_frac" gcfg:"rel-lapl-frac"`
}

// FormulaConfig holds the analytic emission model parameters
type FormulaConfig struct {
	R0    float64 `yaml:"r0" gcfg:"r0"`
	H     float64 `yaml:"h" gcfg:"h"`
	L0    float64 `yaml:"l0" gcfg:"l0"`
	Q     float64 `yaml:"q" gcfg:"q"`
	NuP   float64 `yaml:"nup" gcfg:"nup"`
	CN0   float64 `yaml:"cn0" gcfg:"cn0"`
	Alpha float64 `yaml:"alpha" gcfg:"alpha"`
	A     float64 `yaml:"a" gcfg:"a"`
	Beta  float64 `yaml:"beta" gcfg:"beta"`
}

// SimulationConfig describes how the plasma grid is interpreted
type SimulationConfig struct {
	Coord  string  `yaml:"coord" gcfg:"coord"` // cks or sks
	RhoCgs float64 `yaml:"rho_cgs" gcfg:"rho-cgs"`
	Interp string  `yaml:"interp" gcfg:"interp"` // nearest, trilinear or block
}

// PlasmaConfig selects the electron thermodynamics model
type PlasmaConfig struct {
	Model    string  `yaml:"model" gcfg:"model"` // thermal, ti_te_beta or code_kappa
	Mu       float64 `yaml:"mu" gcfg:"mu"`
	NeNi     float64 `yaml:"ne_ni" gcfg:"ne-ni"`
	RatHigh  float64 `yaml:"rat_high" gcfg:"rat-high"`
	RatLow   float64 `yaml:"rat_low" gcfg:"rat-low"`
	SigmaMax float64 `yaml:"sigma_max" gcfg:"sigma-max"`
}

// FallbackConfig is the state substituted for samples without valid data
type FallbackConfig struct {
	NaN   bool    `yaml:"nan" gcfg:"nan"`
	Rho   float64 `yaml:"rho" gcfg:"rho"`
	Pgas  float64 `yaml:"pgas" gcfg:"pgas"`
	Kappa float64 `yaml:"kappa" gcfg:"kappa"`
}

// RenderConfig holds execution parameters
type RenderConfig struct {
	Workers     int     `yaml:"workers" gcfg:"workers"` // 0 means runtime.NumCPU()
	ChunkSize   int     `yaml:"chunk_size" gcfg:"chunk-size"`
	MaxDeltaTau float64 `yaml:"max_delta_tau" gcfg:"max-delta-tau"`
}

// Default returns the embedded defaults. The result is not validated
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load reads a configuration file on top of the embedded defaults and validates it
// The format is chosen by extension: .yaml/.yml for YAML, .ini/.cfg/.par for INI
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = cfg.MergeYAML(data)
	case ".ini", ".cfg", ".par":
		err = cfg.MergeINI(data)
	default:
		return nil, fmt.Errorf("unknown config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeYAML overlays YAML data onto the receiver. Unknown keys are rejected
func (c *Config) MergeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// MergeINI overlays INI data onto the receiver. Unknown sections and keys are rejected
func (c *Config) MergeINI(data []byte) error {
	return gcfg.ReadStringInto(c, string(data))
}

// WriteYAML saves the configuration as YAML
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	dup := *c
	return &dup
}

// Model identifies the emission model family
type Model int

const (
	ModelFormula Model = iota
	ModelSimulation
)

// CameraType identifies the image-plane projection
type CameraType int

const (
	CameraPinhole CameraType = iota
	CameraPlane
)

// Normalization identifies the frame in which the image frequency is measured
type Normalization int

const (
	NormalizeCamera Normalization = iota
	NormalizeInfinity
)

// Coord identifies the simulation grid's coordinate system
type Coord int

const (
	CoordCKS Coord = iota
	CoordSKS
)

// Interp identifies the simulation sampling mode
type Interp int

const (
	InterpNearest Interp = iota
	InterpTrilinear
	InterpBlock
)

// PlasmaModel identifies the electron thermodynamics model
type PlasmaModel int

const (
	PlasmaThermal PlasmaModel = iota
	PlasmaTiTeBeta
	PlasmaCodeKappa
)

// DerivedConfig holds parsed enums and computed quantities
type DerivedConfig struct {
	Model         Model
	CameraType    CameraType
	Normalization Normalization
	Coord         Coord
	Interp        Interp
	PlasmaModel   PlasmaModel
	LengthUnit    float64 // GM/c^2 in cm
	EscapeRadius  float64 // Effective escape radius in M
	BlockSize     int     // Root block size in pixels
}

var (
	modelNames         = map[string]Model{"formula": ModelFormula, "simulation": ModelSimulation}
	cameraNames        = map[string]CameraType{"pinhole": CameraPinhole, "plane": CameraPlane}
	normalizationNames = map[string]Normalization{"camera": NormalizeCamera, "infinity": NormalizeInfinity}
	coordNames         = map[string]Coord{"cks": CoordCKS, "sks": CoordSKS}
	interpNames        = map[string]Interp{"nearest": InterpNearest, "trilinear": InterpTrilinear, "block": InterpBlock}
	plasmaNames        = map[string]PlasmaModel{"thermal": PlasmaThermal, "ti_te_beta": PlasmaTiTeBeta, "code_kappa": PlasmaCodeKappa}
)

func lookup[T any](names map[string]T, param, value string) (T, error) {
	v, ok := names[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		var zero T
		if value == "" {
			return zero, core.NewConfigError(param, "required")
		}
		return zero, core.NewConfigError(param, "unknown value %q", value)
	}
	return v, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks parameter combinations and fills Derived
// Every failure is a *core.ConfigError
func (c *Config) Validate() error {
	var err error
	d := &c.Derived

	if d.Model, err = lookup(modelNames, "model.type", c.Model.Type); err != nil {
		return err
	}
	if d.CameraType, err = lookup(cameraNames, "camera.type", c.Camera.Type); err != nil {
		return err
	}
	if d.Normalization, err = lookup(normalizationNames, "camera.normalization", c.Camera.Normalization); err != nil {
		return err
	}
	if d.Coord, err = lookup(coordNames, "simulation.coord", c.Simulation.Coord); err != nil {
		return err
	}
	if d.Interp, err = lookup(interpNames, "simulation.interp", c.Simulation.Interp); err != nil {
		return err
	}
	if d.PlasmaModel, err = lookup(plasmaNames, "plasma.model", c.Plasma.Model); err != nil {
		return err
	}

	g := c.Geometry
	if g.Mass <= 0 {
		return core.NewConfigError("geometry.mass", "must be positive, got %g", g.Mass)
	}
	if math.Abs(g.Spin) > g.Mass {
		return core.NewConfigError("geometry.spin", "|a| = %g exceeds M = %g", math.Abs(g.Spin), g.Mass)
	}
	if g.MassMsun <= 0 {
		return core.NewConfigError("geometry.mass_msun", "must be positive, got %g", g.MassMsun)
	}

	cam := c.Camera
	if !isPowerOfTwo(cam.Resolution) {
		return core.NewConfigError("camera.resolution", "must be a power of two, got %d", cam.Resolution)
	}
	if cam.Frequency <= 0 {
		return core.NewConfigError("camera.frequency", "must be positive, got %g", cam.Frequency)
	}
	if cam.Width <= 0 {
		return core.NewConfigError("camera.width", "must be positive, got %g", cam.Width)
	}
	horizon := g.Mass + math.Sqrt(g.Mass*g.Mass-g.Spin*g.Spin)
	if !c.Ray.Flat && cam.R <= horizon {
		return core.NewConfigError("camera.r", "camera at r = %g is inside the horizon r = %g", cam.R, horizon)
	}
	if cam.KR == 0 && cam.KTheta == 0 && cam.KPhi == 0 {
		return core.NewConfigError("camera.k_r", "photon direction must be nonzero")
	}
	if cam.Polarization && d.Model == ModelFormula {
		return core.NewConfigError("camera.polarization", "polarized transfer requires simulation magnetic fields")
	}

	r := c.Ray
	if r.Step <= 0 || r.MaxSteps <= 0 || r.MaxRetries < 0 {
		return core.NewConfigError("ray.step", "step %g, max_steps %d and max_retries %d must be positive", r.Step, r.MaxSteps, r.MaxRetries)
	}
	if r.TolAbs <= 0 || r.TolRel <= 0 {
		return core.NewConfigError("ray.tol_abs", "tolerances must be positive")
	}
	if r.Safety <= 0 || r.Safety > 1 || r.MinFactor <= 0 || r.MinFactor >= 1 || r.MaxFactor <= 1 {
		return core.NewConfigError("ray.safety", "step controller needs 0 < safety <= 1, 0 < min_factor < 1 < max_factor")
	}
	if !(r.NullTolerance > 0) {
		return core.NewConfigError("ray.null_tolerance", "must be positive, got %g", r.NullTolerance)
	}
	d.EscapeRadius = math.Max(r.EscapeRadius, cam.R)

	a := c.Adaptive
	if a.MaxLevel < 0 {
		return core.NewConfigError("adaptive.max_level", "must be non-negative, got %d", a.MaxLevel)
	}
	d.BlockSize = a.BlockSize
	if d.BlockSize == 0 {
		d.BlockSize = cam.Resolution
	}
	if !isPowerOfTwo(d.BlockSize) || d.BlockSize > cam.Resolution {
		return core.NewConfigError("adaptive.block_size", "must be a power of two no larger than the resolution, got %d", a.BlockSize)
	}
	for _, frac := range []float64{a.ValFrac, a.AbsGradFrac, a.RelGradFrac, a.AbsLaplFrac, a.RelLaplFrac} {
		if frac < 0 || frac > 1 {
			return core.NewConfigError("adaptive", "refinement fractions must lie in [0, 1], got %g", frac)
		}
	}

	if d.Model == ModelFormula {
		f := c.Formula
		if f.R0 <= 0 || f.H <= 0 || f.NuP <= 0 {
			return core.NewConfigError("formula", "r0, h and nup must be positive")
		}
	} else {
		if c.Simulation.RhoCgs <= 0 {
			return core.NewConfigError("simulation.rho_cgs", "must be positive, got %g", c.Simulation.RhoCgs)
		}
		if c.Plasma.Mu <= 0 || c.Plasma.NeNi <= 0 {
			return core.NewConfigError("plasma.mu", "mu and ne_ni must be positive")
		}
	}

	if c.Render.ChunkSize <= 0 {
		return core.NewConfigError("render.chunk_size", "must be positive, got %d", c.Render.ChunkSize)
	}
	if c.Render.MaxDeltaTau <= 0 {
		return core.NewConfigError("render.max_delta_tau", "must be positive, got %g", c.Render.MaxDeltaTau)
	}

	d.LengthUnit = core.GravitationalLength(g.MassMsun)
	return nil
}
