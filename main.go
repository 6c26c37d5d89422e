package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/renderer"
	"github.com/df07/go-kerr-raytracer/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// options are the command line settings
type options struct {
	configPath  string
	outPath     string
	diagnostics string
	metrics     string
	saveConfig  string
	workers     int
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("kerr-raytracer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "Configuration file (.yaml, .yml, .ini, .cfg or .par)")
	fs.StringVar(&opts.outPath, "out", "", "Output PNG (default output/render_<timestamp>.png)")
	fs.StringVar(&opts.diagnostics, "diagnostics", "", "Write per-pixel diagnostics CSV to this path")
	fs.StringVar(&opts.metrics, "metrics", "", "Write prometheus metrics in text format to this path")
	fs.StringVar(&opts.saveConfig, "save-config", "", "Write the resolved configuration as YAML to this path")
	fs.IntVar(&opts.workers, "workers", 0, "Number of parallel workers (0 = use the config value)")
	fs.Usage = func() {
		fmt.Fprintln(output, "Kerr Raytracer")
		fmt.Fprintln(output, "Usage: kerr-raytracer -config <file> [options]")
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(output)
		fmt.Fprintln(output, "The configuration must set camera.normalization to 'camera' or 'infinity'.")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.outPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		opts.outPath = filepath.Join("output", fmt.Sprintf("render_%s.png", timestamp))
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, core.NewDefaultLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run renders the formula model described by the configuration and writes
// every requested output
func run(ctx context.Context, opts options, logger core.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.saveConfig != "" {
		if err := cfg.WriteYAML(opts.saveConfig); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	startTime := time.Now()
	result, err := renderer.Render(ctx, cfg, nil, renderer.Options{
		Logger:  logger,
		Metrics: telemetry.NewMetrics(registry),
		Workers: opts.workers,
	})
	if err != nil {
		return err
	}

	total := result.Total()
	logger.Printf("Render %s completed in %v: %d rays over %d levels, %.1f steps/ray\n",
		result.RunID, time.Since(startTime), total.Rays, len(result.Levels), total.AverageSteps())

	if err := writePNG(opts.outPath, intensityImage(result)); err != nil {
		return err
	}
	logger.Printf("Render saved as %s\n", opts.outPath)

	if opts.diagnostics != "" {
		if err := telemetry.WriteDiagnosticsFile(opts.diagnostics, result.Diagnostics()); err != nil {
			return err
		}
	}
	if opts.metrics != "" {
		if err := prometheus.WriteToTextfile(opts.metrics, registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// intensityImage maps total intensity linearly onto 16-bit gray, brightest
// pixel white. Result rows run bottom to top, so they are flipped
func intensityImage(result *renderer.Result) *image.Gray16 {
	n := result.Resolution
	img := image.NewGray16(image.Rect(0, 0, n, n))

	peak := 0.0
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			peak = math.Max(peak, result.At(row, col, 0))
		}
	}
	if peak <= 0 {
		return img
	}

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			v := math.Max(0, result.At(row, col, 0)) / peak
			img.SetGray16(col, n-1-row, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return file.Close()
}
