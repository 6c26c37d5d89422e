package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRay("escaped", 120, false)
	m.ObserveRay("escaped", 80, false)
	m.ObserveRay("step_limit", 20000, true)
	m.AddFallbacks(3)
	m.AddFallbacks(0)
	m.AddBlocks(0, 1)
	m.AddBlocks(1, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rays.WithLabelValues("escaped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rays.WithLabelValues("step_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalid))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fallbacks))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.blocks.WithLabelValues("1")))

	count, err := testutil.GatherAndCount(reg, "kerr_geodesic_steps")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRay("captured", 10, false)
		m.AddFallbacks(2)
		m.AddBlocks(0, 1)
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestWriteDiagnostics(t *testing.T) {
	records := []PixelRecord{
		{Level: 0, Row: 0, Col: 1, Status: "escaped", Steps: 311, Fallbacks: 2, NullResidual: 1e-9, I: 0.25},
		{Level: 1, Row: 5, Col: 3, Status: "step_limit", Steps: 9, Invalid: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDiagnostics(&buf, records))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "level,row,col,status,steps,invalid,fallbacks,null_residual,i", lines[0])

	var back []PixelRecord
	require.NoError(t, gocsv.UnmarshalString(buf.String(), &back))
	assert.Equal(t, records, back)
}

func TestWriteDiagnosticsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.csv")
	require.NoError(t, WriteDiagnosticsFile(path, []PixelRecord{{Status: "captured"}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "captured")

	err = WriteDiagnosticsFile(filepath.Join(t.TempDir(), "missing", "diag.csv"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
