package camera

import (
	"math"
	"testing"

	"github.com/df07/go-kerr-raytracer/pkg/config"
	"github.com/df07/go-kerr-raytracer/pkg/core"
	"github.com/df07/go-kerr-raytracer/pkg/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelCoordinate(t *testing.T) {
	tests := []struct {
		index, resolution int
		expected          float64
	}{
		{0, 4, -0.375},
		{1, 4, -0.125},
		{2, 4, 0.125},
		{3, 4, 0.375},
		{0, 1, 0},
		{63, 64, 0.5 - 0.5/64},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, PixelCoordinate(tt.index, tt.resolution), 1e-15)
	}
}

func TestEmitters_NullMomentum(t *testing.T) {
	st := metric.New(1, 0.9, false)
	cam := testCamera()
	cam.R = 50
	cam.Theta = 1.3
	cam.Width = 30

	frame, err := NewFrame(st, cam, config.NormalizeCamera)
	require.NoError(t, err)

	for _, kind := range []config.CameraType{config.CameraPlane, config.CameraPinhole} {
		emitter := NewEmitter(frame, st, kind)
		for _, uv := range [][2]float64{{0, 0}, {0.5, -0.5}, {-0.3, 0.1}} {
			pos, mom := emitter.EmitPixel(uv[0], uv[1])
			g := st.Covariant(pos[1], pos[2], pos[3])
			assert.Greater(t, mom[0], 0.0)
			assert.InDelta(t, 0.0, metric.Norm(g, mom)/(mom[0]*mom[0]), 1e-12)
		}
	}
}

func TestPinholeEmitter_SharedPosition(t *testing.T) {
	st := metric.New(1, 0, true)
	frame, err := NewFrame(st, testCamera(), config.NormalizeCamera)
	require.NoError(t, err)
	emitter := NewEmitter(frame, st, config.CameraPinhole)

	pos, mom := emitter.EmitPixel(0.25, 0)
	assert.Equal(t, frame.Position, pos)

	// Right of centre sees light arriving from +y, so k^y < 0
	du := 0.25 * frame.Scale
	dist := math.Hypot(du, frame.Distance)
	assert.InDelta(t, -2e11*du/dist, mom[2], 1)
	assert.InDelta(t, 2e11*frame.Distance/dist, mom[1], 1)
}

func TestPlaneEmitter_OffsetsPosition(t *testing.T) {
	st := metric.New(1, 0, true)
	frame, err := NewFrame(st, testCamera(), config.NormalizeCamera)
	require.NoError(t, err)
	emitter := NewEmitter(frame, st, config.CameraPlane)

	pos, mom := emitter.EmitPixel(0.25, -0.5)
	assertVecInDelta(t, core.NewVec4(0, 100, 5, -10), pos, 1e-12, "position")
	assertVecInDelta(t, core.NewVec4(2e11, 2e11, 0, 0), mom, 1e-3, "momentum")
}

func TestEmitters_AgreeAtLargeDistance(t *testing.T) {
	st := metric.New(1, 0.5, false)
	cam := testCamera()
	cam.R = 1e6
	cam.Theta = 1.0

	frame, err := NewFrame(st, cam, config.NormalizeCamera)
	require.NoError(t, err)
	plane := NewEmitter(frame, st, config.CameraPlane)
	pinhole := NewEmitter(frame, st, config.CameraPinhole)

	pos1, mom1 := plane.EmitPixel(0, 0)
	pos2, mom2 := pinhole.EmitPixel(0, 0)
	assertVecInDelta(t, pos1, pos2, 1e-9, "centre position")
	assertVecInDelta(t, mom1.Multiply(1/mom1[0]), mom2.Multiply(1/mom2[0]), 1e-12, "centre direction")

	for _, uv := range [][2]float64{{0.01, -0.02}, {-0.05, 0.03}} {
		_, mom1 = plane.EmitPixel(uv[0], uv[1])
		_, mom2 = pinhole.EmitPixel(uv[0], uv[1])
		d1 := mom1.Multiply(1 / mom1[0])
		d2 := mom2.Multiply(1 / mom2[0])
		assertVecInDelta(t, d1, d2, 1e-5, "near-centre direction")
	}
}
