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

func testCamera() config.CameraConfig {
	return config.CameraConfig{
		R:          100,
		Theta:      math.Pi / 2,
		KR:         1,
		Width:      20,
		Resolution: 32,
		Frequency:  2e11,
	}
}

func assertVecInDelta(t *testing.T, expected, actual core.Vec4, delta float64, msg string) {
	t.Helper()
	for i := 0; i < 4; i++ {
		assert.InDelta(t, expected[i], actual[i], delta, "%s component %d", msg, i)
	}
}

func TestNewFrame_FlatStationary(t *testing.T) {
	st := metric.New(1, 0, true)
	frame, err := NewFrame(st, testCamera(), config.NormalizeCamera)
	require.NoError(t, err)

	assertVecInDelta(t, core.NewVec4(0, 100, 0, 0), frame.Position, 1e-12, "position")
	assertVecInDelta(t, core.NewVec4(1, 0, 0, 0), frame.UCon, 1e-12, "u^μ")
	assertVecInDelta(t, core.NewVec4(1, 1, 0, 0), frame.NormalC, 1e-12, "normal")
	assertVecInDelta(t, core.NewVec4(0, 0, 1, 0), frame.HorizontalC, 1e-12, "horizontal")
	assertVecInDelta(t, core.NewVec4(0, 0, 0, 1), frame.VerticalC, 1e-12, "vertical")
	assert.InDelta(t, 2e11, frame.MomentumFactor, 1e-3)
	assert.Equal(t, 20.0, frame.Scale)
}

func TestNewFrame_PoleAndRotation(t *testing.T) {
	st := metric.New(1, 0, true)

	cam := testCamera()
	cam.Pole = true
	frame, err := NewFrame(st, cam, config.NormalizeCamera)
	require.NoError(t, err)
	assertVecInDelta(t, core.NewVec4(0, 0, 1, 0), frame.VerticalC, 1e-12, "pole vertical")
	assertVecInDelta(t, core.NewVec4(0, 0, 0, -1), frame.HorizontalC, 1e-12, "pole horizontal")

	cam = testCamera()
	cam.Rotation = math.Pi / 2
	frame, err = NewFrame(st, cam, config.NormalizeCamera)
	require.NoError(t, err)
	assertVecInDelta(t, core.NewVec4(0, 0, 0, -1), frame.HorizontalC, 1e-12, "rotated horizontal")
	assertVecInDelta(t, core.NewVec4(0, 0, 1, 0), frame.VerticalC, 1e-12, "rotated vertical")
}

func TestNewFrame_KerrTetradIsOrthonormal(t *testing.T) {
	st := metric.New(1, 0.7, false)
	cam := testCamera()
	cam.R = 20
	cam.Theta = 1.0
	cam.Phi = 0.5
	cam.URN, cam.UThN, cam.UPhN = 0.01, 0.002, 0.01
	cam.KTheta, cam.KPhi = 0.1, 0.2
	cam.Rotation = 0.3
	cam.Frequency = 1

	frame, err := NewFrame(st, cam, config.NormalizeCamera)
	require.NoError(t, err)

	g := st.Covariant(frame.Position[1], frame.Position[2], frame.Position[3])
	u := frame.UCon
	n := frame.Normal
	h := frame.ToCoordinate(frame.HorizontalC)
	v := frame.Vertical()

	tests := []struct {
		name     string
		a, b     core.Vec4
		expected float64
	}{
		{"u.u", u, u, -1},
		{"n.n", n, n, 0},
		{"n.u", n, u, -1},
		{"h.h", h, h, 1},
		{"v.v", v, v, 1},
		{"h.v", h, v, 0},
		{"h.u", h, u, 0},
		{"v.u", v, u, 0},
		{"h.n", h, n, 0},
		{"v.n", v, n, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, g.Contract(tt.a, tt.b), 1e-10)
		})
	}
}

func TestNewFrame_Normalization(t *testing.T) {
	st := metric.New(1, 0.5, false)
	cam := testCamera()
	cam.R = 30
	cam.Theta = 1.2
	cam.UPhN = 0.02
	cam.Frequency = 3

	for _, tt := range []struct {
		name string
		norm config.Normalization
	}{
		{"camera", config.NormalizeCamera},
		{"infinity", config.NormalizeInfinity},
	} {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(st, cam, tt.norm)
			require.NoError(t, err)

			pos, mom := NewEmitter(frame, st, config.CameraPinhole).EmitPixel(0, 0)
			g := st.Covariant(pos[1], pos[2], pos[3])
			cov := g.Lower(mom)
			if tt.norm == config.NormalizeCamera {
				assert.InDelta(t, 3.0, -core.Dot(cov, frame.UCon), 1e-9)
			} else {
				assert.InDelta(t, 3.0, -cov[0], 1e-9)
			}
		})
	}
}

func TestNewFrame_Errors(t *testing.T) {
	st := metric.New(1, 0, true)

	cam := testCamera()
	cam.Theta = 0
	_, err := NewFrame(st, cam, config.NormalizeCamera)
	assert.Error(t, err, "Jacobian is singular on the axis")

	cam = testCamera()
	cam.KR, cam.KTheta = 0, 1
	_, err = NewFrame(st, cam, config.NormalizeCamera)
	assert.ErrorIs(t, err, core.ErrConfiguration, "line of sight along the up vector")
}
