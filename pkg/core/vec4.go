package core

import "math"

// Vec4 represents a spacetime vector or point with components (t, x, y, z)
type Vec4 [4]float64

// Mat4 represents a rank-2 spacetime tensor, such as a metric
type Mat4 [4][4]float64

// NewVec4 creates a new Vec4
func NewVec4(t, x, y, z float64) Vec4 {
	return Vec4{t, x, y, z}
}

// Add returns the sum of two vectors
func (v Vec4) Add(other Vec4) Vec4 {
	return Vec4{v[0] + other[0], v[1] + other[1], v[2] + other[2], v[3] + other[3]}
}

// Subtract returns the difference of two vectors
func (v Vec4) Subtract(other Vec4) Vec4 {
	return Vec4{v[0] - other[0], v[1] - other[1], v[2] - other[2], v[3] - other[3]}
}

// Multiply returns the vector scaled by a scalar
func (v Vec4) Multiply(scalar float64) Vec4 {
	return Vec4{v[0] * scalar, v[1] * scalar, v[2] * scalar, v[3] * scalar}
}

// SpatialRadius returns the Euclidean length of the spatial part
func (v Vec4) SpatialRadius() float64 {
	return math.Sqrt(v[1]*v[1] + v[2]*v[2] + v[3]*v[3])
}

// IsFinite reports whether every component is neither NaN nor infinite
func (v Vec4) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Lower contracts a contravariant vector with a covariant metric
func (g *Mat4) Lower(v Vec4) Vec4 {
	var out Vec4
	for mu := 0; mu < 4; mu++ {
		for nu := 0; nu < 4; nu++ {
			out[mu] += g[mu][nu] * v[nu]
		}
	}
	return out
}

// Raise contracts a covariant vector with a contravariant metric
// It is the same contraction as Lower; the name documents intent
func (g *Mat4) Raise(v Vec4) Vec4 {
	return g.Lower(v)
}

// Contract returns g_{μν} a^μ b^ν
func (g *Mat4) Contract(a, b Vec4) float64 {
	sum := 0.0
	for mu := 0; mu < 4; mu++ {
		for nu := 0; nu < 4; nu++ {
			sum += g[mu][nu] * a[mu] * b[nu]
		}
	}
	return sum
}

// Dot returns the plain component sum a_μ b^μ of a covector and a vector
func Dot(a, b Vec4) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

// MulVec returns the matrix-vector product m v
func (m *Mat4) MulVec(v Vec4) Vec4 {
	return m.Lower(v)
}

// Minkowski returns the flat metric diag(-1, 1, 1, 1), which is its own inverse
func Minkowski() Mat4 {
	return Mat4{
		{-1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}
