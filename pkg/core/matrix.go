// pkg/core/matrix.go
package core

import (
	"math"

	"github.com/golang/geo/r3"
)

// Matrix4 is a 4x4 affine transform stored in column-major order,
// the layout renderers expect for a tileset model matrix.
type Matrix4 [16]float64

// Identity4 returns the identity transform.
func Identity4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at the given row and column.
func (m Matrix4) At(row, col int) float64 {
	return m[col*4+row]
}

// Translation4 returns a pure translation by v.
func Translation4(v r3.Vector) Matrix4 {
	m := Identity4()
	m[12], m[13], m[14] = v.X, v.Y, v.Z
	return m
}

// FromColumns builds a transform from three basis vectors and an origin.
func FromColumns(x, y, z, origin r3.Vector) Matrix4 {
	return Matrix4{
		x.X, x.Y, x.Z, 0,
		y.X, y.Y, y.Z, 0,
		z.X, z.Y, z.Z, 0,
		origin.X, origin.Y, origin.Z, 1,
	}
}

// RotationX returns a right-handed rotation about the X axis.
func RotationX(rad float64) Matrix4 {
	c, s := math.Cos(rad), math.Sin(rad)
	return Matrix4{
		1, 0, 0, 0,
		0, c, s, 0,
		0, -s, c, 0,
		0, 0, 0, 1,
	}
}

// RotationY returns a right-handed rotation about the Y axis.
func RotationY(rad float64) Matrix4 {
	c, s := math.Cos(rad), math.Sin(rad)
	return Matrix4{
		c, 0, -s, 0,
		0, 1, 0, 0,
		s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationZ returns a right-handed rotation about the Z axis.
func RotationZ(rad float64) Matrix4 {
	c, s := math.Cos(rad), math.Sin(rad)
	return Matrix4{
		c, s, 0, 0,
		-s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m·n. Applied to a point, n acts first.
func (m Matrix4) Mul(n Matrix4) Matrix4 {
	var out Matrix4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * n[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// MultiplyPoint transforms p as a position (w = 1).
func (m Matrix4) MultiplyPoint(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		Y: m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		Z: m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

// Origin returns the translation column.
func (m Matrix4) Origin() r3.Vector {
	return r3.Vector{X: m[12], Y: m[13], Z: m[14]}
}

// Column returns basis column i (0..2).
func (m Matrix4) Column(i int) r3.Vector {
	return r3.Vector{X: m[i*4], Y: m[i*4+1], Z: m[i*4+2]}
}

// InverseRigid inverts a rotation+translation transform.
// The upper 3x3 block must be orthonormal.
func (m Matrix4) InverseRigid() Matrix4 {
	x, y, z := m.Column(0), m.Column(1), m.Column(2)
	t := m.Origin()
	return Matrix4{
		x.X, y.X, z.X, 0,
		x.Y, y.Y, z.Y, 0,
		x.Z, y.Z, z.Z, 0,
		-x.Dot(t), -y.Dot(t), -z.Dot(t), 1,
	}
}

// ApproxEqual reports whether every element differs by at most eps.
func (m Matrix4) ApproxEqual(n Matrix4, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-n[i]) > eps {
			return false
		}
	}
	return true
}
