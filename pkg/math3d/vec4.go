package math3d

import "math"

// Vec4 is a homogeneous point, a clip-space vertex or an RGBA color.
type Vec4 struct {
	X, Y, Z, W float64
}

func V4(x, y, z, w float64) Vec4 {
	return Vec4{x, y, z, w}
}

// Vec3 drops W without dividing.
func (v Vec4) Vec3() Vec3 { return Vec3{v.X, v.Y, v.Z} }

func (v Vec4) Add(o Vec4) Vec4 { return Vec4{v.X + o.X, v.Y + o.Y, v.Z + o.Z, v.W + o.W} }

func (v Vec4) Sub(o Vec4) Vec4 { return Vec4{v.X - o.X, v.Y - o.Y, v.Z - o.Z, v.W - o.W} }

func (v Vec4) Scale(s float64) Vec4 { return Vec4{v.X * s, v.Y * s, v.Z * s, v.W * s} }

// Mul multiplies component-wise, which modulates colors.
func (v Vec4) Mul(o Vec4) Vec4 { return Vec4{v.X * o.X, v.Y * o.Y, v.Z * o.Z, v.W * o.W} }

func (v Vec4) Dot(o Vec4) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z + v.W*o.W }

func (v Vec4) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Lerp interpolates from v to o; t is not clamped.
func (v Vec4) Lerp(o Vec4, t float64) Vec4 { return v.Add(o.Sub(v).Scale(t)) }
