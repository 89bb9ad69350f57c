package math3d

import "math"

// Mat4 is a 4x4 matrix in column-major order, the layout GLSL and glTF use.
// Element (row, col) is at index row+4*col; the translation of an affine
// transform sits at indices 12, 13 and 14.
type Mat4 [16]float64

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func Translate(v Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = v.X, v.Y, v.Z
	return m
}

func Scale(v Vec3) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = v.X, v.Y, v.Z
	return m
}

// RotateX rotates counter-clockwise around +X when looking down the axis.
func RotateX(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	m := Identity()
	m[5], m[6] = c, s
	m[9], m[10] = -s, c
	return m
}

func RotateY(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	m := Identity()
	m[0], m[2] = c, -s
	m[8], m[10] = s, c
	return m
}

func RotateZ(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	m := Identity()
	m[0], m[1] = c, s
	m[4], m[5] = -s, c
	return m
}

// LookAt returns the view matrix of an eye at eye facing center.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalize()
	r := f.Cross(up).Normalize()
	u := r.Cross(f)
	return Mat4{
		r.X, u.X, -f.X, 0,
		r.Y, u.Y, -f.Y, 0,
		r.Z, u.Z, -f.Z, 0,
		-r.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}

// Perspective returns an OpenGL projection mapping [near, far] to NDC
// [-1, 1]. fovy is the vertical field of view and aspect is width/height.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	depth := 1 / (near - far)
	var m Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = (far + near) * depth
	m[11] = -1
	m[14] = 2 * far * near * depth
	return m
}

// Mul returns a*b: b is applied first.
func (a Mat4) Mul(b Mat4) Mat4 {
	var m Mat4
	for col := range 4 {
		for row := range 4 {
			m[row+col*4] = a[row]*b[col*4] + a[row+4]*b[col*4+1] + a[row+8]*b[col*4+2] + a[row+12]*b[col*4+3]
		}
	}
	return m
}

// MulVec3 transforms a point, dividing by w when the matrix is projective.
func (m Mat4) MulVec3(v Vec3) Vec3 {
	p := m.MulVec4(Vec4{v.X, v.Y, v.Z, 1})
	if p.W == 0 || p.W == 1 {
		return p.Vec3()
	}
	return p.Vec3().Scale(1 / p.W)
}

// MulVec3Dir transforms a direction, ignoring translation.
func (m Mat4) MulVec3Dir(v Vec3) Vec3 {
	return m.MulVec4(Vec4{v.X, v.Y, v.Z, 0}).Vec3()
}

func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for col := range 4 {
		for row := range 4 {
			t[col+row*4] = m[row+col*4]
		}
	}
	return t
}

// minors returns the 2x2 determinants of the top and bottom row pairs that
// both the determinant and the inverse are built from.
func (m Mat4) minors() (s, c [6]float64) {
	s[0] = m[0]*m[5] - m[4]*m[1]
	s[1] = m[0]*m[9] - m[8]*m[1]
	s[2] = m[0]*m[13] - m[12]*m[1]
	s[3] = m[4]*m[9] - m[8]*m[5]
	s[4] = m[4]*m[13] - m[12]*m[5]
	s[5] = m[8]*m[13] - m[12]*m[9]

	c[5] = m[10]*m[15] - m[14]*m[11]
	c[4] = m[6]*m[15] - m[14]*m[7]
	c[3] = m[6]*m[11] - m[10]*m[7]
	c[2] = m[2]*m[15] - m[14]*m[3]
	c[1] = m[2]*m[11] - m[10]*m[3]
	c[0] = m[2]*m[7] - m[6]*m[3]
	return s, c
}

func (m Mat4) Determinant() float64 {
	s, c := m.minors()
	return s[0]*c[5] - s[1]*c[4] + s[2]*c[3] + s[3]*c[2] - s[4]*c[1] + s[5]*c[0]
}

// Inverse returns the inverse, or the identity for a singular matrix.
func (m Mat4) Inverse() Mat4 {
	s, c := m.minors()
	det := s[0]*c[5] - s[1]*c[4] + s[2]*c[3] + s[3]*c[2] - s[4]*c[1] + s[5]*c[0]
	if det == 0 {
		return Identity()
	}
	d := 1 / det

	var inv Mat4
	inv[0] = (m[5]*c[5] - m[9]*c[4] + m[13]*c[3]) * d
	inv[4] = (-m[4]*c[5] + m[8]*c[4] - m[12]*c[3]) * d
	inv[8] = (m[7]*s[5] - m[11]*s[4] + m[15]*s[3]) * d
	inv[12] = (-m[6]*s[5] + m[10]*s[4] - m[14]*s[3]) * d

	inv[1] = (-m[1]*c[5] + m[9]*c[2] - m[13]*c[1]) * d
	inv[5] = (m[0]*c[5] - m[8]*c[2] + m[12]*c[1]) * d
	inv[9] = (-m[3]*s[5] + m[11]*s[2] - m[15]*s[1]) * d
	inv[13] = (m[2]*s[5] - m[10]*s[2] + m[14]*s[1]) * d

	inv[2] = (m[1]*c[4] - m[5]*c[2] + m[13]*c[0]) * d
	inv[6] = (-m[0]*c[4] + m[4]*c[2] - m[12]*c[0]) * d
	inv[10] = (m[3]*s[4] - m[7]*s[2] + m[15]*s[0]) * d
	inv[14] = (-m[2]*s[4] + m[6]*s[2] - m[14]*s[0]) * d

	inv[3] = (-m[1]*c[3] + m[5]*c[1] - m[9]*c[0]) * d
	inv[7] = (m[0]*c[3] - m[4]*c[1] + m[8]*c[0]) * d
	inv[11] = (-m[3]*s[3] + m[7]*s[1] - m[11]*s[0]) * d
	inv[15] = (m[2]*s[3] - m[6]*s[1] + m[10]*s[0]) * d
	return inv
}

// Translation returns the translation of an affine transform.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// Compose builds a transform that scales, then rotates, then translates.
func Compose(position Vec3, rotation Quat, scale Vec3) Mat4 {
	m := rotation.Mat4()
	for i := range 3 {
		m[i] *= scale.X
		m[4+i] *= scale.Y
		m[8+i] *= scale.Z
	}
	m[12], m[13], m[14] = position.X, position.Y, position.Z
	return m
}

// FromSlice builds a matrix from 16 column-major values, as stored by glTF.
// Missing trailing values are taken from the identity matrix.
func FromSlice(v []float32) Mat4 {
	m := Identity()
	for i := 0; i < len(v) && i < 16; i++ {
		m[i] = float64(v[i])
	}
	return m
}

// Float32s returns the matrix as float32 values in column-major order.
func (m Mat4) Float32s() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}
