// Package webgl implements gpu.Device on a WebGL2 rendering context for
// js/wasm builds, and ObjectURLs on browser blob URLs.
//
// The translation tables in this file build on every platform so they can be
// tested natively.
package webgl

import (
	"encoding/binary"
	"image/color"

	"github.com/chewxy/math32"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// WebGL2 enum values.
const (
	glPoints        = 0x0000
	glLines         = 0x0001
	glTriangles     = 0x0004
	glTriangleStrip = 0x0005

	glZero             = 0
	glOne              = 1
	glSrcAlpha         = 0x0302
	glOneMinusSrcAlpha = 0x0303

	glFront        = 0x0404
	glBack         = 0x0405
	glFrontAndBack = 0x0408

	glDepthBufferBit = 0x0100
	glColorBufferBit = 0x4000

	glNearest            = 0x2600
	glLinear             = 0x2601
	glLinearMipmapLinear = 0x2703
	glRepeat             = 0x2901
	glClampToEdge        = 0x812F
	glMirroredRepeat     = 0x8370
)

func drawMode(m gpu.DrawMode) int {
	switch m {
	case gpu.Points:
		return glPoints
	case gpu.Lines:
		return glLines
	case gpu.TriangleStrip:
		return glTriangleStrip
	}
	return glTriangles
}

func filter(f gpu.Filter) int {
	switch f {
	case gpu.FilterNearest:
		return glNearest
	case gpu.FilterLinearMipmapLinear:
		return glLinearMipmapLinear
	}
	return glLinear
}

// magFilter maps f for magnification, which cannot use mipmaps.
func magFilter(f gpu.Filter) int {
	if f == gpu.FilterNearest {
		return glNearest
	}
	return glLinear
}

func wrap(w gpu.Wrap) int {
	switch w {
	case gpu.WrapClamp:
		return glClampToEdge
	case gpu.WrapMirror:
		return glMirroredRepeat
	}
	return glRepeat
}

// blendFunc returns the source and destination factors for b.
func blendFunc(b gpu.Blending) (src, dst int) {
	switch b {
	case gpu.BlendNormal:
		return glSrcAlpha, glOneMinusSrcAlpha
	case gpu.BlendAdditive:
		return glSrcAlpha, glOne
	}
	return glOne, glZero
}

// cullFace returns the faces culled by s, or false when culling is off.
func cullFace(s gpu.State) (face int, enabled bool) {
	switch {
	case s.CullFront && s.CullBack:
		return glFrontAndBack, true
	case s.CullFront:
		return glFront, true
	case s.CullBack:
		return glBack, true
	}
	return 0, false
}

func clearBits(m gpu.ClearMask) int {
	bits := 0
	if m&gpu.ClearColor != 0 {
		bits |= glColorBufferBit
	}
	if m&gpu.ClearDepth != 0 {
		bits |= glDepthBufferBit
	}
	return bits
}

// uniformKind selects the uniform upload call.
type uniformKind int

const (
	uniformUnknown uniformKind = iota
	uniform1f
	uniform2f
	uniform3f
	uniform4f
	uniform1i
	uniformMat4
	uniformFloats // float array
)

// uniformValue flattens a uniform value into floats or ints.
func uniformValue(v any) (uniformKind, []float32, int32) {
	switch u := v.(type) {
	case float32:
		return uniform1f, []float32{u}, 0
	case float64:
		return uniform1f, []float32{float32(u)}, 0
	case int32:
		return uniform1i, nil, u
	case int:
		return uniform1i, nil, int32(u)
	case bool:
		if u {
			return uniform1i, nil, 1
		}
		return uniform1i, nil, 0
	case math3d.Vec2:
		return uniform2f, []float32{float32(u.X), float32(u.Y)}, 0
	case math3d.Vec3:
		return uniform3f, []float32{float32(u.X), float32(u.Y), float32(u.Z)}, 0
	case math3d.Vec4:
		return uniform4f, []float32{float32(u.X), float32(u.Y), float32(u.Z), float32(u.W)}, 0
	case color.RGBA:
		return uniform4f, []float32{float32(u.R) / 255, float32(u.G) / 255, float32(u.B) / 255, float32(u.A) / 255}, 0
	case math3d.Mat4:
		f := u.Float32s()
		return uniformMat4, f[:], 0
	case [16]float32:
		return uniformMat4, u[:], 0
	case []float32:
		return uniformFloats, u, 0
	}
	return uniformUnknown, nil, 0
}

// float32Bytes packs fs little-endian, the layout typed arrays use on every
// wasm host.
func float32Bytes(fs []float32) []byte {
	out := make([]byte, 4*len(fs))
	for i, f := range fs {
		binary.LittleEndian.PutUint32(out[i*4:], math32.Float32bits(f))
	}
	return out
}

func uint32Bytes(us []uint32) []byte {
	out := make([]byte, 4*len(us))
	for i, u := range us {
		binary.LittleEndian.PutUint32(out[i*4:], u)
	}
	return out
}
