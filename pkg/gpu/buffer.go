package gpu

import (
	"bytes"
	"encoding/binary"

	"github.com/chewxy/math32"
	"github.com/taigrr/lumen/pkg/math3d"
)

// UniformBuffer is a block of shader constants laid out with std140 rules.
// Writes that do not change any byte leave the version untouched, so an
// unchanged block is never uploaded twice.
type UniformBuffer struct {
	versioned

	// Block is the uniform block name programs declare.
	Block string
	// Binding is the binding point the block is attached to.
	Binding int

	data []byte
}

// NewUniformBuffer creates a zeroed buffer of size bytes.
func NewUniformBuffer(block string, binding, size int) *UniformBuffer {
	return &UniformBuffer{
		versioned: newVersioned(),
		Block:     block,
		Binding:   binding,
		data:      make([]byte, size),
	}
}

// Bytes returns the raw contents. Callers must not modify the slice.
func (b *UniformBuffer) Bytes() []byte {
	return b.data
}

// Size returns the buffer size in bytes.
func (b *UniformBuffer) Size() int {
	return len(b.data)
}

// Resize grows or shrinks the buffer, keeping the common prefix.
func (b *UniformBuffer) Resize(size int) {
	if size == len(b.data) {
		return
	}
	data := make([]byte, size)
	copy(data, b.data)
	b.data = data
	b.touch()
}

func (b *UniformBuffer) put(offset int, src []byte) {
	dst := b.data[offset : offset+len(src)]
	if bytes.Equal(dst, src) {
		return
	}
	copy(dst, src)
	b.touch()
}

// SetFloat writes a float at offset.
func (b *UniformBuffer) SetFloat(offset int, v float32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math32.Float32bits(v))
	b.put(offset, tmp[:])
}

// Float reads the float at offset.
func (b *UniformBuffer) Float(offset int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(b.data[offset:]))
}

// SetVec2 writes two floats at offset.
func (b *UniformBuffer) SetVec2(offset int, v math3d.Vec2) {
	b.setFloats(offset, float32(v.X), float32(v.Y))
}

// SetVec3 writes three floats at offset. The std140 slot is 16 bytes; the
// fourth float is left untouched so it can carry a packed scalar.
func (b *UniformBuffer) SetVec3(offset int, v math3d.Vec3) {
	b.setFloats(offset, float32(v.X), float32(v.Y), float32(v.Z))
}

// SetVec4 writes four floats at offset.
func (b *UniformBuffer) SetVec4(offset int, v math3d.Vec4) {
	b.setFloats(offset, float32(v.X), float32(v.Y), float32(v.Z), float32(v.W))
}

// SetMat4 writes a column-major matrix at offset.
func (b *UniformBuffer) SetMat4(offset int, m math3d.Mat4) {
	f := m.Float32s()
	b.setFloats(offset, f[:]...)
}

// Zero clears n bytes at offset.
func (b *UniformBuffer) Zero(offset, n int) {
	b.put(offset, make([]byte, n))
}

func (b *UniformBuffer) setFloats(offset int, fs ...float32) {
	tmp := make([]byte, 4*len(fs))
	for i, f := range fs {
		binary.LittleEndian.PutUint32(tmp[i*4:], math32.Float32bits(f))
	}
	b.put(offset, tmp)
}

// RenderBuffer describes an offscreen color+depth target.
type RenderBuffer struct {
	versioned

	Name    string
	Width   int
	Height  int
	Samples int
}

// NewRenderBuffer creates a render target descriptor.
func NewRenderBuffer(name string, width, height int) *RenderBuffer {
	return &RenderBuffer{
		versioned: newVersioned(),
		Name:      name,
		Width:     width,
		Height:    height,
	}
}

// SetSize resizes the target. The GPU object is rebuilt on next use.
func (r *RenderBuffer) SetSize(width, height int) {
	if width == r.Width && height == r.Height {
		return
	}
	r.Width, r.Height = width, height
	r.touch()
}
