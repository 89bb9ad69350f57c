package webgl

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

func TestDrawMode(t *testing.T) {
	assert.Equal(t, glTriangles, drawMode(gpu.Triangles))
	assert.Equal(t, glLines, drawMode(gpu.Lines))
	assert.Equal(t, glPoints, drawMode(gpu.Points))
	assert.Equal(t, glTriangleStrip, drawMode(gpu.TriangleStrip))
}

func TestSamplerEnums(t *testing.T) {
	assert.Equal(t, glLinearMipmapLinear, filter(gpu.FilterLinearMipmapLinear))
	assert.Equal(t, glLinear, magFilter(gpu.FilterLinearMipmapLinear))
	assert.Equal(t, glNearest, magFilter(gpu.FilterNearest))
	assert.Equal(t, glRepeat, wrap(gpu.WrapRepeat))
	assert.Equal(t, glClampToEdge, wrap(gpu.WrapClamp))
	assert.Equal(t, glMirroredRepeat, wrap(gpu.WrapMirror))
}

func TestStateEnums(t *testing.T) {
	tests := []struct {
		name    string
		state   gpu.State
		face    int
		enabled bool
	}{
		{"none", gpu.State{}, 0, false},
		{"back", gpu.State{CullBack: true}, glBack, true},
		{"front", gpu.State{CullFront: true}, glFront, true},
		{"both", gpu.State{CullFront: true, CullBack: true}, glFrontAndBack, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			face, enabled := cullFace(tc.state)
			assert.Equal(t, tc.face, face)
			assert.Equal(t, tc.enabled, enabled)
		})
	}

	src, dst := blendFunc(gpu.BlendAdditive)
	assert.Equal(t, []int{glSrcAlpha, glOne}, []int{src, dst})
	src, dst = blendFunc(gpu.BlendNormal)
	assert.Equal(t, []int{glSrcAlpha, glOneMinusSrcAlpha}, []int{src, dst})

	assert.Equal(t, glColorBufferBit|glDepthBufferBit, clearBits(gpu.ClearColor|gpu.ClearDepth))
	assert.Equal(t, glDepthBufferBit, clearBits(gpu.ClearDepth))
}

func TestUniformValue(t *testing.T) {
	kind, fs, _ := uniformValue(math3d.V4(1, 2, 3, 4))
	assert.Equal(t, uniform4f, kind)
	assert.Equal(t, []float32{1, 2, 3, 4}, fs)

	kind, fs, _ = uniformValue(math3d.Translate(math3d.V3(5, 6, 7)))
	assert.Equal(t, uniformMat4, kind)
	assert.Equal(t, []float32{5, 6, 7}, fs[12:15])

	kind, _, i := uniformValue(int32(3))
	assert.Equal(t, uniform1i, kind)
	assert.Equal(t, int32(3), i)

	kind, fs, _ = uniformValue(0.5)
	assert.Equal(t, uniform1f, kind)
	assert.Equal(t, []float32{0.5}, fs)

	kind, _, _ = uniformValue("nope")
	assert.Equal(t, uniformUnknown, kind)
}

func TestPacking(t *testing.T) {
	b := float32Bytes([]float32{1.5, -2})
	assert.Len(t, b, 8)
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(b)))
	assert.Equal(t, float32(-2), math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))

	assert.Equal(t, []byte{1, 0, 0, 0, 0, 1, 0, 0}, uint32Bytes([]uint32{1, 256}))
}
