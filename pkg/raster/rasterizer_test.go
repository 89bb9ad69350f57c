package raster

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// flat returns a shader that ignores interpolated values.
func flat(c math3d.Vec4) shader {
	return func(math3d.Vec2, math3d.Vec4) math3d.Vec4 { return c }
}

// tinted returns a shader that outputs the interpolated tint.
func tinted(_ math3d.Vec2, tint math3d.Vec4) math3d.Vec4 { return tint }

func ndc(x, y, z float64, tint math3d.Vec4) vertex {
	return vertex{clip: math3d.V4(x, y, z, 1), tint: tint}
}

func newTestRasterizer(width, height int, s gpu.State, sh shader) *rasterizer {
	fb := NewFramebuffer(width, height)
	fb.Clear(color.RGBA{0, 0, 0, 255})
	return &rasterizer{fb: fb, state: s, shade: sh}
}

func covered(fb *Framebuffer) int {
	n := 0
	for _, c := range fb.Pixels {
		if c.R > 0 || c.G > 0 || c.B > 0 {
			n++
		}
	}
	return n
}

var (
	red   = math3d.V4(1, 0, 0, 1)
	green = math3d.V4(0, 1, 0, 1)
	blue  = math3d.V4(0, 0, 1, 1)
)

func TestBarycentric(t *testing.T) {
	tests := []struct {
		name     string
		px, py   float64
		expected math3d.Vec3
	}{
		{"vertex 0", 0, 0, math3d.V3(1, 0, 0)},
		{"vertex 1", 1, 0, math3d.V3(0, 1, 0)},
		{"vertex 2", 0, 1, math3d.V3(0, 0, 1)},
		{"centroid", 1.0 / 3, 1.0 / 3, math3d.V3(1.0/3, 1.0/3, 1.0/3)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bc := barycentric(0, 0, 1, 0, 0, 1, tc.px, tc.py)
			assert.InDelta(t, tc.expected.X, bc.X, 0.001)
			assert.InDelta(t, tc.expected.Y, bc.Y, 0.001)
			assert.InDelta(t, tc.expected.Z, bc.Z, 0.001)
		})
	}

	t.Run("outside triangle", func(t *testing.T) {
		bc := barycentric(0, 0, 1, 0, 0, 1, -1, -1)
		assert.False(t, bc.X >= 0 && bc.Y >= 0 && bc.Z >= 0)
	})
}

func TestMin3Max3(t *testing.T) {
	assert.Equal(t, 1.0, min3(3, 1, 2))
	assert.Equal(t, 3.0, max3(3, 1, 2))
}

func TestTriangleFacing(t *testing.T) {
	ccw := [3]vertex{ndc(-1, -1, 0, red), ndc(1, -1, 0, red), ndc(0, 1, 0, red)}
	cw := [3]vertex{ccw[0], ccw[2], ccw[1]}

	tests := []struct {
		name  string
		state gpu.State
		tri   [3]vertex
		drawn bool
	}{
		{"front, cull back", gpu.State{CullBack: true}, ccw, true},
		{"back, cull back", gpu.State{CullBack: true}, cw, false},
		{"front, cull front", gpu.State{CullFront: true}, ccw, false},
		{"back, cull front", gpu.State{CullFront: true}, cw, true},
		{"back, no culling", gpu.State{}, cw, true},
		{"cull both", gpu.State{CullFront: true, CullBack: true}, ccw, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRasterizer(32, 32, tc.state, tinted)
			r.triangle(tc.tri[0], tc.tri[1], tc.tri[2])
			if tc.drawn {
				assert.Positive(t, covered(r.fb))
				assert.Equal(t, r.fragments, covered(r.fb))
			} else {
				assert.Zero(t, covered(r.fb))
			}
		})
	}
}

func TestTriangleInterpolatesTint(t *testing.T) {
	r := newTestRasterizer(64, 64, gpu.State{}, tinted)
	r.triangle(ndc(-1, -1, 0, red), ndc(1, -1, 0, green), ndc(-1, 1, 0, blue))

	// Bottom-left corner is closest to the red vertex.
	c := r.fb.GetPixel(1, 62)
	assert.Greater(t, c.R, c.G)
	assert.Greater(t, c.R, c.B)

	// Near the top-left corner the blue vertex dominates.
	c = r.fb.GetPixel(1, 10)
	assert.Greater(t, c.B, c.R)
	assert.Greater(t, c.B, c.G)
}

func TestTriangleDepthTest(t *testing.T) {
	near := [3]vertex{ndc(-1, -1, -0.5, red), ndc(1, -1, -0.5, red), ndc(0, 1, -0.5, red)}
	far := [3]vertex{ndc(-1, -1, 0.5, blue), ndc(1, -1, 0.5, blue), ndc(0, 1, 0.5, blue)}

	for _, order := range [][2][3]vertex{{near, far}, {far, near}} {
		r := newTestRasterizer(16, 16, gpu.State{DepthTest: true, DepthWrite: true}, tinted)
		for _, tri := range order {
			r.triangle(tri[0], tri[1], tri[2])
		}
		c := r.fb.GetPixel(8, 10)
		assert.Equal(t, uint8(255), c.R)
		assert.Zero(t, c.B)
		assert.InDelta(t, 0.25, r.fb.DepthAt(8, 10), 1e-9)
	}
}

func TestTriangleWithoutDepthWrite(t *testing.T) {
	r := newTestRasterizer(16, 16, gpu.State{DepthTest: true}, tinted)
	r.triangle(ndc(-1, -1, 0, red), ndc(1, -1, 0, red), ndc(0, 1, 0, red))
	assert.Positive(t, covered(r.fb))
	assert.Equal(t, 1.0, r.fb.DepthAt(8, 10))
}

func TestTriangleClippedByNearPlane(t *testing.T) {
	r := newTestRasterizer(32, 32, gpu.State{}, tinted)
	// Entirely between the eye and the near plane.
	behind := func(x, y float64) vertex { return vertex{clip: math3d.V4(x, y, -2, 1), tint: red} }
	r.triangle(behind(-1, -1), behind(1, -1), behind(0, 1))
	assert.Zero(t, covered(r.fb))

	// One vertex past the near plane: the remaining part still draws.
	r.triangle(
		vertex{clip: math3d.V4(-0.5, -0.5, 0, 1), tint: red},
		vertex{clip: math3d.V4(0.5, -0.5, 0, 1), tint: red},
		vertex{clip: math3d.V4(0, 0.5, -3, 1), tint: red},
	)
	assert.Positive(t, covered(r.fb))
}

func TestClipNear(t *testing.T) {
	in := []vertex{
		{clip: math3d.V4(0, 0, 0, 1)},
		{clip: math3d.V4(1, 0, 0, 1)},
		{clip: math3d.V4(0, 1, -3, 1)},
	}
	out := clipNear(in)
	require.Len(t, out, 4)
	for _, v := range out {
		assert.GreaterOrEqual(t, v.nearDistance(), -1e-9)
	}
}

func TestBlending(t *testing.T) {
	half := math3d.V4(1, 0, 0, 0.5)
	tests := []struct {
		name string
		mode gpu.Blending
		want color.RGBA
	}{
		{"none", gpu.BlendNone, color.RGBA{255, 0, 0, 128}},
		{"normal", gpu.BlendNormal, color.RGBA{128, 0, 128, 191}},
		{"additive", gpu.BlendAdditive, color.RGBA{128, 0, 255, 255}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := blend(color.RGBA{0, 0, 255, 255}, half, tc.mode)
			assert.InDelta(t, tc.want.R, got.R, 1)
			assert.InDelta(t, tc.want.G, got.G, 1)
			assert.InDelta(t, tc.want.B, got.B, 1)
			assert.InDelta(t, tc.want.A, got.A, 1)
		})
	}
}

func TestLine(t *testing.T) {
	r := newTestRasterizer(16, 16, gpu.State{}, tinted)
	r.line(ndc(-1, 0, 0, green), ndc(1, 0, 0, green))
	assert.Equal(t, 16, r.fragments)
	for x := range 16 {
		assert.Equal(t, uint8(255), r.fb.GetPixel(x, 8).G)
	}

	// Lines behind the near plane disappear.
	r = newTestRasterizer(16, 16, gpu.State{}, tinted)
	r.line(vertex{clip: math3d.V4(0, 0, -2, 1)}, vertex{clip: math3d.V4(1, 0, -2, 1)})
	assert.Zero(t, r.fragments)
}

func TestPoints(t *testing.T) {
	r := newTestRasterizer(16, 16, gpu.State{}, flat(red))
	r.point(ndc(0, 0, 0, red))
	assert.Equal(t, 1, r.fragments)
	assert.Equal(t, uint8(255), r.fb.GetPixel(8, 8).R)

	r = newTestRasterizer(16, 16, gpu.State{}, flat(red))
	r.pointSize = 0.5
	r.point(ndc(0, 0, 0, red))
	assert.Greater(t, r.fragments, 1)
	center, edge := r.fb.GetPixel(8, 8), r.fb.GetPixel(5, 8)
	assert.Greater(t, center.R, edge.R)

	// Behind the camera.
	r = newTestRasterizer(16, 16, gpu.State{}, flat(red))
	r.point(vertex{clip: math3d.V4(0, 0, 0, -1)})
	assert.Zero(t, r.fragments)
}
