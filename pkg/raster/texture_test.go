package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/lumen/pkg/gpu"
)

// checker builds a 2x2 texture: red, green on top and blue, white below.
func checker() *gpu.Texture {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})
	return gpu.NewTextureFromImage("checker", img)
}

func TestWrapPixel(t *testing.T) {
	tests := []struct {
		name string
		x    int
		mode gpu.Wrap
		want int
	}{
		{"repeat inside", 2, gpu.WrapRepeat, 2},
		{"repeat over", 5, gpu.WrapRepeat, 1},
		{"repeat negative", -1, gpu.WrapRepeat, 3},
		{"clamp low", -3, gpu.WrapClamp, 0},
		{"clamp high", 9, gpu.WrapClamp, 3},
		{"mirror first period", 2, gpu.WrapMirror, 2},
		{"mirror reflected", 4, gpu.WrapMirror, 3},
		{"mirror reflected end", 7, gpu.WrapMirror, 0},
		{"mirror negative", -1, gpu.WrapMirror, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, wrapPixel(tc.x, 4, tc.mode))
		})
	}
}

func TestSamplerNearest(t *testing.T) {
	tex := checker()
	tex.MagFilter = gpu.FilterNearest
	s := newSampler(tex)

	assert.Equal(t, red, s.Sample(0.25, 0.25))
	assert.Equal(t, green, s.Sample(0.75, 0.25))
	assert.Equal(t, blue, s.Sample(0.25, 0.75))
	// Repeat wraps past the edge.
	assert.Equal(t, red, s.Sample(1.25, -0.75))

	tex.FlipY = true
	s = newSampler(tex)
	assert.Equal(t, blue, s.Sample(0.25, 0.25))
}

func TestSamplerBilinear(t *testing.T) {
	tex := checker()
	tex.WrapS, tex.WrapT = gpu.WrapClamp, gpu.WrapClamp
	s := newSampler(tex)

	// Texel centers sample exactly.
	assert.InDelta(t, 1, s.Sample(0.25, 0.25).X, 1e-9)

	// The middle averages all four texels.
	mid := s.Sample(0.5, 0.5)
	assert.InDelta(t, 0.5, mid.X, 1e-9)
	assert.InDelta(t, 0.5, mid.Y, 1e-9)
	assert.InDelta(t, 0.5, mid.Z, 1e-9)
}

func TestSamplerCopiesPixels(t *testing.T) {
	tex := checker()
	tex.MagFilter = gpu.FilterNearest
	s := newSampler(tex)
	tex.Pixels().SetRGBA(0, 0, color.RGBA{0, 0, 0, 255})
	assert.Equal(t, red, s.Sample(0.25, 0.25))
}

func TestSamplerPlaceholder(t *testing.T) {
	s := newSampler(gpu.NewTexture("pending"))
	c := s.Sample(0.3, 0.7)
	assert.InDelta(t, 1, c.X, 1e-9)
	assert.InDelta(t, 1, c.W, 1e-9)
}

func TestSamplerSubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{0, 255, 0, 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	tex := gpu.NewTextureFromImage("sub", sub)
	tex.MagFilter = gpu.FilterNearest

	assert.Equal(t, green, newSampler(tex).Sample(0.1, 0.1))
}
