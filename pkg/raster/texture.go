package raster

import (
	"image"
	"math"
	"slices"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// sampler is an uploaded texture: a private copy of the pixels plus the
// sampling parameters at upload time.
type sampler struct {
	width, height int
	pix           []uint8
	wrapS, wrapT  gpu.Wrap
	nearest       bool
	flipY         bool
}

func newSampler(t *gpu.Texture) *sampler {
	img := t.Pixels()
	b := img.Bounds()
	s := &sampler{
		width:   b.Dx(),
		height:  b.Dy(),
		wrapS:   t.WrapS,
		wrapT:   t.WrapT,
		nearest: t.MagFilter == gpu.FilterNearest,
		flipY:   t.FlipY,
	}
	s.pix = pixels(img)
	return s
}

func pixels(img *image.RGBA) []uint8 {
	b := img.Bounds()
	if img.Stride == b.Dx()*4 {
		return slices.Clone(img.Pix[:b.Dx()*b.Dy()*4])
	}
	out := make([]uint8, 0, b.Dx()*b.Dy()*4)
	for y := range b.Dy() {
		row := img.Pix[y*img.Stride:]
		out = append(out, row[:b.Dx()*4]...)
	}
	return out
}

// Sample returns the color at texture coordinates (u, v). v = 0 is the top
// row of the image unless the texture was flipped.
func (s *sampler) Sample(u, v float64) math3d.Vec4 {
	if s.width == 0 || s.height == 0 {
		return math3d.V4(1, 1, 1, 1)
	}
	if s.flipY {
		v = 1 - v
	}
	if s.nearest {
		return s.sampleNearest(u, v)
	}
	return s.sampleBilinear(u, v)
}

func (s *sampler) sampleNearest(u, v float64) math3d.Vec4 {
	x := wrapPixel(int(math.Floor(u*float64(s.width))), s.width, s.wrapS)
	y := wrapPixel(int(math.Floor(v*float64(s.height))), s.height, s.wrapT)
	return s.texel(x, y)
}

func (s *sampler) sampleBilinear(u, v float64) math3d.Vec4 {
	fx := u*float64(s.width) - 0.5
	fy := v*float64(s.height) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapPixel(x0+1, s.width, s.wrapS)
	y1 := wrapPixel(y0+1, s.height, s.wrapT)
	x0 = wrapPixel(x0, s.width, s.wrapS)
	y0 = wrapPixel(y0, s.height, s.wrapT)

	top := s.texel(x0, y0).Lerp(s.texel(x1, y0), tx)
	bot := s.texel(x0, y1).Lerp(s.texel(x1, y1), tx)
	return top.Lerp(bot, ty)
}

func (s *sampler) texel(x, y int) math3d.Vec4 {
	i := (y*s.width + x) * 4
	p := s.pix[i : i+4 : i+4]
	return math3d.V4(float64(p[0])/255, float64(p[1])/255, float64(p[2])/255, float64(p[3])/255)
}

// wrapPixel maps a texel coordinate into [0, size).
func wrapPixel(x, size int, mode gpu.Wrap) int {
	switch mode {
	case gpu.WrapClamp:
		return min(max(x, 0), size-1)
	case gpu.WrapMirror:
		period := 2 * size
		x %= period
		if x < 0 {
			x += period
		}
		if x >= size {
			x = period - 1 - x
		}
		return x
	}
	x %= size
	if x < 0 {
		x += size
	}
	return x
}
