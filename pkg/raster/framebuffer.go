// Package raster implements gpu.Device in software. Triangles, lines and
// points are rasterized with a z-buffer into framebuffers that can be saved
// as images or presented on a terminal.
package raster

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// Framebuffer is a color and depth target. Depth values are window depths in
// [0, 1]; smaller is closer.
type Framebuffer struct {
	Width  int
	Height int
	Pixels []color.RGBA // row-major, row 0 at the top
	Depth  []float64
}

// NewFramebuffer creates a framebuffer cleared to transparent black and far
// depth.
func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{}
	fb.Resize(width, height)
	return fb
}

// Resize reallocates the buffers when the size changes. Contents are lost.
func (fb *Framebuffer) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	if width == fb.Width && height == fb.Height && fb.Pixels != nil {
		return
	}
	fb.Width, fb.Height = width, height
	fb.Pixels = make([]color.RGBA, width*height)
	fb.Depth = make([]float64, width*height)
	fb.ClearDepth()
}

// Clear fills the color buffer.
func (fb *Framebuffer) Clear(c color.RGBA) {
	for i := range fb.Pixels {
		fb.Pixels[i] = c
	}
}

// ClearDepth resets every depth value to the far plane.
func (fb *Framebuffer) ClearDepth() {
	n := len(fb.Depth)
	if n == 0 {
		return
	}
	fb.Depth[0] = 1
	for i := 1; i < n; i *= 2 {
		copy(fb.Depth[i:], fb.Depth[:i])
	}
}

// SetPixel sets the color at (x, y). Out of range writes are ignored.
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns the color at (x, y), or transparent black out of range.
func (fb *Framebuffer) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return color.RGBA{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// DepthAt returns the depth at (x, y), or the far plane out of range.
func (fb *Framebuffer) DepthAt(x, y int) float64 {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return 1
	}
	return fb.Depth[y*fb.Width+x]
}

// DrawLine draws an unblended line from (x0, y0) to (x1, y1).
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	bresenham(x0, y0, x1, y1, func(x, y int) { fb.SetPixel(x, y, c) })
}

// bresenham calls plot for every pixel of the line, endpoints included.
func bresenham(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// fragment writes a shaded color at (x, y) under the depth and blend settings
// of s. It reports whether the fragment was kept.
func (fb *Framebuffer) fragment(x, y int, z float64, c math3d.Vec4, s gpu.State) bool {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return false
	}
	i := y*fb.Width + x
	if s.DepthTest && z > fb.Depth[i] {
		return false
	}
	if s.DepthWrite {
		fb.Depth[i] = z
	}
	fb.Pixels[i] = blend(fb.Pixels[i], c, s.Blending)
	return true
}

func blend(dst color.RGBA, src math3d.Vec4, b gpu.Blending) color.RGBA {
	switch b {
	case gpu.BlendNormal:
		d := fromRGBA(dst)
		return toRGBA(src.Scale(src.W).Add(d.Scale(1 - src.W)))
	case gpu.BlendAdditive:
		d := fromRGBA(dst)
		out := d.Add(src.Scale(src.W))
		out.W = d.W
		return toRGBA(out)
	}
	return toRGBA(src)
}

func fromRGBA(c color.RGBA) math3d.Vec4 {
	return math3d.V4(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, float64(c.A)/255)
}

func toRGBA(v math3d.Vec4) color.RGBA {
	return color.RGBA{channel(v.X), channel(v.Y), channel(v.Z), channel(v.W)}
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// copyFrom copies the overlapping region of src, selected by mask.
func (fb *Framebuffer) copyFrom(src *Framebuffer, width, height int, mask gpu.ClearMask) {
	width = min(width, fb.Width, src.Width)
	height = min(height, fb.Height, src.Height)
	for y := range height {
		d, s := y*fb.Width, y*src.Width
		if mask&gpu.ClearColor != 0 {
			copy(fb.Pixels[d:d+width], src.Pixels[s:s+width])
		}
		if mask&gpu.ClearDepth != 0 {
			copy(fb.Depth[d:d+width], src.Depth[s:s+width])
		}
	}
}

// ToImage copies the color buffer into an image.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for i, c := range fb.Pixels {
		copy(img.Pix[i*4:], []uint8{c.R, c.G, c.B, c.A})
	}
	return img
}

// SavePNG writes the color buffer as a PNG file.
func (fb *Framebuffer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, fb.ToImage())
}
