package render

import "github.com/taigrr/lumen/pkg/math3d"

// Options configures a Renderer.
type Options struct {
	// Width and Height are the initial drawing buffer size in pixels.
	Width  int
	Height int

	// PixelRatio is written to the window block for programs that size
	// points or lines in CSS pixels.
	PixelRatio float64

	// ClearColor is the background, RGBA in [0, 1].
	ClearColor math3d.Vec4

	// PointLights is the initial capacity of the point light block. The
	// block grows to fit the lights in the scene and never shrinks.
	PointLights int

	// Offscreen renders the opaque pass into an offscreen target and blits
	// its color and depth to the screen before the transparent pass. When
	// false every pass draws straight to the screen.
	Offscreen bool

	// Cull enables frustum culling.
	Cull bool
}

// DefaultOptions returns the defaults: a 640x480 buffer, a dark grey
// background, room for one point light, offscreen opaque pass and culling
// enabled.
func DefaultOptions() Options {
	return Options{
		Width:       640,
		Height:      480,
		PixelRatio:  1,
		ClearColor:  math3d.V4(0.1, 0.1, 0.12, 1),
		PointLights: 1,
		Offscreen:   true,
		Cull:        true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.PixelRatio <= 0 {
		o.PixelRatio = d.PixelRatio
	}
	if o.PointLights <= 0 {
		o.PointLights = d.PointLights
	}
	return o
}
