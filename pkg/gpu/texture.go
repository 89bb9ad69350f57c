package gpu

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Filter is a texture sampling filter.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
	FilterLinearMipmapLinear
)

// Wrap is a texture coordinate wrap mode.
type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClamp
	WrapMirror
)

// Texture is a 2D image descriptor. A texture without an image is not ready;
// devices upload a single white texel in its place until SetImage is called.
type Texture struct {
	versioned

	Name      string
	MinFilter Filter
	MagFilter Filter
	WrapS     Wrap
	WrapT     Wrap
	FlipY     bool

	img *image.RGBA
}

// NewTexture creates a texture with no image.
func NewTexture(name string) *Texture {
	return &Texture{
		versioned: newVersioned(),
		Name:      name,
		MinFilter: FilterLinearMipmapLinear,
		MagFilter: FilterLinear,
	}
}

// NewTextureFromImage creates a texture with its image already set.
func NewTextureFromImage(name string, img image.Image) *Texture {
	t := NewTexture(name)
	t.SetImage(img)
	return t
}

// SetImage replaces the pixel data and marks the texture for upload.
func (t *Texture) SetImage(img image.Image) {
	t.img = toRGBA(img)
	t.touch()
}

// Ready reports whether the texture has pixel data.
func (t *Texture) Ready() bool {
	return t.img != nil
}

// Pixels returns the pixel data, or a 1x1 white image when not ready.
func (t *Texture) Pixels() *image.RGBA {
	if t.img == nil {
		return placeholder
	}
	return t.img
}

// Size returns the texture dimensions.
func (t *Texture) Size() (width, height int) {
	b := t.Pixels().Bounds()
	return b.Dx(), b.Dy()
}

// MarkChanged bumps the version after the pixels were edited in place.
func (t *Texture) MarkChanged() {
	t.touch()
}

var placeholder = func() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{255, 255, 255, 255})
	return img
}()

func toRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba
}
