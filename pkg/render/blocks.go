package render

import (
	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

func newCameraBlock() *gpu.UniformBuffer {
	return gpu.NewUniformBuffer(scene.BlockCamera, scene.BindingCamera, scene.CameraBlockSize)
}

func writeCamera(b *gpu.UniformBuffer, c *scene.Camera) {
	b.SetMat4(scene.CameraView, c.ViewMatrix())
	b.SetMat4(scene.CameraProjection, c.ProjectionMatrix())
	b.SetMat4(scene.CameraViewProjection, c.ViewProjectionMatrix())
	b.SetMat4(scene.CameraInverseView, c.InverseViewMatrix())
	b.SetVec3(scene.CameraPosition, c.Position)
}

func newWindowBlock() *gpu.UniformBuffer {
	return gpu.NewUniformBuffer(scene.BlockWindow, scene.BindingWindow, scene.WindowBlockSize)
}

func writeWindow(b *gpu.UniformBuffer, width, height int, seconds, pixelRatio float64) {
	b.SetVec2(scene.WindowResolution, math3d.V2(float64(width), float64(height)))
	b.SetFloat(scene.WindowTime, float32(seconds))
	b.SetFloat(scene.WindowPixelRatio, float32(pixelRatio))
}

// AmbientLight accumulates ambient contributions into one color.
type AmbientLight struct {
	buf *gpu.UniformBuffer
}

// NewAmbientLight creates a black ambient block.
func NewAmbientLight() *AmbientLight {
	return &AmbientLight{
		buf: gpu.NewUniformBuffer(scene.BlockAmbient, scene.BindingAmbient, scene.AmbientBlockSize),
	}
}

// Buffer returns the uniform block.
func (a *AmbientLight) Buffer() *gpu.UniformBuffer { return a.buf }

// Sync writes the sum of the lights. With no lights the block is black.
func (a *AmbientLight) Sync(lights []*scene.Light) {
	var sum math3d.Vec3
	for _, l := range lights {
		sum = sum.Add(l.Color.Scale(l.Intensity))
	}
	a.buf.SetVec3(scene.AmbientColor, sum)
	intensity := float32(0)
	if len(lights) > 0 {
		intensity = 1
	}
	a.buf.SetFloat(scene.AmbientIntensity, intensity)
}

// PointLight is a point light resolved to world space.
type PointLight struct {
	Position  math3d.Vec3
	Color     math3d.Vec3
	Intensity float64
}

// PointLights owns the point light block. The block grows to exactly fit
// the number of lights submitted and never shrinks; slots past the active
// count get zero intensity instead.
type PointLights struct {
	buf      *gpu.UniformBuffer
	capacity int
	active   int
}

// NewPointLights creates a block with room for capacity lights. Capacity is
// at least one since shaders cannot declare empty arrays.
func NewPointLights(capacity int) *PointLights {
	capacity = max(capacity, 1)
	return &PointLights{
		buf:      gpu.NewUniformBuffer(scene.BlockPointLights, scene.BindingPointLights, capacity*scene.PointLightStride),
		capacity: capacity,
	}
}

// Buffer returns the uniform block.
func (p *PointLights) Buffer() *gpu.UniformBuffer { return p.buf }

// Capacity returns the number of light slots.
func (p *PointLights) Capacity() int { return p.capacity }

// Active returns the number of lights written by the last Sync.
func (p *PointLights) Active() int { return p.active }

// Sync writes lights into the block. It reports whether the block grew, in
// which case programs must be rebuilt for the new capacity.
func (p *PointLights) Sync(lights []PointLight) (grew bool) {
	if len(lights) > p.capacity {
		p.capacity = len(lights)
		p.buf.Resize(p.capacity * scene.PointLightStride)
		grew = true
	}
	for i, l := range lights {
		off := i * scene.PointLightStride
		p.buf.SetVec3(off+scene.LightPosition, l.Position)
		p.buf.SetFloat(off+scene.LightIntensity, float32(l.Intensity))
		p.buf.SetVec3(off+scene.LightColor, l.Color)
	}
	for i := len(lights); i < p.capacity; i++ {
		p.buf.SetFloat(i*scene.PointLightStride+scene.LightIntensity, 0)
	}
	p.active = len(lights)
	return grew
}

// Intensity returns the intensity stored in slot i.
func (p *PointLights) Intensity(i int) float32 {
	return p.buf.Float(i*scene.PointLightStride + scene.LightIntensity)
}
