package scene

import (
	"fmt"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// Kind tells the renderer how to treat an object. It is fixed when the
// object is created.
type Kind int

const (
	// KindMesh is a rasterized drawable.
	KindMesh Kind = iota
	// KindPointLight contributes to the point light block.
	KindPointLight
	// KindAmbientLight contributes to the ambient light block.
	KindAmbientLight
	// KindParticles is handed over to the particle system.
	KindParticles
	// KindFeedback runs as a transform feedback pass before drawing.
	KindFeedback

	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindPointLight:
		return "point-light"
	case KindAmbientLight:
		return "ambient-light"
	case KindParticles:
		return "particles"
	case KindFeedback:
		return "feedback"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TextureBinding binds a texture to a sampler uniform.
type TextureBinding struct {
	Sampler string
	Texture *gpu.Texture
}

// Light is the color and strength of a point or ambient light.
type Light struct {
	Color     math3d.Vec3
	Intensity float64
}

// Object is something attached to a node: a drawable, a light, a particle
// emitter or a feedback pass.
type Object struct {
	Name string

	kind Kind
	node *Node

	Geometry *gpu.Geometry
	Material *Material
	State    gpu.State
	Uniforms *gpu.Uniforms
	Textures []TextureBinding

	Light    *Light
	Feedback *Feedback

	destroyed bool
}

// NewMesh creates a drawable. Its render state starts as the material's.
func NewMesh(name string, geometry *gpu.Geometry, material *Material) *Object {
	o := &Object{
		Name:     name,
		kind:     KindMesh,
		Geometry: geometry,
		Material: material,
		State:    gpu.DefaultState(),
		Uniforms: gpu.NewUniforms(),
	}
	if material != nil {
		o.State = material.State
	}
	return o
}

// NewPointLight creates a point light. Its position is the world position
// of the node it is attached to.
func NewPointLight(color math3d.Vec3, intensity float64) *Object {
	return &Object{
		Name:  "point-light",
		kind:  KindPointLight,
		Light: &Light{Color: color, Intensity: intensity},
	}
}

// NewAmbientLight creates an ambient light.
func NewAmbientLight(color math3d.Vec3, intensity float64) *Object {
	return &Object{
		Name:  "ambient-light",
		kind:  KindAmbientLight,
		Light: &Light{Color: color, Intensity: intensity},
	}
}

// NewParticles creates a particle emitter drawn as points with additive
// blending after the transparent pass.
func NewParticles(name string, geometry *gpu.Geometry, material *Material) *Object {
	o := NewMesh(name, geometry, material)
	o.kind = KindParticles
	o.State = gpu.State{Blending: gpu.BlendAdditive, DepthTest: true}
	return o
}

// NewFeedbackObject wraps a transform feedback pass.
func NewFeedbackObject(name string, fb *Feedback) *Object {
	return &Object{
		Name:     name,
		kind:     KindFeedback,
		Feedback: fb,
		Uniforms: gpu.NewUniforms(),
	}
}

// Kind returns the object's kind.
func (o *Object) Kind() Kind { return o.kind }

// Node returns the node the object is attached to, nil when detached.
func (o *Object) Node() *Node { return o.node }

// Transparent reports whether the object blends with what is behind it.
func (o *Object) Transparent() bool { return o.State.Transparent() }

// SetUniform sets a per-object uniform.
func (o *Object) SetUniform(name string, v any) {
	if o.Uniforms == nil {
		o.Uniforms = gpu.NewUniforms()
	}
	o.Uniforms.Set(name, v)
}

// SetTexture binds a per-object texture, replacing any binding of the same
// sampler.
func (o *Object) SetTexture(sampler string, t *gpu.Texture) {
	o.Textures = setBinding(o.Textures, sampler, t)
}

// Destroy detaches the object and queues the resources it owns on d.
// Materials are shared and are not queued. Destroying twice is a no-op.
func (o *Object) Destroy(d Disposer) {
	if o.destroyed {
		return
	}
	o.destroyed = true
	if o.node != nil {
		o.node.Detach(o)
	}
	if d == nil {
		return
	}
	if o.Geometry != nil {
		d.Push(o.Geometry)
	}
	if o.Uniforms != nil {
		d.Push(o.Uniforms)
	}
	for _, b := range o.Textures {
		if b.Texture != nil {
			d.Push(b.Texture)
		}
	}
	if o.Feedback != nil {
		o.Feedback.dispose(d)
	}
}

// Destroyed reports whether Destroy was called.
func (o *Object) Destroyed() bool { return o.destroyed }

func setBinding(list []TextureBinding, sampler string, t *gpu.Texture) []TextureBinding {
	for i := range list {
		if list[i].Sampler == sampler {
			list[i].Texture = t
			return list
		}
	}
	return append(list, TextureBinding{Sampler: sampler, Texture: t})
}
