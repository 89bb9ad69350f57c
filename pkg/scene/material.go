package scene

import (
	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// Standard uniform and sampler names understood by the built-in programs.
const (
	UniformModelMatrix    = "modelMatrix"
	UniformNormalMatrix   = "normalMatrix"
	UniformBaseColor      = "baseColor"
	UniformMetallic       = "metallic"
	UniformRoughness      = "roughness"
	UniformPointSize      = "pointSize"
	SamplerBaseColor      = "baseColorMap"
	SamplerMetalRoughness = "metallicRoughnessMap"
)

// Material pairs a program with the uniforms and textures shared by every
// object drawn with it.
type Material struct {
	Name     string
	Program  *gpu.Program
	Uniforms *gpu.Uniforms
	Textures []TextureBinding

	// State is the render state copied into objects created with the
	// material.
	State gpu.State
}

// NewMaterial creates an opaque material.
func NewMaterial(name string, program *gpu.Program) *Material {
	return &Material{
		Name:     name,
		Program:  program,
		Uniforms: gpu.NewUniforms(),
		State:    gpu.DefaultState(),
	}
}

// NewBasicMaterial creates a lit material with a flat base color. Colors
// with alpha below one are blended.
func NewBasicMaterial(name string, program *gpu.Program, color math3d.Vec4) *Material {
	m := NewMaterial(name, program)
	m.Uniforms.Set(UniformBaseColor, color)
	if color.W < 1 {
		m.SetTransparent(gpu.BlendNormal)
	}
	return m
}

// SetTransparent switches the material to blended drawing. Blended
// materials test depth but do not write it.
func (m *Material) SetTransparent(b gpu.Blending) {
	m.State.Blending = b
	m.State.DepthWrite = b == gpu.BlendNone
}

// SetDoubleSided disables face culling.
func (m *Material) SetDoubleSided(v bool) {
	m.State.CullBack = !v
	m.State.CullFront = false
}

// SetTexture binds a texture to a sampler for every object using m.
func (m *Material) SetTexture(sampler string, t *gpu.Texture) {
	m.Textures = setBinding(m.Textures, sampler, t)
}

// Texture returns the texture bound to sampler, or nil.
func (m *Material) Texture(sampler string) *gpu.Texture {
	for _, b := range m.Textures {
		if b.Sampler == sampler {
			return b.Texture
		}
	}
	return nil
}
