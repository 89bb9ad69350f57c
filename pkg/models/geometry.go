package models

import (
	"github.com/qmuntal/gltf"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

var vertexStreams = []struct {
	key  string
	name string
}{
	{gltf.POSITION, gpu.AttribPosition},
	{gltf.NORMAL, gpu.AttribNormal},
	{gltf.TEXCOORD_0, gpu.AttribUV},
	{gltf.COLOR_0, gpu.AttribColor},
	{gltf.JOINTS_0, gpu.AttribJoints},
	{gltf.WEIGHTS_0, gpu.AttribWeights},
}

// Geometry builds the GPU geometry for the primitive. Normals are
// synthesized for triangle lists that lack them. The result is cached.
func (p *Primitive) Geometry() *gpu.Geometry {
	if p.geometry != nil {
		return p.geometry
	}
	g := gpu.NewGeometry(p.Name, drawMode(p.Mode))
	for _, s := range vertexStreams {
		a, ok := p.Attributes[s.key]
		if !ok {
			continue
		}
		g.SetAttribute(s.name, a.Components(), a.Float32s())
	}
	if p.Indices != nil {
		g.SetIndices(p.Indices.Uint32s())
	}
	if g.Attribute(gpu.AttribNormal) == nil && g.Mode == gpu.Triangles {
		if pos := g.Attribute(gpu.AttribPosition); pos != nil {
			g.SetAttribute(gpu.AttribNormal, 3, smoothNormals(pos.Data, g.Indices()))
		}
	}
	p.geometry = g
	return g
}

func drawMode(m gltf.PrimitiveMode) gpu.DrawMode {
	switch m {
	case gltf.PrimitivePoints:
		return gpu.Points
	case gltf.PrimitiveLines:
		return gpu.Lines
	case gltf.PrimitiveTriangleStrip:
		return gpu.TriangleStrip
	}
	return gpu.Triangles
}

// smoothNormals averages the face normals around each vertex. Faces come
// from indices, or consecutive vertex triples when there are none.
func smoothNormals(positions []float32, indices []uint32) []float32 {
	n := len(positions) / 3
	acc := make([]math3d.Vec3, n)
	at := func(i uint32) math3d.Vec3 {
		return math3d.V3(float64(positions[i*3]), float64(positions[i*3+1]), float64(positions[i*3+2]))
	}
	face := func(a, b, c uint32) {
		if int(a) >= n || int(b) >= n || int(c) >= n {
			return
		}
		v0 := at(a)
		// Unnormalized, so larger faces weigh more.
		normal := at(b).Sub(v0).Cross(at(c).Sub(v0))
		acc[a] = acc[a].Add(normal)
		acc[b] = acc[b].Add(normal)
		acc[c] = acc[c].Add(normal)
	}
	if len(indices) > 0 {
		for i := 0; i+2 < len(indices); i += 3 {
			face(indices[i], indices[i+1], indices[i+2])
		}
	} else {
		for i := 0; i+2 < n; i += 3 {
			face(uint32(i), uint32(i+1), uint32(i+2))
		}
	}

	out := make([]float32, n*3)
	for i, v := range acc {
		v = v.Normalize()
		out[i*3], out[i*3+1], out[i*3+2] = float32(v.X), float32(v.Y), float32(v.Z)
	}
	return out
}

// Instantiate builds a scene node tree for the default scene. Every mesh
// primitive becomes a drawable using program; materials are shared between
// primitives that reference the same glTF material.
func (g *Graph) Instantiate(program *gpu.Program) *scene.Node {
	root := scene.NewNode("gltf")
	materials := make(map[*Material]*scene.Material)
	fallback := scene.NewBasicMaterial("default", program, math3d.V4(1, 1, 1, 1))

	var build func(n *Node) *scene.Node
	build = func(n *Node) *scene.Node {
		sn := scene.NewNode(n.Name)
		sn.SetMatrix(n.Local)
		if n.Mesh != nil {
			for _, p := range n.Mesh.Primitives {
				mat := fallback
				if p.Material != nil {
					mat = materials[p.Material]
					if mat == nil {
						mat = p.Material.sceneMaterial(program)
						materials[p.Material] = mat
					}
				}
				sn.Attach(scene.NewMesh(p.Name, p.Geometry(), mat))
			}
		}
		for _, c := range n.Children {
			sn.Add(build(c))
		}
		return sn
	}
	for _, r := range g.Roots {
		root.Add(build(r))
	}
	return root
}

func (m *Material) sceneMaterial(program *gpu.Program) *scene.Material {
	name := m.Name
	if name == "" {
		name = "material"
	}
	sm := scene.NewBasicMaterial(name, program, m.BaseColor)
	sm.Uniforms.Set(scene.UniformMetallic, float32(m.Metallic))
	sm.Uniforms.Set(scene.UniformRoughness, float32(m.Roughness))
	if m.AlphaMode == gltf.AlphaBlend {
		sm.SetTransparent(gpu.BlendNormal)
	} else {
		sm.SetTransparent(gpu.BlendNone)
	}
	sm.SetDoubleSided(m.DoubleSided)
	if t := m.BaseColorTexture; t != nil {
		sm.SetTexture(scene.SamplerBaseColor, t.GPU)
	}
	if t := m.MetallicRoughnessTexture; t != nil {
		sm.SetTexture(scene.SamplerMetalRoughness, t.GPU)
	}
	return sm
}
