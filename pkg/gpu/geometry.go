package gpu

import (
	"slices"

	"github.com/taigrr/lumen/pkg/math3d"
)

// DrawMode is the primitive topology of a geometry.
type DrawMode int

const (
	Triangles DrawMode = iota
	Lines
	Points
	TriangleStrip
)

// Standard attribute names used by the built-in programs.
const (
	AttribPosition = "position"
	AttribNormal   = "normal"
	AttribUV       = "uv"
	AttribColor    = "color"
	AttribJoints   = "joints"
	AttribWeights  = "weights"
)

// Attribute is one vertex stream. Size is the number of components per
// vertex (1 to 4, or 16 for a matrix).
type Attribute struct {
	Name       string
	Size       int
	Data       []float32
	Normalized bool
}

// Len returns the number of vertices in the stream.
func (a *Attribute) Len() int {
	if a.Size == 0 {
		return 0
	}
	return len(a.Data) / a.Size
}

// Geometry is a set of vertex attributes plus an optional index list.
type Geometry struct {
	versioned

	Name       string
	Mode       DrawMode
	attributes []*Attribute
	indices    []uint32
	bounds     math3d.AABB
}

// NewGeometry creates an empty geometry.
func NewGeometry(name string, mode DrawMode) *Geometry {
	return &Geometry{
		versioned: newVersioned(),
		Name:      name,
		Mode:      mode,
		bounds:    math3d.EmptyAABB(),
	}
}

// SetAttribute adds or replaces a vertex stream. Setting the position stream
// recomputes the bounding box.
func (g *Geometry) SetAttribute(name string, size int, data []float32) *Attribute {
	a := &Attribute{Name: name, Size: size, Data: data}
	if i := g.attributeIndex(name); i >= 0 {
		g.attributes[i] = a
	} else {
		g.attributes = append(g.attributes, a)
	}
	if name == AttribPosition {
		g.ComputeBounds()
	}
	g.touch()
	return a
}

// Attribute returns the named stream or nil.
func (g *Geometry) Attribute(name string) *Attribute {
	if i := g.attributeIndex(name); i >= 0 {
		return g.attributes[i]
	}
	return nil
}

// Attributes returns the streams in insertion order. Insertion order is the
// attribute location order.
func (g *Geometry) Attributes() []*Attribute {
	return g.attributes
}

func (g *Geometry) attributeIndex(name string) int {
	return slices.IndexFunc(g.attributes, func(a *Attribute) bool { return a.Name == name })
}

// SetIndices sets the index list. A nil list makes the geometry non-indexed.
func (g *Geometry) SetIndices(indices []uint32) {
	g.indices = indices
	g.touch()
}

// Indices returns the index list, nil when the geometry is not indexed.
func (g *Geometry) Indices() []uint32 {
	return g.indices
}

// Indexed reports whether draws should use the index list.
func (g *Geometry) Indexed() bool {
	return g.indices != nil
}

// VertexCount returns the number of vertices of the position stream, or of
// the first stream when there is no position.
func (g *Geometry) VertexCount() int {
	if a := g.Attribute(AttribPosition); a != nil {
		return a.Len()
	}
	if len(g.attributes) > 0 {
		return g.attributes[0].Len()
	}
	return 0
}

// DrawCount returns the element count of a draw call.
func (g *Geometry) DrawCount() int {
	if g.Indexed() {
		return len(g.indices)
	}
	return g.VertexCount()
}

// Bounds returns the local bounding box. It is empty when the geometry has no
// positions, which disables culling for it.
func (g *Geometry) Bounds() math3d.AABB {
	return g.bounds
}

// SetBounds overrides the computed bounding box.
func (g *Geometry) SetBounds(b math3d.AABB) {
	g.bounds = b
}

// ComputeBounds recomputes the bounding box from the position stream.
func (g *Geometry) ComputeBounds() {
	g.bounds = math3d.EmptyAABB()
	a := g.Attribute(AttribPosition)
	if a == nil || a.Size < 3 {
		return
	}
	for i := 0; i+2 < len(a.Data); i += a.Size {
		g.bounds = g.bounds.ExpandPoint(math3d.V3(float64(a.Data[i]), float64(a.Data[i+1]), float64(a.Data[i+2])))
	}
}

// MarkChanged bumps the version after the attribute slices were edited in
// place.
func (g *Geometry) MarkChanged() {
	g.touch()
}
