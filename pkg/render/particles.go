package render

import (
	"slices"

	"github.com/taigrr/lumen/pkg/scene"
)

type emitter struct {
	object *scene.Object
	node   *scene.Node
}

// ParticleSystem holds the emitters pulled out of the scene. Emitters are
// drawn after the transparent pass with the world transform of the node
// they were attached to. Destroyed emitters are dropped on the next frame,
// and so are emitters whose node was destroyed.
type ParticleSystem struct {
	emitters []emitter
	scratch  []drawItem
}

// NewParticleSystem creates an empty system.
func NewParticleSystem() *ParticleSystem {
	return &ParticleSystem{}
}

// Add takes over an emitter. node provides its transform.
func (p *ParticleSystem) Add(o *scene.Object, node *scene.Node) {
	if slices.ContainsFunc(p.emitters, func(e emitter) bool { return e.object == o }) {
		return
	}
	p.emitters = append(p.emitters, emitter{object: o, node: node})
}

// Remove drops an emitter. It reports whether it was present.
func (p *ParticleSystem) Remove(o *scene.Object) bool {
	n := len(p.emitters)
	p.emitters = slices.DeleteFunc(p.emitters, func(e emitter) bool { return e.object == o })
	return len(p.emitters) != n
}

// Len returns the number of emitters.
func (p *ParticleSystem) Len() int { return len(p.emitters) }

// Clear drops every emitter.
func (p *ParticleSystem) Clear() { p.emitters = nil }

// items returns the drawable emitters. Emitters orphaned by a destroyed node
// are destroyed here, their resources queued on d.
func (p *ParticleSystem) items(d scene.Disposer) []drawItem {
	p.emitters = slices.DeleteFunc(p.emitters, func(e emitter) bool {
		if e.node != nil && e.node.Destroyed() {
			e.object.Destroy(d)
		}
		return e.object.Destroyed()
	})
	p.scratch = p.scratch[:0]
	for _, e := range p.emitters {
		if e.object.Geometry == nil || e.object.Material == nil {
			continue
		}
		p.scratch = append(p.scratch, drawItem{object: e.object, node: e.node})
	}
	return p.scratch
}
