package main

import (
	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/models"
	"github.com/taigrr/lumen/pkg/scene"
)

// Stage is the viewer's scene: the model plus its lights.
type Stage struct {
	Root  *scene.Node
	Model *scene.Node
	Light *scene.Node

	Triangles int
}

// NewStage instantiates graph under a fresh root, fits it into a 2-unit
// cube at the origin and adds the lights from cfg.
func NewStage(graph *models.Graph, program *gpu.Program, cfg Config) *Stage {
	root := scene.NewNode("root")
	model := graph.Instantiate(program)
	fit(model)
	root.Add(model)

	s := &Stage{Root: root, Model: model}
	ambient := scene.NewNode("ambient")
	ambient.Attach(scene.NewAmbientLight(math3d.V3(1, 1, 1), cfg.Ambient))
	root.Add(ambient)

	if cfg.Light > 0 {
		s.Light = scene.NewNode("key-light")
		s.Light.SetPosition(math3d.V3(2, 3, 3))
		s.Light.Attach(scene.NewPointLight(math3d.V3(1, 1, 1), cfg.Light))
		root.Add(s.Light)
	}

	model.Traverse(func(n *scene.Node) bool {
		for _, o := range n.ObjectsOf(scene.KindMesh) {
			if o.Geometry != nil && o.Geometry.Mode == gpu.Triangles {
				s.Triangles += o.Geometry.DrawCount() / 3
			}
		}
		return true
	})
	return s
}

// worldBounds returns the world-space bounds of everything under n.
func worldBounds(n *scene.Node) math3d.AABB {
	n.UpdateWorldTransform(true)
	box := math3d.EmptyAABB()
	n.Traverse(func(c *scene.Node) bool {
		if b := c.UpdateBoundingBox(); !b.Empty() {
			box = box.Union(b.Transform(c.World()))
		}
		return true
	})
	return box
}

// fit scales and moves n so its bounds are centered on the origin with the
// largest side 2 units long.
func fit(n *scene.Node) {
	box := worldBounds(n)
	if box.Empty() {
		return
	}
	size := box.Size()
	largest := max(size.X, size.Y, size.Z)
	if largest <= 0 {
		return
	}
	s := 2 / largest
	n.SetScale(math3d.V3(s, s, s))
	n.SetPosition(box.Center().Scale(-s))
	n.UpdateWorldTransform(true)
}
