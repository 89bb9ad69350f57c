package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

func box(name string, min, max math3d.Vec3) *scene.Node {
	g := gpu.NewGeometry(name, gpu.Points)
	g.SetAttribute(gpu.AttribPosition, 3, []float32{
		float32(min.X), float32(min.Y), float32(min.Z),
		float32(max.X), float32(max.Y), float32(max.Z),
	})
	g.ComputeBounds()
	n := scene.NewNode(name)
	n.Attach(scene.NewMesh(name, g, scene.NewBasicMaterial(name, scene.NewBasicProgram(), math3d.V4(1, 1, 1, 1))))
	return n
}

func TestWorldBounds(t *testing.T) {
	model := scene.NewNode("model")
	a := box("a", math3d.V3(0, 0, 0), math3d.V3(1, 1, 1))
	b := box("b", math3d.V3(0, 0, 0), math3d.V3(1, 1, 1))
	b.SetPosition(math3d.V3(3, 0, 0))
	model.Add(a)
	model.Add(b)

	got := worldBounds(model)
	assert.Equal(t, math3d.V3(0, 0, 0), got.Min)
	assert.Equal(t, math3d.V3(4, 1, 1), got.Max)

	assert.True(t, worldBounds(scene.NewNode("empty")).Empty())
}

func TestFit(t *testing.T) {
	model := scene.NewNode("model")
	model.Add(box("a", math3d.V3(2, 2, 2), math3d.V3(6, 4, 4)))
	fit(model)

	got := worldBounds(model)
	assert.InDelta(t, 2, got.Size().X, 1e-9)
	assert.InDelta(t, 0, got.Center().Len(), 1e-9)
}
