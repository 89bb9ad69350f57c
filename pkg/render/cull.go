package render

import "github.com/taigrr/lumen/pkg/math3d"

// Visible reports whether a local bounding box placed at worldPosition
// intersects the frustum. An empty box carries no culling data and is
// always visible.
func Visible(f math3d.Frustum, box math3d.AABB, worldPosition math3d.Vec3) bool {
	if box.Empty() {
		return true
	}
	return f.IntersectAABB(box.Translate(worldPosition))
}

func cull(f math3d.Frustum, items []drawItem, out []drawItem) (kept []drawItem, culled int) {
	kept = out[:0]
	for _, it := range items {
		box := math3d.EmptyAABB()
		if it.object.Geometry != nil {
			box = it.object.Geometry.Bounds()
		}
		if Visible(f, box, it.node.WorldPosition()) {
			kept = append(kept, it)
		} else {
			culled++
		}
	}
	return kept, culled
}
