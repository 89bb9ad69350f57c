package render

import (
	"cmp"
	"slices"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/scene"
)

// drawItem is an object queued for drawing together with the node whose
// world transform it is drawn with.
type drawItem struct {
	object *scene.Object
	node   *scene.Node
}

func programOf(o *scene.Object) gpu.Handle {
	if o.Material == nil || o.Material.Program == nil {
		return 0
	}
	return o.Material.Program.Handle()
}

func geometryOf(o *scene.Object) gpu.Handle {
	if o.Geometry == nil {
		return 0
	}
	return o.Geometry.Handle()
}

// Compare orders drawables to minimize state changes: by program, then by
// geometry, then by render state bitmask. Objects sharing all three compare
// equal.
func Compare(a, b *scene.Object) int {
	if c := cmp.Compare(programOf(a), programOf(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(geometryOf(a), geometryOf(b)); c != 0 {
		return c
	}
	return cmp.Compare(a.State.Mask(), b.State.Mask())
}

// sortDraws sorts in place. Equal items keep their traversal order so
// batches do not reorder from frame to frame.
func sortDraws(items []drawItem) {
	slices.SortStableFunc(items, func(a, b drawItem) int {
		return Compare(a.object, b.object)
	})
}

// partition splits items into opaque and transparent sets, reusing the
// backing arrays of the destinations.
func partition(items []drawItem, opaque, transparent []drawItem) ([]drawItem, []drawItem) {
	opaque, transparent = opaque[:0], transparent[:0]
	for _, it := range items {
		if it.object.Transparent() {
			transparent = append(transparent, it)
		} else {
			opaque = append(opaque, it)
		}
	}
	return opaque, transparent
}
