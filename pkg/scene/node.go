// Package scene holds the scene graph: transform nodes, the objects attached
// to them, materials and the camera.
package scene

import (
	"slices"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// Disposer receives GPU resources that are no longer referenced. The
// renderer's disposal queue implements it.
type Disposer interface {
	Push(resources ...gpu.Resource)
}

// Node is a transform in the scene graph. A node has at most one parent and
// owns its objects; children are attached, not owned.
type Node struct {
	Name string

	position math3d.Vec3
	rotation math3d.Quat
	scale    math3d.Vec3

	local      math3d.Mat4
	world      math3d.Mat4
	localDirty bool

	parent   *Node
	children []*Node

	objects []*Object
	kinds   [kindCount][]*Object

	bounds    math3d.AABB
	destroyed bool
}

// NewNode creates a node at the origin with identity rotation and unit
// scale.
func NewNode(name string) *Node {
	return &Node{
		Name:       name,
		rotation:   math3d.IdentityQuat(),
		scale:      math3d.V3(1, 1, 1),
		local:      math3d.Identity(),
		world:      math3d.Identity(),
		localDirty: true,
		bounds:     math3d.EmptyAABB(),
	}
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the attached children in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Add attaches child to n, detaching it from its previous parent first.
// Adding a child that is already attached to n leaves it in place. Adding n
// or one of its ancestors is refused and reports false.
func (n *Node) Add(child *Node) bool {
	if child == nil || child.parent == n {
		return child != nil
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return false
		}
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	child.localDirty = true
	n.children = append(n.children, child)
	return true
}

// Remove detaches child from n. It reports whether child was attached.
func (n *Node) Remove(child *Node) bool {
	i := slices.Index(n.children, child)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	child.parent = nil
	child.localDirty = true
	return true
}

// Destroy detaches n from its parent and destroys its objects, queueing
// their resources on d. Children stay attached to n and are not destroyed.
func (n *Node) Destroy(d Disposer) {
	n.destroyed = true
	if n.parent != nil {
		n.parent.Remove(n)
	}
	for _, o := range n.objects {
		o.node = nil
		o.Destroy(d)
	}
	n.objects = nil
	n.kinds = [kindCount][]*Object{}
	n.bounds = math3d.EmptyAABB()
}

// Destroyed reports whether Destroy was called. Objects that were moved off
// a destroyed node, such as particle emitters, use it to follow the node.
func (n *Node) Destroyed() bool { return n.destroyed }

// Attach adds an object to n. An object belongs to at most one node.
func (n *Node) Attach(o *Object) {
	if o.node == n {
		return
	}
	if o.node != nil {
		o.node.Detach(o)
	}
	o.node = n
	n.objects = append(n.objects, o)
	n.kinds[o.kind] = append(n.kinds[o.kind], o)
}

// Detach removes an object from n without destroying it.
func (n *Node) Detach(o *Object) bool {
	i := slices.Index(n.objects, o)
	if i < 0 {
		return false
	}
	n.objects = slices.Delete(n.objects, i, i+1)
	bucket := n.kinds[o.kind]
	if j := slices.Index(bucket, o); j >= 0 {
		n.kinds[o.kind] = slices.Delete(bucket, j, j+1)
	}
	o.node = nil
	return true
}

// Objects returns every attached object.
func (n *Node) Objects() []*Object { return n.objects }

// ObjectsOf returns the attached objects of one kind.
func (n *Node) ObjectsOf(k Kind) []*Object { return n.kinds[k] }

// Position returns the local translation.
func (n *Node) Position() math3d.Vec3 { return n.position }

// Rotation returns the local rotation.
func (n *Node) Rotation() math3d.Quat { return n.rotation }

// Scale returns the local scale.
func (n *Node) Scale() math3d.Vec3 { return n.scale }

// SetPosition sets the local translation.
func (n *Node) SetPosition(p math3d.Vec3) {
	n.position = p
	n.localDirty = true
}

// SetRotation sets the local rotation.
func (n *Node) SetRotation(q math3d.Quat) {
	n.rotation = q.Normalize()
	n.localDirty = true
}

// SetScale sets the local scale.
func (n *Node) SetScale(s math3d.Vec3) {
	n.scale = s
	n.localDirty = true
}

// SetMatrix sets the local transform from a matrix by decomposing it.
func (n *Node) SetMatrix(m math3d.Mat4) {
	n.position, n.rotation, n.scale = m.Decompose()
	n.localDirty = true
}

// Dirty reports whether the local transform changed since the last update.
func (n *Node) Dirty() bool { return n.localDirty }

// Local returns the local transform as of the last update.
func (n *Node) Local() math3d.Mat4 { return n.local }

// World returns the world transform as of the last update.
func (n *Node) World() math3d.Mat4 { return n.world }

// WorldPosition returns the translation of the world transform.
func (n *Node) WorldPosition() math3d.Vec3 { return n.world.Translation() }

// UpdateWorldTransform brings the world transforms of n and its subtree up to
// date. A node whose local transform changed is recomputed and forces its
// whole subtree to follow. Otherwise the node is only recomputed when force
// is set, and clean subtrees below it are visited without recomputing.
// Parents are always updated before their children.
func (n *Node) UpdateWorldTransform(force bool) {
	if n.localDirty {
		n.local = math3d.Compose(n.position, n.rotation, n.scale)
		n.localDirty = false
		force = true
	}
	if force {
		if n.parent != nil {
			n.world = n.parent.world.Mul(n.local)
		} else {
			n.world = n.local
		}
	}
	for _, c := range n.children {
		c.UpdateWorldTransform(force)
	}
}

// Traverse calls fn for every descendant of n in depth-first pre-order. n
// itself is not visited. Returning false from fn skips that node's subtree.
func (n *Node) Traverse(fn func(*Node) bool) {
	for _, c := range n.children {
		if fn(c) {
			c.Traverse(fn)
		}
	}
}

// Find returns the first descendant named name, or nil.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Traverse(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// UpdateBoundingBox recomputes the local bounding box as the union of the
// attached objects' geometry bounds. It is empty when nothing with geometry
// is attached.
func (n *Node) UpdateBoundingBox() math3d.AABB {
	b := math3d.EmptyAABB()
	for _, o := range n.objects {
		if o.Geometry != nil {
			b = b.Union(o.Geometry.Bounds())
		}
	}
	n.bounds = b
	return b
}

// Bounds returns the bounding box computed by the last UpdateBoundingBox.
func (n *Node) Bounds() math3d.AABB { return n.bounds }
