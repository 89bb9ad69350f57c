package math3d

import "testing"

// Hot paths of a frame: world matrix updates, normal matrices, culling and
// uniform packing.

func BenchmarkMat4Mul(b *testing.B) {
	parent := Compose(V3(1, 2, 3), QuatFromEuler(0.1, 0.5, 0), V3(1, 1, 1))
	local := Translate(V3(0, 1, 0)).Mul(RotateY(0.5))

	for b.Loop() {
		_ = parent.Mul(local)
	}
}

func BenchmarkCompose(b *testing.B) {
	q := QuatFromEuler(0.1, 0.5, 0.2)

	for b.Loop() {
		_ = Compose(V3(1, 2, 3), q, V3(2, 2, 2))
	}
}

func BenchmarkDecompose(b *testing.B) {
	m := Compose(V3(1, 2, 3), QuatFromEuler(0.1, 0.5, 0.2), V3(2, 3, 4))

	for b.Loop() {
		_, _, _ = m.Decompose()
	}
}

func BenchmarkNormalMatrix(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(2, 1, 1)))

	for b.Loop() {
		_ = m.Inverse().Transpose()
	}
}

func BenchmarkAABBTransform(b *testing.B) {
	box := NewAABB(V3(-1, -1, -1), V3(1, 1, 1))
	m := Compose(V3(1, 2, 3), QuatFromEuler(0.1, 0.5, 0.2), V3(2, 2, 2))

	for b.Loop() {
		_ = box.Transform(m)
	}
}

func BenchmarkFrustumIntersectAABB(b *testing.B) {
	view := LookAt(V3(0, 0, 10), V3(0, 0, 0), V3(0, 1, 0))
	f := NewFrustumFromMatrix(Perspective(1.0, 1.333, 0.1, 100.0).Mul(view))
	box := NewAABB(V3(-1, -1, -1), V3(1, 1, 1)).Translate(V3(3, 0, 0))

	for b.Loop() {
		_ = f.IntersectAABB(box)
	}
}

func BenchmarkFloat32s(b *testing.B) {
	m := Perspective(1.0, 1.333, 0.1, 100.0)

	for b.Loop() {
		_ = m.Float32s()
	}
}
