package raster

import (
	"math"

	"github.com/taigrr/lumen/pkg/gpu"
	"github.com/taigrr/lumen/pkg/math3d"
)

// vertex is a processed vertex: its clip position and the values
// interpolated across the primitive.
type vertex struct {
	clip math3d.Vec4
	uv   math3d.Vec2
	tint math3d.Vec4 // vertex color times lighting
}

func (v vertex) lerp(o vertex, t float64) vertex {
	return vertex{
		clip: v.clip.Lerp(o.clip, t),
		uv:   math3d.V2(v.uv.X+(o.uv.X-v.uv.X)*t, v.uv.Y+(o.uv.Y-v.uv.Y)*t),
		tint: v.tint.Lerp(o.tint, t),
	}
}

// nearDistance is the signed distance to the near clip plane, z = -w.
func (v vertex) nearDistance() float64 {
	return v.clip.Z + v.clip.W
}

// screenVertex holds a vertex transformed to window coordinates.
type screenVertex struct {
	X, Y float64 // pixels, Y down
	Z    float64 // window depth in [0, 1]
	InvW float64
}

// shader computes the color of one fragment from the interpolated values.
type shader func(uv math3d.Vec2, tint math3d.Vec4) math3d.Vec4

// rasterizer draws primitives into one framebuffer under one render state.
type rasterizer struct {
	fb    *Framebuffer
	state gpu.State
	shade shader

	// pointSize is the sprite size in world units at unit distance. Zero
	// draws single pixel points.
	pointSize float64

	fragments int
}

func (r *rasterizer) project(v vertex) screenVertex {
	invW := 1 / v.clip.W
	return screenVertex{
		X:    (v.clip.X*invW + 1) * 0.5 * float64(r.fb.Width),
		Y:    (1 - v.clip.Y*invW) * 0.5 * float64(r.fb.Height),
		Z:    (v.clip.Z*invW + 1) * 0.5,
		InvW: invW,
	}
}

// clipNear clips a polygon against the near plane.
func clipNear(in []vertex) []vertex {
	out := make([]vertex, 0, len(in)+1)
	for i, a := range in {
		b := in[(i+1)%len(in)]
		da, db := a.nearDistance(), b.nearDistance()
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, a.lerp(b, da/(da-db)))
		}
	}
	return out
}

// triangle rasterizes one triangle. Counter-clockwise triangles in normalized
// device coordinates are front facing.
func (r *rasterizer) triangle(a, b, c vertex) {
	if r.state.CullFront && r.state.CullBack {
		return
	}
	poly := []vertex{a, b, c}
	if a.nearDistance() < 0 || b.nearDistance() < 0 || c.nearDistance() < 0 {
		poly = clipNear(poly)
	}
	if len(poly) < 3 {
		return
	}
	sv := make([]screenVertex, len(poly))
	for i, v := range poly {
		sv[i] = r.project(v)
	}
	for i := 1; i+1 < len(poly); i++ {
		r.fill(
			[3]screenVertex{sv[0], sv[i], sv[i+1]},
			[3]vertex{poly[0], poly[i], poly[i+1]},
		)
	}
}

func (r *rasterizer) fill(sv [3]screenVertex, v [3]vertex) {
	area := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[2].X-sv[0].X)*(sv[1].Y-sv[0].Y)
	if area == 0 || math.IsNaN(area) {
		return
	}
	// Window Y points down, so front faces have negative area.
	front := area < 0
	if (front && r.state.CullFront) || (!front && r.state.CullBack) {
		return
	}

	minX := int(math.Max(0, math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(float64(r.fb.Width-1), math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(0, math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(float64(r.fb.Height-1), math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			bc := barycentric(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y, sv[2].X, sv[2].Y, px, py)
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}
			z := bc.X*sv[0].Z + bc.Y*sv[1].Z + bc.Z*sv[2].Z
			if z < 0 || z > 1 {
				continue
			}
			if r.state.DepthTest && z > r.fb.DepthAt(x, y) {
				continue
			}

			// Perspective-correct weights.
			w0, w1, w2 := bc.X*sv[0].InvW, bc.Y*sv[1].InvW, bc.Z*sv[2].InvW
			sum := w0 + w1 + w2
			if sum == 0 {
				continue
			}
			w0, w1, w2 = w0/sum, w1/sum, w2/sum

			uv := math3d.V2(
				w0*v[0].uv.X+w1*v[1].uv.X+w2*v[2].uv.X,
				w0*v[0].uv.Y+w1*v[1].uv.Y+w2*v[2].uv.Y,
			)
			tint := v[0].tint.Scale(w0).Add(v[1].tint.Scale(w1)).Add(v[2].tint.Scale(w2))
			if r.fb.fragment(x, y, z, r.shade(uv, tint), r.state) {
				r.fragments++
			}
		}
	}
}

// line rasterizes a segment, clipped against the near plane.
func (r *rasterizer) line(a, b vertex) {
	da, db := a.nearDistance(), b.nearDistance()
	switch {
	case da < 0 && db < 0:
		return
	case da < 0:
		a = a.lerp(b, da/(da-db))
	case db < 0:
		b = b.lerp(a, db/(db-da))
	}
	sa, sb := r.project(a), r.project(b)
	x0, y0 := int(math.Floor(sa.X)), int(math.Floor(sa.Y))
	x1, y1 := int(math.Floor(sb.X)), int(math.Floor(sb.Y))
	dx, dy := abs(x1-x0), abs(y1-y0)

	bresenham(x0, y0, x1, y1, func(x, y int) {
		var t float64
		switch {
		case dx >= dy && dx > 0:
			t = float64(abs(x-x0)) / float64(dx)
		case dy > 0:
			t = float64(abs(y-y0)) / float64(dy)
		}
		z := sa.Z + (sb.Z-sa.Z)*t
		if z < 0 || z > 1 {
			return
		}
		wa, wb := (1-t)*sa.InvW, t*sb.InvW
		s := wb / (wa + wb)
		v := a.lerp(b, s)
		if r.fb.fragment(x, y, z, r.shade(v.uv, v.tint), r.state) {
			r.fragments++
		}
	})
}

// point draws a vertex as a single pixel, or as a round sprite whose size
// shrinks with distance when pointSize is set.
func (r *rasterizer) point(v vertex) {
	if v.clip.W <= 0 || v.nearDistance() < 0 {
		return
	}
	s := r.project(v)
	if s.Z > 1 {
		return
	}
	cx, cy := int(math.Floor(s.X)), int(math.Floor(s.Y))
	if r.pointSize <= 0 {
		if r.fb.fragment(cx, cy, s.Z, r.shade(v.uv, v.tint), r.state) {
			r.fragments++
		}
		return
	}

	size := r.pointSize * float64(r.fb.Height) * s.InvW
	radius := math.Min(math.Max(size/2, 0.5), 64)
	color := r.shade(v.uv, v.tint)
	minX, maxX := int(math.Floor(s.X-radius)), int(math.Ceil(s.X+radius))
	minY, maxY := int(math.Floor(s.Y-radius)), int(math.Ceil(s.Y+radius))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			ox := (float64(x) + 0.5 - s.X) / radius
			oy := (float64(y) + 0.5 - s.Y) / radius
			falloff := 1 - (ox*ox + oy*oy)
			if falloff <= 0 {
				continue
			}
			if r.fb.fragment(x, y, s.Z, color.Scale(falloff), r.state) {
				r.fragments++
			}
		}
	}
}

// barycentric calculates barycentric coordinates for point (px, py) in triangle.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x2-x0, y2-y0
	v1x, v1y := x1-x0, y1-y0
	v2x, v2y := px-x0, py-y0

	dot00 := v0x*v0x + v0y*v0y
	dot01 := v0x*v1x + v0y*v1y
	dot02 := v0x*v2x + v0y*v2y
	dot11 := v1x*v1x + v1y*v1y
	dot12 := v1x*v2x + v1y*v2y

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	return math3d.V3(1-u-v, v, u)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
