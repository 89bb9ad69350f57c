package scene

import (
	"math"

	"github.com/taigrr/lumen/pkg/math3d"
)

// Camera is a perspective camera with position and Euler orientation.
// Every change bumps Version so the renderer rewrites the camera block only
// when something moved.
type Camera struct {
	Position math3d.Vec3

	// Orientation in radians.
	Pitch float64
	Yaw   float64
	Roll  float64

	FOV         float64 // vertical, radians
	AspectRatio float64
	Near        float64
	Far         float64

	version uint64

	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	inverseView    math3d.Mat4
	viewDirty      bool
	projDirty      bool
	combinedDirty  bool
}

// NewCamera creates a camera at (0, 0, 5) looking down -Z.
func NewCamera() *Camera {
	return &Camera{
		Position:      math3d.V3(0, 0, 5),
		FOV:           math.Pi / 3,
		AspectRatio:   16.0 / 9.0,
		Near:          0.1,
		Far:           1000,
		version:       1,
		viewDirty:     true,
		projDirty:     true,
		combinedDirty: true,
	}
}

// Version increases whenever the view or projection changes.
func (c *Camera) Version() uint64 { return c.version }

func (c *Camera) viewChanged() {
	c.viewDirty = true
	c.combinedDirty = true
	c.version++
}

func (c *Camera) projChanged() {
	c.projDirty = true
	c.combinedDirty = true
	c.version++
}

// SetPosition sets the camera position.
func (c *Camera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewChanged()
}

// SetRotation sets pitch, yaw and roll in radians.
func (c *Camera) SetRotation(pitch, yaw, roll float64) {
	c.Pitch, c.Yaw, c.Roll = pitch, yaw, roll
	c.viewChanged()
}

// SetFOV sets the vertical field of view in radians.
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projChanged()
}

// SetAspectRatio sets width / height.
func (c *Camera) SetAspectRatio(aspect float64) {
	if aspect == c.AspectRatio {
		return
	}
	c.AspectRatio = aspect
	c.projChanged()
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near, c.Far = near, far
	c.projChanged()
}

// Forward returns the viewing direction.
func (c *Camera) Forward() math3d.Vec3 {
	return math3d.V3(
		-math.Sin(c.Yaw)*math.Cos(c.Pitch),
		math.Sin(c.Pitch),
		-math.Cos(c.Yaw)*math.Cos(c.Pitch),
	)
}

// Right returns the right direction vector.
func (c *Camera) Right() math3d.Vec3 {
	return math3d.V3(math.Cos(c.Yaw), 0, -math.Sin(c.Yaw))
}

// Up returns the up direction vector.
func (c *Camera) Up() math3d.Vec3 {
	return c.Right().Cross(c.Forward())
}

// LookAt turns the camera toward target.
func (c *Camera) LookAt(target math3d.Vec3) {
	dir := target.Sub(c.Position).Normalize()
	c.Pitch = math.Asin(dir.Y)
	c.Yaw = math.Atan2(-dir.X, -dir.Z)
	c.Roll = 0
	c.viewChanged()
}

// Orbit places the camera on a sphere around target and looks at it. Yaw
// is measured around Y from +Z, pitch is the elevation.
func (c *Camera) Orbit(target math3d.Vec3, distance, yaw, pitch float64) {
	const maxPitch = math.Pi/2 - 0.01
	pitch = max(-maxPitch, min(maxPitch, pitch))
	c.Position = target.Add(math3d.V3(
		distance*math.Cos(pitch)*math.Sin(yaw),
		distance*math.Sin(pitch),
		distance*math.Cos(pitch)*math.Cos(yaw),
	))
	c.LookAt(target)
}

// ViewMatrix returns the world-to-camera transform.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		rot := math3d.RotateZ(-c.Roll).Mul(math3d.RotateX(-c.Pitch)).Mul(math3d.RotateY(-c.Yaw))
		c.viewMatrix = rot.Mul(math3d.Translate(c.Position.Negate()))
		c.inverseView = c.viewMatrix.Inverse()
		c.viewDirty = false
	}
	return c.viewMatrix
}

// InverseViewMatrix returns the camera-to-world transform.
func (c *Camera) InverseViewMatrix() math3d.Mat4 {
	c.ViewMatrix()
	return c.inverseView
}

// ProjectionMatrix returns the perspective projection.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns projection * view.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	if c.combinedDirty {
		c.viewProjMatrix = c.ProjectionMatrix().Mul(c.ViewMatrix())
		c.combinedDirty = false
	}
	return c.viewProjMatrix
}

// Frustum returns the view frustum in world space.
func (c *Camera) Frustum() math3d.Frustum {
	return math3d.NewFrustumFromMatrix(c.ViewProjectionMatrix())
}
