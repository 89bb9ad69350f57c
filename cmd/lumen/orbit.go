package main

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/scene"
)

// Axis tracks an angle and its angular velocity. The velocity decays toward
// zero through a critically damped spring.
type Axis struct {
	Position float64
	Velocity float64
	spring   harmonica.Spring
	accel    float64
}

func NewAxis(fps int) Axis {
	return Axis{spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0)}
}

func (a *Axis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.accel = a.spring.Update(a.Velocity, a.accel, 0)
}

// Orbit is a camera rig circling a target. Zoom eases toward the requested
// distance.
type Orbit struct {
	Yaw, Pitch Axis
	Target     math3d.Vec3

	distance float64
	goal     float64
	zoomVel  float64
	zoom     harmonica.Spring

	fps     int
	initial float64
}

const (
	minDistance = 0.5
	maxDistance = 50
)

// NewOrbit creates a rig at distance from the origin.
func NewOrbit(fps int, distance float64) *Orbit {
	o := &Orbit{fps: fps, initial: distance}
	o.Reset()
	return o
}

// Reset restores the initial view.
func (o *Orbit) Reset() {
	o.Yaw = NewAxis(o.fps)
	o.Pitch = NewAxis(o.fps)
	o.Pitch.Position = 0.3
	o.zoom = harmonica.NewSpring(harmonica.FPS(o.fps), 6.0, 1.0)
	o.distance, o.goal, o.zoomVel = o.initial, o.initial, 0
}

// Impulse adds angular velocity.
func (o *Orbit) Impulse(pitch, yaw float64) {
	o.Pitch.Velocity += pitch
	o.Yaw.Velocity += yaw
}

// Zoom scales the requested distance by factor.
func (o *Orbit) Zoom(factor float64) {
	o.goal = max(minDistance, min(maxDistance, o.goal*factor))
}

// Distance returns the current camera distance.
func (o *Orbit) Distance() float64 { return o.distance }

// Update advances the springs by one frame.
func (o *Orbit) Update() {
	o.Yaw.Update()
	o.Pitch.Update()
	const limit = math.Pi/2 - 0.01
	o.Pitch.Position = max(-limit, min(limit, o.Pitch.Position))
	o.distance, o.zoomVel = o.zoom.Update(o.distance, o.zoomVel, o.goal)
}

// Apply places the camera.
func (o *Orbit) Apply(c *scene.Camera) {
	c.Orbit(o.Target, o.distance, o.Yaw.Position, o.Pitch.Position)
}
