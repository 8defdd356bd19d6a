package ar

import (
	"image"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// ScreenPoint is a position in viewport pixels, origin top-left, Y down.
type ScreenPoint struct {
	X float64
	Y float64
}

// Viewport is the size of the rendered view in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Center returns the visual centre of the viewport.
func (v Viewport) Center() ScreenPoint {
	return ScreenPoint{X: v.Width / 2, Y: v.Height / 2}
}

// Camera is the observer pose for one frame. The camera looks down its
// local -Z axis with +Y up. FocalLength is in viewport pixels.
type Camera struct {
	Transform   Transform
	FocalLength float64
	Viewport    Viewport
	Tracking    TrackingState
}

// Ray is a half-line in world space. Direction is unit length.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Direction))
}

// ScreenRay returns the world-space ray through a viewport point.
func (c Camera) ScreenRay(p ScreenPoint) Ray {
	f := c.FocalLength
	if f <= 0 {
		f = c.Viewport.Height
	}
	if f <= 0 {
		f = 1
	}
	center := c.Viewport.Center()
	local := r3.Vec{
		X: (p.X - center.X) / f,
		Y: -(p.Y - center.Y) / f,
		Z: -1,
	}
	return Ray{
		Origin:    c.Transform.Position,
		Direction: r3.Unit(c.Transform.Rotate(local)),
	}
}

// OpticalRay returns the ray through the optical centre of the frame.
func (c Camera) OpticalRay() Ray {
	return c.ScreenRay(c.Viewport.Center())
}

// Frame is one captured camera frame with its tracking signals.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Camera    Camera

	// Image is the captured image; nil when the runtime does not supply
	// pixels for this frame.
	Image image.Image

	// AmbientIntensity is the estimated ambient light in lumens, nil
	// when light estimation is disabled or unavailable.
	AmbientIntensity *float64
}
