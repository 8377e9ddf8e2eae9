package camera

import "github.com/Carmen-Shannon/oxy-wavefront/common"

// OrbitController owns the camera's positional state. The eye sits on a sphere around the
// target described by radius, azimuth and elevation; panning moves the target and the eye
// together. Every change bumps Version so cameras and the accumulation can tell when the
// view moved.
type OrbitController interface {
	// Position returns the camera's world-space eye position.
	//
	// Returns:
	//   - common.Vec3: the eye position
	Position() common.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - common.Vec3: the world-space pivot
	Target() common.Vec3

	// SetTarget moves the pivot and recomputes the eye from the spherical coordinates.
	//
	// Parameters:
	//   - target: the new world-space pivot
	SetTarget(target common.Vec3)

	// Orbit rotates the eye around the target. Both deltas are scaled by the orbit speed and
	// the elevation is clamped to its limits.
	//
	// Parameters:
	//   - dAzimuth: horizontal steps, positive to the right
	//   - dElevation: vertical steps, positive upward
	Orbit(dAzimuth, dElevation float32)

	// Drag rotates the eye by a mouse movement in pixels, scaled by the mouse sensitivity.
	//
	// Parameters:
	//   - dx: horizontal cursor movement
	//   - dy: vertical cursor movement, positive downward
	Drag(dx, dy float32)

	// Zoom moves the eye toward the target. Positive delta zooms in. The radius is clamped to
	// its limits.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Pan translates the target and eye along the camera's local right and up axes.
	//
	// Parameters:
	//   - right: pan amount along the right axis, scaled by the pan speed
	//   - up: pan amount along the up axis, scaled by the pan speed
	Pan(right, up float32)

	// Radius returns the distance from the eye to the target.
	Radius() float32

	// SetRadius sets the orbit radius, clamped to its limits.
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the Y axis in radians, 0 on the +Z axis.
	Azimuth() float32

	// Elevation returns the vertical angle above the horizontal plane in radians.
	Elevation() float32

	// Version returns a counter incremented by every change to the eye or target.
	//
	// Returns:
	//   - uint64: the change counter
	Version() uint64
}
