package camera

import "github.com/Carmen-Shannon/oxy-wavefront/common"

// OrbitControllerOption is a functional option for configuring an OrbitController.
type OrbitControllerOption func(*orbitControllerImpl)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - OrbitControllerOption: functional option to set the radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis.
//
// Parameters:
//   - azimuth: horizontal angle in radians (0 = +Z axis)
//
// Returns:
//   - OrbitControllerOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle from the horizontal plane.
//
// Parameters:
//   - elevation: vertical angle in radians (0 = horizontal)
//
// Returns:
//   - OrbitControllerOption: functional option to set the elevation
func WithElevation(elevation float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the look-at/pivot point.
func WithTarget(target common.Vec3) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.target = target
	}
}

// WithRadiusLimits sets the zoom limits.
//
// Parameters:
//   - minRadius: the closest allowed distance to the target
//   - maxRadius: the farthest allowed distance to the target
//
// Returns:
//   - OrbitControllerOption: functional option to set the limits
func WithRadiusLimits(minRadius, maxRadius float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.minRadius = minRadius
		cc.maxRadius = maxRadius
	}
}

// WithOrbitSpeed sets the keyboard orbit speed in radians per step.
func WithOrbitSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.orbitSpeed = speed
	}
}

// WithMouseSensitivity sets the radians turned per pixel of mouse drag.
func WithMouseSensitivity(sensitivity float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the radius change per unit of zoom input.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the distance moved per unit of pan input.
func WithPanSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitControllerImpl) {
		cc.panSpeed = speed
	}
}
