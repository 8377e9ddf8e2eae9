package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// orbitControllerImpl is the implementation of OrbitController.
type orbitControllerImpl struct {
	mu *sync.Mutex

	position common.Vec3
	target   common.Vec3

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32

	version uint64
}

var _ OrbitController = &orbitControllerImpl{}

// NewOrbitController creates an OrbitController framing a unit-sized scene at the origin.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - OrbitController: the newly created controller
func NewOrbitController(options ...OrbitControllerOption) OrbitController {
	cc := &orbitControllerImpl{
		mu:     &sync.Mutex{},
		radius: 3.5,

		minRadius:    0.1,
		maxRadius:    100.0,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.25,
		panSpeed:         0.05,
	}

	for _, option := range options {
		option(cc)
	}

	cc.radius = clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = clamp(cc.elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
	return cc
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

// updatePosition recomputes the eye from the spherical coordinates and bumps the version.
// Caller must hold the mutex.
func (cc *orbitControllerImpl) updatePosition() {
	cosElev := float32(math.Cos(float64(cc.elevation)))
	sinElev := float32(math.Sin(float64(cc.elevation)))
	cosAzim := float32(math.Cos(float64(cc.azimuth)))
	sinAzim := float32(math.Sin(float64(cc.azimuth)))

	cc.position = cc.target.Add(common.Vec3{
		cc.radius * cosElev * sinAzim,
		cc.radius * sinElev,
		cc.radius * cosElev * cosAzim,
	})
	cc.version++
}

// localAxes returns the camera's right and up axes, consistent with LookAt and a +Y world up.
// Caller must hold the mutex.
func (cc *orbitControllerImpl) localAxes() (right, up common.Vec3) {
	backward := cc.position.Subtract(cc.target)
	if backward.LengthSquared() < 1e-16 {
		return common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}
	}
	backward = backward.Normalize()
	right = common.Vec3{0, 1, 0}.Cross(backward)
	if right.LengthSquared() < 1e-16 {
		return common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}
	}
	right = right.Normalize()
	return right, backward.Cross(right)
}

func (cc *orbitControllerImpl) Position() common.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *orbitControllerImpl) Target() common.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *orbitControllerImpl) SetTarget(target common.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
	cc.updatePosition()
}

func (cc *orbitControllerImpl) Orbit(dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rotate(dAzimuth*cc.orbitSpeed, dElevation*cc.orbitSpeed)
}

func (cc *orbitControllerImpl) Drag(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rotate(dx*cc.mouseSensitivity, dy*cc.mouseSensitivity)
}

// rotate applies angle deltas in radians. Caller must hold the mutex.
func (cc *orbitControllerImpl) rotate(azimuth, elevation float32) {
	if azimuth == 0 && elevation == 0 {
		return
	}
	cc.azimuth += azimuth
	cc.elevation = clamp(cc.elevation+elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *orbitControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(cc.radius-delta*cc.zoomSpeed, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *orbitControllerImpl) Pan(right, up float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	r, u := cc.localAxes()
	offset := r.Multiply(right * cc.panSpeed).Add(u.Multiply(up * cc.panSpeed))
	cc.target = cc.target.Add(offset)
	cc.updatePosition()
}

func (cc *orbitControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *orbitControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = clamp(radius, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *orbitControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *orbitControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *orbitControllerImpl) Version() uint64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.version
}
