// Package camera provides the viewer's pinhole camera. The camera reads its eye and target
// from an attached OrbitController and exposes the camera-to-world and inverse projection
// matrices the path tracer unprojects primary rays through.
package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	up common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix              [16]float32
	cameraToWorld           [16]float32
	projectionMatrix        [16]float32
	inverseProjectionMatrix [16]float32

	controller OrbitController

	// controllerVersion is the controller version the matrices were computed from.
	controllerVersion uint64
	// dirty is set by the projection setters until the next Update.
	dirty bool
}

// Camera defines the interface for the viewer camera.
// The camera holds perspective settings and computes its matrices from an attached
// OrbitController each time Update is called.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// ViewMatrix returns the world-to-camera matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// CameraToWorld returns the inverse of the view matrix as 16 floats (column-major). This
	// is the transform passed to the path tracer each frame.
	//
	// Returns:
	//   - [16]float32: the camera-to-world matrix
	CameraToWorld() [16]float32

	// ProjectionMatrix returns the perspective projection as 16 floats (column-major), with
	// WebGPU's [0, 1] depth range.
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// InverseProjectionMatrix returns the inverse of the projection matrix as 16 floats
	// (column-major).
	//
	// Returns:
	//   - [16]float32: the inverse projection matrix
	InverseProjectionMatrix() [16]float32

	// Uniform returns the camera uniform as uploaded to the device.
	//
	// Returns:
	//   - GPUCameraUniform: the camera-to-world and inverse projection matrices
	Uniform() GPUCameraUniform

	// Controller returns the attached OrbitController, or nil if none is attached.
	Controller() OrbitController

	// SetController attaches an OrbitController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl OrbitController)

	// SetUp sets the camera's up vector.
	SetUp(up common.Vec3)

	// SetFov sets the vertical field of view in radians.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height).
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance.
	SetFar(far float32)

	// Update recomputes the matrices if the controller moved or a projection setting changed
	// since the last call. Should be called once per frame, before the matrices are read.
	//
	// Returns:
	//   - bool: true if any matrix changed
	Update() bool
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with a 45 degree field of view looking down -Z from the
// origin. A controller must be attached via SetController or WithController before the
// camera follows any input.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		up:     common.Vec3{0, 1, 0},
		fov:    45.0 * (math.Pi / 180.0),
		aspect: 1.0,
		near:   0.1,
		far:    100.0,
	}
	common.Identity(c.viewMatrix[:])
	common.Identity(c.cameraToWorld[:])
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) CameraToWorld() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraToWorld
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCameraUniform{CameraToWorld: c.cameraToWorld, InverseProjection: c.inverseProjectionMatrix}
}

func (c *cameraImpl) Controller() OrbitController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl OrbitController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.dirty = true
}

func (c *cameraImpl) SetUp(up common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.dirty = true
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.dirty = true
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.dirty = true
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.dirty = true
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.dirty = true
}

func (c *cameraImpl) Update() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved := c.controller != nil && c.controller.Version() != c.controllerVersion
	if !moved && !c.dirty {
		return false
	}
	c.updateMatrices()
	return true
}

// updateMatrices recalculates every matrix from the controller and the projection settings.
// Without a controller the view stays at the identity. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.dirty = false

	if c.controller != nil {
		c.controllerVersion = c.controller.Version()
		eye, target := c.controller.Position(), c.controller.Target()
		common.LookAt(c.viewMatrix[:],
			eye[0], eye[1], eye[2],
			target[0], target[1], target[2],
			c.up[0], c.up[1], c.up[2],
		)
		common.Invert4(c.cameraToWorld[:], c.viewMatrix[:])
	}

	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])
}
