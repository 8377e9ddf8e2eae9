package pathtracer

import (
	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
)

// PathTracerBuilderOption is a functional option for configuring a pathTracer.
// Use the With* functions to create options.
type PathTracerBuilderOption func(*pathTracer)

// WithBounces sets the number of intersect stages run per frame.
//
// Parameters:
//   - n: the bounce count, clamped to at least 1
//
// Returns:
//   - PathTracerBuilderOption: a function that sets the bounce count
func WithBounces(n int) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.bounces = max(n, 1)
	}
}

// WithBackground sets the radiance returned by rays that leave the scene.
//
// Parameters:
//   - background: the background radiance
//
// Returns:
//   - PathTracerBuilderOption: a function that sets the background
func WithBackground(background common.Vec3) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.background = background
	}
}

// WithMegakernel starts the path tracer in single-kernel mode.
//
// Parameters:
//   - enabled: whether the megakernel replaces the wavefront stages
//
// Returns:
//   - PathTracerBuilderOption: a function that sets the mode
func WithMegakernel(enabled bool) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.megakernel = enabled
	}
}

// WithDimensions sets the initial viewport size in pixels.
//
// Parameters:
//   - width: the viewport width
//   - height: the viewport height
//
// Returns:
//   - PathTracerBuilderOption: a function that sets the viewport size
func WithDimensions(width, height int) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.width = width
		p.height = height
	}
}

// WithWorkgroupSize sets the workgroup width of the indirectly dispatched stages. The size
// writers divide the queue counts by the same width.
//
// Parameters:
//   - width: the workgroup width
//
// Returns:
//   - PathTracerBuilderOption: a function that sets the workgroup width
func WithWorkgroupSize(width uint32) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.workgroupWidth = width
	}
}

// WithProjection fixes the inverse projection used to generate primary rays. Resizing will
// not replace it.
//
// Parameters:
//   - inverseProjection: the column-major inverse projection matrix
//
// Returns:
//   - PathTracerBuilderOption: a function that sets the projection
func WithProjection(inverseProjection [16]float32) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.inverseProjection = inverseProjection
		p.projectionSet = true
	}
}

// WithScene sets the initial scene.
func WithScene(scene geometry.Scene) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.scene = scene
	}
}

// WithSmoothNormals shades hits with interpolated vertex normals instead of face normals.
func WithSmoothNormals(enabled bool) PathTracerBuilderOption {
	return func(p *pathTracer) {
		p.smoothNormals = enabled
	}
}
