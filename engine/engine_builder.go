package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-wavefront/engine/camera"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/pathtracer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithWindow sets the window the engine reads input from and presents to. The renderer must
// have been created with the same window.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer that owns the presentation surface.
//
// Parameters:
//   - r: the renderer the path tracer was created on
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithPathTracer sets the path tracer advanced and drawn every render frame.
//
// Parameters:
//   - pt: the path tracer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPathTracer(pt pathtracer.PathTracer) EngineBuilderOption {
	return func(e *engine) {
		e.pathTracer = pt
	}
}

// WithCamera replaces the default orbit camera.
//
// Parameters:
//   - c: the camera whose matrices drive the path tracer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}

// WithSnapshotPath sets the file the P key writes the accumulation to.
func WithSnapshotPath(path string) EngineBuilderOption {
	return func(e *engine) {
		e.snapshotPath = path
	}
}
