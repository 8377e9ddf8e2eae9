package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/camera"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/pathtracer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/profiler"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/snapshot"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/window"
)

const (
	// dragPanScale converts a right-button drag in pixels to pan input.
	dragPanScale = 0.1

	// titleInterval throttles window title updates.
	titleInterval = 250 * time.Millisecond
)

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window     window.Window
	renderer   renderer.Renderer
	camera     camera.Camera
	pathTracer pathtracer.PathTracer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	snapshotPath string

	// held tracks the movement keys currently pressed, applied every tick
	inputMu sync.Mutex
	held    map[uint32]bool

	// pendingResize is set by the window thread and applied by the render thread between frames
	pendingResize atomic.Pointer[[2]int]
}

// Engine is the main entry point for the interactive viewer.
// It orchestrates the tick loop, the render loop that advances and presents the path
// tracer, and window input.
//
// Controls: arrow keys orbit, WASD pans, left drag orbits, right drag pans, the wheel
// zooms, M toggles megakernel mode, N toggles smooth normals, R resets accumulation,
// 1 to 9 set the bounce count and P writes a snapshot.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance, or nil when running headless
	Window() window.Window

	// Renderer returns the renderer the path tracer records on.
	Renderer() renderer.Renderer

	// Camera returns the viewer camera.
	Camera() camera.Camera

	// PathTracer returns the path tracer advanced each render frame.
	PathTracer() pathtracer.PathTracer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// Camera input is applied and the tick callback is called at this rate.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick after camera input is
	// applied.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// SaveSnapshot writes the current accumulation to an image file. The format follows the
	// file extension.
	//
	// Parameters:
	//   - path: the destination file
	//
	// Returns:
	//   - error: an error reading the accumulation or writing the file
	SaveSnapshot(path string) error

	// Run starts the engine loops and the window message loop. Blocks until the window closes
	// or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// A path tracer is required. Without a camera, one is created with an orbit controller and
// the path tracer's aspect ratio.
//
// Parameters:
//   - options: functional options for engine configuration (window, path tracer, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
		snapshotPath:     "snapshot.png",
		held:             make(map[uint32]bool),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.pathTracer == nil {
		panic("engine: a path tracer is required")
	}
	if e.camera == nil {
		e.camera = camera.NewCamera(
			camera.WithController(camera.NewOrbitController()),
			camera.WithAspect(float32(e.pathTracer.Width())/float32(e.pathTracer.Height())),
		)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.queueResize)
		e.window.SetKeyDownCallback(e.handleKeyDown)
		e.window.SetKeyUpCallback(e.handleKeyUp)
		e.window.SetScrollCallback(func(delta float32) {
			if ctrl := e.camera.Controller(); ctrl != nil {
				ctrl.Zoom(delta)
			}
		})
		e.window.SetDragCallback(e.handleDrag)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) PathTracer() pathtracer.PathTracer {
	return e.pathTracer
}

func (e *engine) Run() {
	e.running = true
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Applies held movement keys to the camera controller, fires the tick callback and listens
// for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.applyHeldKeys()
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", fmt.Sprint(r))
			e.signalQuit()
		}
	}()

	e.pathTracer.SetProjection(e.camera.InverseProjectionMatrix())
	lastRender := time.Now()
	var lastTitle time.Time

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.renderFrame()

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick(e.pathTracer.Samples())
			}

			if e.window != nil && now.Sub(lastTitle) >= titleInterval {
				e.window.SetTitle(e.statusTitle())
				lastTitle = now
			}

			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// renderFrame applies a pending resize and camera movement, advances the path tracer by one
// sample and presents the accumulation when a surface exists.
func (e *engine) renderFrame() {
	if size := e.pendingResize.Swap(nil); size != nil {
		e.resize(size[0], size[1])
	}

	// replacing the projection resets the accumulation, which a moved view needs as well
	if e.camera.Update() {
		e.pathTracer.SetProjection(e.camera.InverseProjectionMatrix())
	}

	if err := e.pathTracer.Advance(e.camera.CameraToWorld()); err != nil && !errors.Is(err, renderer.ErrDeviceLost) {
		common.Logger().Error("advance failed", "error", err)
	}

	if e.renderer == nil || e.renderer.Headless() {
		return
	}
	if err := e.renderer.BeginFrame(); err != nil {
		common.Logger().Debug("skipping present", "error", err)
		return
	}
	if err := e.pathTracer.Draw(); err != nil {
		common.Logger().Warn("present failed", "error", err)
	}
	e.renderer.EndFrame()
	e.renderer.Present()
}

// statusTitle describes the accumulation for the window title bar.
func (e *engine) statusTitle() string {
	mode := "wavefront"
	if e.pathTracer.Megakernel() {
		mode = "megakernel"
	}
	return fmt.Sprintf("oxy-wavefront | %d spp | %s | %d bounces | %dx%d",
		e.pathTracer.Samples(), mode, e.pathTracer.Bounces(), e.pathTracer.Width(), e.pathTracer.Height())
}

// queueResize records a window resize for the render thread. A minimized window reports a
// zero size and is ignored.
func (e *engine) queueResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.pendingResize.Store(&[2]int{width, height})
}

func (e *engine) resize(width, height int) {
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	e.camera.SetAspect(float32(width) / float32(height))
	if err := e.pathTracer.Resize(width, height); err != nil {
		common.Logger().Error("path tracer resize failed", "error", err, "width", width, "height", height)
	}
}

func (e *engine) handleKeyDown(key uint32) {
	switch {
	case key == common.KeyM:
		e.pathTracer.SetMegakernel(!e.pathTracer.Megakernel())
	case key == common.KeyN:
		e.pathTracer.SetSmoothNormals(!e.pathTracer.SmoothNormals())
	case key == common.KeyR:
		e.pathTracer.Reset()
	case key == common.KeyP:
		if err := e.SaveSnapshot(e.snapshotPath); err != nil {
			common.Logger().Error("snapshot failed", "error", err)
		}
	case key >= common.Key1 && key <= common.Key9:
		e.pathTracer.SetBounces(int(key-common.Key1) + 1)
	default:
		e.inputMu.Lock()
		e.held[key] = true
		e.inputMu.Unlock()
	}
}

func (e *engine) handleKeyUp(key uint32) {
	e.inputMu.Lock()
	delete(e.held, key)
	e.inputMu.Unlock()
}

func (e *engine) handleDrag(button window.MouseButton, dx, dy float32) {
	ctrl := e.camera.Controller()
	if ctrl == nil {
		return
	}
	switch button {
	case window.MouseButtonLeft:
		ctrl.Drag(dx, dy)
	case window.MouseButtonRight, window.MouseButtonMiddle:
		ctrl.Pan(-dx*dragPanScale, dy*dragPanScale)
	}
}

// applyHeldKeys moves the camera controller by one step per held movement key.
func (e *engine) applyHeldKeys() {
	ctrl := e.camera.Controller()
	if ctrl == nil {
		return
	}

	e.inputMu.Lock()
	var orbitX, orbitY, panX, panY float32
	for key := range e.held {
		switch key {
		case common.KeyLeft:
			orbitX--
		case common.KeyRight:
			orbitX++
		case common.KeyUp:
			orbitY++
		case common.KeyDown:
			orbitY--
		case common.KeyA:
			panX--
		case common.KeyD:
			panX++
		case common.KeyW:
			panY++
		case common.KeyS:
			panY--
		}
	}
	e.inputMu.Unlock()

	if orbitX != 0 || orbitY != 0 {
		ctrl.Orbit(orbitX, orbitY)
	}
	if panX != 0 || panY != 0 {
		ctrl.Pan(panX, panY)
	}
}

func (e *engine) SaveSnapshot(path string) error {
	buf, err := e.pathTracer.Snapshot()
	if err != nil {
		return fmt.Errorf("engine: failed to read accumulation: %w", err)
	}
	if err := snapshot.WriteFile(path, buf); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	common.Logger().Info("snapshot written", "path", path, "samples", e.pathTracer.Samples())
	return nil
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}
