// Package pathtracer schedules the wavefront path tracing frame. Each frame generates one
// path per pixel and moves it through the ray, hit and escaped queues for a fixed number of
// bounces, folding every escaping path into the accumulation buffer. The same kernels run
// on the WebGPU device or, through their host implementations, on the software device.
package pathtracer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/accumulation"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/camera"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/frame"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/queue"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/bind_group_provider"
)

const (
	// DefaultBounces is the number of intersect stages run per frame.
	DefaultBounces = 7

	// DefaultWorkgroupWidth is the workgroup width of the indirect stages.
	DefaultWorkgroupWidth = 128

	defaultWidth  = 640
	defaultHeight = 480
	defaultFovY   = math.Pi / 4
	defaultNear   = 0.1
	defaultFar    = 100
)

// DefaultBackground is the radiance returned by rays that leave the scene.
var DefaultBackground = common.Vec3{0.0366, 0.0813, 0.1057}.Normalize()

// ErrInvalidDimensions is returned when a viewport has no pixels.
var ErrInvalidDimensions = errors.New("pathtracer: viewport dimensions must be positive")

// FrameState names the stage of the frame state machine most recently recorded.
type FrameState int

const (
	StateIdle FrameState = iota
	StateClear
	StateGenerate
	StateWriteTraceSize
	StateIntersect
	StateWriteEscapedSize
	StateWriteScatterSize
	StateTerminate
	StateScatter
	StateMegakernel
	StatePresented
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClear:
		return "clear"
	case StateGenerate:
		return "generate"
	case StateWriteTraceSize:
		return "write_trace_size"
	case StateIntersect:
		return "intersect"
	case StateWriteEscapedSize:
		return "write_escaped_size"
	case StateWriteScatterSize:
		return "write_scatter_size"
	case StateTerminate:
		return "terminate"
	case StateScatter:
		return "scatter"
	case StateMegakernel:
		return "megakernel"
	case StatePresented:
		return "presented"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// Indices of the indirect argument triples in the args buffer.
const (
	argsTrace = iota
	argsEscaped
	argsScatter
	argsCount
)

// pathTracer is the implementation of the PathTracer interface.
type pathTracer struct {
	mu *sync.Mutex
	r  renderer.Renderer

	width          int
	height         int
	bounces        int
	background     common.Vec3
	megakernel     bool
	smoothNormals  bool
	workgroupWidth uint32

	inverseProjection [16]float32
	projectionSet     bool

	scene geometry.Scene
	bvh   *geometry.BVH

	frame   uint32
	samples uint64
	state   FrameState
	// pendingReset is set when the reset batch was dropped; the next frame clears the
	// accumulation before it writes to it.
	pendingReset bool
	params  frame.Params
	camera  camera.GPUCameraUniform

	// host state, read and written by the kernels on the software device
	store    *queue.Store
	accum    *accumulation.Buffer
	hostArgs [argsCount]dispatch.Args

	kernels *kernelSet
	device  *deviceResources

	// onState observes every state transition, tests only
	onState func(FrameState)
}

// PathTracer drives the wavefront frame state machine and owns every buffer it uses.
// All methods are safe for concurrent use; frames never overlap.
type PathTracer interface {
	// Advance uploads the per-frame uniforms and runs exactly one frame. The frame counter,
	// which seeds every random stream, is incremented first, so the first frame after a reset
	// uses seed 1 and a dropped frame still consumes its seed.
	//
	// Parameters:
	//   - cameraToWorld: the column-major camera-to-world transform
	//
	// Returns:
	//   - error: renderer.ErrDeviceLost if the batch was dropped, or a recording error. The
	//     accumulation state is untouched when an error is returned.
	Advance(cameraToWorld [16]float32) error

	// Reset zeroes the accumulation buffer, the sample counter and the frame counter.
	Reset()

	// Resize reallocates the accumulation buffer, the queues and every per-frame buffer for
	// width*height pixels and resets.
	//
	// Parameters:
	//   - width: the viewport width in pixels
	//   - height: the viewport height in pixels
	//
	// Returns:
	//   - error: ErrInvalidDimensions, or an error allocating device buffers
	Resize(width, height int) error

	// SetGeometry replaces the scene, rebuilds its BVH and resets.
	//
	// Parameters:
	//   - scene: the triangles, vertex normals and materials to trace
	//
	// Returns:
	//   - error: an error uploading the scene to the device
	SetGeometry(scene geometry.Scene) error

	// SetMegakernel switches between the wavefront pipeline and the single-kernel mode and
	// resets when the mode changes.
	SetMegakernel(enabled bool)

	// Megakernel reports whether the single-kernel mode is active.
	Megakernel() bool

	// SetSmoothNormals switches between interpolated vertex normals and geometric face
	// normals for shading and resets.
	SetSmoothNormals(enabled bool)

	// SmoothNormals reports whether hits are shaded with interpolated vertex normals.
	SmoothNormals() bool

	// SetBounces sets the number of intersect stages per frame and resets. Values below 1
	// are clamped to 1.
	SetBounces(n int)

	// Bounces returns the number of intersect stages per frame.
	Bounces() int

	// SetBackground sets the radiance of escaping rays and resets.
	SetBackground(background common.Vec3)

	// SetProjection replaces the inverse projection used to generate primary rays and resets.
	// Once set, resizing no longer recomputes the projection from the aspect ratio.
	SetProjection(inverseProjection [16]float32)

	// Snapshot returns a host copy of the accumulation state. On the WebGPU device the
	// buffers are read back from device memory.
	//
	// Returns:
	//   - *accumulation.Buffer: the copy
	//   - error: an error reading the device buffers
	Snapshot() (*accumulation.Buffer, error)

	// Draw records the present pass that tonemaps the accumulation onto the surface. Must be
	// called between the renderer's BeginFrame and EndFrame.
	//
	// Returns:
	//   - error: renderer.ErrNoSurface on a headless renderer
	Draw() error

	// QueueCounts returns the [ray, hit, escaped] counters as the last frame left them. After
	// a wavefront frame the escaped count is the number of paths that escaped at the final
	// bounce.
	//
	// Returns:
	//   - [3]uint32: the counters
	//   - error: an error reading the device counters
	QueueCounts() ([3]uint32, error)

	// Samples returns the number of frames folded into the accumulation since the last reset.
	Samples() uint64

	// Frame returns the frame counter.
	Frame() uint32

	// State returns the last state entered by the frame state machine.
	State() FrameState

	// Width returns the viewport width.
	Width() int

	// Height returns the viewport height.
	Height() int

	// Release frees every device buffer and bind group owned by the path tracer. Pipelines
	// are owned by the renderer.
	Release()
}

var _ PathTracer = &pathTracer{}

// NewPathTracer creates a PathTracer that records its frames on r, registers its pipelines
// and allocates its buffers.
//
// Parameters:
//   - r: the renderer to dispatch on
//   - options: variadic list of PathTracerBuilderOption functions
//
// Returns:
//   - PathTracer: the configured path tracer, reset and ready to Advance
//   - error: an error if a pipeline or buffer could not be created
func NewPathTracer(r renderer.Renderer, options ...PathTracerBuilderOption) (PathTracer, error) {
	p := &pathTracer{
		mu:         &sync.Mutex{},
		r:          r,
		background: DefaultBackground,
	}
	for _, opt := range options {
		opt(p)
	}

	p.width = common.Coalesce(p.width, defaultWidth)
	p.height = common.Coalesce(p.height, defaultHeight)
	p.bounces = max(common.Coalesce(p.bounces, DefaultBounces), 1)
	p.workgroupWidth = common.Coalesce(p.workgroupWidth, DefaultWorkgroupWidth)
	if p.width < 0 || p.height < 0 {
		return nil, ErrInvalidDimensions
	}

	p.bvh = geometry.NewBVH(p.scene)
	p.store = queue.NewStore(p.width * p.height)
	p.accum = accumulation.NewBuffer(p.width, p.height)
	p.updateProjection()

	p.kernels = p.newKernelSet()
	if err := r.RegisterPipelines(p.kernels.pipelines()...); err != nil {
		return nil, fmt.Errorf("pathtracer: %w", err)
	}
	d, err := p.newDeviceResources(p.width, p.height, p.bvh)
	if err != nil {
		return nil, err
	}
	p.swapDevice(d)
	p.resetLocked()

	common.Logger().Info("path tracer created",
		"width", p.width, "height", p.height, "bounces", p.bounces,
		"megakernel", p.megakernel, "backend", r.BackendType().String(),
		"triangles", len(p.scene.Triangles))
	return p, nil
}

func (p *pathTracer) Advance(cameraToWorld [16]float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	p.frame++
	p.camera = camera.GPUCameraUniform{CameraToWorld: cameraToWorld, InverseProjection: p.inverseProjection}
	p.params = p.frameParams()
	p.r.WriteBuffers(p.uniformWrites())

	p.enter(StateIdle)
	if err := p.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("pathtracer: frame %d: %w", p.frame, err)
	}

	var err error
	if p.pendingReset {
		err = p.dispatch(kernelReset, p.pixelGroups())
	}
	if err == nil && p.megakernel {
		err = p.recordMegakernel()
	} else if err == nil {
		err = p.recordWavefront()
	}
	if err != nil {
		p.r.DiscardComputeFrame()
		return fmt.Errorf("pathtracer: frame %d: %w", p.frame, err)
	}

	if err := p.r.EndComputeFrame(); err != nil {
		if errors.Is(err, renderer.ErrDeviceLost) {
			common.Logger().Warn("frame dropped", "frame", p.frame, "reason", err)
		}
		return fmt.Errorf("pathtracer: frame %d: %w", p.frame, err)
	}

	p.pendingReset = false
	p.samples++
	p.enter(StatePresented)
	common.Logger().Debug("computing a sample took", "ms", float64(time.Since(start).Microseconds())/1000, "samples", p.samples, "frame", p.frame)
	return nil
}

// recordWavefront records clear, generate and the per-bounce stages.
func (p *pathTracer) recordWavefront() error {
	p.enter(StateClear)
	if err := p.dispatch(kernelClear, [3]uint32{1, 1, 1}); err != nil {
		return err
	}
	p.enter(StateGenerate)
	if err := p.dispatch(kernelGenerate, p.pixelGroups()); err != nil {
		return err
	}

	for range p.bounces {
		steps := []struct {
			state FrameState
			key   string
			args  int
		}{
			{StateWriteTraceSize, kernelWriteTraceSize, -1},
			{StateIntersect, kernelIntersect, argsTrace},
			{StateWriteEscapedSize, kernelWriteEscapedSize, -1},
			{StateWriteScatterSize, kernelWriteScatterSize, -1},
			{StateTerminate, kernelTerminate, argsEscaped},
			{StateScatter, kernelScatter, argsScatter},
		}
		for _, step := range steps {
			p.enter(step.state)
			var err error
			if step.args < 0 {
				err = p.dispatch(step.key, [3]uint32{1, 1, 1})
			} else {
				err = p.r.DispatchComputeIndirect(step.key, p.provider(step.key), p.indirectArgs(step.args))
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pathTracer) recordMegakernel() error {
	p.enter(StateMegakernel)
	return p.dispatch(kernelMegakernel, p.pixelGroups())
}

// provider returns the bind group of a kernel. The software device binds nothing and gets
// nil.
func (p *pathTracer) provider(key string) bind_group_provider.BindGroupProvider {
	if p.device == nil {
		return nil
	}
	return p.device.providers[key]
}

func (p *pathTracer) dispatch(key string, groups [3]uint32) error {
	return p.r.DispatchCompute(key, p.provider(key), groups)
}

// pixelGroups covers the viewport with 8x8 workgroups.
func (p *pathTracer) pixelGroups() [3]uint32 {
	return [3]uint32{common.DivCeil(uint32(p.width), 8), common.DivCeil(uint32(p.height), 8), 1}
}

func (p *pathTracer) indirectArgs(i int) renderer.IndirectArgs {
	args := renderer.IndirectArgs{
		Offset: uint64(i * dispatch.ArgsSize),
		Host:   (*[3]uint32)(&p.hostArgs[i]),
	}
	if p.device != nil {
		args.Buffer = p.device.buffers[varArgs]
	}
	return args
}

func (p *pathTracer) enter(s FrameState) {
	p.state = s
	if p.onState != nil {
		p.onState(s)
	}
}

func (p *pathTracer) frameParams() frame.Params {
	return frame.Params{
		Background:    p.background,
		Frame:         p.frame,
		Width:         uint32(p.width),
		Height:        uint32(p.height),
		Bounces:       uint32(p.bounces),
		NodeCount:     uint32(len(p.bvh.Nodes())),
		SmoothNormals: p.smoothNormals,
	}
}

// updateProjection recomputes the default perspective for the current aspect ratio unless
// a projection was set explicitly.
func (p *pathTracer) updateProjection() {
	if p.projectionSet {
		return
	}
	var proj [16]float32
	common.Perspective(proj[:], defaultFovY, float32(p.width)/float32(p.height), defaultNear, defaultFar)
	common.Invert4(p.inverseProjection[:], proj[:])
}

func (p *pathTracer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// resetLocked zeroes the counters and clears the accumulation with the reset kernel.
func (p *pathTracer) resetLocked() {
	p.frame = 0
	p.samples = 0
	p.hostArgs = [argsCount]dispatch.Args{}
	p.params = p.frameParams()
	p.r.WriteBuffers(p.uniformWrites())

	err := p.r.BeginComputeFrame()
	if err == nil {
		if err = p.dispatch(kernelReset, p.pixelGroups()); err != nil {
			p.r.DiscardComputeFrame()
		} else {
			err = p.r.EndComputeFrame()
		}
	}
	if err != nil {
		p.pendingReset = true
		common.Logger().Warn("accumulation reset deferred to the next frame", "error", err)
		return
	}
	p.pendingReset = false
	p.enter(StateIdle)
}

func (p *pathTracer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	d, err := p.newDeviceResources(width, height, p.bvh)
	if err != nil {
		return err
	}
	p.swapDevice(d)
	p.width = width
	p.height = height
	p.updateProjection()
	p.store.Resize(width * height)
	p.accum.Resize(width, height)
	p.resetLocked()

	common.Logger().Info("path tracer resized", "width", width, "height", height)
	return nil
}

func (p *pathTracer) SetGeometry(scene geometry.Scene) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bvh := geometry.NewBVH(scene)
	d, err := p.newDeviceResources(p.width, p.height, bvh)
	if err != nil {
		return err
	}
	p.swapDevice(d)
	p.scene = scene
	p.bvh = bvh
	p.resetLocked()

	common.Logger().Info("path tracer geometry replaced", "triangles", len(scene.Triangles), "nodes", len(p.bvh.Nodes()))
	return nil
}

func (p *pathTracer) SetMegakernel(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.megakernel == enabled {
		return
	}
	p.megakernel = enabled
	p.resetLocked()
	common.Logger().Info("path tracer mode changed", "megakernel", enabled)
}

func (p *pathTracer) Megakernel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.megakernel
}

func (p *pathTracer) SetSmoothNormals(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.smoothNormals = enabled
	p.resetLocked()
}

func (p *pathTracer) SmoothNormals() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.smoothNormals
}

func (p *pathTracer) SetBounces(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bounces = max(n, 1)
	p.resetLocked()
}

func (p *pathTracer) Bounces() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bounces
}

func (p *pathTracer) SetBackground(background common.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.background = background
	p.resetLocked()
}

func (p *pathTracer) SetProjection(inverseProjection [16]float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inverseProjection = inverseProjection
	p.projectionSet = true
	p.resetLocked()
}

func (p *pathTracer) Snapshot() (*accumulation.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return p.accum.Clone(), nil
	}
	return p.device.readAccumulation(p.r, p.width, p.height)
}

func (p *pathTracer) Draw() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil || p.device.present == nil {
		return renderer.ErrNoSurface
	}
	return p.r.DrawFullscreen(pipelinePresent, []bind_group_provider.BindGroupProvider{p.device.present})
}

func (p *pathTracer) QueueCounts() ([3]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return p.store.Counters.Snapshot(), nil
	}
	return p.device.readCounters(p.r)
}

func (p *pathTracer) Samples() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples
}

func (p *pathTracer) Frame() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

func (p *pathTracer) State() FrameState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *pathTracer) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width
}

func (p *pathTracer) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *pathTracer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		p.device.release()
		p.device = nil
	}
}
