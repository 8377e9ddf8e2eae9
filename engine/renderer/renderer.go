package renderer

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	headless    bool
	deviceLost  atomic.Bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	workers              int
	pendingPresentMode   *PresentMode
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API over a compute device. The Renderer caches pipelines by key,
// records batches of compute dispatches, reads device memory back, and presents a
// full-screen pass when created with a window. The backend is either WebGPU or the host
// software device, which runs the Kernel attached to each compute pipeline.
type Renderer interface {
	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves the entire cache of Pipelines.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by creating the corresponding device
	// pipeline objects via the backend, then caching them by PipelineKey. Pipelines whose keys
	// are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// SetPipeline adds or updates a Pipeline in the cache with the given key.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to add or update in the cache
	//   - p: the Pipeline to add or update in the cache
	SetPipeline(key string, p pipeline.Pipeline)

	// SetPipelines replaces the entire pipeline cache with the provided map of Pipelines.
	//
	// Parameters:
	//   - pipelines: a map of pipeline keys to their corresponding Pipeline objects to set as the new cache
	SetPipelines(pipelines map[string]pipeline.Pipeline)

	// Resize configures the underlying backend to handle a new surface size.
	// Headless renderers ignore the call.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// BackendType reports which device executes dispatches.
	//
	// Returns:
	//   - RendererBackendType: BackendTypeWGPU or BackendTypeSoftware
	BackendType() RendererBackendType

	// Headless reports whether the renderer was created without a window.
	//
	// Returns:
	//   - bool: true if there is no presentation surface
	Headless() bool

	// InitBindGroup creates any missing buffers and a bind group from a layout descriptor and
	// stores them on the given BindGroupProvider. Buffer usage and size can be overridden per binding.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - descriptor: the layout descriptor defining the bind group entries
	//   - bufferUsageOverrides: additional buffer usage flags to OR into the derived usage, keyed by binding index (nil safe)
	//   - bufferSizeOverrides: custom buffer sizes to use instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// CreateBuffer allocates a device buffer owned by the caller.
	//
	// Parameters:
	//   - label: the debug label of the buffer
	//   - size: the size in bytes
	//   - usage: the buffer usage flags
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: ErrNoDevice on the software backend, or the allocation error
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error)

	// ReadBuffer copies bytes out of a device buffer, blocking until the copy completes.
	//
	// Parameters:
	//   - buf: the buffer to read, created with CopySrc usage
	//   - offset: the byte offset to start at
	//   - size: the number of bytes to read
	//
	// Returns:
	//   - []byte: the copied bytes
	//   - error: ErrNoDevice on the software backend, or the readback error
	ReadBuffer(buf *wgpu.Buffer, offset, size uint64) ([]byte, error)

	// WriteBuffers writes all staged buffer writes to the device queue.
	// Each BufferWrite targets a specific buffer on a BindGroupProvider at a given binding and offset.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginComputeFrame starts recording a batch of compute dispatches submitted as one unit.
	// Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the batch could not be started
	BeginComputeFrame() error

	// EndComputeFrame submits the recorded batch. Dispatches run in recording order and each
	// one completes before the next begins. If the device was marked lost, the batch is
	// dropped without running and ErrDeviceLost is returned.
	//
	// Returns:
	//   - error: ErrDeviceLost, or an error from submission
	EndComputeFrame() error

	// DiscardComputeFrame drops the batch being recorded without running any of it. Used when
	// recording fails part way through a frame.
	DiscardComputeFrame()

	// DispatchCompute looks up the cached compute Pipeline by key and records a direct dispatch
	// into the current batch.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached compute Pipeline to use
	//   - computeProvider: the BindGroupProvider whose BindGroup is bound at group 0
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: ErrPipelineNotFound, ErrNoComputeFrame, or nil
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// DispatchComputeIndirect looks up the cached compute Pipeline by key and records a dispatch
	// whose workgroup counts are read from args when the dispatch executes.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached compute Pipeline to use
	//   - computeProvider: the BindGroupProvider whose BindGroup is bound at group 0
	//   - args: the location of the workgroup counts
	//
	// Returns:
	//   - error: ErrPipelineNotFound, ErrNoComputeFrame, or nil
	DispatchComputeIndirect(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, args IndirectArgs) error

	// BeginFrame acquires the swapchain texture and begins the present render pass.
	// Must be paired with EndFrame.
	//
	// Returns:
	//   - error: ErrNoSurface when headless, or an error acquiring the swapchain texture
	BeginFrame() error

	// DrawFullscreen draws one full-screen triangle with the cached render Pipeline.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached render Pipeline to use
	//   - bindGroups: providers bound at groups 0..n-1
	//
	// Returns:
	//   - error: ErrPipelineNotFound if the key is not cached
	DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndFrame ends the present render pass and submits the command buffer.
	// Does not present the surface; call Present() after EndFrame to display the frame.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	// Must be called once per frame after EndFrame.
	Present()

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SetDeviceLost marks the device as lost or recovered. While lost, EndComputeFrame drops
	// every batch.
	//
	// Parameters:
	//   - lost: the new device state
	SetDeviceLost(lost bool)

	// DeviceLost reports whether the device is currently marked lost.
	//
	// Returns:
	//   - bool: true if batches are being dropped
	DeviceLost() bool

	// Release frees the device and every cached pipeline.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend. A nil window creates a
// headless renderer: dispatch and readback work, presentation returns ErrNoSurface.
//
// Parameters:
//   - backendType: the device to execute dispatches on
//   - win: the window providing the presentation surface, or nil for headless use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if no WebGPU adapter or device could be obtained
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		headless:      win == nil,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeSoftware:
		r.headless = true
		r.backend = newSoftwareRendererBackend(common.Coalesce(r.workers, max(runtime.NumCPU()-1, 1)))
	case BackendTypeWGPU:
		var desc *wgpu.SurfaceDescriptor
		if win != nil {
			desc = win.SurfaceDescriptor()
		}
		b, err := newWGPURendererBackend(desc, r.forceFallbackAdapter)
		if err != nil {
			return nil, err
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if win != nil {
		r.backend.ConfigureSurface(win.Width(), win.Height())
	}

	common.Logger().Info("renderer created", "backend", backendType.String(), "headless", r.headless, "fallback_adapter", r.forceFallbackAdapter)
	return r, nil
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Headless() bool {
	return r.headless
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		validateShaders(p)
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return fmt.Errorf("failed to register compute pipeline %s: %w", key, err)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return fmt.Errorf("failed to register render pipeline %s: %w", key, err)
			}
		}
		r.pipelineCache[key] = p
	}
	return nil
}

// validateShaders compiles every stage of p to SPIR-V with naga and reports each stage it
// rejects. naga does not cover all of WGSL yet, so a rejection is logged and registration
// still goes to the device compiler.
func validateShaders(p pipeline.Pipeline) int {
	rejected := 0
	for _, st := range []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
		s := p.Shader(st)
		if s == nil {
			continue
		}
		if _, err := s.Validate(); err != nil {
			rejected++
			common.Logger().Warn("shader validation failed", "pipeline", p.PipelineKey(), "shader", s.Key(), "error", err)
		}
	}
	return rejected
}

func (r *renderer) SetPipeline(key string, p pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache[key] = p
}

func (r *renderer) SetPipelines(pipelines map[string]pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache = pipelines
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return r.backend.CreateBuffer(label, size, usage)
}

func (r *renderer) ReadBuffer(buf *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	return r.backend.ReadBuffer(buf, offset, size)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.WriteBuffers(writes)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) EndComputeFrame() error {
	if r.deviceLost.Load() {
		r.backend.DiscardComputeFrame()
		return ErrDeviceLost
	}
	return r.backend.EndComputeFrame()
}

func (r *renderer) DiscardComputeFrame() {
	r.backend.DiscardComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	p, err := r.computePipeline(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DispatchCompute(p, computeProvider, workGroupCount)
}

func (r *renderer) DispatchComputeIndirect(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, args IndirectArgs) error {
	p, err := r.computePipeline(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DispatchComputeIndirect(p, computeProvider, args)
}

func (r *renderer) computePipeline(key string) (pipeline.Pipeline, error) {
	r.mu.Lock()
	p, exists := r.pipelineCache[key]
	r.mu.Unlock()

	if !exists || p.Type() != pipeline.PipelineTypeCompute {
		return nil, fmt.Errorf("%w: compute pipeline %q", ErrPipelineNotFound, key)
	}
	return p, nil
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()

	if !exists || p.Type() != pipeline.PipelineTypeRender {
		return fmt.Errorf("%w: render pipeline %q", ErrPipelineNotFound, pipelineKey)
	}

	r.backend.DrawFullscreen(p, bindGroups)
	return nil
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) SetDeviceLost(lost bool) {
	if r.deviceLost.Swap(lost) != lost {
		common.Logger().Warn("renderer device state changed", "lost", lost)
	}
}

func (r *renderer) DeviceLost() bool {
	return r.deviceLost.Load()
}

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()
	r.backend.Release()
}
