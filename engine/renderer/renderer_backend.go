package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the compute device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the host backend, which executes the Kernel attached to each
	// compute pipeline on a worker pool. It has no surface and no device memory.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

var (
	// ErrDeviceLost is returned by EndComputeFrame when the device was lost before the
	// recorded batch could be submitted. The batch is dropped.
	ErrDeviceLost = errors.New("renderer: device lost")

	// ErrPipelineNotFound is returned when a dispatch or draw names an unregistered pipeline.
	ErrPipelineNotFound = errors.New("renderer: pipeline not found")

	// ErrNoSurface is returned by BeginFrame when the renderer was created without a window.
	ErrNoSurface = errors.New("renderer: no presentation surface")

	// ErrNoDevice is returned by device memory operations on the software backend.
	ErrNoDevice = errors.New("renderer: backend has no device memory")

	// ErrNoComputeFrame is returned when a dispatch is recorded outside BeginComputeFrame and
	// EndComputeFrame.
	ErrNoComputeFrame = errors.New("renderer: no compute frame in progress")
)

// IndirectArgs locates the workgroup counts of an indirect dispatch. The counts are read when
// the dispatch executes, never when it is recorded. The WebGPU backend reads Buffer at Offset;
// the software backend reads Host.
type IndirectArgs struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Host   *[3]uint32
}

// RendererBackend is the device-level interface the Renderer forwards to. Every method
// that records work is only valid between the matching Begin and End calls.
type RendererBackend interface {
	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	// Backends without a surface ignore the call.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// RegisterRenderPipeline creates the render pipeline described by p and stores it on p.
	//
	// Parameters:
	//   - p: the pipeline object containing the vertex and fragment shaders
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// RegisterComputePipeline creates the compute pipeline described by p and stores it on p.
	//
	// Parameters:
	//   - p: the pipeline object containing the compute shader
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitBindGroup creates any missing GPU buffers and a bind group from a layout descriptor and
	// stores them on the provider. Buffers already set on the provider are bound as they are.
	//
	// Parameters:
	//   - provider: the BindGroupProvider describing the storage for the bind group
	//   - descriptor: the BindGroupLayoutDescriptor describing the layout of the bind group
	//   - bufferUsageOverrides: extra usage flags keyed by binding index
	//   - bufferSizeOverrides: buffer sizes keyed by binding index
	//
	// Returns:
	//   - error: an error if the bind group could not be initialized, otherwise nil
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// CreateBuffer allocates a device buffer.
	//
	// Parameters:
	//   - label: the debug label of the buffer
	//   - size: the size in bytes
	//   - usage: the buffer usage flags
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: an error if allocation fails or the backend has no device memory
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error)

	// ReadBuffer copies size bytes at offset out of a device buffer, blocking until the copy
	// completes. The buffer must have been created with CopySrc usage.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - offset: the byte offset to start at
	//   - size: the number of bytes to read, a multiple of 4
	//
	// Returns:
	//   - []byte: the copied bytes
	//   - error: an error if the readback fails
	ReadBuffer(buf *wgpu.Buffer, offset, size uint64) ([]byte, error)

	// WriteBuffers writes all staged buffer writes to the device queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginComputeFrame starts recording a batch of compute dispatches that is submitted as
	// one unit by EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// EndComputeFrame submits the recorded batch. Dispatches execute in recording order and
	// each one completes before the next begins.
	//
	// Returns:
	//   - error: an error if the batch could not be finished or executed
	EndComputeFrame() error

	// DiscardComputeFrame drops the recorded batch without executing any of it.
	DiscardComputeFrame()

	// DispatchCompute records a direct dispatch of p.
	//
	// Parameters:
	//   - p: the compute pipeline to dispatch
	//   - computeProvider: the BindGroupProvider bound at group 0
	//   - workGroupCount: the number of workgroups in x, y and z
	//
	// Returns:
	//   - error: ErrNoComputeFrame if no batch is being recorded
	DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// DispatchComputeIndirect records a dispatch of p whose workgroup counts are read from
	// args when the dispatch executes.
	//
	// Parameters:
	//   - p: the compute pipeline to dispatch
	//   - computeProvider: the BindGroupProvider bound at group 0
	//   - args: the location of the workgroup counts
	//
	// Returns:
	//   - error: ErrNoComputeFrame if no batch is being recorded
	DispatchComputeIndirect(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, args IndirectArgs) error

	// BeginFrame acquires the next swapchain texture and begins the present render pass.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// DrawFullscreen draws a single full-screen triangle with p.
	//
	// Parameters:
	//   - p: the render pipeline to draw with
	//   - bindGroups: providers bound at groups 0..n-1
	DrawFullscreen(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider)

	// EndFrame ends the present render pass and submits it.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// Release frees device resources owned by the backend.
	Release()
}
