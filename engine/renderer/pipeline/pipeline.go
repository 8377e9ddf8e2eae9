package pipeline

import (
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// Kernel is the host implementation of one compute shader invocation. id is the global
// invocation id, the same value the WGSL entry point receives as global_invocation_id.
type Kernel func(id [3]uint32)

// KernelFactory prepares a Kernel when its dispatch starts executing. Per-dispatch state such
// as queue counts captured at stage entry is read by the factory, not when the dispatch is
// recorded.
type KernelFactory func() Kernel

// RasterState is the fixed-function state of a render pipeline. Blend is nil for opaque
// output.
type RasterState struct {
	Topology  wgpu.PrimitiveTopology
	FrontFace wgpu.FrontFace
	CullMode  wgpu.CullMode
	WriteMask wgpu.ColorWriteMask
	Blend     *wgpu.BlendState
}

// DefaultRasterState draws opaque, unculled triangle lists, which is what a fullscreen
// pass needs.
func DefaultRasterState() RasterState {
	return RasterState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  wgpu.CullModeNone,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
}

// pipeline is the implementation of the Pipeline interface.
// It holds the underlying WebGPU pipeline objects and related data for both render and compute pipelines.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType

	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	vertexShader, fragmentShader, computeShader shader.Shader

	renderPipeline  *wgpu.RenderPipeline
	computePipeline *wgpu.ComputePipeline

	// kernel is the host implementation used by the software backend, compute pipelines only
	kernel KernelFactory

	// raster is the fixed-function state of render pipelines
	raster RasterState
}

// Pipeline defines the interface for a GPU pipeline, encapsulating either a render pipeline
// (vertex + fragment shaders) or a compute pipeline (compute shader plus an optional host
// Kernel for the software backend).
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline
	// Note: The caller is responsible for type asserting the returned value as either pipeline type.
	//
	// Returns:
	//   - any: the underlying pipeline object.
	Pipeline() any

	// Kernel returns the host kernel factory, or nil if the pipeline has none.
	//
	// Returns:
	//   - KernelFactory: the factory set with WithKernel
	Kernel() KernelFactory

	// Raster returns the fixed-function state used when the render pipeline is created.
	// Compute pipelines ignore it.
	//
	// Returns:
	//   - RasterState: the configured raster state
	Raster() RasterState

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetComputePipeline sets the compute pipeline
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	SetComputePipeline(p *wgpu.ComputePipeline)

	// Release frees the underlying WebGPU pipeline object, if any.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		raster:       DefaultRasterState(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) Kernel() KernelFactory {
	return p.kernel
}

func (p *pipeline) Raster() RasterState {
	return p.raster
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}
