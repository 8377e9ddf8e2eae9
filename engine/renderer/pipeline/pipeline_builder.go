package pipeline

import (
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets the vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for this pipeline.
//
// Parameters:
//   - s: the fragment shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentShader = s
	}
}

// WithComputeShader sets the compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithKernel attaches the host implementation of the compute shader. The software backend
// calls the factory once per dispatch, when the dispatch starts executing, and runs the
// returned Kernel once per invocation.
//
// Parameters:
//   - k: the kernel factory
//
// Returns:
//   - PipelineBuilderOption: a function that sets the kernel for this pipeline
func WithKernel(k KernelFactory) PipelineBuilderOption {
	return func(p *pipeline) {
		p.kernel = k
	}
}

// WithRasterState replaces the default raster state of a render pipeline.
func WithRasterState(state RasterState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.raster = state
	}
}
