package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer sets an owned buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.SetBuffer(binding, buf)
	}
}

// WithSharedBuffers shares several buffers owned elsewhere, keyed by binding index.
//
// Parameters:
//   - buffers: a map of binding indices to shared buffers
//
// Returns:
//   - BindGroupProviderOption: a function that shares the buffers with this provider
func WithSharedBuffers(buffers map[int]*wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for b, buf := range buffers {
			p.ShareBuffer(b, buf)
		}
	}
}
