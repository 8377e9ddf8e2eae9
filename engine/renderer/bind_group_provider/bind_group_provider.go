package bind_group_provider

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources and must be released when no longer needed. They are populated by the Renderer during initialization, not by user-creation.

	// bindGroup is the GPU bind group created for this provider, or nil if not initialized with the Renderer.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is the GPU bind group layout created for this provider, or nil if not initialized with the Renderer.
	bindGroupLayout *wgpu.BindGroupLayout
	// buffers holds the GPU buffers bound by this provider, keyed by binding index.
	buffers map[int]*wgpu.Buffer
	// shared marks bindings whose buffer is owned elsewhere and must survive Release.
	shared map[int]bool
}

// BindGroupProvider describes the buffers bound at one bind group of a pipeline. The path
// tracer creates one provider per kernel; buffers used by several kernels (queues, counters,
// accumulation) are created once and shared into each provider, so only the owner frees them.
//
// Usage pattern:
//  1. The path tracer creates a provider per kernel and shares its common buffers into it
//  2. Renderer.InitBindGroup creates the remaining buffers and the bind group
//  3. Renderer.WriteBuffers uploads per-frame data through the provider's bindings
//  4. Dispatches bind BindGroup() at group 0
type BindGroupProvider interface {
	// Release releases the bind group, its layout, and every buffer this provider owns.
	// Shared buffers are only forgotten.
	Release()

	// Label returns the debug label for this provider.
	// Used for debugging and profiling purposes.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the created bind group layout for this provider.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer bound at a binding index.
	// Returns nil if no buffer is bound there.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// Buffers returns a map of all buffers associated with this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.Buffer: a map of buffers keyed by binding index
	Buffers() map[int]*wgpu.Buffer

	// Bindings returns the binding indices with a buffer set, in ascending order.
	//
	// Returns:
	//   - []int: the sorted binding indices
	Bindings() []int

	// IsShared reports whether the buffer at binding is owned elsewhere.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - bool: true if Release leaves the buffer alive
	IsShared(binding int) bool

	// SetBindGroup sets the bind group after GPU initialization.
	// Called by Renderer.InitBindGroup().
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout sets the bind group layout after GPU initialization.
	// Called by Renderer.InitBindGroup().
	//
	// Parameters:
	//   - bgl: the created bind group layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer stores a buffer this provider owns at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer to store
	SetBuffer(binding int, buf *wgpu.Buffer)

	// ShareBuffer stores a buffer owned by another provider or by the caller. The buffer is
	// bound like any other but is not released with this provider.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the shared buffer
	ShareBuffer(binding int, buf *wgpu.Buffer)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label, also used for the GPU objects created from the provider
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]*wgpu.Buffer),
		shared:  make(map[int]bool),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) Bindings() []int {
	bindings := make([]int, 0, len(p.buffers))
	for b := range p.buffers {
		bindings = append(bindings, b)
	}
	sort.Ints(bindings)
	return bindings
}

func (p *bindGroupProvider) IsShared(binding int) bool {
	return p.shared[binding]
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	delete(p.shared, binding)
}

func (p *bindGroupProvider) ShareBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
	p.shared[binding] = true
}

func (p *bindGroupProvider) Release() {
	for i, buf := range p.buffers {
		if buf != nil && !p.shared[i] {
			buf.Release()
		}
		delete(p.buffers, i)
		delete(p.shared, i)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}
