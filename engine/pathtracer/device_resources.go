package pathtracer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/accumulation"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/camera"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/frame"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/queue"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device buffers are named by the WGSL variable every kernel binds them to.
const (
	varParams    = "params"
	varCamera    = "camera"
	varRays      = "rays"
	varHits      = "hits"
	varEscaped   = "escaped"
	varCounters  = "counters"
	varArgs      = "args"
	varVertices  = "vertices"
	varTriangles = "triangles"
	varNodes     = "bvh_nodes"
	varMaterials = "materials"
	varRadiance  = "radiance"
	varCounts    = "counts"
)

// deviceBufferOrder fixes the binding index of each buffer on the uploads provider.
var deviceBufferOrder = []string{
	varParams, varCamera, varRays, varHits, varEscaped, varCounters, varArgs,
	varVertices, varTriangles, varNodes, varMaterials, varRadiance, varCounts,
}

// deviceResources owns the WebGPU buffers of one viewport size and scene, and one bind group
// per kernel that shares them.
type deviceResources struct {
	buffers   map[string]*wgpu.Buffer
	providers map[string]bind_group_provider.BindGroupProvider
	present   bind_group_provider.BindGroupProvider

	// uploads holds every buffer at its deviceBufferOrder index so host writes can address
	// them through the renderer's BufferWrite.
	uploads bind_group_provider.BindGroupProvider
}

// newDeviceResources builds the device buffers and bind groups for a width x height viewport
// over bvh without touching the current set, so a failure leaves the path tracer as it was.
// The software device needs none and gets nil.
func (p *pathTracer) newDeviceResources(width, height int, bvh *geometry.BVH) (*deviceResources, error) {
	if p.r.BackendType() == renderer.BackendTypeSoftware {
		return nil, nil
	}

	d := &deviceResources{
		buffers:   make(map[string]*wgpu.Buffer, len(deviceBufferOrder)),
		providers: make(map[string]bind_group_provider.BindGroupProvider),
		uploads:   bind_group_provider.NewBindGroupProvider("pathtracer_uploads"),
	}

	scene := bvh.Scene()
	vertices := geometry.MarshalVertices(scene)
	triangles := geometry.MarshalTriangles(scene)
	materials := geometry.MarshalMaterials(scene)
	nodes := geometry.MarshalNodes(bvh.Nodes())
	if len(nodes) == 0 {
		nodes = make([]byte, geometry.NodeStride)
	}

	pixels := uint64(max(width*height, 1))
	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	sizes := map[string]struct {
		size  uint64
		usage wgpu.BufferUsage
	}{
		varParams:    {frame.ParamsSize, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		varCamera:    {camera.GPUCameraUniformSize, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		varRays:      {pixels * queue.RayRecordSize, storage},
		varHits:      {pixels * queue.HitRecordSize, storage},
		varEscaped:   {pixels * queue.RayRecordSize, storage},
		varCounters:  {queue.CountersSize, storage | wgpu.BufferUsageCopySrc},
		varArgs:      {argsCount * dispatch.ArgsSize, storage | wgpu.BufferUsageIndirect},
		varVertices:  {uint64(len(vertices)), storage},
		varTriangles: {uint64(len(triangles)), storage},
		varNodes:     {uint64(len(nodes)), storage},
		varMaterials: {uint64(len(materials)), storage},
		varRadiance:  {pixels * accumulation.RadianceStride, storage | wgpu.BufferUsageCopySrc},
		varCounts:    {pixels * accumulation.CountStride, storage | wgpu.BufferUsageCopySrc},
	}

	for i, name := range deviceBufferOrder {
		alloc := sizes[name]
		buf, err := p.r.CreateBuffer("pathtracer "+name, alloc.size, alloc.usage)
		if err != nil {
			d.release()
			return nil, fmt.Errorf("pathtracer: failed to create %s buffer: %w", name, err)
		}
		d.buffers[name] = buf
		d.uploads.ShareBuffer(i, buf)
	}

	for _, cp := range p.kernels.compute {
		s := cp.Shader(shader.ShaderTypeCompute)
		bgp, err := d.bind(p.r, cp.PipelineKey(), s)
		if err != nil {
			d.release()
			return nil, err
		}
		d.providers[cp.PipelineKey()] = bgp
	}
	if p.kernels.present != nil {
		bgp, err := d.bind(p.r, pipelinePresent, p.kernels.present.Shader(shader.ShaderTypeFragment))
		if err != nil {
			d.release()
			return nil, err
		}
		d.present = bgp
	}

	p.r.WriteBuffers([]bind_group_provider.BufferWrite{
		d.write(varVertices, vertices),
		d.write(varTriangles, triangles),
		d.write(varNodes, nodes),
		d.write(varMaterials, materials),
	})

	common.Logger().Debug("path tracer device buffers allocated", "pixels", pixels, "triangles", len(scene.Triangles))
	return d, nil
}

// swapDevice installs d and releases the set it replaces.
func (p *pathTracer) swapDevice(d *deviceResources) {
	if p.device != nil {
		p.device.release()
	}
	p.device = d
}

// bind creates the group 0 bind group of s from the shared buffers its declarations name.
func (d *deviceResources) bind(r renderer.Renderer, label string, s shader.Shader) (bind_group_provider.BindGroupProvider, error) {
	bgp := bind_group_provider.NewBindGroupProvider(label)
	for _, decl := range s.Declarations() {
		if *decl.Group != 0 {
			continue
		}
		buf, ok := d.buffers[decl.VarName()]
		if !ok {
			return nil, fmt.Errorf("pathtracer: %s binds unknown buffer %q", label, decl.VarName())
		}
		bgp.ShareBuffer(*decl.Binding, buf)
	}
	if err := r.InitBindGroup(bgp, s.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return nil, fmt.Errorf("pathtracer: failed to init %s bind group: %w", label, err)
	}
	return bgp, nil
}

func (d *deviceResources) write(name string, data []byte) bind_group_provider.BufferWrite {
	for i, n := range deviceBufferOrder {
		if n == name {
			return bind_group_provider.BufferWrite{Provider: d.uploads, Binding: i, Data: data}
		}
	}
	panic("pathtracer: unknown device buffer " + name)
}

// uniformWrites returns the per-frame uniform uploads. The software device reads the host
// copies directly and gets none.
func (p *pathTracer) uniformWrites() []bind_group_provider.BufferWrite {
	if p.device == nil {
		return nil
	}
	return []bind_group_provider.BufferWrite{
		p.device.write(varParams, p.params.Marshal()),
		p.device.write(varCamera, p.camera.Marshal()),
	}
}

// readAccumulation copies the radiance and count buffers back to the host.
func (d *deviceResources) readAccumulation(r renderer.Renderer, width, height int) (*accumulation.Buffer, error) {
	pixels := uint64(width * height)
	radiance, err := r.ReadBuffer(d.buffers[varRadiance], 0, pixels*accumulation.RadianceStride)
	if err != nil {
		return nil, fmt.Errorf("pathtracer: failed to read radiance: %w", err)
	}
	counts, err := r.ReadBuffer(d.buffers[varCounts], 0, pixels*accumulation.CountStride)
	if err != nil {
		return nil, fmt.Errorf("pathtracer: failed to read sample counts: %w", err)
	}
	return accumulation.FromGPU(width, height, radiance, counts)
}

// readCounters copies the queue counters back to the host.
func (d *deviceResources) readCounters(r renderer.Renderer) ([3]uint32, error) {
	buf, err := r.ReadBuffer(d.buffers[varCounters], 0, queue.CountersSize)
	if err != nil {
		return [3]uint32{}, err
	}
	return queue.UnmarshalCounters(buf), nil
}

func (d *deviceResources) release() {
	for _, bgp := range d.providers {
		bgp.Release()
	}
	if d.present != nil {
		d.present.Release()
	}
	for _, buf := range d.buffers {
		buf.Release()
	}
	d.providers = nil
	d.buffers = nil
}
