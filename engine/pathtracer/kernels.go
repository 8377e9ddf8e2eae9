package pathtracer

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/queue"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/rng"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/sampling"
)

// Pipeline keys registered on the renderer.
const (
	kernelClear            = "pathtracer_clear"
	kernelReset            = "pathtracer_reset"
	kernelGenerate         = "pathtracer_generate"
	kernelWriteTraceSize   = "pathtracer_write_trace_size"
	kernelIntersect        = "pathtracer_intersect"
	kernelWriteEscapedSize = "pathtracer_write_escaped_size"
	kernelWriteScatterSize = "pathtracer_write_scatter_size"
	kernelTerminate        = "pathtracer_terminate"
	kernelScatter          = "pathtracer_scatter"
	kernelMegakernel       = "pathtracer_megakernel"
	pipelinePresent        = "pathtracer_present"
)

// workgroupWidthToken is replaced with the configured indirect workgroup width before a
// kernel is parsed.
const workgroupWidthToken = "WORKGROUP_WIDTH"

var (
	//go:embed assets/clear.wgsl
	clearSource string

	//go:embed assets/reset.wgsl
	resetSource string

	//go:embed assets/generate.wgsl
	generateSource string

	//go:embed assets/write_trace_size.wgsl
	writeTraceSizeSource string

	//go:embed assets/intersect.wgsl
	intersectSource string

	//go:embed assets/write_escaped_size.wgsl
	writeEscapedSizeSource string

	//go:embed assets/write_scatter_size.wgsl
	writeScatterSizeSource string

	//go:embed assets/terminate.wgsl
	terminateSource string

	//go:embed assets/scatter.wgsl
	scatterSource string

	//go:embed assets/megakernel.wgsl
	megakernelSource string

	//go:embed assets/present_vertex.wgsl
	presentVertexSource string

	//go:embed assets/present_fragment.wgsl
	presentFragmentSource string
)

// kernelSet holds the compute pipelines of the frame state machine in registration order
// and the present pipeline when a surface exists.
type kernelSet struct {
	compute []pipeline.Pipeline
	present pipeline.Pipeline
}

func (k *kernelSet) pipelines() []pipeline.Pipeline {
	if k.present == nil {
		return k.compute
	}
	return append(append([]pipeline.Pipeline(nil), k.compute...), k.present)
}

// computeShader returns the compute shader of the pipeline registered under key.
func (k *kernelSet) computeShader(key string) shader.Shader {
	for _, p := range k.compute {
		if p.PipelineKey() == key {
			return p.Shader(shader.ShaderTypeCompute)
		}
	}
	return nil
}

// newKernelSet builds every pipeline, each with its WGSL kernel for the device and its host
// kernel for the software backend.
func (p *pathTracer) newKernelSet() *kernelSet {
	width := strconv.FormatUint(uint64(p.workgroupWidth), 10)
	compute := func(key, source string, factory pipeline.KernelFactory) pipeline.Pipeline {
		s := shader.NewShaderFromSource(key, shader.ShaderTypeCompute, strings.ReplaceAll(source, workgroupWidthToken, width))
		return pipeline.NewPipeline(key, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(s),
			pipeline.WithKernel(factory),
		)
	}

	k := &kernelSet{
		compute: []pipeline.Pipeline{
			compute(kernelClear, clearSource, p.clearKernel),
			compute(kernelReset, resetSource, p.resetKernel),
			compute(kernelGenerate, generateSource, p.generateKernel),
			compute(kernelWriteTraceSize, writeTraceSizeSource, p.writeTraceSizeKernel),
			compute(kernelIntersect, intersectSource, p.intersectKernel),
			compute(kernelWriteEscapedSize, writeEscapedSizeSource, p.writeEscapedSizeKernel),
			compute(kernelWriteScatterSize, writeScatterSizeSource, p.writeScatterSizeKernel),
			compute(kernelTerminate, terminateSource, p.terminateKernel),
			compute(kernelScatter, scatterSource, p.scatterKernel),
			compute(kernelMegakernel, megakernelSource, p.megakernelKernel),
		},
	}
	if !p.r.Headless() {
		k.present = pipeline.NewPipeline(pipelinePresent, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(shader.NewShaderFromSource(pipelinePresent+"_vertex", shader.ShaderTypeVertex, presentVertexSource)),
			pipeline.WithFragmentShader(shader.NewShaderFromSource(pipelinePresent+"_fragment", shader.ShaderTypeFragment, presentFragmentSource)),
		)
	}
	return k
}

// ── host kernels ───────────────────────────────────────────────────────────────
// Each factory runs when its dispatch starts executing, after every earlier dispatch of the
// batch has completed, and captures the queue count its stage iterates over.

func (p *pathTracer) clearKernel() pipeline.Kernel {
	return func(id [3]uint32) {
		p.store.Reset()
	}
}

func (p *pathTracer) resetKernel() pipeline.Kernel {
	w, h := p.params.Width, p.params.Height
	return func(id [3]uint32) {
		if id[0] >= w || id[1] >= h {
			return
		}
		p.accum.ClearPixel(int(id[0]), int(id[1]))
	}
}

func (p *pathTracer) generateKernel() pipeline.Kernel {
	w, h := p.params.Width, p.params.Height
	return func(id [3]uint32) {
		if id[0] >= w || id[1] >= h {
			return
		}
		origin, dir := p.camera.Ray(pixelNDC(id[0], id[1], w, h))
		p.store.AppendRay(queue.RayRecord{
			Origin:     origin,
			Direction:  dir,
			Throughput: common.Vec3{1, 1, 1},
			Pixel:      [2]uint32{id[0], id[1]},
		})
	}
}

func (p *pathTracer) writeTraceSizeKernel() pipeline.Kernel {
	return func(id [3]uint32) {
		dispatch.WriteTraceSize(&p.store.Counters, &p.hostArgs[argsTrace], p.workgroupWidth)
	}
}

func (p *pathTracer) writeEscapedSizeKernel() pipeline.Kernel {
	return func(id [3]uint32) {
		dispatch.WriteEscapedSize(&p.store.Counters, &p.hostArgs[argsEscaped], p.workgroupWidth)
	}
}

func (p *pathTracer) writeScatterSizeKernel() pipeline.Kernel {
	return func(id [3]uint32) {
		dispatch.WriteScatterSize(&p.store.Counters, &p.hostArgs[argsScatter], p.workgroupWidth)
	}
}

func (p *pathTracer) intersectKernel() pipeline.Kernel {
	n := p.store.Counters.Load(queue.QueueRay)
	return func(id [3]uint32) {
		if id[0] >= n {
			return
		}
		ray := p.store.Ray(id[0])
		hit, ok := p.bvh.Intersect(geometry.Ray{Origin: ray.Origin, Direction: ray.Direction}, geometry.DefaultTMin, maxDistance)
		if !ok {
			p.store.AppendEscaped(ray)
			return
		}
		p.store.AppendHit(queue.HitRecord{
			Position:   hit.Position,
			Normal:     p.shadingNormal(hit),
			View:       ray.Direction.Negate(),
			Throughput: ray.Throughput,
			Pixel:      ray.Pixel,
			SurfaceRef: hit.Triangle,
			Depth:      ray.Depth,
		})
	}
}

func (p *pathTracer) terminateKernel() pipeline.Kernel {
	n := p.store.Counters.Load(queue.QueueEscaped)
	return func(id [3]uint32) {
		if id[0] >= n {
			return
		}
		ray := p.store.Escaped(id[0])
		p.accum.Accumulate(ray.Pixel, p.params.Background.MultiplyVec(ray.Throughput))
	}
}

func (p *pathTracer) scatterKernel() pipeline.Kernel {
	n := p.store.Counters.Load(queue.QueueHit)
	return func(id [3]uint32) {
		if id[0] >= n {
			return
		}
		hit := p.store.Hit(id[0])
		s := rng.New(hit.Pixel[0], hit.Pixel[1], p.params.Frame)
		s.Skip(hit.Depth)
		rec := sampling.Lambert(&s, hit.Normal, hit.View)
		p.store.AppendRay(queue.RayRecord{
			Origin:     hit.Position,
			Direction:  rec.Direction,
			Throughput: scatterThroughput(hit.Throughput, p.bvh.Scene().Material(hit.SurfaceRef), rec),
			Pixel:      hit.Pixel,
			Depth:      hit.Depth + 1,
		})
	}
}

func (p *pathTracer) megakernelKernel() pipeline.Kernel {
	w, h := p.params.Width, p.params.Height
	return func(id [3]uint32) {
		if id[0] >= w || id[1] >= h {
			return
		}
		pixel := [2]uint32{id[0], id[1]}
		origin, dir := p.camera.Ray(pixelNDC(id[0], id[1], w, h))
		throughput := common.Vec3{1, 1, 1}
		s := rng.New(id[0], id[1], p.params.Frame)

		for range p.params.Bounces {
			hit, ok := p.bvh.Intersect(geometry.Ray{Origin: origin, Direction: dir}, geometry.DefaultTMin, maxDistance)
			if !ok {
				p.accum.Accumulate(pixel, p.params.Background.MultiplyVec(throughput))
				return
			}
			rec := sampling.Lambert(&s, p.shadingNormal(hit), dir.Negate())
			throughput = scatterThroughput(throughput, p.bvh.Scene().Material(hit.Triangle), rec)
			origin = hit.Position
			dir = rec.Direction
		}
	}
}

// maxDistance matches T_MAX in the intersect library.
const maxDistance = 3.4e38

func (p *pathTracer) shadingNormal(hit geometry.Hit) common.Vec3 {
	if p.params.SmoothNormals {
		return hit.Normal
	}
	return hit.FaceNormal
}

// scatterThroughput applies one bounce to a path's throughput in the same operation order as
// the scatter kernel.
func scatterThroughput(t common.Vec3, m geometry.Material, rec sampling.ScatterRecord) common.Vec3 {
	return t.MultiplyVec(m.Albedo).Multiply(rec.Weight())
}

// pixelNDC maps the center of pixel (x, y) to normalized device coordinates with y up.
func pixelNDC(x, y, w, h uint32) [2]float32 {
	return [2]float32{
		(float32(x)+0.5)/float32(w)*2 - 1,
		1 - (float32(y)+0.5)/float32(h)*2,
	}
}
