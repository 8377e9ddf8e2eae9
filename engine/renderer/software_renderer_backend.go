package renderer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// softwareRendererBackendImpl executes compute pipelines on the host. Dispatches recorded
// between BeginComputeFrame and EndComputeFrame are queued as commands and run in order at
// EndComputeFrame; each command splits its workgroups into tasks on the worker pool and
// waits for all of them before the next command starts.
type softwareRendererBackendImpl struct {
	mu      *sync.Mutex
	pool    worker.DynamicWorkerPool
	workers int

	recording bool
	commands  []func() error
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(workers int) *softwareRendererBackendImpl {
	return &softwareRendererBackendImpl{
		mu:      &sync.Mutex{},
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers: workers,
	}
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {}

func (b *softwareRendererBackendImpl) SetPresentMode(mode PresentMode) {}

func (b *softwareRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	return nil
}

func (b *softwareRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Kernel() == nil {
		return fmt.Errorf("compute pipeline %s has no host kernel", p.PipelineKey())
	}
	return nil
}

func (b *softwareRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return nil
}

func (b *softwareRendererBackendImpl) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return nil, ErrNoDevice
}

func (b *softwareRendererBackendImpl) ReadBuffer(buf *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	return nil, ErrNoDevice
}

func (b *softwareRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {}

func (b *softwareRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recording = true
	b.commands = b.commands[:0]
	return nil
}

func (b *softwareRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	if !b.recording {
		b.mu.Unlock()
		return ErrNoComputeFrame
	}
	commands := b.commands
	b.commands = nil
	b.recording = false
	b.mu.Unlock()

	for _, cmd := range commands {
		if err := cmd(); err != nil {
			return err
		}
	}
	return nil
}

func (b *softwareRendererBackendImpl) DiscardComputeFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commands = nil
	b.recording = false
}

func (b *softwareRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	return b.record(p, func() [3]uint32 { return workGroupCount })
}

func (b *softwareRendererBackendImpl) DispatchComputeIndirect(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, args IndirectArgs) error {
	if args.Host == nil {
		return errors.New("indirect dispatch requires host arguments on the software backend")
	}
	return b.record(p, func() [3]uint32 { return *args.Host })
}

// record queues a dispatch of p. groups is evaluated when the command runs, after every
// earlier command has completed.
func (b *softwareRendererBackendImpl) record(p pipeline.Pipeline, groups func() [3]uint32) error {
	factory := p.Kernel()
	if factory == nil {
		return fmt.Errorf("%w: %s has no host kernel", ErrPipelineNotFound, p.PipelineKey())
	}
	size := [3]uint32{1, 1, 1}
	if s := p.Shader(shader.ShaderTypeCompute); s != nil {
		size = s.WorkgroupSize()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return ErrNoComputeFrame
	}
	b.commands = append(b.commands, func() error {
		b.execute(factory, groups(), size)
		return nil
	})
	return nil
}

// execute runs every invocation of one dispatch and returns once all have finished.
func (b *softwareRendererBackendImpl) execute(factory pipeline.KernelFactory, groups, size [3]uint32) {
	total := uint64(groups[0]) * uint64(groups[1]) * uint64(groups[2])
	if total == 0 {
		return
	}
	kernel := factory()

	tasks := min(total, uint64(b.workers*4))
	chunk := (total + tasks - 1) / tasks

	var wg sync.WaitGroup
	for start := uint64(0); start < total; start += chunk {
		end := min(start+chunk, total)
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: int(start),
			Do: func() (any, error) {
				defer wg.Done()
				for g := start; g < end; g++ {
					runWorkgroup(kernel, workgroupID(g, groups), size)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// workgroupID converts a linear workgroup index into its x, y, z coordinates.
func workgroupID(g uint64, groups [3]uint32) [3]uint32 {
	gx, gy := uint64(groups[0]), uint64(groups[1])
	return [3]uint32{uint32(g % gx), uint32(g / gx % gy), uint32(g / (gx * gy))}
}

func runWorkgroup(kernel pipeline.Kernel, group, size [3]uint32) {
	for z := range size[2] {
		for y := range size[1] {
			for x := range size[0] {
				kernel([3]uint32{group[0]*size[0] + x, group[1]*size[1] + y, group[2]*size[2] + z})
			}
		}
	}
}

func (b *softwareRendererBackendImpl) BeginFrame() error {
	return ErrNoSurface
}

func (b *softwareRendererBackendImpl) DrawFullscreen(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider) {
}

func (b *softwareRendererBackendImpl) EndFrame() {}

func (b *softwareRendererBackendImpl) Present() {}

func (b *softwareRendererBackendImpl) Release() {
	b.DiscardComputeFrame()
}
