package renderer

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer/shader"
)

const testKernelSource = `
@compute @workgroup_size(4, 2, 1)
fn main(@builtin(global_invocation_id) id: vec3u) {
}
`

func newTestRenderer(t *testing.T) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, nil, WithWorkers(4))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func newTestPipeline(key string, k pipeline.KernelFactory) pipeline.Pipeline {
	s := shader.NewShaderFromSource(key, shader.ShaderTypeCompute, testKernelSource)
	return pipeline.NewPipeline(key, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s), pipeline.WithKernel(k))
}

func counting(n *atomic.Uint32) pipeline.KernelFactory {
	return func() pipeline.Kernel {
		return func(id [3]uint32) { n.Add(1) }
	}
}

func TestDispatchCoversGrid(t *testing.T) {
	r := newTestRenderer(t)

	var mu sync.Mutex
	seen := make(map[[3]uint32]int)
	p := newTestPipeline("grid", func() pipeline.Kernel {
		return func(id [3]uint32) {
			mu.Lock()
			seen[id]++
			mu.Unlock()
		}
	})
	if err := r.RegisterPipelines(p); err != nil {
		t.Fatal(err)
	}
	provider := bind_group_provider.NewBindGroupProvider("grid")

	if err := r.BeginComputeFrame(); err != nil {
		t.Fatal(err)
	}
	if err := r.DispatchCompute("grid", provider, [3]uint32{3, 2, 2}); err != nil {
		t.Fatal(err)
	}
	if err := r.EndComputeFrame(); err != nil {
		t.Fatal(err)
	}

	// 3x2x2 workgroups of 4x2x1 cover a 12x4x2 grid
	if len(seen) != 12*4*2 {
		t.Fatalf("got %d distinct ids, expected %d", len(seen), 12*4*2)
	}
	for id, n := range seen {
		if n != 1 || id[0] >= 12 || id[1] >= 4 || id[2] >= 2 {
			t.Fatalf("id %v ran %d times", id, n)
		}
	}
}

func TestDispatchesRunInOrder(t *testing.T) {
	r := newTestRenderer(t)

	var produced atomic.Uint32
	var observed uint32
	args := [3]uint32{0, 1, 1}

	producer := newTestPipeline("producer", func() pipeline.Kernel {
		return func(id [3]uint32) {
			if produced.Add(1) == 1 {
				args[0] = 3
			}
		}
	})
	consumer := newTestPipeline("consumer", func() pipeline.Kernel {
		observed = produced.Load()
		return func(id [3]uint32) {}
	})
	var indirect atomic.Uint32
	sized := newTestPipeline("sized", counting(&indirect))
	if err := r.RegisterPipelines(producer, consumer, sized); err != nil {
		t.Fatal(err)
	}
	provider := bind_group_provider.NewBindGroupProvider("order")

	if err := r.BeginComputeFrame(); err != nil {
		t.Fatal(err)
	}
	for _, err := range []error{
		r.DispatchComputeIndirect("sized", provider, IndirectArgs{Host: &args}),
		r.DispatchCompute("producer", provider, [3]uint32{4, 1, 1}),
		r.DispatchCompute("consumer", provider, [3]uint32{1, 1, 1}),
		r.DispatchComputeIndirect("sized", provider, IndirectArgs{Host: &args}),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	if indirect.Load() != 0 || produced.Load() != 0 {
		t.Fatal("dispatches ran before the frame ended")
	}
	if err := r.EndComputeFrame(); err != nil {
		t.Fatal(err)
	}

	if observed != 4*8 {
		t.Errorf("got %d producer invocations before the consumer started, expected %d", observed, 4*8)
	}
	// the first indirect dispatch saw {0,1,1}, the second {3,1,1}
	if got := indirect.Load(); got != 3*8 {
		t.Errorf("got %d indirect invocations, expected %d", got, 3*8)
	}
}

func TestDeviceLostDropsBatch(t *testing.T) {
	r := newTestRenderer(t)

	var n atomic.Uint32
	if err := r.RegisterPipelines(newTestPipeline("count", counting(&n))); err != nil {
		t.Fatal(err)
	}
	provider := bind_group_provider.NewBindGroupProvider("count")

	run := func() error {
		if err := r.BeginComputeFrame(); err != nil {
			return err
		}
		if err := r.DispatchCompute("count", provider, [3]uint32{1, 1, 1}); err != nil {
			return err
		}
		return r.EndComputeFrame()
	}

	r.SetDeviceLost(true)
	if !r.DeviceLost() {
		t.Fatal("expected the device to be marked lost")
	}
	if err := run(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("got %v, expected %v", err, ErrDeviceLost)
	}
	if n.Load() != 0 {
		t.Errorf("got %d invocations on a lost device, expected 0", n.Load())
	}

	r.SetDeviceLost(false)
	if err := run(); err != nil {
		t.Fatal(err)
	}
	if n.Load() != 8 {
		t.Errorf("got %d invocations, expected 8", n.Load())
	}
}

func TestDispatchErrors(t *testing.T) {
	r := newTestRenderer(t)
	var n atomic.Uint32
	if err := r.RegisterPipelines(newTestPipeline("count", counting(&n))); err != nil {
		t.Fatal(err)
	}
	provider := bind_group_provider.NewBindGroupProvider("errors")

	if err := r.DispatchCompute("count", provider, [3]uint32{1, 1, 1}); !errors.Is(err, ErrNoComputeFrame) {
		t.Errorf("got %v, expected %v", err, ErrNoComputeFrame)
	}
	if err := r.EndComputeFrame(); !errors.Is(err, ErrNoComputeFrame) {
		t.Errorf("got %v, expected %v", err, ErrNoComputeFrame)
	}

	if err := r.BeginComputeFrame(); err != nil {
		t.Fatal(err)
	}
	if err := r.DispatchCompute("missing", provider, [3]uint32{1, 1, 1}); !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("got %v, expected %v", err, ErrPipelineNotFound)
	}
	if err := r.DispatchComputeIndirect("count", provider, IndirectArgs{}); err == nil {
		t.Error("expected an error for missing host arguments")
	}
	if err := r.DispatchCompute("count", provider, [3]uint32{0, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.EndComputeFrame(); err != nil {
		t.Fatal(err)
	}
	if n.Load() != 0 {
		t.Errorf("got %d invocations for an empty dispatch, expected 0", n.Load())
	}

	if _, err := r.ReadBuffer(nil, 0, 4); !errors.Is(err, ErrNoDevice) {
		t.Errorf("got %v, expected %v", err, ErrNoDevice)
	}
	if err := r.BeginFrame(); !errors.Is(err, ErrNoSurface) {
		t.Errorf("got %v, expected %v", err, ErrNoSurface)
	}
	if !r.Headless() || r.BackendType() != BackendTypeSoftware {
		t.Errorf("got headless %v backend %v, expected a headless software renderer", r.Headless(), r.BackendType())
	}
}

func TestRegisterRequiresKernel(t *testing.T) {
	r := newTestRenderer(t)
	s := shader.NewShaderFromSource("bare", shader.ShaderTypeCompute, testKernelSource)
	p := pipeline.NewPipeline("bare", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s))
	if err := r.RegisterPipelines(p); err == nil {
		t.Error("expected an error registering a pipeline without a host kernel")
	}
	if r.Pipeline("bare") != nil {
		t.Error("failed registration should not cache the pipeline")
	}
}

func TestRegisterLogsRejectedShaders(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { common.SetLogger(nil) })

	const broken = `
@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3u) {
    let x: u32 = undefined_value;
}
`
	s := shader.NewShaderFromSource("broken", shader.ShaderTypeCompute, broken)
	p := pipeline.NewPipeline("broken", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(s), pipeline.WithKernel(func() pipeline.Kernel { return func([3]uint32) {} }))
	if got := validateShaders(p); got != 1 {
		t.Errorf("got %d rejected shaders, expected 1", got)
	}

	r := newTestRenderer(t)
	if err := r.RegisterPipelines(p); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if r.Pipeline("broken") == nil {
		t.Error("pipeline missing from cache")
	}
	out := buf.String()
	for _, field := range []string{"shader validation failed", "pipeline=broken"} {
		if !strings.Contains(out, field) {
			t.Errorf("got %q, expected it to contain %q", out, field)
		}
	}
}

func TestWorkgroupID(t *testing.T) {
	groups := [3]uint32{3, 2, 2}
	seen := make(map[[3]uint32]bool)
	for g := range uint64(12) {
		id := workgroupID(g, groups)
		if id[0] >= 3 || id[1] >= 2 || id[2] >= 2 {
			t.Fatalf("group %d mapped out of range to %v", g, id)
		}
		seen[id] = true
	}
	if len(seen) != 12 {
		t.Errorf("got %d distinct workgroups, expected 12", len(seen))
	}
}
