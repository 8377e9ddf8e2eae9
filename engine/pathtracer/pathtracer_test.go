package pathtracer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/accumulation"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

var identity = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithWorkers(4))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func newTestPathTracer(t *testing.T, r renderer.Renderer, options ...PathTracerBuilderOption) *pathTracer {
	t.Helper()
	pt, err := NewPathTracer(r, options...)
	if err != nil {
		t.Fatalf("failed to create path tracer: %v", err)
	}
	t.Cleanup(pt.Release)
	return pt.(*pathTracer)
}

func advance(t *testing.T, pt PathTracer, frames int) {
	t.Helper()
	for range frames {
		if err := pt.Advance(identity); err != nil {
			t.Fatalf("frame %d: %v", pt.Frame(), err)
		}
	}
}

func snapshot(t *testing.T, pt PathTracer) *accumulation.Buffer {
	t.Helper()
	b, err := pt.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// floorScene is a single large floor below the camera. Every path that scatters off it
// escapes on the next bounce.
func floorScene() geometry.Scene {
	b := geometry.NewSceneBuilder()
	grey := b.AddMaterial(common.Vec3{0.5, 0.6, 0.7})
	b.AddQuad(
		common.Vec3{-100, -1, 1}, common.Vec3{100, -1, 1},
		common.Vec3{100, -1, -100}, common.Vec3{-100, -1, -100},
		grey,
	)
	return b.Build()
}

func TestEmptySceneReturnsBackground(t *testing.T) {
	background := common.Vec3{0.1, 0.2, 0.3}
	pt := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(4, 4), WithBounces(1), WithBackground(background))

	advance(t, pt, 1)
	acc := snapshot(t, pt)
	for y := range 4 {
		for x := range 4 {
			if got := acc.SampleCount(x, y); got != 1 {
				t.Errorf("pixel (%d, %d): got count %d, expected 1", x, y, got)
			}
			if got := acc.Radiance(x, y); got != background {
				t.Errorf("pixel (%d, %d): got %v, expected %v", x, y, got, background)
			}
		}
	}

	counts, err := pt.QueueCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts != [3]uint32{0, 0, 16} {
		t.Errorf("got queue counts %v, expected [0 0 16]", counts)
	}

	advance(t, pt, 1)
	acc = snapshot(t, pt)
	if got := acc.SampleCount(3, 3); got != 2 {
		t.Errorf("got count %d, expected 2", got)
	}
	if got := acc.Radiance(3, 3); got != background {
		t.Errorf("got %v, expected %v", got, background)
	}
	if pt.Samples() != 2 || pt.Frame() != 2 {
		t.Errorf("got samples %d frame %d, expected 2 and 2", pt.Samples(), pt.Frame())
	}
}

func TestOpenSceneConservesPaths(t *testing.T) {
	pt := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(8, 8), WithBounces(3), WithScene(floorScene()))

	for frame := 1; frame <= 3; frame++ {
		advance(t, pt, 1)
		if got := snapshot(t, pt).TotalSamples(); got != uint64(frame*64) {
			t.Errorf("frame %d: got %d samples, expected %d", frame, got, frame*64)
		}
	}

	// the lower half of the image sees the floor and is darker than the sky
	acc := snapshot(t, pt)
	sky, floor := acc.Radiance(4, 0), acc.Radiance(4, 7)
	if floor[0] >= sky[0] || floor[2] >= sky[2] {
		t.Errorf("got floor %v, expected darker than sky %v", floor, sky)
	}
}

func TestClosedSceneNeverAccumulates(t *testing.T) {
	b := geometry.NewSceneBuilder()
	mirror := b.AddMaterial(common.Vec3{1, 1, 1})
	b.AddBox(common.Vec3{-1, -1, -1}, common.Vec3{1, 1, 1}, mirror)

	pt := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(5, 2), WithBounces(3), WithScene(b.Build()))
	advance(t, pt, 4)

	if got := snapshot(t, pt).TotalSamples(); got != 0 {
		t.Errorf("got %d samples, expected 0", got)
	}
	counts, err := pt.QueueCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[2] != 0 {
		t.Errorf("got %d escaped paths, expected 0", counts[2])
	}
	if pt.Samples() != 4 {
		t.Errorf("got samples %d, expected 4", pt.Samples())
	}
}

func TestMegakernelMatchesWavefront(t *testing.T) {
	scene := floorScene()
	wavefront := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(8, 6), WithBounces(4), WithScene(scene))
	mega := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(8, 6), WithBounces(4), WithScene(scene), WithMegakernel(true))

	advance(t, wavefront, 3)
	advance(t, mega, 3)

	a, b := snapshot(t, wavefront), snapshot(t, mega)
	for y := range 6 {
		for x := range 8 {
			if a.SampleCount(x, y) != b.SampleCount(x, y) {
				t.Errorf("pixel (%d, %d): got count %d, expected %d", x, y, b.SampleCount(x, y), a.SampleCount(x, y))
			}
			if !a.Radiance(x, y).ApproxEqual(b.Radiance(x, y), 1e-6) {
				t.Errorf("pixel (%d, %d): got %v, expected %v", x, y, b.Radiance(x, y), a.Radiance(x, y))
			}
		}
	}
}

func TestWorkgroupWidthDoesNotChangeResult(t *testing.T) {
	scene := floorScene()
	narrow := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(8, 6), WithBounces(3), WithScene(scene), WithWorkgroupSize(4))
	wide := newTestPathTracer(t, newTestRenderer(t),
		WithDimensions(8, 6), WithBounces(3), WithScene(scene))

	advance(t, narrow, 2)
	advance(t, wide, 2)

	a, b := snapshot(t, wide), snapshot(t, narrow)
	for y := range 6 {
		for x := range 8 {
			if !a.Radiance(x, y).ApproxEqual(b.Radiance(x, y), 1e-6) {
				t.Errorf("pixel (%d, %d): got %v, expected %v", x, y, b.Radiance(x, y), a.Radiance(x, y))
			}
		}
	}
}

func TestDeviceLossDropsFrame(t *testing.T) {
	r := newTestRenderer(t)
	pt := newTestPathTracer(t, r, WithDimensions(4, 4), WithBounces(2), WithScene(floorScene()))

	advance(t, pt, 1)
	before := snapshot(t, pt)

	r.SetDeviceLost(true)
	err := pt.Advance(identity)
	if !errors.Is(err, renderer.ErrDeviceLost) {
		t.Fatalf("got %v, expected ErrDeviceLost", err)
	}
	if pt.Frame() != 2 {
		t.Errorf("got frame %d, expected 2", pt.Frame())
	}
	if pt.Samples() != 1 {
		t.Errorf("got samples %d, expected 1", pt.Samples())
	}
	after := snapshot(t, pt)
	for y := range 4 {
		for x := range 4 {
			if before.SampleCount(x, y) != after.SampleCount(x, y) || before.Radiance(x, y) != after.Radiance(x, y) {
				t.Errorf("pixel (%d, %d) changed during a dropped frame", x, y)
			}
		}
	}

	r.SetDeviceLost(false)
	advance(t, pt, 1)
	if pt.Samples() != 2 || pt.Frame() != 3 {
		t.Errorf("got samples %d frame %d, expected 2 and 3", pt.Samples(), pt.Frame())
	}
}

func TestResetDuringDeviceLossClearsOnNextFrame(t *testing.T) {
	r := newTestRenderer(t)
	pt := newTestPathTracer(t, r, WithDimensions(2, 2), WithBounces(1))

	advance(t, pt, 2)
	r.SetDeviceLost(true)
	pt.Reset()
	if !pt.pendingReset {
		t.Fatal("expected the dropped reset to be deferred")
	}
	r.SetDeviceLost(false)

	advance(t, pt, 1)
	if pt.pendingReset {
		t.Error("deferred reset still pending after a completed frame")
	}
	if pt.Samples() != 1 {
		t.Errorf("got samples %d, expected 1", pt.Samples())
	}
	acc := snapshot(t, pt)
	for y := range 2 {
		for x := range 2 {
			if got := acc.SampleCount(x, y); got != 1 {
				t.Errorf("pixel (%d, %d): got count %d after reset and one frame, expected 1", x, y, got)
			}
		}
	}
}

func TestStateSequence(t *testing.T) {
	pt := newTestPathTracer(t, newTestRenderer(t), WithDimensions(2, 2), WithBounces(2))

	var states []FrameState
	pt.onState = func(s FrameState) { states = append(states, s) }
	advance(t, pt, 1)

	bounce := []FrameState{
		StateWriteTraceSize, StateIntersect, StateWriteEscapedSize,
		StateWriteScatterSize, StateTerminate, StateScatter,
	}
	expected := []FrameState{StateIdle, StateClear, StateGenerate}
	expected = append(expected, bounce...)
	expected = append(expected, bounce...)
	expected = append(expected, StatePresented)

	if len(states) != len(expected) {
		t.Fatalf("got %d states %v, expected %d", len(states), states, len(expected))
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Errorf("state %d: got %v, expected %v", i, states[i], expected[i])
		}
	}

	states = nil
	pt.SetMegakernel(true)
	advance(t, pt, 1)
	expected = []FrameState{StateIdle, StateIdle, StateMegakernel, StatePresented}
	if len(states) != len(expected) {
		t.Fatalf("got states %v, expected %v", states, expected)
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Errorf("state %d: got %v, expected %v", i, states[i], expected[i])
		}
	}
}

func TestSettersReset(t *testing.T) {
	pt := newTestPathTracer(t, newTestRenderer(t), WithDimensions(3, 3), WithBounces(2))

	resets := []func(){
		pt.Reset,
		func() { pt.SetBounces(0) },
		func() { pt.SetBackground(common.Vec3{1, 0, 0}) },
		func() { pt.SetMegakernel(true) },
		func() { pt.SetSmoothNormals(true) },
		func() { pt.SetProjection(identity) },
		func() {
			if err := pt.SetGeometry(floorScene()); err != nil {
				t.Fatal(err)
			}
		},
	}
	for i, reset := range resets {
		advance(t, pt, 2)
		reset()
		if pt.Samples() != 0 || pt.Frame() != 0 {
			t.Errorf("setter %d: got samples %d frame %d, expected 0 and 0", i, pt.Samples(), pt.Frame())
		}
		if got := snapshot(t, pt).TotalSamples(); got != 0 {
			t.Errorf("setter %d: got %d accumulated samples, expected 0", i, got)
		}
	}
	if pt.Bounces() != 1 {
		t.Errorf("got bounces %d, expected 1", pt.Bounces())
	}
	if !pt.Megakernel() {
		t.Error("expected megakernel mode")
	}
}

func TestResize(t *testing.T) {
	pt := newTestPathTracer(t, newTestRenderer(t), WithDimensions(4, 4))
	advance(t, pt, 1)

	if err := pt.Resize(0, 4); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("got %v, expected ErrInvalidDimensions", err)
	}
	if pt.Width() != 4 || pt.Height() != 4 || pt.Samples() != 1 {
		t.Error("rejected resize changed the path tracer")
	}

	if err := pt.Resize(6, 2); err != nil {
		t.Fatal(err)
	}
	if pt.Width() != 6 || pt.Height() != 2 || pt.Samples() != 0 {
		t.Errorf("got %dx%d with %d samples, expected 6x2 with 0", pt.Width(), pt.Height(), pt.Samples())
	}
	advance(t, pt, 1)
	acc := snapshot(t, pt)
	if acc.Width() != 6 || acc.Height() != 2 || acc.TotalSamples() != 12 {
		t.Errorf("got %dx%d with %d samples, expected 6x2 with 12", acc.Width(), acc.Height(), acc.TotalSamples())
	}
}

// allocFailRenderer reports a WebGPU backend whose buffer allocations fail, and forwards
// everything else to the software renderer it wraps.
type allocFailRenderer struct {
	renderer.Renderer
}

var errOutOfMemory = errors.New("out of device memory")

func (allocFailRenderer) BackendType() renderer.RendererBackendType {
	return renderer.BackendTypeWGPU
}

func (allocFailRenderer) CreateBuffer(string, uint64, wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return nil, errOutOfMemory
}

func TestFailedAllocationKeepsState(t *testing.T) {
	r := newTestRenderer(t)
	pt := newTestPathTracer(t, r, WithDimensions(4, 4), WithScene(floorScene()))
	advance(t, pt, 1)
	pt.r = allocFailRenderer{Renderer: r}

	if err := pt.Resize(8, 8); !errors.Is(err, errOutOfMemory) {
		t.Errorf("got %v, expected the allocation error", err)
	}
	if err := pt.SetGeometry(geometry.CornellBox()); !errors.Is(err, errOutOfMemory) {
		t.Errorf("got %v, expected the allocation error", err)
	}
	if pt.Width() != 4 || pt.Height() != 4 || pt.Samples() != 1 {
		t.Errorf("got %dx%d with %d samples, expected 4x4 with 1", pt.Width(), pt.Height(), pt.Samples())
	}
	if got, expected := len(pt.scene.Triangles), len(floorScene().Triangles); got != expected {
		t.Errorf("got %d triangles, expected %d", got, expected)
	}

	advance(t, pt, 1)
	acc := snapshot(t, pt)
	if acc.Width() != 4 || acc.Height() != 4 || acc.TotalSamples() != 32 {
		t.Errorf("got %dx%d with %d samples, expected 4x4 with 32", acc.Width(), acc.Height(), acc.TotalSamples())
	}
}

func TestInvalidDimensions(t *testing.T) {
	_, err := NewPathTracer(newTestRenderer(t), WithDimensions(-1, 4))
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("got %v, expected ErrInvalidDimensions", err)
	}
}

func TestDrawWithoutSurface(t *testing.T) {
	pt := newTestPathTracer(t, newTestRenderer(t), WithDimensions(2, 2))
	if err := pt.Draw(); !errors.Is(err, renderer.ErrNoSurface) {
		t.Errorf("got %v, expected ErrNoSurface", err)
	}
}

func TestFrameStateString(t *testing.T) {
	tests := map[FrameState]string{
		StateIdle:             "idle",
		StateWriteTraceSize:   "write_trace_size",
		StateScatter:          "scatter",
		StatePresented:        "presented",
		FrameState(42):        "FrameState(42)",
		StateWriteScatterSize: "write_scatter_size",
	}
	for s, expected := range tests {
		if got := s.String(); got != expected {
			t.Errorf("got %q, expected %q", got, expected)
		}
	}
}

func TestKernelsCompile(t *testing.T) {
	pt := newTestPathTracer(t, newTestRenderer(t), WithDimensions(2, 2))
	for _, p := range pt.kernels.compute {
		key := p.PipelineKey()
		t.Run(key, func(t *testing.T) {
			s := pt.kernels.computeShader(key)
			if s == nil {
				t.Fatal("no compute shader")
			}
			if _, err := s.Validate(); err != nil {
				t.Skipf("naga could not compile %s: %v", key, err)
			}
		})
	}
}
