package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/pathtracer"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/renderer"
)

func newTestEngine(t *testing.T) *engine {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithWorkers(2))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	t.Cleanup(r.Release)

	pt, err := pathtracer.NewPathTracer(r, pathtracer.WithDimensions(4, 4), pathtracer.WithBounces(2))
	if err != nil {
		t.Fatalf("failed to create path tracer: %v", err)
	}
	t.Cleanup(pt.Release)

	return NewEngine(WithRenderer(r), WithPathTracer(pt)).(*engine)
}

func TestRenderFrameAdvances(t *testing.T) {
	e := newTestEngine(t)
	e.renderFrame()
	e.renderFrame()
	if got := e.pathTracer.Samples(); got != 2 {
		t.Errorf("got %d samples, expected 2", got)
	}
}

func TestKeyToggles(t *testing.T) {
	e := newTestEngine(t)

	e.handleKeyDown(common.KeyM)
	if !e.pathTracer.Megakernel() {
		t.Error("M did not enable megakernel mode")
	}
	e.handleKeyDown(common.KeyN)
	if !e.pathTracer.SmoothNormals() {
		t.Error("N did not enable smooth normals")
	}
	e.handleKeyDown(common.Key1 + 2)
	if got := e.pathTracer.Bounces(); got != 3 {
		t.Errorf("got %d bounces, expected 3", got)
	}

	e.renderFrame()
	e.handleKeyDown(common.KeyR)
	if got := e.pathTracer.Samples(); got != 0 {
		t.Errorf("got %d samples after R, expected 0", got)
	}
}

func TestCameraMovementResets(t *testing.T) {
	e := newTestEngine(t)
	e.renderFrame()
	e.renderFrame()

	e.handleKeyDown(common.KeyLeft)
	e.applyHeldKeys()
	e.renderFrame()
	if got := e.pathTracer.Samples(); got != 1 {
		t.Errorf("got %d samples after moving, expected 1", got)
	}

	e.handleKeyUp(common.KeyLeft)
	e.applyHeldKeys()
	e.renderFrame()
	if got := e.pathTracer.Samples(); got != 2 {
		t.Errorf("got %d samples, expected 2", got)
	}
}

func TestResizeAppliedBetweenFrames(t *testing.T) {
	e := newTestEngine(t)

	e.queueResize(8, 2)
	e.queueResize(0, 0)
	if got := e.pathTracer.Width(); got != 4 {
		t.Errorf("resize applied early: got width %d", got)
	}

	e.renderFrame()
	if e.pathTracer.Width() != 8 || e.pathTracer.Height() != 2 {
		t.Errorf("got %dx%d, expected 8x2", e.pathTracer.Width(), e.pathTracer.Height())
	}
	if got := e.camera.Aspect(); got != 4 {
		t.Errorf("got aspect %v, expected 4", got)
	}
	if got := e.pathTracer.Samples(); got != 1 {
		t.Errorf("got %d samples, expected 1", got)
	}
}

func TestSaveSnapshot(t *testing.T) {
	e := newTestEngine(t)
	e.renderFrame()

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := e.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("snapshot file is empty")
	}
}

func TestStatusTitle(t *testing.T) {
	e := newTestEngine(t)
	e.renderFrame()
	expected := "oxy-wavefront | 1 spp | wavefront | 2 bounces | 4x4"
	if got := e.statusTitle(); got != expected {
		t.Errorf("got %q, expected %q", got, expected)
	}
}
