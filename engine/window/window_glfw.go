package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwButtons maps the GLFW buttons that start a drag.
var glfwButtons = map[glfw.MouseButton]MouseButton{
	glfw.MouseButtonLeft:   MouseButtonLeft,
	glfw.MouseButtonRight:  MouseButtonRight,
	glfw.MouseButtonMiddle: MouseButtonMiddle,
}

type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	closing bool

	// drag state
	held         bool
	dragging     MouseButton
	lastX, lastY float64
}

var _ platformWindow = &glfwWindow{}

// newPlatformWindow creates a GLFW window without a client API, since WebGPU owns the
// surface, and routes its events to w.
//
// Reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(
		glfwLimit(w.limits.minWidth), glfwLimit(w.limits.minHeight),
		glfwLimit(w.limits.maxWidth), glfwLimit(w.limits.maxHeight),
	)

	gw := &glfwWindow{parent: w, window: win}
	win.SetKeyCallback(gw.onKey)
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})
	win.SetMouseButtonCallback(gw.onMouseButton)
	win.SetCursorPosCallback(gw.onCursor)
	// The framebuffer size is the pixel size of the surface, which differs from the window
	// size on high-DPI displays.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})

	w.width, w.height = win.GetFramebufferSize()
	w.platform = gw
	return nil
}

func glfwLimit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// onKey closes the window on Escape and forwards everything else.
func (g *glfwWindow) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		g.closing = true
		g.window.SetShouldClose(true)
		return
	}
	w := g.parent
	switch action {
	case glfw.Press, glfw.Repeat:
		if w.onKeyDown != nil {
			w.onKeyDown(uint32(key))
		}
	case glfw.Release:
		if w.onKeyUp != nil {
			w.onKeyUp(uint32(key))
		}
	}
}

// onMouseButton starts a drag on press. Only the button that started it ends it.
func (g *glfwWindow) onMouseButton(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	b, ok := glfwButtons[button]
	if !ok {
		return
	}
	switch action {
	case glfw.Press:
		g.dragging, g.held = b, true
		g.lastX, g.lastY = g.window.GetCursorPos()
	case glfw.Release:
		if g.dragging == b {
			g.held = false
		}
	}
}

func (g *glfwWindow) onCursor(_ *glfw.Window, x, y float64) {
	dx, dy := x-g.lastX, y-g.lastY
	g.lastX, g.lastY = x, y
	if g.held && g.parent.onDrag != nil {
		g.parent.onDrag(g.dragging, float32(dx), float32(dy))
	}
}

// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (g *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(g.window)
}

func (g *glfwWindow) running() bool {
	return !g.closing && !g.window.ShouldClose()
}

// poll processes pending events without blocking.
func (g *glfwWindow) poll() bool {
	glfw.PollEvents()
	return g.running()
}

func (g *glfwWindow) setTitle(title string) {
	g.window.SetTitle(title)
}

func (g *glfwWindow) close() {
	g.closing = true
	g.window.SetShouldClose(true)
	g.window.Destroy()
	glfw.Terminate()
}
