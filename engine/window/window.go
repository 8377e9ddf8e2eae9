package window

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing and input event handling.
// Wraps platform-specific window implementations with a common interface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized. It runs on
	// the window thread; receivers that render elsewhere should queue the new size.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press and repeat events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetDragCallback sets the callback for mouse drags. It fires on every cursor movement
	// while a mouse button is held, with the movement since the previous event.
	//
	// Parameters:
	//   - callback: function receiving the held button and the cursor delta in pixels
	SetDragCallback(callback func(button MouseButton, dx, dy float32))

	// SetTitle changes the title bar text. It is safe to call from any goroutine; the change
	// is applied on the next message loop iteration.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns a platform-appropriate wgpu.SurfaceDescriptor for creating a
	// WebGPU surface on this window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the surface descriptor, or nil if the window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never initialized
	Close() error

	// ProcessMessages runs the window message loop on the calling goroutine, which must be
	// the one that created the window. Blocks until the window is closed.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// MouseButton identifies the button held during a drag.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// platformWindow is implemented by each windowing backend. All methods run on the window
// thread.
type platformWindow interface {
	surfaceDescriptor() *wgpu.SurfaceDescriptor
	running() bool
	poll() bool
	setTitle(title string)
	close()
}

// sizeLimits bounds interactive resizing. Zero means unbounded.
type sizeLimits struct {
	minWidth, minHeight int
	maxWidth, maxHeight int
}

type engineWindow struct {
	title  string
	limits sizeLimits

	// width and height track the framebuffer, which differs from the window size on
	// high-DPI displays.
	width  int
	height int

	platform     platformWindow
	pendingTitle atomic.Pointer[string]

	onUpdate  func()
	onResize  func(width, height int)
	onScroll  func(delta float32)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
	onDrag    func(button MouseButton, dx, dy float32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window with the specified options. Must be called from the
// goroutine that will later call ProcessMessages, normally main.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window, ready to create a surface on
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:  "oxy-wavefront",
		limits: sizeLimits{minWidth: 320, minHeight: 200},
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetDragCallback(callback func(button MouseButton, dx, dy float32)) {
	w.onDrag = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.pendingTitle.Store(&title)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return w.platform.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.platform != nil && w.platform.running()
}

func (w *engineWindow) Close() error {
	if w.platform == nil {
		return fmt.Errorf("window is not initialized")
	}
	w.platform.close()
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if title := w.pendingTitle.Swap(nil); title != nil {
			w.title = *title
			w.platform.setTitle(*title)
		}
		if !w.platform.poll() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// resized records the framebuffer size and forwards it to the resize callback. Minimized
// windows report 0x0 and are forwarded unchanged.
func (w *engineWindow) resized(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
