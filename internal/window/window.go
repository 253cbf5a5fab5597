package window

import (
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/hellhand/kube/internal/log"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

var logger = log.New("window")

var ErrVulkanUnsupported = errors.New("window: GLFW cannot find a Vulkan loader")

const (
	// Pause between frames so the loop does not spin a core.
	frameThrottle = time.Millisecond

	// How long to block on events while minimized before checking for exit.
	minimizedWait = 0.1
)

// Init initialises GLFW and checks that a Vulkan loader is present. It must be
// called from the main thread.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return ErrVulkanUnsupported
	}
	return nil
}

// Terminate releases GLFW. Every window must be destroyed first.
func Terminate() {
	glfw.Terminate()
}

// VulkanProcAddr returns the loader's vkGetInstanceProcAddr.
func VulkanProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

type Options struct {
	Title  string
	Width  int
	Height int
}

// Window is a resizable GLFW window without a client API, ready to be used as
// a Vulkan presentation surface.
type Window struct {
	win    *glfw.Window
	resize ResizeFlag
}

// New opens a window and blocks until its framebuffer has a non-zero size.
func New(opts Options) (*Window, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Newf("window: invalid size %dx%d", opts.Width, opts.Height)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}

	w := &Window{win: win}
	w.WaitForFramebuffer()

	win.SetKeyCallback(func(gw *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.SetShouldClose(true)
		}
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		logger.Debugf("framebuffer resized to %dx%d", width, height)
		w.resize.Request()
	})
	return w, nil
}

// Resize returns the flag set whenever the framebuffer changes size.
func (w *Window) Resize() *ResizeFlag {
	return &w.resize
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vulkan.SurfaceFromPointer(ptr), nil
}

func (w *Window) FramebufferSize() (width, height int) {
	return w.win.GetFramebufferSize()
}

// Minimized reports whether the framebuffer currently has no area.
func (w *Window) Minimized() bool {
	width, height := w.FramebufferSize()
	return width <= 0 || height <= 0
}

// WaitForFramebuffer blocks on window events until the framebuffer has a
// non-zero size again. It returns false if the window is asked to close first.
func (w *Window) WaitForFramebuffer() bool {
	for w.Minimized() {
		if w.win.ShouldClose() {
			return false
		}
		glfw.WaitEventsTimeout(minimizedWait)
	}
	return true
}

// RequestClose asks the loop in Run to stop after the current frame.
func (w *Window) RequestClose() {
	w.win.SetShouldClose(true)
}

// Run processes window events and calls draw once per iteration until the
// window is closed, exit fires, or draw fails. While the window is minimized
// draw is not called.
func (w *Window) Run(draw func() error, exit <-chan struct{}) error {
	for !w.win.ShouldClose() {
		select {
		case <-exit:
			logger.Info("exit requested")
			return nil
		default:
		}

		// Events first, so a minimize delivered by this poll is seen
		// before drawing.
		glfw.PollEvents()
		if w.Minimized() {
			glfw.WaitEventsTimeout(minimizedWait)
			continue
		}

		if err := draw(); err != nil {
			return err
		}
		time.Sleep(frameThrottle)
	}
	return nil
}

func (w *Window) Destroy() {
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
}
