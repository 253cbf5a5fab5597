package window

// ResizeFlag records that the framebuffer changed size since the swapchain was
// last built. GLFW runs callbacks on the thread polling events, which is also
// the thread drawing frames, so no locking is needed.
type ResizeFlag struct {
	pending  bool
	requests int
}

// Request marks the swapchain as needing a rebuild.
func (f *ResizeFlag) Request() {
	f.pending = true
	f.requests++
}

func (f *ResizeFlag) Pending() bool { return f.pending }

// Clear is called once the swapchain has been rebuilt.
func (f *ResizeFlag) Clear() { f.pending = false }

// Requests returns how many resize events were reported in total.
func (f *ResizeFlag) Requests() int { return f.requests }
