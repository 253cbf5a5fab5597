package frame

import (
	"testing"
	"time"
)

type call struct {
	op    string
	slot  int
	image uint32
}

// fakeBackend emulates a GPU whose fences signal as soon as the CPU waits on
// them. It fails the test whenever a submission reuses an image that a
// still-unsignaled fence of another slot is rendering to.
type fakeBackend struct {
	t *testing.T

	imageCount   int
	rebuildCount int // image count after a rebuild; zero keeps imageCount
	next         uint32
	order        []uint32 // optional fixed acquire order, cycled

	acquireErrs map[int]error // keyed by acquire call number
	presentErrs map[int]error // keyed by present call number
	waitErrs    map[int]error // keyed by fence wait call number
	submitErr   error
	rebuildErr  error

	acquires int
	presents int
	waits    int
	rebuilds int
	idles    int
	timeouts []time.Duration

	calls []call

	// Per slot: whether the fence is signaled and which image it guards.
	fenceBusy  map[int]bool
	fenceImage map[int]uint32
}

func newFakeBackend(t *testing.T, imageCount int) *fakeBackend {
	return &fakeBackend{
		t:           t,
		imageCount:  imageCount,
		acquireErrs: map[int]error{},
		presentErrs: map[int]error{},
		waitErrs:    map[int]error{},
		fenceBusy:   map[int]bool{},
		fenceImage:  map[int]uint32{},
	}
}

func (f *fakeBackend) record(op string, slot int, image uint32) {
	f.calls = append(f.calls, call{op: op, slot: slot, image: image})
}

func (f *fakeBackend) WaitForFence(slot int, timeout time.Duration) error {
	f.record("wait", slot, 0)
	f.timeouts = append(f.timeouts, timeout)
	n := f.waits
	f.waits++
	if err := f.waitErrs[n]; err != nil {
		return err
	}
	f.fenceBusy[slot] = false
	return nil
}

func (f *fakeBackend) AcquireNextImage(slot int, timeout time.Duration) (uint32, error) {
	n := f.acquires
	f.acquires++

	var image uint32
	if len(f.order) > 0 {
		image = f.order[int(f.next)%len(f.order)]
	} else {
		image = f.next % uint32(f.imageCount)
	}
	f.record("acquire", slot, image)

	if err := f.acquireErrs[n]; err != nil {
		if err == ErrSuboptimal {
			f.next++
			return image, err
		}
		return 0, err
	}
	f.next++
	return image, nil
}

func (f *fakeBackend) UpdateUniforms(image uint32) error {
	f.record("update", -1, image)
	return nil
}

func (f *fakeBackend) ResetFence(slot int) error {
	f.record("reset", slot, 0)
	return nil
}

func (f *fakeBackend) Submit(slot int, image uint32) error {
	f.record("submit", slot, image)
	if f.submitErr != nil {
		return f.submitErr
	}
	for other, busy := range f.fenceBusy {
		if busy && other != slot && f.fenceImage[other] == image {
			f.t.Errorf("image %d submitted by slot %d while slot %d still renders to it", image, slot, other)
		}
	}
	f.fenceBusy[slot] = true
	f.fenceImage[slot] = image
	return nil
}

func (f *fakeBackend) Present(slot int, image uint32) error {
	f.record("present", slot, image)
	n := f.presents
	f.presents++
	return f.presentErrs[n]
}

func (f *fakeBackend) WaitIdle() error {
	f.record("idle", -1, 0)
	f.idles++
	for slot := range f.fenceBusy {
		f.fenceBusy[slot] = false
	}
	return nil
}

func (f *fakeBackend) RebuildSwapchain() (int, error) {
	f.record("rebuild", -1, 0)
	if f.rebuildErr != nil {
		return 0, f.rebuildErr
	}
	f.rebuilds++
	if f.rebuildCount > 0 {
		f.imageCount = f.rebuildCount
	}
	f.next = 0
	return f.imageCount, nil
}

// ops returns the recorded operation names, optionally starting at call from.
func (f *fakeBackend) ops(from int) []string {
	var out []string
	for _, c := range f.calls[from:] {
		out = append(out, c.op)
	}
	return out
}

type fakeResize struct {
	pending bool
	clears  int
}

func (r *fakeResize) Pending() bool { return r.pending }

func (r *fakeResize) Clear() {
	r.pending = false
	r.clears++
}
