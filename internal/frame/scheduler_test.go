package frame

import (
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func mustScheduler(t *testing.T, backend Backend, resize ResizeSignal, opts Options, images int) *Scheduler {
	t.Helper()
	s, err := New(backend, resize, opts, images)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// checkTable asserts that every image maps to NoSlot or to the last slot that submitted it.
func checkTable(t *testing.T, s *Scheduler, lastUser map[uint32]int) {
	t.Helper()
	for image, slot := range s.Images() {
		want, used := lastUser[uint32(image)]
		if !used {
			want = NoSlot
		}
		if slot != want {
			t.Fatalf("image %d: expected table entry %d; got %d (table %v)", image, want, slot, s.Images())
		}
	}
}

func submittedSlots(f *fakeBackend) []int {
	var out []int
	for _, c := range f.calls {
		if c.op == "submit" {
			out = append(out, c.slot)
		}
	}
	return out
}

func TestNewOptions(t *testing.T) {
	backend := newFakeBackend(t, 3)

	s, err := New(backend, nil, Options{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if s.opts.FramesInFlight != DefaultFramesInFlight {
		t.Fatalf("expected default of %d frames in flight; got %d", DefaultFramesInFlight, s.opts.FramesInFlight)
	}
	if s.State() != StateIdle || s.Slot() != 0 {
		t.Fatalf("expected idle scheduler at slot 0; got %s at slot %d", s.State(), s.Slot())
	}

	if _, err := New(backend, nil, Options{FramesInFlight: -1}, 3); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot; got %v", err)
	}
	if _, err := New(backend, nil, Options{}, 0); !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages; got %v", err)
	}
	if _, err := New(backend, nil, Options{FenceTimeout: -time.Second}, 3); err == nil {
		t.Fatal("expected an error for a negative fence timeout")
	}
}

func TestFirstFrameCallOrder(t *testing.T) {
	backend := newFakeBackend(t, 3)
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2, FenceTimeout: time.Second}, 3)

	if err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	exp := []call{
		{"wait", 0, 0},
		{"acquire", 0, 0},
		{"update", -1, 0},
		{"reset", 0, 0},
		{"submit", 0, 0},
		{"present", 0, 0},
	}
	if !reflect.DeepEqual(backend.calls, exp) {
		t.Fatalf("expected calls %v; got %v", exp, backend.calls)
	}
	for _, timeout := range backend.timeouts {
		if timeout != time.Second {
			t.Fatalf("expected configured fence timeout to reach the backend; got %s", timeout)
		}
	}
}

func TestCrossWaitPrecedesReuse(t *testing.T) {
	backend := newFakeBackend(t, 3)
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

	for i := 0; i < 3; i++ {
		if err := s.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}

	// Frame 3 runs in slot 1 and acquires image 0, last used by slot 0.
	from := len(backend.calls)
	if err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	exp := []call{
		{"wait", 1, 0},
		{"acquire", 1, 0},
		{"wait", 0, 0},
		{"update", -1, 0},
		{"reset", 1, 0},
		{"submit", 1, 0},
		{"present", 1, 0},
	}
	if got := backend.calls[from:]; !reflect.DeepEqual(got, exp) {
		t.Fatalf("expected calls %v; got %v", exp, got)
	}
	if owner, _ := s.images.Owner(0); owner != 1 {
		t.Fatalf("expected image 0 to be owned by slot 1; got %d", owner)
	}
	if got := s.Stats().CrossWaits; got != 1 {
		t.Fatalf("expected 1 cross wait; got %d", got)
	}
}

func TestTenFramesTwoSlotsThreeImages(t *testing.T) {
	backend := newFakeBackend(t, 3)
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

	lastUser := map[uint32]int{}
	uses := map[uint32]int{}
	var slots []int
	for i := 0; i < 10; i++ {
		slots = append(slots, s.Slot())
		if err := s.DrawFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		last := backend.calls[len(backend.calls)-1]
		lastUser[last.image] = last.slot
		uses[last.image]++
		checkTable(t, s, lastUser)
	}

	expSlots := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}
	if !reflect.DeepEqual(slots, expSlots) {
		t.Fatalf("expected slot sequence %v; got %v", expSlots, slots)
	}
	if !reflect.DeepEqual(submittedSlots(backend), expSlots) {
		t.Fatalf("expected submitted slots %v; got %v", expSlots, submittedSlots(backend))
	}
	for image := uint32(0); image < 3; image++ {
		if uses[image] < 2 {
			t.Fatalf("expected image %d to be used at least twice; got %d", image, uses[image])
		}
	}

	stats := s.Stats()
	if stats.Frames != 10 || stats.Recreations != 0 {
		t.Fatalf("expected 10 frames and no recreation; got %+v", stats)
	}
	if stats.CrossWaits != 7 {
		t.Fatalf("expected 7 cross waits; got %d", stats.CrossWaits)
	}
}

func TestSlotAdvanceIgnoresImageIndex(t *testing.T) {
	type spec struct {
		slots  int
		images int
		order  []uint32
	}
	specs := []spec{
		{2, 2, nil},
		{2, 3, []uint32{2, 2, 0, 1, 1, 0}},
		{3, 3, []uint32{1, 0, 2}},
		{3, 5, []uint32{4, 0, 4, 3, 1, 2, 2}},
		{4, 6, []uint32{5, 1, 0, 3, 3, 3, 2, 4}},
	}

	for index, sp := range specs {
		backend := newFakeBackend(t, sp.images)
		backend.order = sp.order
		s := mustScheduler(t, backend, nil, Options{FramesInFlight: sp.slots}, sp.images)

		lastUser := map[uint32]int{}
		for frame := 0; frame < 4*sp.images; frame++ {
			if got, exp := s.Slot(), frame%sp.slots; got != exp {
				t.Fatalf("[spec %d] frame %d: expected slot %d; got %d", index, frame, exp, got)
			}
			if err := s.DrawFrame(); err != nil {
				t.Fatalf("[spec %d] frame %d: %v", index, frame, err)
			}
			last := backend.calls[len(backend.calls)-1]
			lastUser[last.image] = last.slot
			checkTable(t, s, lastUser)
		}
	}
}

func TestOutOfDateAcquireRecreatesWithoutAdvancing(t *testing.T) {
	backend := newFakeBackend(t, 3)
	backend.acquireErrs[4] = errors.Wrap(ErrOutOfDate, "acquire")
	resize := &fakeResize{}
	s := mustScheduler(t, backend, resize, Options{FramesInFlight: 2}, 3)

	for i := 0; i < 4; i++ {
		if err := s.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}

	slotBefore := s.Slot()
	from := len(backend.calls)
	if err := s.DrawFrame(); err != nil {
		t.Fatalf("expected staleness to be handled; got %v", err)
	}

	expOps := []string{"wait", "acquire", "idle", "rebuild"}
	if got := backend.ops(from); !reflect.DeepEqual(got, expOps) {
		t.Fatalf("expected ops %v; got %v", expOps, got)
	}
	if backend.rebuilds != 1 {
		t.Fatalf("expected exactly one rebuild; got %d", backend.rebuilds)
	}
	for image, slot := range s.Images() {
		if slot != NoSlot {
			t.Fatalf("expected image %d to be cleared after rebuild; got slot %d", image, slot)
		}
	}
	if s.Slot() != slotBefore {
		t.Fatalf("expected slot %d to be kept after rebuild; got %d", slotBefore, s.Slot())
	}
	if resize.clears != 1 {
		t.Fatalf("expected resize flag to be cleared once; got %d", resize.clears)
	}

	for s.Stats().Frames < 10 {
		if err := s.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}

	expSlots := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}
	if got := submittedSlots(backend); !reflect.DeepEqual(got, expSlots) {
		t.Fatalf("expected submitted slots %v; got %v", expSlots, got)
	}
	stats := s.Stats()
	if stats.Recreations != 1 || stats.StaleAcquires != 1 || stats.Frames != 10 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if backend.rebuilds != 1 {
		t.Fatalf("expected rebuild to run exactly once; got %d", backend.rebuilds)
	}
}

func TestStalePresentRecreatesAndAdvances(t *testing.T) {
	for _, stale := range []error{ErrSuboptimal, ErrOutOfDate} {
		backend := newFakeBackend(t, 3)
		backend.presentErrs[2] = stale
		s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

		for i := 0; i < 3; i++ {
			if err := s.DrawFrame(); err != nil {
				t.Fatalf("%v: frame %d: %v", stale, i, err)
			}
		}

		if backend.rebuilds != 1 {
			t.Fatalf("%v: expected one rebuild; got %d", stale, backend.rebuilds)
		}
		if s.Slot() != 1 {
			t.Fatalf("%v: expected slot to advance past the presented frame; got %d", stale, s.Slot())
		}
		if got := backend.ops(len(backend.calls) - 3); !reflect.DeepEqual(got, []string{"present", "idle", "rebuild"}) {
			t.Fatalf("%v: expected rebuild right after present; got %v", stale, got)
		}
		stats := s.Stats()
		if stats.Frames != 3 || stats.StalePresents != 1 {
			t.Fatalf("%v: unexpected stats %+v", stale, stats)
		}
		for image, slot := range s.Images() {
			if slot != NoSlot {
				t.Fatalf("%v: expected image %d to be cleared; got %d", stale, image, slot)
			}
		}
	}
}

func TestResizeRequestForcesRecreate(t *testing.T) {
	backend := newFakeBackend(t, 3)
	resize := &fakeResize{}
	s := mustScheduler(t, backend, resize, Options{FramesInFlight: 2}, 3)

	if err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	if backend.rebuilds != 0 {
		t.Fatalf("expected no rebuild without a resize; got %d", backend.rebuilds)
	}

	resize.pending = true
	if err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	if backend.rebuilds != 1 {
		t.Fatalf("expected a rebuild after a resize request; got %d", backend.rebuilds)
	}
	if resize.pending || resize.clears != 1 {
		t.Fatalf("expected resize flag to be consumed; pending=%t clears=%d", resize.pending, resize.clears)
	}
	if s.Slot() != 0 {
		t.Fatalf("expected slot to advance to 0; got %d", s.Slot())
	}
	if got := s.Stats().ResizeRebuilds; got != 1 {
		t.Fatalf("expected 1 resize rebuild; got %d", got)
	}
}

func TestSuboptimalAcquireStillRenders(t *testing.T) {
	backend := newFakeBackend(t, 3)
	backend.acquireErrs[0] = ErrSuboptimal
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

	if err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	if got := submittedSlots(backend); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("expected the frame to be submitted; got %v", got)
	}
	if backend.rebuilds != 0 {
		t.Fatalf("expected no rebuild for a suboptimal acquire; got %d", backend.rebuilds)
	}
}

func TestRecreateIsIdempotent(t *testing.T) {
	backend := newFakeBackend(t, 3)
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

	if err := s.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	var lens []int
	for i := 0; i < 2; i++ {
		if err := s.Recreate(); err != nil {
			t.Fatal(err)
		}
		lens = append(lens, len(s.Images()))
	}
	if lens[0] != 3 || lens[1] != 3 {
		t.Fatalf("expected 3 images after both rebuilds; got %v", lens)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle state after rebuild; got %s", s.State())
	}
	if backend.idles != 2 {
		t.Fatalf("expected an idle wait per rebuild; got %d", backend.idles)
	}
}

func TestRecreateFollowsImageCount(t *testing.T) {
	backend := newFakeBackend(t, 3)
	backend.rebuildCount = 5
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

	if err := s.Recreate(); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Images()); got != 5 {
		t.Fatalf("expected table to track 5 images; got %d", got)
	}

	for i := 0; i < 10; i++ {
		if err := s.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFatalErrorsStopScheduler(t *testing.T) {
	deviceLost := errors.New("device lost")

	type spec struct {
		name  string
		setup func(*fakeBackend)
		is    error
	}
	specs := []spec{
		{"acquire", func(f *fakeBackend) { f.acquireErrs[0] = deviceLost }, deviceLost},
		{"present", func(f *fakeBackend) { f.presentErrs[0] = deviceLost }, deviceLost},
		{"submit", func(f *fakeBackend) { f.submitErr = deviceLost }, deviceLost},
		{"wait", func(f *fakeBackend) { f.waitErrs[0] = errors.Wrap(ErrTimeout, "fence") }, ErrTimeout},
		{"rebuild", func(f *fakeBackend) {
			f.acquireErrs[0] = ErrOutOfDate
			f.rebuildErr = deviceLost
		}, deviceLost},
	}

	for _, sp := range specs {
		backend := newFakeBackend(t, 3)
		sp.setup(backend)
		s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

		err := s.DrawFrame()
		if !errors.Is(err, sp.is) {
			t.Fatalf("[%s] expected error wrapping %v; got %v", sp.name, sp.is, err)
		}
		if s.State() != StateFailed {
			t.Fatalf("[%s] expected failed state; got %s", sp.name, s.State())
		}

		calls := len(backend.calls)
		if again := s.DrawFrame(); again != err {
			t.Fatalf("[%s] expected the same error on the next frame; got %v", sp.name, again)
		}
		if len(backend.calls) != calls {
			t.Fatalf("[%s] expected no backend calls after a fatal error", sp.name)
		}
		if s.Err() != err {
			t.Fatalf("[%s] expected Err to return the fatal error", sp.name)
		}
	}
}

func TestAcquiredImageOutOfRange(t *testing.T) {
	backend := newFakeBackend(t, 3)
	backend.order = []uint32{7}
	s := mustScheduler(t, backend, nil, Options{FramesInFlight: 2}, 3)

	if err := s.DrawFrame(); err == nil {
		t.Fatal("expected an error for an image outside the swapchain")
	}
	if got := submittedSlots(backend); len(got) != 0 {
		t.Fatalf("expected nothing to be submitted; got %v", got)
	}
}
