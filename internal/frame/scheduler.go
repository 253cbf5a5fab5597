package frame

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellhand/kube/internal/log"
)

// DefaultFramesInFlight is the number of frame slots used when Options leaves it unset.
const DefaultFramesInFlight = 2

var logger = log.New("frame")

// Backend is the slice of the graphics device the scheduler drives. Fences and
// semaphores are addressed by frame slot, swapchain resources by image index.
//
// AcquireNextImage and Present report staleness with ErrOutOfDate or ErrSuboptimal.
// AcquireNextImage may return a valid image together with ErrSuboptimal.
// Waits that expire must return an error wrapping ErrTimeout.
type Backend interface {
	WaitForFence(slot int, timeout time.Duration) error
	AcquireNextImage(slot int, timeout time.Duration) (uint32, error)
	UpdateUniforms(image uint32) error
	ResetFence(slot int) error
	Submit(slot int, image uint32) error
	Present(slot int, image uint32) error
	WaitIdle() error
	// RebuildSwapchain destroys every extent dependent resource and builds it
	// again, returning the new swapchain image count.
	RebuildSwapchain() (int, error)
}

// ResizeSignal is the window's "resize requested" flag.
type ResizeSignal interface {
	Pending() bool
	Clear()
}

// Options configures a Scheduler.
type Options struct {
	// Number of frame slots. Zero selects DefaultFramesInFlight.
	FramesInFlight int

	// Upper bound for every fence and acquire wait. Zero waits forever.
	FenceTimeout time.Duration
}

// Scheduler runs the acquire, submit and present protocol for one frame per call
// and rebuilds the swapchain whenever it goes stale. It is not safe for
// concurrent use; a single thread drives it.
type Scheduler struct {
	backend Backend
	resize  ResizeSignal
	opts    Options

	slot   int
	state  State
	images *ImageTable
	err    error
	stats  Stats
}

// New creates a scheduler for a swapchain that currently has imageCount images.
// resize may be nil when no window reports resizes.
func New(backend Backend, resize ResizeSignal, opts Options, imageCount int) (*Scheduler, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = DefaultFramesInFlight
	}
	if opts.FramesInFlight < 1 {
		return nil, ErrInvalidSlot
	}
	if opts.FenceTimeout < 0 {
		return nil, errors.Newf("frame: negative fence timeout %s", opts.FenceTimeout)
	}
	if imageCount < 1 {
		return nil, ErrNoImages
	}

	return &Scheduler{
		backend: backend,
		resize:  resize,
		opts:    opts,
		images:  NewImageTable(imageCount),
		stats:   Stats{Started: time.Now()},
	}, nil
}

// Slot returns the current frame slot.
func (s *Scheduler) Slot() int { return s.slot }

// State returns the protocol state the scheduler is in.
func (s *Scheduler) State() State { return s.state }

// Images returns a copy of the images-in-flight table.
func (s *Scheduler) Images() []int { return s.images.Snapshot() }

// Stats returns the counters gathered so far.
func (s *Scheduler) Stats() Stats { return s.stats }

// Err returns the fatal error that stopped the scheduler, if any.
func (s *Scheduler) Err() error { return s.err }

// DrawFrame renders one frame. Swapchain staleness is handled internally; any
// other error is fatal and is returned by every later call as well.
func (s *Scheduler) DrawFrame() error {
	if s.err != nil {
		return s.err
	}

	slot := s.slot

	if err := s.backend.WaitForFence(slot, s.opts.FenceTimeout); err != nil {
		return s.fail(errors.Wrapf(err, "wait for frame %d", slot))
	}

	s.state = StateAcquiring
	image, err := s.backend.AcquireNextImage(slot, s.opts.FenceTimeout)
	switch {
	case errors.Is(err, ErrOutOfDate):
		s.stats.StaleAcquires++
		// The slot is not advanced: nothing was submitted for it.
		return s.Recreate()
	case err != nil && !errors.Is(err, ErrSuboptimal):
		return s.fail(errors.Wrapf(err, "acquire image for frame %d", slot))
	}
	if int(image) >= s.images.Len() {
		return s.fail(errors.Newf("frame: acquired image %d outside swapchain of %d images", image, s.images.Len()))
	}

	if owner, ok := s.images.Owner(image); ok && owner != slot {
		s.stats.CrossWaits++
		if err := s.backend.WaitForFence(owner, s.opts.FenceTimeout); err != nil {
			return s.fail(errors.Wrapf(err, "wait for image %d held by frame %d", image, owner))
		}
	}
	s.images.Assign(image, slot)

	if err := s.backend.UpdateUniforms(image); err != nil {
		return s.fail(errors.Wrapf(err, "update uniforms for image %d", image))
	}

	s.state = StateSubmitting
	if err := s.backend.ResetFence(slot); err != nil {
		return s.fail(errors.Wrapf(err, "reset fence of frame %d", slot))
	}
	if err := s.backend.Submit(slot, image); err != nil {
		return s.fail(errors.Wrapf(err, "submit image %d for frame %d", image, slot))
	}

	s.state = StatePresenting
	err = s.backend.Present(slot, image)
	stale := IsStale(err)
	if err != nil && !stale {
		return s.fail(errors.Wrapf(err, "present image %d for frame %d", image, slot))
	}
	s.stats.Frames++

	resized := s.resize != nil && s.resize.Pending()
	if stale || resized {
		if stale {
			s.stats.StalePresents++
		} else {
			s.stats.ResizeRebuilds++
		}
		if err := s.Recreate(); err != nil {
			return err
		}
	}

	s.slot = (slot + 1) % s.opts.FramesInFlight
	s.state = StateIdle
	return nil
}

// Recreate waits for the device to go idle, rebuilds the swapchain and every
// resource sized by it, and forgets which slot last used each image.
func (s *Scheduler) Recreate() error {
	if s.err != nil {
		return s.err
	}

	s.state = StateRecreating
	if err := s.backend.WaitIdle(); err != nil {
		return s.fail(errors.Wrap(err, "wait for device idle before swapchain rebuild"))
	}
	count, err := s.backend.RebuildSwapchain()
	if err != nil {
		return s.fail(errors.Wrap(err, "rebuild swapchain"))
	}
	if count < 1 {
		return s.fail(ErrNoImages)
	}

	s.images.Reset(count)
	if s.resize != nil {
		s.resize.Clear()
	}
	s.stats.Recreations++
	s.state = StateIdle
	logger.Infof("swapchain rebuilt with %d images (frame slot %d)", count, s.slot)
	return nil
}

func (s *Scheduler) fail(err error) error {
	logger.Errorf("frame scheduler stopped in %s state: %v", s.state, err)
	s.state = StateFailed
	s.err = err
	return err
}
