package frame

import "github.com/cockroachdb/errors"

// Results a Backend reports when the swapchain no longer matches the surface.
// Both trigger a swapchain rebuild and are never returned to the caller.
var (
	ErrOutOfDate  = errors.New("frame: swapchain out of date")
	ErrSuboptimal = errors.New("frame: swapchain suboptimal")
)

var (
	ErrTimeout     = errors.New("frame: timed out waiting for the device")
	ErrInvalidSlot = errors.New("frame: frames in flight must be at least 1")
	ErrNoImages    = errors.New("frame: swapchain has no images")
)

// IsStale reports whether err signals swapchain staleness.
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}
