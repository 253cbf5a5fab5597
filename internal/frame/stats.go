package frame

import "time"

type Stats struct {
	// When the scheduler was created.
	Started time.Time

	// Frames that reached the present call.
	Frames uint64

	// Swapchain rebuilds, split by what triggered them.
	Recreations    uint64
	StaleAcquires  uint64
	StalePresents  uint64
	ResizeRebuilds uint64

	// Frames that had to wait on another slot's fence before reusing an image.
	CrossWaits uint64
}

// AverageFPS returns the presented frame rate between Started and now.
func (s Stats) AverageFPS(now time.Time) float64 {
	elapsed := now.Sub(s.Started)
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / elapsed.Seconds()
}
