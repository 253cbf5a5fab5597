package frame

import "time"

// Meter counts frames and reports the rate once per window.
type Meter struct {
	window time.Duration
	start  time.Time
	frames int
}

func NewMeter(window time.Duration) *Meter {
	return &Meter{window: window}
}

// Tick records one frame at now. Once a full window has elapsed it returns the
// frame rate over that window and starts a new one.
func (m *Meter) Tick(now time.Time) (float64, bool) {
	if m.start.IsZero() {
		m.start = now
		return 0, false
	}
	m.frames++

	elapsed := now.Sub(m.start)
	if elapsed < m.window || elapsed <= 0 {
		return 0, false
	}
	fps := float64(m.frames) / elapsed.Seconds()
	m.frames = 0
	m.start = now
	return fps, true
}
