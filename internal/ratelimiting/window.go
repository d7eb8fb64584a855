package ratelimiting

import (
	"time"
)

// Admission log for one budget: at most limit admissions in any window-long interval
type slidingWindow struct {
	limit  int
	window time.Duration

	// Admission times, oldest first. Never longer than limit.
	admitted []time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	if limit < 1 {
		panic("sliding window limit must be positive")
	}
	return &slidingWindow{
		limit:    limit,
		window:   window,
		admitted: make([]time.Time, 0, limit),
	}
}

// How long until one more admission fits in the window
func (w *slidingWindow) waitFor(now time.Time) time.Duration {
	if len(w.admitted) < w.limit {
		return 0
	}

	oldest := w.admitted[0]
	remainingTimeInWindow := w.window - now.Sub(oldest)
	if remainingTimeInWindow < 0 {
		return 0
	}
	return remainingTimeInWindow
}

func (w *slidingWindow) record(now time.Time) {
	if len(w.admitted) == w.limit {
		w.admitted = w.admitted[1:]
	}
	w.admitted = append(w.admitted, now)
}
