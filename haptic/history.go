package haptic

import "time"

// History is the time-ordered window of recent crossing timestamps.
// It is a slice-backed deque: appends at the back, evictions from the front.
// The zero value is empty and ready to use.
type History struct {
	ticks []time.Time
	head  int
}

// Evict drops every timestamp older than window relative to now.
// A timestamp exactly window old is kept.
func (h *History) Evict(now time.Time, window time.Duration) {
	for h.head < len(h.ticks) && now.Sub(h.ticks[h.head]) > window {
		h.head++
	}

	// Compact once the dead prefix dominates so the backing array stays bounded.
	if h.head > 0 && h.head >= len(h.ticks)/2 {
		n := copy(h.ticks, h.ticks[h.head:])
		h.ticks = h.ticks[:n]
		h.head = 0
	}
}

// Push appends a timestamp.
func (h *History) Push(t time.Time) {
	h.ticks = append(h.ticks, t)
}

// Len is the number of timestamps in the window.
func (h *History) Len() int {
	return len(h.ticks) - h.head
}

// Clear empties the window.
func (h *History) Clear() {
	h.ticks = h.ticks[:0]
	h.head = 0
}
