package session

import (
	"errors"
	"sync"
)

// ErrStopRequested is returned when a transition is refused because the
// session was asked to stop.
var ErrStopRequested = errors.New("stop requested")

// Cue is one broadcastable unit of recognized text covering one processed
// window. Times are seconds from the start of the stream.
type Cue struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// History is a bounded FIFO of cues. Once over capacity the oldest cues are
// dropped first.
type History struct {
	mu   sync.RWMutex
	cap  int
	cues []Cue
}

// NewHistory creates a history holding at most capacity cues.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultRecentCap
	}
	return &History{cap: capacity, cues: make([]Cue, 0, capacity)}
}

// Append adds cue, evicting the oldest when full.
func (h *History) Append(cue Cue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.cues) == h.cap {
		copy(h.cues, h.cues[1:])
		h.cues = h.cues[:h.cap-1]
	}
	h.cues = append(h.cues, cue)
}

// Snapshot returns a copy of the cues, oldest first.
func (h *History) Snapshot() []Cue {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Cue(nil), h.cues...)
}

// Len is the number of retained cues.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.cues)
}

// Cap is the configured capacity.
func (h *History) Cap() int {
	return h.cap
}

// LastText returns the newest cue's text, or "" when empty.
func (h *History) LastText() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.cues) == 0 {
		return ""
	}
	return h.cues[len(h.cues)-1].Text
}
