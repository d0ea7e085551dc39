// internal/tracker/window.go
package tracker

import (
	"github.com/user/auticonnect/internal/types"
)

// Window is the bounded FIFO of a group's recent turns. When capacity is
// exceeded the oldest turn is dropped; signals are never recomputed on
// eviction since they are immutable.
type Window struct {
	capacity int
	turns    []*types.Turn
}

// NewWindow creates a window holding at most capacity turns.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Push appends a turn, evicting the oldest when the window is full.
func (w *Window) Push(turn *types.Turn) {
	w.turns = append(w.turns, turn)
	if len(w.turns) > w.capacity {
		w.turns = w.turns[1:]
	}
}

// Turns returns a copy of the window contents, oldest first.
func (w *Window) Turns() []*types.Turn {
	out := make([]*types.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Len returns the number of turns currently held.
func (w *Window) Len() int {
	return len(w.turns)
}

// SpeakerCounts returns turn counts per speaker within the window.
func (w *Window) SpeakerCounts() map[types.ParticipantID]int {
	counts := make(map[types.ParticipantID]int)
	for _, t := range w.turns {
		counts[t.Speaker]++
	}
	return counts
}
