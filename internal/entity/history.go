package entity

import "sync"

// DefaultHistorySize is the number of states kept per entity when the
// configured capacity is not positive.
const DefaultHistorySize = 10

// History is a bounded buffer of past states, newest first.
//
// Index 0 is always the most recent state pushed; index 1 is the previous
// state, which is what trend observers compare against. Once Cap states
// are held, each Push evicts the oldest one.
//
// Thread Safety: one writer (the dispatcher) and any number of readers.
type History struct {
	mu    sync.RWMutex
	buf   []State
	head  int // index of the most recent state in buf
	count int
}

// NewHistory creates a History holding at most capacity states.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		buf:  make([]State, capacity),
		head: -1,
	}
}

// Push records state as the most recent entry.
func (h *History) Push(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.head = (h.head + 1) % len(h.buf)
	h.buf[h.head] = state
	if h.count < len(h.buf) {
		h.count++
	}
}

// At returns the state offset steps back from the most recent one.
// The boolean is false when the history is not that long yet.
func (h *History) At(offset int) (State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.at(offset)
}

func (h *History) at(offset int) (State, bool) {
	if offset < 0 || offset >= h.count {
		return State{}, false
	}
	idx := (h.head - offset + len(h.buf)) % len(h.buf)
	return h.buf[idx], true
}

// Len returns the number of states currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Cap returns the fixed capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// View returns an immutable newest-first copy of the buffer.
func (h *History) View() HistoryView {
	h.mu.RLock()
	defer h.mu.RUnlock()

	states := make([]State, h.count)
	for i := range states {
		states[i], _ = h.at(i)
	}
	return HistoryView{states: states}
}

// HistoryView is a point-in-time copy of a History.
// Observers receive a view so that later pushes cannot shift the
// indices they are comparing.
type HistoryView struct {
	states []State
}

// At returns the state offset steps back from the most recent one.
func (v HistoryView) At(offset int) (State, bool) {
	if offset < 0 || offset >= len(v.states) {
		return State{}, false
	}
	return v.states[offset], true
}

// Len returns the number of states in the view.
func (v HistoryView) Len() int {
	return len(v.states)
}

// States returns the states newest first.
func (v HistoryView) States() []State {
	out := make([]State, len(v.states))
	copy(out, v.states)
	return out
}
