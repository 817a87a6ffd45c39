package gcpolicy

import "time"

// IntervalTimer measures alternating open/close spans in monotonic
// nanoseconds. A single open/close pair measures one span; close while open
// accumulates elapsed time and transitions to closed, open while closed
// restarts the start time, and reset zeros the accumulator.
type IntervalTimer struct {
	start       time.Time
	accumulated time.Duration
	isOpen      bool
}

// NewIntervalTimer creates a timer in the open state, starting now.
func NewIntervalTimer() *IntervalTimer {
	return &IntervalTimer{start: time.Now(), isOpen: true}
}

// Open restarts the start time. If already open, the accumulator is kept
// (only Reset zeros it), but the time elapsed since the previous start is
// dropped because the span start moves to now.
func (t *IntervalTimer) Open() {
	t.start = time.Now()
	t.isOpen = true
}

// Close accumulates elapsed nanoseconds since Open and transitions to
// closed. Calling Close while already closed is a no-op.
func (t *IntervalTimer) Close() {
	if !t.isOpen {
		return
	}

	t.accumulated += time.Since(t.start)
	t.isOpen = false
}

// Reset zeros the accumulator without changing the open/closed state.
func (t *IntervalTimer) Reset() {
	t.accumulated = 0
}

// MeasuredNanos returns the accumulated duration in nanoseconds.
func (t *IntervalTimer) MeasuredNanos() int64 {
	return t.accumulated.Nanoseconds()
}

// PeekNanos reads the measured duration as if Close were called now,
// without losing the in-progress measurement: it closes, reads, and
// reopens. Used to read "time since major GC" mid-collection.
func (t *IntervalTimer) PeekNanos() int64 {
	t.Close()
	nanos := t.MeasuredNanos()
	t.Open()

	return nanos
}
