package kobject

import "github.com/xenonrt/kernel/internal/waitset"

// Thread is the joinable kernel object backing a guest thread handle
// (spec.md §4.5). The guestthread package owns the actual host goroutine
// and register context; Thread only exposes the join-on-exit contract
// that the wait coordinator needs.
type Thread struct {
	Base
	coord    *waitset.Coordinator
	exited   bool
	exitCode uint32
}

// NewThread constructs a Thread in the running state.
func NewThread(coord *waitset.Coordinator) *Thread {
	t := &Thread{coord: coord}
	t.Base = newBase(KindThread, func() {})
	return t
}

// CanAcquire reports whether the thread has exited.
func (t *Thread) CanAcquire(uint64) bool { return t.exited }

// Acquire is a no-op: joining an exited thread never mutates its state,
// so any number of waiters may observe the same exit independently.
func (t *Thread) Acquire(uint64) (abandoned bool) { return false }

// Shared reports that joining is non-exclusive, like a manual-reset
// event: every waiter observes the same terminal state.
func (t *Thread) Shared() bool { return true }

// MarkExited transitions the thread to exited with the given exit code,
// waking every joiner. Idempotent beyond the first call.
func (t *Thread) MarkExited(exitCode uint32) {
	_ = t.coord.Do(func() error {
		if t.exited {
			return kernelNoop
		}
		t.exited = true
		t.exitCode = exitCode
		return nil
	})
}

// ExitCode reports the exit code and whether the thread has exited.
func (t *Thread) ExitCode() (code uint32, exited bool) {
	_ = t.coord.Do(func() error {
		code, exited = t.exitCode, t.exited
		return nil
	})
	return code, exited
}

// kernelNoop is a sentinel used internally to skip the Coordinator's
// broadcast-on-success when a state transition was already applied.
var kernelNoop = noopError{}

type noopError struct{}

func (noopError) Error() string { return "no-op" }
