// Package critsec implements the user-mode-like critical section of
// spec.md §4.4: a compare-exchange of an owner field with fallback to a
// futex-equivalent blocking wait on contention. There is no bounded spin
// with forced acquisition, since that would corrupt ownership — a
// contending waiter blocks indefinitely (or until cancelled) on the
// owner field instead.
package critsec

import (
	"sync"
	"sync/atomic"

	"github.com/xenonrt/kernel/internal/kernelerr"
)

// noOwner is the sentinel owner value for an unlocked section.
const noOwner uint64 = 0

// CritSec is a recursive critical section keyed by a caller-supplied
// owner identity (typically a guest thread ID).
type CritSec struct {
	owner     atomic.Uint64
	recursion uint32

	mu   sync.Mutex
	cond *sync.Cond
}

// New constructs an unlocked critical section.
func New() *CritSec {
	cs := &CritSec{}
	cs.cond = sync.NewCond(&cs.mu)
	return cs
}

// Enter acquires the section for ownerID, recursing if ownerID already
// holds it, blocking on contention until cancel is closed.
func (cs *CritSec) Enter(ownerID uint64, cancel <-chan struct{}) error {
	if cs.tryEnter(ownerID) {
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cancel != nil {
		go func() {
			select {
			case <-cancel:
				cs.mu.Lock()
				cs.cond.Broadcast()
				cs.mu.Unlock()
			case <-stopWatch:
			}
		}()
	}

	for {
		if cs.owner.CompareAndSwap(noOwner, ownerID) {
			cs.recursion = 1
			return nil
		}
		if cs.owner.Load() == ownerID {
			cs.recursion++
			return nil
		}
		if cancel != nil {
			select {
			case <-cancel:
				return kernelerr.ErrCancelled
			default:
			}
		}
		cs.cond.Wait()
	}
}

// TryEnter attempts a non-blocking acquisition, reporting whether it
// succeeded.
func (cs *CritSec) TryEnter(ownerID uint64) bool {
	return cs.tryEnter(ownerID)
}

func (cs *CritSec) tryEnter(ownerID uint64) bool {
	if cs.owner.CompareAndSwap(noOwner, ownerID) {
		cs.mu.Lock()
		cs.recursion = 1
		cs.mu.Unlock()
		return true
	}
	if cs.owner.Load() == ownerID {
		cs.mu.Lock()
		cs.recursion++
		cs.mu.Unlock()
		return true
	}
	return false
}

// Leave releases one level of recursion, waking a contending waiter once
// the section becomes fully unlocked. Returns ErrNotOwner if callerID
// does not hold the section.
func (cs *CritSec) Leave(callerID uint64) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.owner.Load() != callerID {
		return kernelerr.ErrNotOwner
	}
	cs.recursion--
	if cs.recursion == 0 {
		cs.owner.Store(noOwner)
		cs.cond.Broadcast()
	}
	return nil
}

// OwnerID reports the current owner and whether the section is held.
func (cs *CritSec) OwnerID() (ownerID uint64, held bool) {
	o := cs.owner.Load()
	return o, o != noOwner
}
