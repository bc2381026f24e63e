// Package waitset implements the multi-object wait coordinator described
// in spec.md §4.4: wait-any/wait-all semantics over host-backed
// synchronization primitives, serialized through a single coordinator
// lock to avoid lost wakeups and thundering-herd reacquisition, with FIFO
// ordering per contended object, timeout, and cooperative cancellation.
package waitset

import (
	"sync"
	"time"

	"github.com/xenonrt/kernel/internal/kernelerr"
)

// Infinite is the distinguished "wait forever" timeout sentinel.
const Infinite int64 = -1

// hundredNanosecond is the duration of one spec.md §4.4 timeout unit.
const hundredNanosecond = 100 * time.Nanosecond

// Syncable is the capability a kernel object must expose to participate
// in a coordinated wait. All methods are only ever called while the
// owning Coordinator's lock is held.
type Syncable interface {
	// CanAcquire reports whether a waiter identified by ownerID could be
	// satisfied right now, without mutating any state.
	CanAcquire(ownerID uint64) bool
	// Acquire consumes the object's state on behalf of ownerID. Callers
	// must only call Acquire immediately after CanAcquire returned true
	// for the same ownerID, within the same critical section. It reports
	// whether the acquisition resolves an abandoned mutant.
	Acquire(ownerID uint64) (abandoned bool)
	// Shared reports whether acquisition is non-exclusive (e.g. a
	// manual-reset event, or a join on an already-exited thread): when
	// true, FIFO queue-head gating is skipped, since every waiter can be
	// satisfied independently without contending over a single unit.
	Shared() bool
}

// Coordinator is the single lock spec.md §4.4 requires multi-object waits
// to serialize through. One Coordinator is shared by every synchronization
// primitive created against the same kernel instance.
type Coordinator struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[Syncable][]uint64
	nextSeq uint64
}

// NewCoordinator constructs an empty Coordinator.
func NewCoordinator() *Coordinator {
	c := &Coordinator{queues: make(map[Syncable][]uint64)}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Do runs fn with the coordinator lock held and broadcasts to every
// blocked waiter if fn reports no error, since a nil error means fn
// changed state a waiter might now care about.
func (c *Coordinator) Do(fn func() error) error {
	c.mu.Lock()
	err := fn()
	if err == nil {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
	return err
}

func (c *Coordinator) headEligible(t Syncable, seq uint64) bool {
	if t.Shared() {
		return true
	}
	q := c.queues[t]
	return len(q) == 0 || q[0] == seq
}

func (c *Coordinator) register(targets []Syncable, seq uint64) {
	for _, t := range targets {
		c.queues[t] = append(c.queues[t], seq)
	}
}

func (c *Coordinator) unregister(targets []Syncable, seq uint64) {
	for _, t := range targets {
		q := c.queues[t]
		for i, s := range q {
			if s == seq {
				c.queues[t] = append(q[:i], q[i+1:]...)
				break
			}
		}
		if len(c.queues[t]) == 0 {
			delete(c.queues, t)
		}
	}
}

// Wait blocks the calling goroutine until targets are satisfiable
// (according to waitAll), timeout100ns elapses, or cancel is closed.
//
// On success for wait-any, idx is the satisfied target's index and err is
// nil, or kernelerr.ErrAbandoned if that target was an abandoned mutant.
// On success for wait-all, idx is -1 and err is nil, or
// kernelerr.ErrAbandoned if any acquired target was abandoned.
// Otherwise idx is -1 and err is one of kernelerr.ErrTimeout or
// kernelerr.ErrCancelled.
func (c *Coordinator) Wait(ownerID uint64, targets []Syncable, waitAll bool, timeout100ns int64, cancel <-chan struct{}) (idx int, err error) {
	if len(targets) == 0 {
		return -1, kernelerr.ErrInvalidHandle
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeq
	c.nextSeq++

	var deadline time.Time
	hasDeadline := timeout100ns != Infinite
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeout100ns) * hundredNanosecond)
	}

	var timer *time.Timer
	if hasDeadline {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}
		timer = time.AfterFunc(d, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer timer.Stop()
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cancel != nil {
		go func() {
			select {
			case <-cancel:
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-stopWatch:
			}
		}()
	}

	registered := false
	defer func() {
		if registered {
			c.unregister(targets, seq)
			// A woken-but-ineligible waiter returns to cond.Wait() without
			// consuming anything; only the waiter that actually leaves the
			// queue here can make the next FIFO head eligible, so it must
			// re-broadcast on every exit, not just the ones that acquired.
			// Otherwise that head parks forever despite available count
			// (lost wakeup on multi-unit release).
			c.cond.Broadcast()
		}
	}()

	for {
		if waitAll {
			allReady := true
			for _, t := range targets {
				if !c.headEligible(t, seq) || !t.CanAcquire(ownerID) {
					allReady = false
					break
				}
			}
			if allReady {
				anyAbandoned := false
				for _, t := range targets {
					if t.Acquire(ownerID) {
						anyAbandoned = true
					}
				}
				if anyAbandoned {
					return -1, kernelerr.ErrAbandoned
				}
				return -1, nil
			}
		} else {
			for i, t := range targets {
				if c.headEligible(t, seq) && t.CanAcquire(ownerID) {
					if t.Acquire(ownerID) {
						return i, kernelerr.ErrAbandoned
					}
					return i, nil
				}
			}
		}

		if cancel != nil {
			select {
			case <-cancel:
				return -1, kernelerr.ErrCancelled
			default:
			}
		}

		if hasDeadline && !time.Now().Before(deadline) {
			return -1, kernelerr.ErrTimeout
		}

		if !registered {
			c.register(targets, seq)
			registered = true
		}
		c.cond.Wait()
	}
}
