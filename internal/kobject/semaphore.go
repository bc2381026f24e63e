package kobject

import (
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/waitset"
)

// Semaphore is a host-backed counting semaphore (spec.md §4.4).
type Semaphore struct {
	Base
	coord   *waitset.Coordinator
	count   int32
	maximum int32
}

// NewSemaphore constructs a Semaphore. Callers must ensure
// 0 <= initial <= maximum; the kernel import dispatch layer validates
// this before construction.
func NewSemaphore(coord *waitset.Coordinator, initial, maximum int32) *Semaphore {
	s := &Semaphore{coord: coord, count: initial, maximum: maximum}
	s.Base = newBase(KindSemaphore, func() {})
	return s
}

// CanAcquire reports whether the semaphore has an available unit.
func (s *Semaphore) CanAcquire(uint64) bool { return s.count > 0 }

// Acquire consumes one unit.
func (s *Semaphore) Acquire(uint64) (abandoned bool) {
	s.count--
	return false
}

// Shared reports that semaphore acquisition is exclusive per unit, so
// FIFO gating applies.
func (s *Semaphore) Shared() bool { return false }

// Release adds delta to the semaphore's count, failing with
// ErrLimitExceeded if that would exceed its maximum, and returns the
// count observed immediately before the release (the Win32 convention
// translated code expects in its previous-count out-parameter).
func (s *Semaphore) Release(delta int32) (previousCount int32, err error) {
	err = s.coord.Do(func() error {
		if s.count+delta > s.maximum {
			return kernelerr.ErrLimitExceeded
		}
		previousCount = s.count
		s.count += delta
		return nil
	})
	return previousCount, err
}

// Count returns the current count, for diagnostics and tests.
func (s *Semaphore) Count() int32 {
	var c int32
	_ = s.coord.Do(func() error {
		c = s.count
		return nil
	})
	return c
}
