package kobject

import (
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/waitset"
)

// Mutant is a host-backed recursive mutex object (spec.md §4.4, §8
// scenario 3): owned by at most one thread at a time, recursively
// acquirable by its owner, and releasable into an "abandoned" state that
// the next acquirer observes exactly once when the owning thread exits
// while still holding it.
type Mutant struct {
	Base
	coord     *waitset.Coordinator
	owner     uint64
	hasOwner  bool
	recursion uint32
	abandoned bool
}

// NewMutant constructs a Mutant. When initialOwner is true, ownerID
// becomes the initial owner with a recursion count of one.
func NewMutant(coord *waitset.Coordinator, ownerID uint64, initialOwner bool) *Mutant {
	m := &Mutant{coord: coord}
	if initialOwner {
		m.owner = ownerID
		m.hasOwner = true
		m.recursion = 1
	}
	m.Base = newBase(KindMutant, func() {})
	return m
}

// CanAcquire reports whether ownerID could take or recurse into the
// mutant right now: either unowned, or already owned by ownerID.
func (m *Mutant) CanAcquire(ownerID uint64) bool {
	return !m.hasOwner || m.owner == ownerID
}

// Acquire takes ownership (or recurses) on behalf of ownerID, clearing
// and reporting the mutant's abandoned flag if this acquisition resolves
// one left behind by an exited owner.
func (m *Mutant) Acquire(ownerID uint64) (abandoned bool) {
	wasAbandoned := m.abandoned
	m.abandoned = false
	m.owner = ownerID
	m.hasOwner = true
	m.recursion++
	return wasAbandoned
}

// Shared reports that mutant ownership is always exclusive.
func (m *Mutant) Shared() bool { return false }

// Release decrements the recursion count, releasing ownership entirely
// once it reaches zero. Fails with ErrNotOwner if callerID does not hold
// the mutant.
func (m *Mutant) Release(callerID uint64) error {
	return m.coord.Do(func() error {
		if !m.hasOwner || m.owner != callerID {
			return kernelerr.ErrNotOwner
		}
		m.recursion--
		if m.recursion == 0 {
			m.hasOwner = false
		}
		return nil
	})
}

// Abandon is invoked by guest-thread teardown (spec.md §4.5) when a
// thread exits while still owning mutants it never released. The next
// successful Acquire reports abandonment exactly once.
func (m *Mutant) Abandon() {
	_ = m.coord.Do(func() error {
		if m.hasOwner {
			m.hasOwner = false
			m.recursion = 0
			m.abandoned = true
		}
		return nil
	})
}

// OwnerID reports the current owner and whether the mutant is owned, for
// diagnostics and tests.
func (m *Mutant) OwnerID() (ownerID uint64, owned bool) {
	_ = m.coord.Do(func() error {
		ownerID, owned = m.owner, m.hasOwner
		return nil
	})
	return ownerID, owned
}
