package kobject

import "github.com/xenonrt/kernel/internal/critsec"

// CritSec adapts internal/critsec.CritSec to the handle-table Object
// capability (spec.md §3): the real console embeds a critical section
// inline in guest memory, but translated code here has no such layout to
// embed into, so this kernel hands it out as an ordinary handle instead.
type CritSec struct {
	Base
	CS *critsec.CritSec
}

// NewCritSec constructs a host-backed critical section handle.
func NewCritSec() *CritSec {
	c := &CritSec{CS: critsec.New()}
	c.Base = newBase(KindCritSec, func() {})
	return c
}
