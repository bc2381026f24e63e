// Package kobject implements the kernel object hierarchy of spec.md §3-4.3:
// Event, Semaphore, Mutant, Thread, File and DirEnum, behind the common
// capability set {identify type, add/release reference, close} that the
// handle table operates on.
package kobject

import (
	"sync/atomic"

	"github.com/xenonrt/kernel/internal/xlog"
)

const tag = "kobject"

// Kind names the concrete variant of a kernel object. Lookup's expected-
// type predicate (internal/handle) compares against these.
type Kind string

const (
	KindEvent     Kind = "event"
	KindSemaphore Kind = "semaphore"
	KindMutant    Kind = "mutant"
	KindThread    Kind = "thread"
	KindFile      Kind = "file"
	KindDirEnum   Kind = "direnum"
	KindCritSec   Kind = "critsec"
)

// Base implements the common refcounted-close machinery shared by every
// concrete kernel object kind. A kind embeds Base and supplies destroy,
// run once when the reference count reaches zero.
type Base struct {
	kind    Kind
	refs    int32
	destroy func()
}

func newBase(kind Kind, destroy func()) Base {
	return Base{kind: kind, refs: 1, destroy: destroy}
}

// Type returns the object's kind, satisfying handle.Object.
func (b *Base) Type() string { return string(b.kind) }

// AddRef increments the reference count, satisfying handle.Object.
func (b *Base) AddRef() { atomic.AddInt32(&b.refs, 1) }

// Release decrements the reference count, running destroy exactly once
// when it reaches zero, satisfying handle.Object.
func (b *Base) Release() {
	if atomic.AddInt32(&b.refs, -1) == 0 {
		xlog.Debugf(tag, "destroying %s object", b.kind)
		if b.destroy != nil {
			b.destroy()
		}
	}
}

// RefCount returns the current reference count, for diagnostics and tests.
func (b *Base) RefCount() int32 { return atomic.LoadInt32(&b.refs) }
