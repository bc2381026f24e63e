// Package handle implements the kernel's handle table (spec.md §4.2):
// assignment and resolution of 32-bit handles, reference-counted to their
// backing objects, with a small set of reserved pseudo-handles.
package handle

import (
	"sync"

	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/xlog"
)

const tag = "handle"

// Reserved pseudo-handle values, recognized by Lookup without ever being
// present in the backing map.
const (
	Invalid       uint32 = 0
	CurrentThread uint32 = 0xFFFFFFFE
	CurrentProcess uint32 = 0xFFFFFFFF
)

// Object is the minimal capability every handle-table entry must expose.
// Concrete kernel object kinds (internal/kobject) implement this plus
// their own variant-specific methods.
type Object interface {
	// Type returns a stable identifier for the object's kind, checked by
	// Lookup's expected-type predicate.
	Type() string
	// AddRef increments the object's reference count.
	AddRef()
	// Release decrements the object's reference count, running the
	// object's destructor when it reaches zero.
	Release()
}

type entry struct {
	obj  Object
	live bool
}

// Table is a process-wide registry from 32-bit handle to kernel object.
// The zero value is not usable; construct with New.
type Table struct {
	mu      sync.RWMutex
	entries map[uint32]*entry
	next    uint32
}

// New constructs an empty handle table. Handle values start at 4 and climb
// by 4 (matching the Xbox 360 convention that handles are never odd or
// zero), so Invalid, CurrentThread and CurrentProcess are never issued.
func New() *Table {
	return &Table{
		entries: make(map[uint32]*entry),
		next:    4,
	}
}

// Insert stores obj in the table and returns a fresh, non-zero handle for
// it. The table does not take an extra reference: the caller's reference
// is transferred into the table and released by Close.
func (t *Table) Insert(obj Object) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next += 4
	if h == Invalid || h == CurrentThread || h == CurrentProcess {
		h = t.next
		t.next += 4
	}
	t.entries[h] = &entry{obj: obj, live: true}
	return h
}

// Lookup resolves h to its backing object, failing with ErrInvalidHandle
// if h was never issued or has since been closed, and ErrWrongType if
// expectType is non-empty and doesn't match the object's declared type.
// A successful Lookup adds a reference the caller must Release when done;
// this keeps the object alive even if another goroutine closes the
// handle concurrently.
func (t *Table) Lookup(h uint32, expectType string) (Object, error) {
	t.mu.RLock()
	e, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok || !e.live {
		return nil, kernelerr.ErrInvalidHandle
	}
	if expectType != "" && e.obj.Type() != expectType {
		return nil, kernelerr.ErrWrongType
	}
	e.obj.AddRef()
	return e.obj, nil
}

// Close marks h invalid and releases the table's reference to its object.
// Per spec.md §3's invariant, once Close returns no concurrent Lookup for
// the same handle value can succeed, though the integer may be reissued
// to an unrelated object later.
func (t *Table) Close(h uint32) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	if !ok || !e.live {
		t.mu.Unlock()
		return kernelerr.ErrInvalidHandle
	}
	e.live = false
	delete(t.entries, h)
	t.mu.Unlock()

	e.obj.Release()
	xlog.Debugf(tag, "closed handle 0x%08X (%s)", h, e.obj.Type())
	return nil
}

// Count returns the number of live handles, for diagnostics and tests.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
