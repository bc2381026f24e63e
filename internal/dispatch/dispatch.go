// Package dispatch implements the kernel import dispatch table of
// spec.md §4.6: a one-to-one map from imported symbol name to a host
// function that interprets the PPC calling convention from a thread's
// context (first eight integer arguments in GPR r3-r10, return value in
// r3) and invokes the corresponding kernel primitive. Unimplemented
// imports are logged once and return a documented fallback so boot
// progress is never halted on a missing stub.
package dispatch

import (
	"sync"

	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/xlog"
)

const tag = "dispatch"

// Handler interprets a thread's context as arguments to one kernel
// import and writes its result back into the context's return register.
type Handler func(k *kernel.Kernel, ctx *ppc.Context)

// Table is the symbol-name -> Handler registry. The zero value is not
// usable; construct with NewTable.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	warnedMu sync.Mutex
	warned   map[string]bool
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{
		handlers: make(map[string]Handler),
		warned:   make(map[string]bool),
	}
}

// Register associates name with fn, overwriting any prior registration
// for the same name — later category registration files (see
// thread.go, sync.go, and friends) are expected to each own a disjoint
// set of names, so an overwrite here usually signals a copy-paste bug,
// not an intentional override.
func (t *Table) Register(name string, fn Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[name]; exists {
		xlog.Warnf(tag, "import %q registered more than once", name)
	}
	t.handlers[name] = fn
}

// Dispatch resolves name and invokes its handler against ctx. An
// unresolved name is logged exactly once per process and answers with
// StatusSuccess and a zeroed r3, the documented fallback for
// unimplemented imports (spec.md §4.6).
func (t *Table) Dispatch(k *kernel.Kernel, name string, ctx *ppc.Context) {
	t.mu.RLock()
	fn, ok := t.handlers[name]
	t.mu.RUnlock()

	if !ok {
		t.warnOnce(name)
		SetReturn(ctx, uint64(kernelerr.StatusSuccess))
		return
	}
	fn(k, ctx)
}

func (t *Table) warnOnce(name string) {
	t.warnedMu.Lock()
	defer t.warnedMu.Unlock()
	if t.warned[name] {
		return
	}
	t.warned[name] = true
	xlog.Warnf(tag, "unimplemented import %q, returning success-with-zero", name)
}

// Arg reads integer argument index (0-based) from its PPC calling
// convention register, r3+index, covering the first eight integer
// arguments the convention passes in registers.
func Arg(ctx *ppc.Context, index int) uint64 {
	return ctx.GPR[3+index]
}

// SetReturn writes v into r3, the PPC calling convention's single
// integer return register.
func SetReturn(ctx *ppc.Context, v uint64) {
	ctx.GPR[3] = v
}

// SetStatus writes err's translated NTSTATUS-style code into r3.
func SetStatus(ctx *ppc.Context, err error) {
	SetReturn(ctx, uint64(kernelerr.ToNTStatus(err)))
}

// RegisterAll wires every import category into t, the full set a
// recompiled title needs: threads, sync primitives, virtual memory,
// TLS, timers, video, files, localized strings, and the named stubs.
// cmd/xenonrt calls this once at startup rather than requiring callers
// to know the category list.
func RegisterAll(t *Table) {
	RegisterThreadImports(t)
	RegisterSyncImports(t)
	RegisterVirtualMemoryImports(t)
	RegisterTLSImports(t)
	RegisterTimerImports(t)
	RegisterVideoImports(t)
	RegisterFileImports(t)
	RegisterStubImports(t)
	RegisterLocalizationImports(t)
}
