package dispatch

import (
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/xlog"
)

// RegisterStubImports wires background-task scheduling and the minimal
// user-profile, content-enumeration, and input stubs spec.md §6 calls
// out by name, as distinct from the generic once-logged fallback
// Table.Dispatch applies to imports nobody registered at all. These are
// named so their (lack of) behavior shows up in logs under their own
// symbol rather than folding into the generic "unimplemented import"
// warning.
func RegisterStubImports(t *Table) {
	t.Register("KeScheduleSystemWorkItem", handleScheduleWorkItem)
	t.Register("XamUserGetSigninState", handleUserGetSigninState)
	t.Register("XamContentCreateEnumerator", handleContentCreateEnumerator)
	t.Register("XInputGetState", handleInputGetState)
}

// handleScheduleWorkItem: r3=entry address, r4=argument. Runs the
// registered host closure on its own goroutine, fire-and-forget; unlike
// ExCreateThread, no Thread object or handle is produced, matching the
// console API's background work-item model where nothing is joinable.
func handleScheduleWorkItem(k *kernel.Kernel, ctx *ppc.Context) {
	entryAddr := uint32(Arg(ctx, 0))
	arg := Arg(ctx, 1)

	entry, ok := k.EntryPoint(entryAddr)
	if !ok {
		xlog.Warnf(tag, "KeScheduleSystemWorkItem: no host implementation registered for entry 0x%08X", entryAddr)
		SetStatus(ctx, kernelerr.ErrFatal)
		return
	}

	go func() {
		c := &ppc.Context{}
		c.GPR[3] = arg
		entry(c)
	}()
	SetStatus(ctx, nil)
}

// handleUserGetSigninState always reports user 0 as a local, signed-in
// profile (1), since this runtime carries no profile or account system.
func handleUserGetSigninState(k *kernel.Kernel, ctx *ppc.Context) {
	SetReturn(ctx, 1)
}

// handleContentCreateEnumerator always reports zero enumerable content
// packages, since downloadable content is out of scope.
func handleContentCreateEnumerator(k *kernel.Kernel, ctx *ppc.Context) {
	SetReturn(ctx, 0)
}

// handleInputGetState always reports no controller connected, since no
// input backend is wired up.
func handleInputGetState(k *kernel.Kernel, ctx *ppc.Context) {
	const statusDeviceNotConnected = 0x48F
	SetReturn(ctx, statusDeviceNotConnected)
}
