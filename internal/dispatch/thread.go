package dispatch

import (
	"github.com/xenonrt/kernel/internal/guestthread"
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/kobject"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/waitset"
	"github.com/xenonrt/kernel/internal/xlog"
)

// RegisterThreadImports wires the thread creation and control category
// (spec.md §6): create, suspend, resume, terminate, exit-code query, and
// join via the generic wait primitives.
func RegisterThreadImports(t *Table) {
	t.Register("ExCreateThread", handleCreateThread)
	t.Register("KeSuspendThread", handleSuspendThread)
	t.Register("KeResumeThread", handleResumeThread)
	t.Register("KeTerminateThread", handleTerminateThread)
	t.Register("KeGetExitCodeThread", handleGetExitCodeThread)
	t.Register("KeDelayExecutionThread", handleDelayExecutionThread)
}

// handleCreateThread: r3=entry address, r4=argument, r5=stack size
// (0 selects the default). Returns a thread handle in r3, or
// StatusFatalAppExit (ErrFatal) if the entry address has no registered host
// implementation (spec.md's recompiled-code boundary: this kernel
// dispatches to translated functions by address, but carries none
// itself).
func handleCreateThread(k *kernel.Kernel, ctx *ppc.Context) {
	entryAddr := uint32(Arg(ctx, 0))
	arg := Arg(ctx, 1)
	stackSize := uint32(Arg(ctx, 2))

	entry, ok := k.EntryPoint(entryAddr)
	if !ok {
		xlog.Errorf(tag, "ExCreateThread: no host implementation registered for entry 0x%08X", entryAddr)
		SetStatus(ctx, kernelerr.ErrFatal)
		return
	}

	g, err := guestthread.New(k.Coord, k.Memory, stackSize, arg, nil)
	if err != nil {
		SetStatus(ctx, err)
		return
	}

	tid := k.NewThreadID()
	k.RegisterThread(tid, g)

	// Insert transfers the object's sole reference into the handle
	// table for the caller. A thread additionally holds a self-reference
	// until it exits (spec.md §3), so AddRef once more here and drop it
	// from finish — independent of whether the caller has since closed
	// its own handle.
	h := k.Handles.Insert(g.Thread)
	g.Thread.AddRef()
	g.SetSelfRelease(func() {
		g.Thread.Release()
		k.UnregisterThread(tid)
	})

	g.Start(entry)

	SetReturn(ctx, uint64(h))
}

func handleSuspendThread(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindThread))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	g, ok := threadByObject(k, obj)
	if !ok {
		SetStatus(ctx, kernelerr.ErrInvalidHandle)
		return
	}
	g.Suspend()
	SetStatus(ctx, nil)
}

func handleResumeThread(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindThread))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	g, ok := threadByObject(k, obj)
	if !ok {
		SetStatus(ctx, kernelerr.ErrInvalidHandle)
		return
	}
	g.Resume()
	SetStatus(ctx, nil)
}

func handleTerminateThread(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindThread))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	g, ok := threadByObject(k, obj)
	if !ok {
		SetStatus(ctx, kernelerr.ErrInvalidHandle)
		return
	}
	g.RequestTerminate()
	SetStatus(ctx, nil)
}

func handleGetExitCodeThread(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindThread))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	th := obj.(*kobject.Thread)
	code, exited := th.ExitCode()
	if !exited {
		code = 0x103 // STILL_ACTIVE
	}
	SetReturn(ctx, uint64(code))
}

// handleDelayExecutionThread: r3=timeout in 100-ns units. Implemented as
// a wait with that timeout against a never-signaled private event,
// reusing the wait coordinator's timeout handling rather than a bare
// time.Sleep. The wait is passed no cancel channel, so a terminate
// request does not interrupt a sleeping thread.
func handleDelayExecutionThread(k *kernel.Kernel, ctx *ppc.Context) {
	timeout := int64(Arg(ctx, 0))
	never := kobject.NewEvent(k.Coord, kobject.ResetManual, false)
	_, err := k.Coord.Wait(0, []waitset.Syncable{never}, false, timeout, nil)
	if err == kernelerr.ErrTimeout {
		err = nil
	}
	SetStatus(ctx, err)
}

func threadByObject(k *kernel.Kernel, obj interface{}) (*guestthread.GuestThread, bool) {
	th, ok := obj.(*kobject.Thread)
	if !ok {
		return nil, false
	}
	return k.GuestThreadFor(th)
}
