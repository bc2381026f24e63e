package dispatch

import (
	"github.com/xenonrt/kernel/internal/handle"
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/kobject"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/waitset"
)

// RegisterSyncImports wires event/semaphore/mutant create-signal-wait,
// critical sections, and single/multi-object wait (spec.md §4.4, §6).
func RegisterSyncImports(t *Table) {
	t.Register("NtCreateEvent", handleCreateEvent)
	t.Register("KeSetEvent", handleSetEvent)
	t.Register("KePulseEvent", handlePulseEvent)
	t.Register("KeResetEvent", handleResetEvent)

	t.Register("NtCreateSemaphore", handleCreateSemaphore)
	t.Register("NtReleaseSemaphore", handleReleaseSemaphore)

	t.Register("NtCreateMutant", handleCreateMutant)
	t.Register("KeReleaseMutant", handleReleaseMutant)

	t.Register("RtlInitializeCriticalSection", handleInitializeCriticalSection)
	t.Register("RtlEnterCriticalSection", handleEnterCriticalSection)
	t.Register("RtlTryEnterCriticalSection", handleTryEnterCriticalSection)
	t.Register("RtlLeaveCriticalSection", handleLeaveCriticalSection)

	t.Register("KeWaitForSingleObject", handleWaitForSingleObject)
	t.Register("KeWaitForMultipleObjects", handleWaitForMultipleObjects)

	t.Register("NtClose", handleClose)
}

// handleCreateEvent: r3=reset mode (0 manual, 1 auto), r4=initial state
// (nonzero signaled). Returns a handle in r3.
func handleCreateEvent(k *kernel.Kernel, ctx *ppc.Context) {
	mode := kobject.ResetManual
	if Arg(ctx, 0) != 0 {
		mode = kobject.ResetAuto
	}
	initial := Arg(ctx, 1) != 0

	e := kobject.NewEvent(k.Coord, mode, initial)
	h := k.Handles.Insert(e)
	SetReturn(ctx, uint64(h))
}

func handleSetEvent(k *kernel.Kernel, ctx *ppc.Context) {
	withEvent(k, ctx, func(e *kobject.Event) { e.Set() })
}

func handlePulseEvent(k *kernel.Kernel, ctx *ppc.Context) {
	withEvent(k, ctx, func(e *kobject.Event) { e.Pulse() })
}

func handleResetEvent(k *kernel.Kernel, ctx *ppc.Context) {
	withEvent(k, ctx, func(e *kobject.Event) { e.Clear() })
}

func withEvent(k *kernel.Kernel, ctx *ppc.Context, fn func(e *kobject.Event)) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindEvent))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()
	fn(obj.(*kobject.Event))
	SetStatus(ctx, nil)
}

// handleCreateSemaphore: r3=initial count, r4=maximum count. Returns a
// handle in r3, or StatusFatalAppExit (ErrFatal) if initial < 0 or
// initial > maximum.
func handleCreateSemaphore(k *kernel.Kernel, ctx *ppc.Context) {
	initial := int32(Arg(ctx, 0))
	maximum := int32(Arg(ctx, 1))
	if initial < 0 || initial > maximum {
		SetStatus(ctx, kernelerr.ErrFatal)
		return
	}
	s := kobject.NewSemaphore(k.Coord, initial, maximum)
	h := k.Handles.Insert(s)
	SetReturn(ctx, uint64(h))
}

// handleReleaseSemaphore: r3=handle, r4=release delta. The Win32
// convention's previous-count out-parameter isn't plumbed through guest
// memory here; only the status is reported in r3.
func handleReleaseSemaphore(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	delta := int32(Arg(ctx, 1))
	obj, err := k.Handles.Lookup(h, string(kobject.KindSemaphore))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()
	_, err = obj.(*kobject.Semaphore).Release(delta)
	SetStatus(ctx, err)
}

// handleCreateMutant: r3=argument thread ID (the calling guest thread's
// synthetic ID, used as the mutant owner key), r4=initial owner flag.
func handleCreateMutant(k *kernel.Kernel, ctx *ppc.Context) {
	callerID := Arg(ctx, 0)
	initialOwner := Arg(ctx, 1) != 0
	m := kobject.NewMutant(k.Coord, callerID, initialOwner)
	h := k.Handles.Insert(m)
	SetReturn(ctx, uint64(h))
}

func handleReleaseMutant(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	callerID := Arg(ctx, 1)
	obj, err := k.Handles.Lookup(h, string(kobject.KindMutant))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()
	SetStatus(ctx, obj.(*kobject.Mutant).Release(callerID))
}

// handleInitializeCriticalSection allocates a host critical section and
// returns a handle in r3, even though critical sections are normally
// embedded inline in guest memory on the real console; this kernel keeps
// them in the handle table instead, since there is no translated-code
// memory layout to embed into.
func handleInitializeCriticalSection(k *kernel.Kernel, ctx *ppc.Context) {
	h := k.Handles.Insert(kobject.NewCritSec())
	SetReturn(ctx, uint64(h))
}

func handleEnterCriticalSection(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	callerID := Arg(ctx, 1)
	obj, err := k.Handles.Lookup(h, string(kobject.KindCritSec))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()
	SetStatus(ctx, obj.(*kobject.CritSec).CS.Enter(callerID, nil))
}

func handleTryEnterCriticalSection(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	callerID := Arg(ctx, 1)
	obj, err := k.Handles.Lookup(h, string(kobject.KindCritSec))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()
	if obj.(*kobject.CritSec).CS.TryEnter(callerID) {
		SetReturn(ctx, 1)
	} else {
		SetReturn(ctx, 0)
	}
}

func handleLeaveCriticalSection(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	callerID := Arg(ctx, 1)
	obj, err := k.Handles.Lookup(h, string(kobject.KindCritSec))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()
	SetStatus(ctx, obj.(*kobject.CritSec).CS.Leave(callerID))
}

// handleWaitForSingleObject: r3=handle, r4=caller thread ID, r5=timeout
// in 100-ns units (Infinite sentinel accepted directly).
func handleWaitForSingleObject(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	callerID := Arg(ctx, 1)
	timeout := int64(Arg(ctx, 2))

	obj, err := k.Handles.Lookup(h, "")
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	target, ok := obj.(waitset.Syncable)
	if !ok {
		SetStatus(ctx, kernelerr.ErrWrongType)
		return
	}

	_, err = k.Coord.Wait(callerID, []waitset.Syncable{target}, false, timeout, nil)
	SetStatus(ctx, err)
}

// handleWaitForMultipleObjects: r3=handle count, r4=caller thread ID,
// r5=wait-all flag, r6=timeout, r7..=handles. Only eight integer argument
// registers exist in this calling convention, leaving room for at most
// four handle arguments alongside the fixed ones; counts beyond that
// fail fast rather than silently truncating the wait set.
func handleWaitForMultipleObjects(k *kernel.Kernel, ctx *ppc.Context) {
	const maxHandles = 4
	count := int(Arg(ctx, 0))
	callerID := Arg(ctx, 1)
	waitAll := Arg(ctx, 2) != 0
	timeout := int64(Arg(ctx, 3))

	if count <= 0 || count > maxHandles {
		SetStatus(ctx, kernelerr.ErrFatal)
		return
	}

	targets := make([]waitset.Syncable, 0, count)
	objs := make([]handle.Object, 0, count)
	for i := 0; i < count; i++ {
		h := uint32(Arg(ctx, 4+i))
		obj, err := k.Handles.Lookup(h, "")
		if err != nil {
			releaseAll(objs)
			SetStatus(ctx, err)
			return
		}
		target, ok := obj.(waitset.Syncable)
		if !ok {
			obj.Release()
			releaseAll(objs)
			SetStatus(ctx, kernelerr.ErrWrongType)
			return
		}
		objs = append(objs, obj)
		targets = append(targets, target)
	}
	defer releaseAll(objs)

	idx, err := k.Coord.Wait(callerID, targets, waitAll, timeout, nil)
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	SetReturn(ctx, uint64(idx))
}

func releaseAll(objs []handle.Object) {
	for _, o := range objs {
		o.Release()
	}
}

func handleClose(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	SetStatus(ctx, k.Handles.Close(h))
}
