package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenonrt/kernel/internal/ppc"
)

func TestEventSetWaitResets(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterSyncImports(table)

	createCtx := &ppc.Context{}
	createCtx.GPR[3] = 1 // auto-reset
	createCtx.GPR[4] = 0 // not initially signaled
	table.Dispatch(k, "NtCreateEvent", createCtx)
	h := createCtx.GPR[3]

	setCtx := &ppc.Context{}
	setCtx.GPR[3] = h
	table.Dispatch(k, "KeSetEvent", setCtx)
	assert.Equal(t, uint64(0), setCtx.GPR[3])

	waitCtx := &ppc.Context{}
	waitCtx.GPR[3] = h
	waitCtx.GPR[4] = 1 // caller thread ID
	waitCtx.GPR[5] = uint64(0)
	table.Dispatch(k, "KeWaitForSingleObject", waitCtx)
	assert.Equal(t, uint64(0), waitCtx.GPR[3])

	secondWait := &ppc.Context{}
	secondWait.GPR[3] = h
	secondWait.GPR[4] = 1
	secondWait.GPR[5] = uint64(0)
	table.Dispatch(k, "KeWaitForSingleObject", secondWait)
	assert.NotEqual(t, uint64(0), secondWait.GPR[3], "the first wait should have reset the event")
}

func TestSemaphoreCreateRejectsInvalidCounts(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterSyncImports(table)

	ctx := &ppc.Context{}
	ctx.GPR[3] = 5
	ctx.GPR[4] = 1
	table.Dispatch(k, "NtCreateSemaphore", ctx)
	assert.NotEqual(t, uint64(0), ctx.GPR[3])
}

func TestMutantCreateAcquireRelease(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterSyncImports(table)

	createCtx := &ppc.Context{}
	createCtx.GPR[3] = 1 // caller thread ID
	createCtx.GPR[4] = 1 // initial owner
	table.Dispatch(k, "NtCreateMutant", createCtx)
	h := createCtx.GPR[3]

	releaseCtx := &ppc.Context{}
	releaseCtx.GPR[3] = h
	releaseCtx.GPR[4] = 1
	table.Dispatch(k, "KeReleaseMutant", releaseCtx)
	assert.Equal(t, uint64(0), releaseCtx.GPR[3])

	wrongOwnerCtx := &ppc.Context{}
	wrongOwnerCtx.GPR[3] = h
	wrongOwnerCtx.GPR[4] = 2
	table.Dispatch(k, "KeReleaseMutant", wrongOwnerCtx)
	assert.NotEqual(t, uint64(0), wrongOwnerCtx.GPR[3])
}

func TestCriticalSectionEnterLeave(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterSyncImports(table)

	createCtx := &ppc.Context{}
	table.Dispatch(k, "RtlInitializeCriticalSection", createCtx)
	h := createCtx.GPR[3]

	enterCtx := &ppc.Context{}
	enterCtx.GPR[3] = h
	enterCtx.GPR[4] = 1
	table.Dispatch(k, "RtlEnterCriticalSection", enterCtx)
	assert.Equal(t, uint64(0), enterCtx.GPR[3])

	tryCtx := &ppc.Context{}
	tryCtx.GPR[3] = h
	tryCtx.GPR[4] = 2
	table.Dispatch(k, "RtlTryEnterCriticalSection", tryCtx)
	assert.Equal(t, uint64(0), tryCtx.GPR[3])

	leaveCtx := &ppc.Context{}
	leaveCtx.GPR[3] = h
	leaveCtx.GPR[4] = 1
	table.Dispatch(k, "RtlLeaveCriticalSection", leaveCtx)
	assert.Equal(t, uint64(0), leaveCtx.GPR[3])
}

func TestWaitForMultipleObjectsRejectsTooMany(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterSyncImports(table)

	ctx := &ppc.Context{}
	ctx.GPR[3] = 5 // count
	table.Dispatch(k, "KeWaitForMultipleObjects", ctx)
	assert.NotEqual(t, uint64(0), ctx.GPR[3])
}

func TestCloseInvalidatesHandle(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterSyncImports(table)

	createCtx := &ppc.Context{}
	createCtx.GPR[3] = 0
	createCtx.GPR[4] = 0
	table.Dispatch(k, "NtCreateEvent", createCtx)
	h := createCtx.GPR[3]

	closeCtx := &ppc.Context{}
	closeCtx.GPR[3] = h
	table.Dispatch(k, "NtClose", closeCtx)
	assert.Equal(t, uint64(0), closeCtx.GPR[3])

	secondClose := &ppc.Context{}
	secondClose.GPR[3] = h
	table.Dispatch(k, "NtClose", secondClose)
	assert.NotEqual(t, uint64(0), secondClose.GPR[3])
}
