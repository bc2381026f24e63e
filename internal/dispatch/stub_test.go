package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xenonrt/kernel/internal/ppc"
)

func TestScheduleWorkItemRunsOnGoroutine(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterStubImports(table)

	const entryAddr = 0x8000200
	done := make(chan uint64, 1)
	k.RegisterEntryPoint(entryAddr, func(c *ppc.Context) uint32 {
		done <- c.GPR[3]
		return 0
	})

	ctx := &ppc.Context{}
	ctx.GPR[3] = entryAddr
	ctx.GPR[4] = 0xABCD
	table.Dispatch(k, "KeScheduleSystemWorkItem", ctx)
	assert.Equal(t, uint64(0), ctx.GPR[3])

	select {
	case arg := <-done:
		assert.Equal(t, uint64(0xABCD), arg)
	case <-time.After(time.Second):
		t.Fatal("work item never ran")
	}
}

func TestScheduleWorkItemUnknownEntryFails(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterStubImports(table)

	ctx := &ppc.Context{}
	ctx.GPR[3] = 0xFFFFFFF0
	table.Dispatch(k, "KeScheduleSystemWorkItem", ctx)
	assert.NotEqual(t, uint64(0), ctx.GPR[3])
}

func TestUserGetSigninStateAlwaysSignedIn(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterStubImports(table)

	ctx := &ppc.Context{}
	table.Dispatch(k, "XamUserGetSigninState", ctx)
	assert.Equal(t, uint64(1), ctx.GPR[3])
}

func TestContentCreateEnumeratorAlwaysEmpty(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterStubImports(table)

	ctx := &ppc.Context{}
	table.Dispatch(k, "XamContentCreateEnumerator", ctx)
	assert.Equal(t, uint64(0), ctx.GPR[3])
}

func TestInputGetStateAlwaysDisconnected(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterStubImports(table)

	ctx := &ppc.Context{}
	table.Dispatch(k, "XInputGetState", ctx)
	assert.Equal(t, uint64(0x48F), ctx.GPR[3])
}
