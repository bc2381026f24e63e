package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenonrt/kernel/internal/ppc"
)

func TestQueryPerformanceCounterIsNonNegative(t *testing.T) {
	k := newTestKernel(t)
	table := NewTable()
	RegisterTimerImports(table)

	ctx := &ppc.Context{}
	table.Dispatch(k, "KeQueryPerformanceCounter", ctx)
	assert.GreaterOrEqual(t, ctx.GPR[3], uint64(0))
}
