package dispatch

import (
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/ppc"
)

// RegisterTimerImports wires the high-resolution timer query (spec.md
// §6); delay-execution lives in thread.go alongside the rest of the
// thread category since it operates on the calling thread's wait path.
func RegisterTimerImports(t *Table) {
	t.Register("KeQueryPerformanceCounter", handleQueryPerformanceCounter)
}

// handleQueryPerformanceCounter returns elapsed 100-ns ticks since kernel
// start in r3, standing in for the console's performance counter.
func handleQueryPerformanceCounter(k *kernel.Kernel, ctx *ppc.Context) {
	SetReturn(ctx, uint64(k.UptimeHundredNanos()))
}
