package dispatch

import (
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/ppc"
)

// RegisterVideoImports wires the video-swap stub (spec.md §6: "treated
// as a stub that increments a frame counter").
func RegisterVideoImports(t *Table) {
	t.Register("VdSwap", handleVdSwap)
}

func handleVdSwap(k *kernel.Kernel, ctx *ppc.Context) {
	SetReturn(ctx, k.SwapBuffers())
}
