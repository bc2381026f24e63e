package dispatch

import (
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/ppc"
)

// RegisterTLSImports wires TLS slot allocate/get/set/free (spec.md §4.5,
// §6). Get and set always act on the calling thread's own Context,
// which is already the ctx the handler receives, so no thread lookup is
// needed for them.
func RegisterTLSImports(t *Table) {
	t.Register("KeTlsAlloc", handleTlsAlloc)
	t.Register("KeTlsFree", handleTlsFree)
	t.Register("KeTlsGetValue", handleTlsGetValue)
	t.Register("KeTlsSetValue", handleTlsSetValue)
}

const tlsInvalidIndex = 0xFFFFFFFF

func handleTlsAlloc(k *kernel.Kernel, ctx *ppc.Context) {
	slot, ok := k.AllocTLSSlot()
	if !ok {
		SetReturn(ctx, tlsInvalidIndex)
		return
	}
	SetReturn(ctx, uint64(slot))
}

func handleTlsFree(k *kernel.Kernel, ctx *ppc.Context) {
	slot := uint32(Arg(ctx, 0))
	if !k.FreeTLSSlot(slot) {
		SetStatus(ctx, kernelerr.ErrFatal)
		return
	}
	SetStatus(ctx, nil)
}

func handleTlsGetValue(k *kernel.Kernel, ctx *ppc.Context) {
	slot := uint32(Arg(ctx, 0))
	if int(slot) >= len(ctx.TLS) {
		SetReturn(ctx, 0)
		return
	}
	SetReturn(ctx, ctx.TLS[slot])
}

func handleTlsSetValue(k *kernel.Kernel, ctx *ppc.Context) {
	slot := uint32(Arg(ctx, 0))
	value := Arg(ctx, 1)
	if int(slot) >= len(ctx.TLS) {
		SetStatus(ctx, kernelerr.ErrFatal)
		return
	}
	ctx.TLS[slot] = value
	SetStatus(ctx, nil)
}
