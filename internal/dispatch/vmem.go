package dispatch

import (
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/memory"
	"github.com/xenonrt/kernel/internal/ppc"
)

// RegisterVirtualMemoryImports wires guest virtual-memory allocate,
// free, protect, and query (spec.md §4.1, §6).
func RegisterVirtualMemoryImports(t *Table) {
	t.Register("VirtualAlloc", handleVirtualAlloc)
	t.Register("VirtualFree", handleVirtualFree)
	t.Register("VirtualProtect", handleVirtualProtect)
	t.Register("VirtualQuery", handleVirtualQuery)
}

// handleVirtualAlloc: r3=size, r4=protection (0 no-access, 1 read-only,
// 2 read-write). Returns the allocated guest address in r3, or zero on
// failure.
func handleVirtualAlloc(k *kernel.Kernel, ctx *ppc.Context) {
	size := uint32(Arg(ctx, 0))
	prot := memory.Protection(Arg(ctx, 1))

	addr, err := k.Memory.Alloc(size, prot)
	if err != nil {
		SetReturn(ctx, 0)
		return
	}
	SetReturn(ctx, uint64(addr))
}

func handleVirtualFree(k *kernel.Kernel, ctx *ppc.Context) {
	addr := uint32(Arg(ctx, 0))
	SetStatus(ctx, k.Memory.Free(addr))
}

// handleVirtualProtect: r3=address, r4=new protection.
func handleVirtualProtect(k *kernel.Kernel, ctx *ppc.Context) {
	addr := uint32(Arg(ctx, 0))
	prot := memory.Protection(Arg(ctx, 1))
	SetStatus(ctx, k.Memory.Protect(addr, prot))
}

// handleVirtualQuery: r3=address. Returns size in r3 and protection in
// r4, or zero in both on an address with no live allocation.
func handleVirtualQuery(k *kernel.Kernel, ctx *ppc.Context) {
	addr := uint32(Arg(ctx, 0))
	size, prot, ok := k.Memory.Query(addr)
	if !ok {
		SetReturn(ctx, 0)
		ctx.GPR[4] = 0
		return
	}
	SetReturn(ctx, uint64(size))
	ctx.GPR[4] = uint64(prot)
}
