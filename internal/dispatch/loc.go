package dispatch

import (
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/ppc"
)

// RegisterLocalizationImports wires the text-table lookup import
// (spec.md §4.10).
func RegisterLocalizationImports(t *Table) {
	t.Register("XamGetLocalizedString", handleGetLocalizedString)
}

// handleGetLocalizedString: r3=guest address of a NUL-terminated UTF-8
// key, r4=destination buffer guest address, r5=destination buffer
// capacity in bytes. On a hit, writes as much of the UTF-8 string as
// fits (truncated, always NUL-terminated within capacity) and returns
// the written length, including the NUL, in r3. Returns NotFound via
// SetStatus if no entry matches the key's hash, or if capacity is too
// small to hold even a lone NUL terminator.
func handleGetLocalizedString(k *kernel.Kernel, ctx *ppc.Context) {
	key := k.Memory.ReadCString(uint32(Arg(ctx, 0)))
	destAddr := uint32(Arg(ctx, 1))
	capacity := int(Arg(ctx, 2))

	if capacity <= 0 {
		SetStatus(ctx, kernelerr.ErrNotFound)
		return
	}

	s, ok := k.Loc.LookupString(key)
	if !ok {
		SetStatus(ctx, kernelerr.ErrNotFound)
		return
	}

	body := []byte(s)
	if len(body) > capacity-1 {
		body = body[:capacity-1]
	}
	out := make([]byte, len(body)+1)
	copy(out, body)
	k.Memory.WriteBytes(destAddr, out)
	SetReturn(ctx, uint64(len(out)))
}
