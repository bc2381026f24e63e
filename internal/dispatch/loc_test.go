package dispatch

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenonrt/kernel/internal/loc"
	"github.com/xenonrt/kernel/internal/ppc"
)

func utf16leNullTerminated(s string) []byte {
	out := make([]byte, 0, len(s)*2+2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return append(out, 0, 0)
}

func buildLocTable(key, value string) []byte {
	tdat := utf16leNullTerminated(value)
	tkey := make([]byte, 8)
	binary.LittleEndian.PutUint32(tkey[0:4], 0)
	binary.LittleEndian.PutUint32(tkey[4:8], loc.Hash(key))

	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:2], 4)
	binary.LittleEndian.PutUint16(out[2:4], 16)
	out = append(out, []byte("TKEY")...)
	out = appendU32(out, uint32(len(tkey)))
	out = append(out, tkey...)
	out = append(out, []byte("TDAT")...)
	out = appendU32(out, uint32(len(tdat)))
	out = append(out, tdat...)
	return out
}

func appendU32(out []byte, v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return append(out, buf...)
}

func TestGetLocalizedStringReturnsMatch(t *testing.T) {
	k := newFileTestKernel(t, t.TempDir())
	require.NoError(t, k.Loc.Load(buildLocTable("MENU_START", "Start Game")))

	table := NewTable()
	RegisterLocalizationImports(table)

	const keyAddr = 0x1000
	const destAddr = 0x2000
	writeGuestPath(k, keyAddr, "MENU_START")

	ctx := &ppc.Context{}
	ctx.GPR[3] = keyAddr
	ctx.GPR[4] = destAddr
	ctx.GPR[5] = 64
	table.Dispatch(k, "XamGetLocalizedString", ctx)

	written := int(ctx.GPR[3])
	require.Equal(t, len("Start Game")+1, written)
	assert.Equal(t, "Start Game\x00", string(k.Memory.ReadBytes(destAddr, written)))
}

func TestGetLocalizedStringTruncatesToCapacity(t *testing.T) {
	k := newFileTestKernel(t, t.TempDir())
	require.NoError(t, k.Loc.Load(buildLocTable("KEY", "abcdefgh")))

	table := NewTable()
	RegisterLocalizationImports(table)

	const keyAddr = 0x1000
	const destAddr = 0x2000
	writeGuestPath(k, keyAddr, "KEY")

	ctx := &ppc.Context{}
	ctx.GPR[3] = keyAddr
	ctx.GPR[4] = destAddr
	ctx.GPR[5] = 4
	table.Dispatch(k, "XamGetLocalizedString", ctx)

	written := int(ctx.GPR[3])
	require.Equal(t, 4, written)
	assert.Equal(t, "abc\x00", string(k.Memory.ReadBytes(destAddr, written)))
}

func TestGetLocalizedStringMissingKeyFails(t *testing.T) {
	k := newFileTestKernel(t, t.TempDir())

	table := NewTable()
	RegisterLocalizationImports(table)

	const keyAddr = 0x1000
	writeGuestPath(k, keyAddr, "NOPE")

	ctx := &ppc.Context{}
	ctx.GPR[3] = keyAddr
	ctx.GPR[4] = 0x2000
	ctx.GPR[5] = 64
	table.Dispatch(k, "XamGetLocalizedString", ctx)
	assert.NotEqual(t, uint64(0), ctx.GPR[3])
}
