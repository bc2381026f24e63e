package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenonrt/kernel/internal/archive"
	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/memory"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/vfs"
)

func newFileTestKernel(t *testing.T, gameDir string) *kernel.Kernel {
	t.Helper()
	mem := memory.Reserve(0, 0x100000)
	resolver := vfs.New(vfs.Config{GameDir: gameDir})
	cache, err := archive.NewCache(1 << 20)
	require.NoError(t, err)
	return kernel.New(mem, resolver, cache)
}

func writeGuestPath(k *kernel.Kernel, addr uint32, path string) {
	b := append([]byte(path), 0)
	k.Memory.WriteBytes(addr, b)
}

func TestCreateReadWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "save.dat"), []byte("hello"), 0o644))

	k := newFileTestKernel(t, dir)
	table := NewTable()
	RegisterFileImports(table)

	const pathAddr = 0x1000
	writeGuestPath(k, pathAddr, "save.dat")

	createCtx := &ppc.Context{}
	createCtx.GPR[3] = pathAddr
	createCtx.GPR[4] = 1
	createCtx.GPR[5] = 1
	table.Dispatch(k, "NtCreateFile", createCtx)
	h := uint32(createCtx.GPR[3])
	require.NotZero(t, h)

	const destAddr = 0x2000
	readCtx := &ppc.Context{}
	readCtx.GPR[3] = uint64(h)
	readCtx.GPR[4] = destAddr
	readCtx.GPR[5] = 5
	table.Dispatch(k, "NtReadFile", readCtx)
	assert.Equal(t, uint64(5), readCtx.GPR[3])
	assert.Equal(t, []byte("hello"), k.Memory.ReadBytes(destAddr, 5))

	sizeCtx := &ppc.Context{}
	sizeCtx.GPR[3] = uint64(h)
	table.Dispatch(k, "NtQueryInformationFile", sizeCtx)
	assert.Equal(t, uint64(0), sizeCtx.GPR[3])
}

func TestCreateFileMissingPathFails(t *testing.T) {
	dir := t.TempDir()
	k := newFileTestKernel(t, dir)
	table := NewTable()
	RegisterFileImports(table)

	const pathAddr = 0x1000
	writeGuestPath(k, pathAddr, "missing.dat")

	ctx := &ppc.Context{}
	ctx.GPR[3] = pathAddr
	table.Dispatch(k, "NtCreateFile", ctx)
	assert.NotEqual(t, uint64(0), ctx.GPR[3])
	assert.Equal(t, uint64(kernelerr.StatusObjectNameNotFound), ctx.GPR[3])
}

func TestSetFilePointerSeeksWithinFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("0123456789"), 0o644))

	k := newFileTestKernel(t, dir)
	table := NewTable()
	RegisterFileImports(table)

	const pathAddr = 0x1000
	writeGuestPath(k, pathAddr, "a.bin")

	createCtx := &ppc.Context{}
	createCtx.GPR[3] = pathAddr
	table.Dispatch(k, "NtCreateFile", createCtx)
	h := uint32(createCtx.GPR[3])

	seekCtx := &ppc.Context{}
	seekCtx.GPR[3] = uint64(h)
	seekCtx.GPR[4] = 5
	seekCtx.GPR[5] = 0
	table.Dispatch(k, "NtSetInformationFile", seekCtx)
	assert.Equal(t, uint64(5), seekCtx.GPR[3])

	const destAddr = 0x2000
	readCtx := &ppc.Context{}
	readCtx.GPR[3] = uint64(h)
	readCtx.GPR[4] = destAddr
	readCtx.GPR[5] = 5
	table.Dispatch(k, "NtReadFile", readCtx)
	assert.Equal(t, []byte("56789"), k.Memory.ReadBytes(destAddr, 5))
}

func TestOpenDirectoryEnumeratesHostEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "one.bin"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "two.bin"), []byte("y"), 0o644))

	k := newFileTestKernel(t, dir)
	table := NewTable()
	RegisterFileImports(table)

	const pathAddr = 0x1000
	writeGuestPath(k, pathAddr, "assets")

	openCtx := &ppc.Context{}
	openCtx.GPR[3] = pathAddr
	table.Dispatch(k, "NtOpenDirectoryObject", openCtx)
	h := uint32(openCtx.GPR[3])
	require.NotZero(t, h)

	seen := 0
	for i := 0; i < 3; i++ {
		queryCtx := &ppc.Context{}
		queryCtx.GPR[3] = uint64(h)
		table.Dispatch(k, "NtQueryDirectoryFile", queryCtx)
		if queryCtx.GPR[3] != 0 {
			break
		}
		seen++
	}
	assert.Equal(t, 2, seen)
}

func TestOpenDirectoryUnknownPathFails(t *testing.T) {
	dir := t.TempDir()
	k := newFileTestKernel(t, dir)
	table := NewTable()
	RegisterFileImports(table)

	const pathAddr = 0x1000
	writeGuestPath(k, pathAddr, "nope")

	ctx := &ppc.Context{}
	ctx.GPR[3] = pathAddr
	table.Dispatch(k, "NtOpenDirectoryObject", ctx)
	assert.NotEqual(t, uint64(0), ctx.GPR[3])
}
