package dispatch

import (
	"io"
	"os"

	"github.com/xenonrt/kernel/internal/kernel"
	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/kobject"
	"github.com/xenonrt/kernel/internal/ppc"
)

// RegisterFileImports wires file open/close/read/write/seek/query and
// directory enumeration (spec.md §4.7, §4.8, §6). Close is shared with
// every other handle kind via NtClose, registered in sync.go.
func RegisterFileImports(t *Table) {
	t.Register("NtCreateFile", handleCreateFile)
	t.Register("NtReadFile", handleReadFile)
	t.Register("NtWriteFile", handleWriteFile)
	t.Register("NtSetInformationFile", handleSetFilePointer)
	t.Register("NtQueryInformationFile", handleQueryFileSize)
	t.Register("NtOpenDirectoryObject", handleOpenDirectory)
	t.Register("NtQueryDirectoryFile", handleQueryDirectoryFile)
}

// handleCreateFile: r3=guest address of a NUL-terminated path, r4=caller
// thread ID (used as the VFS per-thread cache key), r5=nonzero requests
// write access. Returns a file handle in r3, or NotFound/PermissionDenied
// on failure. Write access is only ever honored for paths that resolve to
// a real host file; archive-backed content is always read-only.
func handleCreateFile(k *kernel.Kernel, ctx *ppc.Context) {
	path := k.Memory.ReadCString(uint32(Arg(ctx, 0)))
	threadID := Arg(ctx, 1)
	wantsWrite := Arg(ctx, 2) != 0

	result := k.VFS.Resolve(threadID, path)
	if !result.Found {
		SetStatus(ctx, kernelerr.ErrNotFound)
		return
	}

	var f *kobject.File
	switch {
	case result.HostPath != "":
		flag := os.O_RDONLY
		if wantsWrite {
			flag = os.O_RDWR
		}
		host, err := os.OpenFile(result.HostPath, flag, 0)
		if err != nil {
			SetStatus(ctx, kernelerr.ErrNotFound)
			return
		}
		f = kobject.NewHostFile(result.HostPath, host)
	case wantsWrite:
		SetStatus(ctx, kernelerr.ErrPermissionDenied)
		return
	default:
		data, err := k.Archive.Fetch(result.ArchiveEntry, func() ([]byte, error) {
			return result.Archive.Extract(result.ArchiveEntry)
		})
		if err != nil {
			SetStatus(ctx, err)
			return
		}
		f = kobject.NewBufferFile(result.ArchiveEntry, data, func() {})
	}

	h := k.Handles.Insert(f)
	SetReturn(ctx, uint64(h))
}

// handleReadFile: r3=handle, r4=guest destination address, r5=length.
// Returns bytes read in r3, or a negative-as-unsigned status via
// SetStatus on failure (including a clean EOF, reported as zero bytes
// with StatusSuccess).
func handleReadFile(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	destAddr := uint32(Arg(ctx, 1))
	length := int(Arg(ctx, 2))

	obj, err := k.Handles.Lookup(h, string(kobject.KindFile))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	buf := make([]byte, length)
	n, readErr := obj.(*kobject.File).Read(buf)
	if n > 0 {
		k.Memory.WriteBytes(destAddr, buf[:n])
	}
	if readErr != nil && readErr != io.EOF {
		SetStatus(ctx, kernelerr.ErrFormatError)
		return
	}
	SetReturn(ctx, uint64(n))
}

// handleWriteFile: r3=handle, r4=guest source address, r5=length.
func handleWriteFile(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	srcAddr := uint32(Arg(ctx, 1))
	length := int(Arg(ctx, 2))

	obj, err := k.Handles.Lookup(h, string(kobject.KindFile))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	data := k.Memory.ReadBytes(srcAddr, length)
	n, writeErr := obj.(*kobject.File).Write(data)
	if writeErr != nil {
		SetStatus(ctx, writeErr)
		return
	}
	SetReturn(ctx, uint64(n))
}

// handleSetFilePointer: r3=handle, r4=offset, r5=whence (0 start, 1
// current, 2 end, matching io.Seek* conventions). Returns the resulting
// absolute offset in r3.
func handleSetFilePointer(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	offset := int64(Arg(ctx, 1))
	whence := int(Arg(ctx, 2))

	obj, err := k.Handles.Lookup(h, string(kobject.KindFile))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	pos, seekErr := obj.(*kobject.File).Seek(offset, whence)
	if seekErr != nil {
		SetStatus(ctx, kernelerr.ErrFormatError)
		return
	}
	SetReturn(ctx, uint64(pos))
}

// handleQueryFileSize: r3=handle. Returns the file's size in r3, or zero
// if the size is not knowable for this kind of handle.
func handleQueryFileSize(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindFile))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	size, ok := obj.(*kobject.File).Size()
	if !ok {
		SetReturn(ctx, 0)
		return
	}
	SetReturn(ctx, uint64(size))
}

// handleOpenDirectory: r3=guest address of a NUL-terminated directory
// path. Returns a DirEnum handle in r3. Archive-backed trees cannot be
// enumerated this way (spec.md §4.8's formats carry a flat name table,
// not a directory hierarchy).
func handleOpenDirectory(k *kernel.Kernel, ctx *ppc.Context) {
	path := k.Memory.ReadCString(uint32(Arg(ctx, 0)))

	hostPath, ok := k.VFS.ResolveDir(path)
	if !ok {
		SetStatus(ctx, kernelerr.ErrNotFound)
		return
	}

	dirEntries, err := os.ReadDir(hostPath)
	if err != nil {
		SetStatus(ctx, kernelerr.ErrNotFound)
		return
	}

	entries := make([]kobject.DirEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entries = append(entries, kobject.EntryFromFileInfo(e.Name(), e))
	}

	h := k.Handles.Insert(kobject.NewDirEnum(entries))
	SetReturn(ctx, uint64(h))
}

// handleQueryDirectoryFile: r3=handle. Advances the enumeration by one
// entry, writing nothing to guest memory (no guest-visible struct layout
// is defined for directory entries in this kernel); the caller instead
// observes StatusSuccess vs. a not-found status, matching just enough of
// the real API's iterate-until-exhausted shape to drive boot-time asset
// scans.
func handleQueryDirectoryFile(k *kernel.Kernel, ctx *ppc.Context) {
	h := uint32(Arg(ctx, 0))
	obj, err := k.Handles.Lookup(h, string(kobject.KindDirEnum))
	if err != nil {
		SetStatus(ctx, err)
		return
	}
	defer obj.Release()

	_, ok := obj.(*kobject.DirEnum).Next()
	if !ok {
		SetStatus(ctx, kernelerr.ErrNotFound)
		return
	}
	SetStatus(ctx, nil)
}
