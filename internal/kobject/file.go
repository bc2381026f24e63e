package kobject

import (
	"io"
	"sync"

	"github.com/xenonrt/kernel/internal/kernelerr"
)

// File is a kernel-level handle onto either a host file or an
// archive-backed in-memory buffer (spec.md §3 "File"). It is not a
// Syncable: guest file handles are not waitable objects.
type File struct {
	Base

	mu   sync.Mutex
	path string

	// Exactly one of host or buf is populated, depending on whether the
	// path resolved to a real file on disk or archive-backed content.
	host io.ReadWriteSeeker
	buf  []byte
	pos  int64

	// release, if set, is a caller-supplied callback run when the last
	// reference is dropped. The archive cache has no pin, so an open
	// handle does not keep its entry from being evicted; buf itself stays
	// valid for as long as the File references it.
	release func()
}

// NewHostFile wraps an already-opened host file handle.
func NewHostFile(path string, host io.ReadWriteSeeker) *File {
	f := &File{path: path, host: host}
	f.Base = newBase(KindFile, f.close)
	return f
}

// NewBufferFile wraps archive-extracted content. release is invoked
// exactly once, when the handle's last reference is dropped.
func NewBufferFile(path string, buf []byte, release func()) *File {
	f := &File{path: path, buf: buf, release: release}
	f.Base = newBase(KindFile, f.close)
	return f
}

func (f *File) close() {
	if c, ok := f.host.(io.Closer); ok {
		_ = c.Close()
	}
	if f.release != nil {
		f.release()
	}
}

// Path returns the guest path this handle was opened against.
func (f *File) Path() string { return f.path }

// Read copies up to len(p) bytes starting at the handle's current
// position, advancing it, and reports io.EOF past the end of content.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.host != nil {
		return f.host.Read(p)
	}
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write writes to a host-backed file at its current position. Archive-backed handles are
// read-only, per spec.md §4 non-goals.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.host == nil {
		return 0, kernelerr.ErrPermissionDenied
	}
	return f.host.Write(p)
}

// Seek repositions the handle, mirroring io.Seeker's whence semantics.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.host != nil {
		return f.host.Seek(offset, whence)
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.buf))
	}
	f.pos = base + offset
	if f.pos < 0 {
		return 0, kernelerr.ErrFormatError
	}
	return f.pos, nil
}

// Size reports the total content length for archive-backed handles.
func (f *File) Size() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.host != nil {
		return 0, false
	}
	return int64(len(f.buf)), true
}
