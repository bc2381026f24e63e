package kobject

import "io/fs"

// DirEntry is one resolved directory entry as surfaced to guest code.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// DirEnum is a kernel-level directory enumeration handle (spec.md §3
// "DirEnum"): an ordered snapshot of entries fixed at open time, walked
// forward by cursor. It is not a Syncable.
type DirEnum struct {
	Base

	entries []DirEntry
	cursor  int
}

// NewDirEnum constructs a DirEnum over a pre-resolved, already-ordered
// snapshot of entries.
func NewDirEnum(entries []DirEntry) *DirEnum {
	d := &DirEnum{entries: entries}
	d.Base = newBase(KindDirEnum, func() {})
	return d
}

// Next returns the next entry in the snapshot and advances the cursor,
// or reports ok=false once the snapshot is exhausted.
func (d *DirEnum) Next() (entry DirEntry, ok bool) {
	if d.cursor >= len(d.entries) {
		return DirEntry{}, false
	}
	entry = d.entries[d.cursor]
	d.cursor++
	return entry, true
}

// Reset rewinds the cursor to the beginning of the snapshot.
func (d *DirEnum) Reset() { d.cursor = 0 }

// Remaining reports how many entries are left to enumerate.
func (d *DirEnum) Remaining() int { return len(d.entries) - d.cursor }

// EntryFromFileInfo converts a standard-library fs.DirEntry into the
// snapshot form stored by DirEnum, used when building an enumeration
// from a host directory listing.
func EntryFromFileInfo(name string, e fs.DirEntry) DirEntry {
	var size int64
	if info, err := e.Info(); err == nil {
		size = info.Size()
	}
	return DirEntry{Name: name, IsDir: e.IsDir(), Size: size}
}
