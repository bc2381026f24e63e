// Package kernel wires together the subsystems every kernel import
// handler needs: guest memory, the handle table, the wait coordinator,
// the live guest thread set, the VFS resolver, the archive extraction
// cache, and the localization table. One Kernel exists per emulated
// process.
package kernel

import (
	"sync"
	"time"

	"github.com/xenonrt/kernel/internal/archive"
	"github.com/xenonrt/kernel/internal/guestthread"
	"github.com/xenonrt/kernel/internal/handle"
	"github.com/xenonrt/kernel/internal/kobject"
	"github.com/xenonrt/kernel/internal/loc"
	"github.com/xenonrt/kernel/internal/memory"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/vfs"
	"github.com/xenonrt/kernel/internal/waitset"
)

// Kernel is the process-wide set of live subsystems.
type Kernel struct {
	Memory  *memory.Region
	Handles *handle.Table
	Coord   *waitset.Coordinator
	VFS     *vfs.Resolver
	Archive *archive.Cache
	Loc     *loc.Table

	startedAt time.Time

	mu       sync.Mutex
	threads  map[uint64]*guestthread.GuestThread
	byObject map[*kobject.Thread]*guestthread.GuestThread
	nextTID  uint64

	entryPoints map[uint32]guestthread.EntryFunc

	frameCount uint64

	tlsAllocated [ppc.TLSSlotCount]bool

	// Scratch, if set, backs ExtractToTempfile with a per-run uuid-named
	// directory instead of the system temp directory (spec.md §6
	// supplement). Left nil by New; callers that want it opt in via
	// SetScratchDir.
	Scratch *vfs.ScratchDir
}

// SetScratchDir installs dir as the destination for ExtractToTempfile.
func (k *Kernel) SetScratchDir(dir *vfs.ScratchDir) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Scratch = dir
}

// ExtractToTempfile materializes toc's entry name into a real host file
// under the kernel's scratch directory (the system temp directory if
// none was set), for host APIs that need a file path rather than an
// in-memory buffer.
func (k *Kernel) ExtractToTempfile(toc *archive.TableOfContents, name string) (string, error) {
	k.mu.Lock()
	scratch := k.Scratch
	k.mu.Unlock()

	dir := ""
	if scratch != nil {
		dir = scratch.Path()
	}
	return archive.ExtractToTempfile(dir, toc, name)
}

// New constructs a Kernel from its already-configured subsystems.
func New(mem *memory.Region, resolver *vfs.Resolver, archiveCache *archive.Cache) *Kernel {
	return &Kernel{
		Memory:      mem,
		Handles:     handle.New(),
		Coord:       waitset.NewCoordinator(),
		VFS:         resolver,
		Archive:     archiveCache,
		Loc:         loc.NewTable(),
		startedAt:   time.Now(),
		threads:     make(map[uint64]*guestthread.GuestThread),
		byObject:    make(map[*kobject.Thread]*guestthread.GuestThread),
		nextTID:     1,
		entryPoints: make(map[uint32]guestthread.EntryFunc),
	}
}

// RegisterEntryPoint associates a translated guest function's entry
// address with its host implementation, populated by the recompiled
// code's own init routine before any thread targeting that address is
// created.
func (k *Kernel) RegisterEntryPoint(addr uint32, fn guestthread.EntryFunc) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entryPoints[addr] = fn
}

// EntryPoint resolves a guest entry address to its host implementation.
func (k *Kernel) EntryPoint(addr uint32) (guestthread.EntryFunc, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fn, ok := k.entryPoints[addr]
	return fn, ok
}

// NewThreadID allocates a process-unique guest thread identifier, used
// both as the waitset owner ID and as the VFS per-thread cache key.
func (k *Kernel) NewThreadID() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.nextTID
	k.nextTID++
	return id
}

// RegisterThread records a live guest thread under id, indexed both by
// its synthetic thread ID and by its kobject.Thread handle object so
// import handlers that only see a handle (KeSuspendThread and friends)
// can reach the owning GuestThread in O(1).
func (k *Kernel) RegisterThread(id uint64, g *guestthread.GuestThread) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.threads[id] = g
	k.byObject[g.Thread] = g
}

// Thread returns the guest thread registered under id, if any.
func (k *Kernel) Thread(id uint64) (*guestthread.GuestThread, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	g, ok := k.threads[id]
	return g, ok
}

// GuestThreadFor resolves a kobject.Thread handle object back to the
// GuestThread that owns it.
func (k *Kernel) GuestThreadFor(th *kobject.Thread) (*guestthread.GuestThread, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	g, ok := k.byObject[th]
	return g, ok
}

// UnregisterThread drops the bookkeeping entries for id, called once a
// thread's exit has been fully processed.
func (k *Kernel) UnregisterThread(id uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if g, ok := k.threads[id]; ok {
		delete(k.byObject, g.Thread)
	}
	delete(k.threads, id)
}

// AllocTLSSlot reserves a process-wide TLS slot index (spec.md §4.5: "a
// fixed small number of slots per thread, allocated by a global index").
// The returned index is valid across every guest thread's Context.TLS
// array until FreeTLSSlot releases it.
func (k *Kernel) AllocTLSSlot() (uint32, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.tlsAllocated {
		if !k.tlsAllocated[i] {
			k.tlsAllocated[i] = true
			return uint32(i), true
		}
	}
	return 0, false
}

// FreeTLSSlot releases a slot index allocated by AllocTLSSlot.
func (k *Kernel) FreeTLSSlot(slot uint32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if int(slot) >= len(k.tlsAllocated) || !k.tlsAllocated[slot] {
		return false
	}
	k.tlsAllocated[slot] = false
	return true
}

// UptimeHundredNanos reports elapsed time since kernel construction in
// 100-ns units, the resolution spec.md §6's high-resolution timer query
// exposes to translated code.
func (k *Kernel) UptimeHundredNanos() int64 {
	return time.Since(k.startedAt).Nanoseconds() / 100
}

// SwapBuffers increments the stub frame counter backing the video-swap
// import (spec.md §6: "treated as a stub that increments a frame
// counter").
func (k *Kernel) SwapBuffers() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.frameCount++
	return k.frameCount
}
