// Package guestthread implements guest thread creation and control
// (spec.md §4.5): a host goroutine per guest thread, running against a
// PPC register-file context and a guest-memory-resident stack, with
// cooperative suspend/resume and termination.
package guestthread

import (
	"sync"

	"github.com/xenonrt/kernel/internal/kobject"
	"github.com/xenonrt/kernel/internal/memory"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/waitset"
	"github.com/xenonrt/kernel/internal/xlog"
)

const tag = "guestthread"

// DefaultStackSize is used when a guest thread creation request does not
// specify one.
const DefaultStackSize = 64 * 1024

// EntryFunc is the translated entry function a guest thread runs. It
// consults ctx for argument registers and returns the value destined for
// r3 at exit, used as the thread's exit code.
type EntryFunc func(ctx *ppc.Context) uint32

// GuestThread ties together the PPC context, backing stack allocation,
// and kernel Thread object for one running guest thread.
type GuestThread struct {
	Context *ppc.Context
	Thread  *kobject.Thread

	coord *waitset.Coordinator
	mem   *memory.Region

	stackAddr uint32

	mu           sync.Mutex
	suspendCount int
	resumeEvent  *kobject.Event // signaled while runnable; cleared while suspended

	ownedMutants map[*kobject.Mutant]struct{}

	selfRelease func()
}

// New allocates a guest stack, constructs the PPC context, and
// registers the kernel Thread object. Call Start to spawn the host
// goroutine that actually runs entry. selfRelease is invoked once, when
// the thread's self-reference is dropped at exit (spec.md §3 "Threads
// hold a self-reference until they exit").
func New(coord *waitset.Coordinator, mem *memory.Region, stackSize uint32, arg0 uint64, selfRelease func()) (*GuestThread, error) {
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	stackAddr, err := mem.Alloc(stackSize, memory.ProtectReadWrite)
	if err != nil {
		return nil, err
	}

	g := &GuestThread{
		Context:      ppc.NewContext(stackAddr, stackSize, arg0),
		Thread:       kobject.NewThread(coord),
		coord:        coord,
		mem:          mem,
		stackAddr:    stackAddr,
		resumeEvent:  kobject.NewEvent(coord, kobject.ResetManual, true),
		ownedMutants: make(map[*kobject.Mutant]struct{}),
		selfRelease:  selfRelease,
	}
	return g, nil
}

// Start spawns the host thread that installs the thread-local context
// pointer (implicitly, by closing over ctx) and invokes entry. It always
// runs entry to completion or until a cooperative back-edge check
// observes termination; exit bookkeeping runs via finish.
func (g *GuestThread) Start(entry EntryFunc) {
	go func() {
		exitCode := entry(g.Context)
		g.finish(exitCode)
	}()
}

// finish marks owned mutants abandoned, signals the Thread object's
// exit, frees the guest stack, and drops the thread's self-reference.
func (g *GuestThread) finish(exitCode uint32) {
	g.mu.Lock()
	held := len(g.ownedMutants)
	for m := range g.ownedMutants {
		m.Abandon()
	}
	g.ownedMutants = nil
	g.mu.Unlock()

	if held > 0 {
		xlog.Warnf(tag, "thread exited (code %d) while still holding %d mutant(s); marked abandoned", exitCode, held)
	}

	g.Thread.MarkExited(exitCode)
	if err := g.mem.Free(g.stackAddr); err != nil {
		xlog.Warnf(tag, "freeing guest stack: %v", err)
	}

	g.mu.Lock()
	release := g.selfRelease
	g.mu.Unlock()
	if release != nil {
		release()
	}
}

// SetSelfRelease replaces the release callback installed at construction.
// handleCreateThread needs this: its callback drops the Thread object's
// self-reference and unregisters the thread ID, which is only assigned
// after New returns, and it has to run from inside finish.
func (g *GuestThread) SetSelfRelease(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selfRelease = fn
}

// TrackMutant records a mutant this thread currently owns, so a forced
// exit abandons it (spec.md §8 scenario 3).
func (g *GuestThread) TrackMutant(m *kobject.Mutant) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ownedMutants != nil {
		g.ownedMutants[m] = struct{}{}
	}
}

// UntrackMutant removes a mutant from the owned set after a clean
// release.
func (g *GuestThread) UntrackMutant(m *kobject.Mutant) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ownedMutants, m)
}

// Suspend increments the suspend count, blocking the thread at its next
// back-edge check once the count becomes nonzero.
func (g *GuestThread) Suspend() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suspendCount++
	if g.suspendCount == 1 {
		g.resumeEvent.Clear()
	}
}

// Resume decrements the suspend count, unblocking the thread once it
// reaches zero.
func (g *GuestThread) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suspendCount == 0 {
		return
	}
	g.suspendCount--
	if g.suspendCount == 0 {
		g.resumeEvent.Set()
	}
}

// CheckBackEdge is the cooperative pause/cancellation hook translated
// code invokes at back-edges (spec.md §4.5, §6 "Suspension points"): it
// blocks while suspended, with bounded latency, and reports whether
// termination was separately requested via the context's flag so the
// caller can unwind.
func (g *GuestThread) CheckBackEdge() (shouldTerminate bool) {
	for {
		if g.Context.TerminateRequested() {
			return true
		}
		g.mu.Lock()
		suspended := g.suspendCount > 0
		g.mu.Unlock()
		if !suspended {
			return false
		}
		_, _ = g.coord.Wait(0, []waitset.Syncable{g.resumeEvent}, false, waitset.Infinite, nil)
	}
}

// RequestTerminate sets the cooperative termination flag observed by
// CheckBackEdge. Waits do not read the flag: a thread blocked in a wait
// stays blocked until that wait returns.
func (g *GuestThread) RequestTerminate() {
	g.Context.RequestTerminate()
	// unblock if currently suspended, however deep the suspend count,
	// so it can observe termination
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suspendCount > 0 {
		g.suspendCount = 0
		g.resumeEvent.Set()
	}
}
