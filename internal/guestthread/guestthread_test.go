package guestthread

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/kobject"
	"github.com/xenonrt/kernel/internal/memory"
	"github.com/xenonrt/kernel/internal/ppc"
	"github.com/xenonrt/kernel/internal/waitset"
)

func TestStartRunsEntryAndSignalsThread(t *testing.T) {
	mem := memory.Reserve(0, 0x10000)
	coord := waitset.NewCoordinator()

	var released atomic.Bool
	g, err := New(coord, mem, 0, 7, func() { released.Store(true) })
	require.NoError(t, err)

	var observedArg uint64
	g.Start(func(ctx *ppc.Context) uint32 {
		observedArg = ctx.GPR[3]
		return 99
	})

	_, err = coord.Wait(0, []waitset.Syncable{g.Thread}, false, waitset.Infinite, nil)
	require.NoError(t, err)

	code, exited := g.Thread.ExitCode()
	assert.True(t, exited)
	assert.Equal(t, uint32(99), code)
	assert.Equal(t, uint64(7), observedArg)
	// The self-reference is dropped after the Thread object is signaled.
	assert.Eventually(t, released.Load, time.Second, time.Millisecond)
}

func TestSuspendBlocksBackEdgeUntilResume(t *testing.T) {
	mem := memory.Reserve(0, 0x10000)
	coord := waitset.NewCoordinator()
	g, err := New(coord, mem, 0, 0, func() {})
	require.NoError(t, err)

	g.Suspend()

	var passed atomic.Bool
	done := make(chan struct{})
	go func() {
		g.CheckBackEdge()
		passed.Store(true)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, passed.Load())

	g.Resume()
	<-done
	assert.True(t, passed.Load())
}

func TestForcedExitAbandonsOwnedMutants(t *testing.T) {
	mem := memory.Reserve(0, 0x10000)
	coord := waitset.NewCoordinator()
	g, err := New(coord, mem, 0, 0, func() {})
	require.NoError(t, err)

	m := kobject.NewMutant(coord, 1, true)
	g.TrackMutant(m)

	g.finish(5)

	idx, err := coord.Wait(2, []waitset.Syncable{m}, false, waitset.Infinite, nil)
	assert.Equal(t, 0, idx)
	assert.ErrorIs(t, err, kernelerr.ErrAbandoned)

	owner, owned := m.OwnerID()
	assert.True(t, owned)
	assert.Equal(t, uint64(2), owner)
}
