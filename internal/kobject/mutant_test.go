package kobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenonrt/kernel/internal/kernelerr"
	"github.com/xenonrt/kernel/internal/waitset"
)

func TestMutantRecursiveAcquireAndRelease(t *testing.T) {
	coord := waitset.NewCoordinator()
	m := NewMutant(coord, 0, false)

	idx, err := coord.Wait(42, []waitset.Syncable{m}, false, waitset.Infinite, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = coord.Wait(42, []waitset.Syncable{m}, false, waitset.Infinite, nil)
	require.NoError(t, err)

	owner, owned := m.OwnerID()
	assert.True(t, owned)
	assert.Equal(t, uint64(42), owner)

	require.NoError(t, m.Release(42))
	_, owned = m.OwnerID()
	assert.True(t, owned)

	require.NoError(t, m.Release(42))
	_, owned = m.OwnerID()
	assert.False(t, owned)
}

func TestMutantReleaseByNonOwnerFails(t *testing.T) {
	coord := waitset.NewCoordinator()
	m := NewMutant(coord, 1, true)
	err := m.Release(2)
	assert.ErrorIs(t, err, kernelerr.ErrNotOwner)
}

func TestMutantAbandonedIsReportedOnce(t *testing.T) {
	coord := waitset.NewCoordinator()
	m := NewMutant(coord, 1, true)
	m.Abandon()

	idx, err := coord.Wait(2, []waitset.Syncable{m}, false, waitset.Infinite, nil)
	assert.Equal(t, 0, idx)
	assert.ErrorIs(t, err, kernelerr.ErrAbandoned)

	require.NoError(t, m.Release(2))
	idx, err = coord.Wait(3, []waitset.Syncable{m}, false, waitset.Infinite, nil)
	assert.Equal(t, 0, idx)
	assert.NoError(t, err)
}
