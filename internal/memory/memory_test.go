package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAndTranslate(t *testing.T) {
	r := Reserve(0x10000, 0x1000)
	require.True(t, r.Contains(0x10000, 0x1000))
	require.False(t, r.Contains(0x10000, 0x1001))
	require.False(t, r.Contains(0x0FFF0, 0x10))

	host := r.ToHost(0x10010)
	guest := r.ToGuest(host)
	assert.Equal(t, uint32(0x10010), guest)
}

func TestReadCStringStopsAtNUL(t *testing.T) {
	r := Reserve(0, 0x100)
	r.WriteBytes(0x30, append([]byte("common/data/handling.dat"), 0, 'x', 'x'))
	assert.Equal(t, "common/data/handling.dat", r.ReadCString(0x30))
}

func TestReadCStringEmpty(t *testing.T) {
	r := Reserve(0, 0x100)
	r.StoreU8(0x40, 0)
	assert.Equal(t, "", r.ReadCString(0x40))
}

func TestEndianRoundTrip(t *testing.T) {
	r := Reserve(0, 0x100)

	r.StoreU16(0x10, 0xABCD)
	assert.Equal(t, uint16(0xABCD), r.LoadU16(0x10))
	assert.Equal(t, []byte{0xAB, 0xCD}, r.ReadBytes(0x10, 2))

	for _, v := range []uint32{0, 1, 0x12345678, 0xFFFFFFFF} {
		r.StoreU32(0x20, v)
		assert.Equal(t, v, r.LoadU32(0x20))
	}

	r.StoreU64(0x40, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), r.LoadU64(0x40))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, r.ReadBytes(0x40, 8))

	r.StoreF32(0x60, 3.14159)
	assert.InDelta(t, float32(3.14159), r.LoadF32(0x60), 1e-5)

	r.StoreF64(0x70, 2.71828182845)
	assert.InDelta(t, 2.71828182845, r.LoadF64(0x70), 1e-10)
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	r := Reserve(0, 0x10)
	assert.Panics(t, func() { r.LoadU32(0x20) })
	assert.Panics(t, func() { r.WriteBytes(0x8, make([]byte, 16)) })
}

func TestOutOfRangeStoresPanicSymmetricallyWithLoads(t *testing.T) {
	r := Reserve(0, 0x10)
	assert.Panics(t, func() { r.StoreU8(0x20, 1) })
	assert.Panics(t, func() { r.StoreU16(0x20, 1) })
	assert.Panics(t, func() { r.StoreU32(0x20, 1) })
	assert.Panics(t, func() { r.StoreU64(0x20, 1) })
}

func TestWriteBytes(t *testing.T) {
	r := Reserve(0, 0x10)
	r.WriteBytes(0x4, []byte{9, 9, 9})
	assert.Equal(t, []byte{9, 9, 9}, r.ReadBytes(0x4, 3))
}

func TestAllocFreeQuery(t *testing.T) {
	r := Reserve(0x1000, 0x200)

	a1, err := r.Alloc(10, ProtectReadWrite)
	require.NoError(t, err)
	a2, err := r.Alloc(10, ProtectReadOnly)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)

	size, prot, ok := r.Query(a1)
	require.True(t, ok)
	assert.Equal(t, uint32(16), size) // rounded to 16-byte alignment
	assert.Equal(t, ProtectReadWrite, prot)

	require.NoError(t, r.Protect(a1, ProtectNoAccess))
	_, prot, _ = r.Query(a1)
	assert.Equal(t, ProtectNoAccess, prot)

	require.NoError(t, r.Free(a1))
	_, _, ok = r.Query(a1)
	assert.False(t, ok)

	err = r.Free(a1)
	assert.Error(t, err)
}

func TestAllocFailsWhenExhausted(t *testing.T) {
	r := Reserve(0, 0x20)
	_, err := r.Alloc(0x20, ProtectReadWrite)
	require.NoError(t, err)
	_, err = r.Alloc(1, ProtectReadWrite)
	assert.Error(t, err)
}
