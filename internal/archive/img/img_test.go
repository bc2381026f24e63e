package img

import (
	"crypto/aes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenonrt/kernel/internal/archive/aesecb"
)

func buildArchive(t *testing.T, entries []struct {
	name       string
	resource   bool
	blockStart uint32
	usedBlocks uint32
	padding    uint32
	rawSize    uint32
	body       []byte
}) []byte {
	t.Helper()

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(entries)))

	table := make([]byte, 0, len(entries)*entrySize)
	var names []byte
	for _, e := range entries {
		rec := make([]byte, entrySize)
		flags := uint32(0)
		if e.resource {
			flags = resourceFlagMask
		}
		binary.LittleEndian.PutUint32(rec[0:4], flags)
		binary.LittleEndian.PutUint32(rec[8:12], e.blockStart)
		binary.LittleEndian.PutUint32(rec[12:16], e.usedBlocks)
		binary.LittleEndian.PutUint32(rec[16:20], e.padding)
		binary.LittleEndian.PutUint32(rec[20:24], e.rawSize)
		table = append(table, rec...)
		names = append(names, []byte(e.name)...)
		names = append(names, 0)
	}

	out := append(header, table...)
	out = append(out, names...)

	// Lay down bodies at their declared block offsets, growing the
	// buffer as needed.
	maxEnd := int64(len(out))
	for _, e := range entries {
		end := int64(e.blockStart)*blockSize + int64(len(e.body))
		if end > maxEnd {
			maxEnd = end
		}
	}
	if int64(len(out)) < maxEnd {
		padded := make([]byte, maxEnd)
		copy(padded, out)
		out = padded
	}
	for _, e := range entries {
		copy(out[int64(e.blockStart)*blockSize:], e.body)
	}
	return out
}

func TestParseUnencryptedNonResourceEntry(t *testing.T) {
	body := []byte("hello world")
	data := buildArchive(t, []struct {
		name       string
		resource   bool
		blockStart uint32
		usedBlocks uint32
		padding    uint32
		rawSize    uint32
		body       []byte
	}{
		{name: "common/data.dat", blockStart: 1, rawSize: uint32(len(body)), body: body},
	})

	toc, err := Parse(data, nil)
	require.NoError(t, err)
	require.Len(t, toc.Entries, 1)
	assert.Equal(t, "common/data.dat", toc.Entries[0].Name)

	got, err := toc.Extract("COMMON/DATA.DAT")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestParseResourceEntryDerivesSizeFromBlocks(t *testing.T) {
	body := make([]byte, blockSize*2-10)
	for i := range body {
		body[i] = byte(i)
	}
	data := buildArchive(t, []struct {
		name       string
		resource   bool
		blockStart uint32
		usedBlocks uint32
		padding    uint32
		rawSize    uint32
		body       []byte
	}{
		{name: "models/car.wdr", resource: true, blockStart: 2, usedBlocks: 2, padding: 10, body: body},
	})

	toc, err := Parse(data, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), toc.Entries[0].Size)

	got, err := toc.Extract("models/car.wdr")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestParseRejectsTruncatedData(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3}, nil)
	assert.Error(t, err)
}

func TestParseEncryptedHeaderRequiresKey(t *testing.T) {
	garbage := make([]byte, headerSize)
	_, err := Parse(garbage, nil)
	assert.Error(t, err)
}

func TestParseDecryptsEncryptedHeader(t *testing.T) {
	body := []byte("plaintext body")

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], 1)

	rec := make([]byte, entrySize)
	binary.LittleEndian.PutUint32(rec[8:12], 1) // blockStart
	binary.LittleEndian.PutUint32(rec[20:24], uint32(len(body)))

	headerBlob := append(header, rec...)
	headerBlob = append(headerBlob, []byte("a.txt\x00")...)
	// Pad the encrypted region to a 16-byte boundary, staying entirely
	// within [0, blockSize) so it never touches the body placed at
	// block 1.
	for len(headerBlob)%16 != 0 {
		headerBlob = append(headerBlob, 0)
	}
	require.Less(t, len(headerBlob), blockSize)

	key := make([]byte, aesecb.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	encryptedHeader := encryptBlocks(t, key, headerBlob)

	data := make([]byte, blockSize+len(body))
	copy(data, encryptedHeader)
	copy(data[blockSize:], body)

	toc, err := Parse(data, key)
	require.NoError(t, err)
	require.Len(t, toc.Entries, 1)

	got, err := toc.Extract("a.txt")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func encryptBlocks(t *testing.T, key, data []byte) []byte {
	t.Helper()
	// Invert aesecb.Decrypt's 16-pass loop by AES-encrypting 16 times.
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := append([]byte{}, data...)
	for p := 0; p < aesecb.Passes; p++ {
		for off := 0; off < len(out); off += aes.BlockSize {
			block.Encrypt(out[off:off+aes.BlockSize], out[off:off+aes.BlockSize])
		}
	}
	return out
}
