package aesecb

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encryptPasses(t *testing.T, key, data []byte, passes int) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(data))
	copy(out, data)
	for p := 0; p < passes; p++ {
		for off := 0; off < len(out); off += aes.BlockSize {
			block.Encrypt(out[off:off+aes.BlockSize], out[off:off+aes.BlockSize])
		}
	}
	return out
}

func TestDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	plain := make([]byte, aes.BlockSize*3)
	for i := range plain {
		plain[i] = byte(i * 7)
	}

	// Encrypt in reverse pass order to invert the 16-pass decrypt loop.
	cipher := plain
	for p := 0; p < Passes; p++ {
		cipher = encryptPasses(t, key, cipher, 1)
	}

	got, err := Decrypt(key, cipher)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecryptRejectsBadKeySize(t *testing.T) {
	_, err := Decrypt(make([]byte, 10), make([]byte, aes.BlockSize))
	assert.Error(t, err)
}

func TestDecryptRejectsUnalignedData(t *testing.T) {
	_, err := Decrypt(make([]byte, KeySize), make([]byte, 5))
	assert.Error(t, err)
}
