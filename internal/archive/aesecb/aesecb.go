// Package aesecb implements the raw AES-256 ECB decryption scheme the
// archive header formats use (spec.md §4.8): 16 consecutive decryption
// passes over the same ciphertext with a single preconfigured key, block
// by block, with no IV and no chaining between blocks. Neither the
// standard library nor golang.org/x/crypto expose ECB mode directly
// (deliberately: it's an insecure general-purpose cipher mode), so the
// block-at-a-time loop is hand-rolled over crypto/aes and crypto/cipher,
// matching how the format actually encrypts.
package aesecb

import (
	"crypto/aes"
	"fmt"
)

// KeySize is the required AES-256 key length in bytes.
const KeySize = 32

// Passes is the fixed number of sequential ECB decryption passes the
// archive formats apply.
const Passes = 16

// Decrypt returns a new slice holding data decrypted in place, block by
// block, for Passes consecutive rounds with the same key. len(data) must
// be a multiple of aes.BlockSize; a partial trailing block is an error
// since the format guarantees block-aligned encrypted regions.
func Decrypt(key, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aesecb: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aesecb: data length %d is not a multiple of the block size", len(data))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aesecb: %w", err)
	}

	out := make([]byte, len(data))
	copy(out, data)

	for pass := 0; pass < Passes; pass++ {
		for off := 0; off < len(out); off += aes.BlockSize {
			block.Decrypt(out[off:off+aes.BlockSize], out[off:off+aes.BlockSize])
		}
	}
	return out, nil
}
