// Package img parses the IMG v3 archive format (spec.md §4.8): a fixed
// header, a table of fixed-size resource entries, and a trailing
// null-terminated name table, with the header and table optionally
// AES-256-ECB (16-pass) encrypted.
package img

import (
	"encoding/binary"
	"fmt"

	"github.com/xenonrt/kernel/internal/archive"
	"github.com/xenonrt/kernel/internal/archive/aesecb"
	"github.com/xenonrt/kernel/internal/kernelerr"
)

// Magic is the expected little-endian header magic of an unencrypted
// archive: the ASCII bytes "IMG3".
const Magic uint32 = 0x33474D49

const (
	headerSize = 8  // magic (4) + entry count (4)
	entrySize  = 24 // flags, resourceType, startBlock, usedBlocks, padding, rawSize
	blockSize  = 2048
)

// resourceFlagMask identifies a resource entry by its top two bits.
const resourceFlagMask = 0xC0000000

// Parse decodes data as an IMG v3 archive. If the header magic doesn't
// match, the 16-byte-aligned prefix of data is first decrypted with key
// using 16-pass AES-256 ECB before parsing retries. key may be nil for an
// unencrypted archive; a magic mismatch with no key, or a magic still
// wrong after decryption, returns ErrDecryptionError.
func Parse(data []byte, key []byte) (*archive.TableOfContents, error) {
	if len(data) < headerSize {
		return nil, kernelerr.ErrFormatError
	}

	header := data
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		if len(key) == 0 {
			return nil, kernelerr.ErrDecryptionError
		}
		decrypted, err := decryptHeaderAndTable(data, key)
		if err != nil {
			return nil, err
		}
		header = decrypted
		if binary.LittleEndian.Uint32(header[0:4]) != Magic {
			return nil, kernelerr.ErrDecryptionError
		}
	}

	count := binary.LittleEndian.Uint32(header[4:8])
	tableEnd := headerSize + int(count)*entrySize
	if tableEnd > len(header) {
		return nil, kernelerr.ErrFormatError
	}

	type rawEntry struct {
		flags, resourceType, startBlock, usedBlocks, padding, rawSize uint32
	}
	raws := make([]rawEntry, count)
	for i := range raws {
		off := headerSize + i*entrySize
		raws[i] = rawEntry{
			flags:        binary.LittleEndian.Uint32(header[off : off+4]),
			resourceType: binary.LittleEndian.Uint32(header[off+4 : off+8]),
			startBlock:   binary.LittleEndian.Uint32(header[off+8 : off+12]),
			usedBlocks:   binary.LittleEndian.Uint32(header[off+12 : off+16]),
			padding:      binary.LittleEndian.Uint32(header[off+16 : off+20]),
			rawSize:      binary.LittleEndian.Uint32(header[off+20 : off+24]),
		}
	}

	names, err := readNameTable(header[tableEnd:], int(count))
	if err != nil {
		return nil, err
	}

	entries := make([]archive.Entry, count)
	for i, re := range raws {
		isResource := re.flags&resourceFlagMask == resourceFlagMask
		var size int64
		if isResource {
			size = int64(re.usedBlocks)*blockSize - int64(re.padding)
		} else {
			size = int64(re.rawSize)
		}
		if size < 0 {
			return nil, kernelerr.ErrFormatError
		}
		entries[i] = archive.Entry{
			Name:   names[i],
			Offset: int64(re.startBlock) * blockSize,
			Size:   size,
		}
	}

	return &archive.TableOfContents{Entries: entries, Raw: data}, nil
}

// decryptHeaderAndTable decrypts a block-aligned prefix of the file.
// The true header+table length isn't known until the header itself is
// readable, so the whole block-aligned portion of the file is decrypted
// up front; only the header/table-sized slice of the result is ever
// read back, and the caller's TableOfContents still indexes into the
// original, undecrypted data for entry bodies.
func decryptHeaderAndTable(data, key []byte) ([]byte, error) {
	aligned := len(data) - len(data)%16
	if aligned < headerSize {
		return nil, kernelerr.ErrFormatError
	}
	decrypted, err := aesecb.Decrypt(key, data[:aligned])
	if err != nil {
		return nil, fmt.Errorf("img: %w", kernelerr.ErrDecryptionError)
	}
	return decrypted, nil
}

func readNameTable(data []byte, count int) ([]string, error) {
	names := make([]string, count)
	off := 0
	for i := 0; i < count; i++ {
		start := off
		for off < len(data) && data[off] != 0 {
			off++
		}
		if off >= len(data) {
			return nil, kernelerr.ErrFormatError
		}
		names[i] = string(data[start:off])
		off++ // skip terminator
	}
	return names, nil
}
