// Package rpf parses the RPF v0/v2/v3 archive format family (spec.md
// §4.8): a small fixed header naming the version, a table of contents
// at a fixed offset optionally AES-256-ECB (16-pass) encrypted, and
// 16-byte entry records whose field packing differs by version.
package rpf

import (
	"encoding/binary"
	"fmt"

	"github.com/xenonrt/kernel/internal/archive"
	"github.com/xenonrt/kernel/internal/archive/aesecb"
	"github.com/xenonrt/kernel/internal/kernelerr"
)

// Version identifies which RPF header/entry layout a file uses.
type Version int

const (
	V0 Version = iota
	V2
	V3
)

const (
	magicV0 uint32 = 0x30465052 // "RPF0"
	magicV2 uint32 = 0x32465052 // "RPF2"
	magicV3 uint32 = 0x33465052 // "RPF3"

	tocOffset  = 2048
	entrySize  = 16
	headerSize = 20 // largest of the 12/20-byte headers; shorter ones are zero-padded
)

type header struct {
	version    Version
	tocSize    uint32
	entryCount uint32
	encrypted  bool
}

func parseHeader(data []byte) (header, error) {
	if len(data) < 12 {
		return header{}, kernelerr.ErrFormatError
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	var h header
	switch magic {
	case magicV0:
		h.version = V0
		h.tocSize = binary.LittleEndian.Uint32(data[4:8])
		h.entryCount = binary.LittleEndian.Uint32(data[8:12])
	case magicV2:
		if len(data) < 20 {
			return header{}, kernelerr.ErrFormatError
		}
		h.version = V2
		h.tocSize = binary.LittleEndian.Uint32(data[4:8])
		h.entryCount = binary.LittleEndian.Uint32(data[8:12])
		h.encrypted = binary.LittleEndian.Uint32(data[16:20]) != 0
	case magicV3:
		if len(data) < 20 {
			return header{}, kernelerr.ErrFormatError
		}
		h.version = V3
		h.tocSize = binary.LittleEndian.Uint32(data[4:8])
		h.entryCount = binary.LittleEndian.Uint32(data[8:12])
		h.encrypted = binary.LittleEndian.Uint32(data[16:20]) != 0
	default:
		return header{}, kernelerr.ErrFormatError
	}
	return h, nil
}

// Parse decodes data as an RPF archive of any recognized version. key is
// only consulted when the header's encryption flag (v2/v3) is set.
func Parse(data []byte, key []byte) (*archive.TableOfContents, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if int64(tocOffset)+int64(h.tocSize) > int64(len(data)) {
		return nil, kernelerr.ErrFormatError
	}
	toc := data[tocOffset : tocOffset+int(h.tocSize)]

	if h.encrypted {
		if len(key) == 0 {
			return nil, kernelerr.ErrDecryptionError
		}
		decrypted, err := aesecb.Decrypt(key, alignTo16(toc))
		if err != nil {
			return nil, fmt.Errorf("rpf: %w", kernelerr.ErrDecryptionError)
		}
		toc = decrypted[:len(toc)]
	}

	wantLen := int(h.entryCount) * entrySize
	if wantLen > len(toc) {
		return nil, kernelerr.ErrFormatError
	}
	nameTable := toc[wantLen:]

	entries := make([]archive.Entry, h.entryCount)
	for i := 0; i < int(h.entryCount); i++ {
		rec := toc[i*entrySize : i*entrySize+entrySize]
		e, err := decodeEntry(h.version, rec, nameTable, data)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}

	return &archive.TableOfContents{Entries: entries, Raw: data}, nil
}

// alignTo16 returns data unchanged when its length is a multiple of 16,
// else a copy zero-padded up to the next multiple of 16, since
// aesecb.Decrypt requires block-aligned input.
func alignTo16(data []byte) []byte {
	if len(data)%16 == 0 {
		return data
	}
	padded := make([]byte, (len(data)/16+1)*16)
	copy(padded, data)
	return padded
}

func decodeEntry(v Version, rec []byte, nameTable []byte, raw []byte) (archive.Entry, error) {
	switch v {
	case V0:
		return decodeEntryV0(rec, nameTable)
	case V2:
		return decodeEntryV2(rec, nameTable)
	case V3:
		return decodeEntryV3(rec, nameTable)
	default:
		return archive.Entry{}, kernelerr.ErrFormatError
	}
}

// nameAt reads a null-terminated string from the name table at byte
// offset off.
func nameAt(nameTable []byte, off uint32) (string, error) {
	if int(off) > len(nameTable) {
		return "", kernelerr.ErrFormatError
	}
	end := int(off)
	for end < len(nameTable) && nameTable[end] != 0 {
		end++
	}
	if end >= len(nameTable) {
		return "", kernelerr.ErrFormatError
	}
	return string(nameTable[off:end]), nil
}

// decodeEntryV0 interprets the sign-bit type discriminator packed into
// the combined name-offset/type word: bit 31 set marks a directory,
// which this loader skips by reporting it with a zero size (the VFS
// layer only resolves files, not directory placeholders).
func decodeEntryV0(rec []byte, nameTable []byte) (archive.Entry, error) {
	nameOffsetAndType := binary.LittleEndian.Uint32(rec[0:4])
	offsetBlocks := binary.LittleEndian.Uint32(rec[4:8])
	size := binary.LittleEndian.Uint32(rec[8:12])
	if nameOffsetAndType&0x80000000 != 0 {
		size = 0 // directory entry
	}

	nameOffset := nameOffsetAndType &^ 0x80000000
	name, err := nameAt(nameTable, nameOffset)
	if err != nil {
		return archive.Entry{}, err
	}
	return archive.Entry{
		Name:   name,
		Offset: int64(offsetBlocks) * 512,
		Size:   int64(size),
	}, nil
}

// decodeEntryV2 uses a 32-bit name-table offset and packs resource
// flags into the last word: the high two bits identify a resource
// entry, whose offset field holds a packed {real offset, resource-type
// byte}.
func decodeEntryV2(rec []byte, nameTable []byte) (archive.Entry, error) {
	nameOffset := binary.LittleEndian.Uint32(rec[0:4])
	packedOffset := binary.LittleEndian.Uint32(rec[4:8])
	size := binary.LittleEndian.Uint32(rec[8:12])
	flags := binary.LittleEndian.Uint32(rec[12:16])

	name, err := nameAt(nameTable, nameOffset)
	if err != nil {
		return archive.Entry{}, err
	}

	isResource := flags&0xC0000000 == 0xC0000000
	var offset int64
	if isResource {
		// Packed {real offset : 24 bits in units of 512, resource-type
		// byte : 8 bits}.
		offset = int64(packedOffset>>8) * 512
	} else {
		offset = int64(packedOffset) * 512
	}
	return archive.Entry{Name: name, Offset: offset, Size: int64(size)}, nil
}

// decodeEntryV3 reads a Jenkins-style name hash in place of the name
// offset and uses a distinct bit packing for compression and resource
// type. The name table is not consulted: the entry is named by its hash.
func decodeEntryV3(rec []byte, nameTable []byte) (archive.Entry, error) {
	nameHash := binary.LittleEndian.Uint32(rec[0:4])
	packed := binary.LittleEndian.Uint32(rec[4:8])
	size := binary.LittleEndian.Uint32(rec[8:12])
	compressedSize := binary.LittleEndian.Uint32(rec[12:16])

	// v3 entries carry no direct name offset, so the entry is named by
	// the synthetic "#" + 8-hex-digit form of its hash, and lookups must
	// use that name.
	name := fmt.Sprintf("#%08x", nameHash)

	offset := int64(packed&0x00FFFFFF) * 512

	e := archive.Entry{Name: name, Offset: offset, Size: int64(size)}
	if compressedSize != 0 && compressedSize != size {
		e.CompressedSize = int64(compressedSize)
	}
	return e, nil
}
