// Package loc implements the localization text-table loader of
// spec.md §4.10 and §6: a 4-byte header, a TKEY sub-table of
// {data-offset, Jenkins-hash} pairs, and a TDAT sub-table of
// null-terminated UTF-16LE strings, with lookup keyed by the same
// one-at-a-time hash the wire format carries.
package loc

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/xenonrt/kernel/internal/kernelerr"
)

const (
	expectedVersion = 4
	expectedBits    = 16
)

// Hash computes the Jenkins one-at-a-time hash of s, the function the
// TKEY table's keys are computed with. Reimplemented by hand rather than
// pulled from a library: the pack's only hash library,
// github.com/spaolacci/murmur3, is a different hash family entirely and
// would produce wrong lookups, not an equivalent one.
func Hash(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h += uint32(s[i])
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// Table is a loaded text table: a hash -> string map built from one or
// more parsed files, later files overriding earlier entries for the
// same hash.
type Table struct {
	strings map[uint32]string
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{strings: make(map[uint32]string)}
}

// Lookup returns the string registered for hash, if any.
func (t *Table) Lookup(hash uint32) (string, bool) {
	s, ok := t.strings[hash]
	return s, ok
}

// LookupString is a convenience wrapper computing the hash of key
// itself before looking it up.
func (t *Table) LookupString(key string) (string, bool) {
	return t.Lookup(Hash(key))
}

// Load parses one text-table file's bytes and merges its entries into
// t, with entries from this call overriding any existing hash already
// present (spec.md §4.10: "later files overriding earlier entries").
func (t *Table) Load(data []byte) error {
	if len(data) < 4 {
		return kernelerr.ErrFormatError
	}
	version := binary.LittleEndian.Uint16(data[0:2])
	bits := binary.LittleEndian.Uint16(data[2:4])
	if version != expectedVersion || bits != expectedBits {
		return kernelerr.ErrFormatError
	}

	var tkey, tdat []byte
	off := 4
	for off+8 <= len(data) {
		tag := data[off : off+4]
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		off += 8
		if int(size) > len(data)-off {
			return kernelerr.ErrFormatError
		}
		body := data[off : off+int(size)]
		switch string(tag) {
		case "TKEY":
			tkey = body
		case "TDAT":
			tdat = body
		}
		off += int(size)
	}
	if tkey == nil || tdat == nil {
		return kernelerr.ErrFormatError
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	const pairSize = 8
	for p := 0; p+pairSize <= len(tkey); p += pairSize {
		dataOffset := binary.LittleEndian.Uint32(tkey[p : p+4])
		hash := binary.LittleEndian.Uint32(tkey[p+4 : p+8])

		s, err := decodeUTF16NullTerminated(decoder, tdat, int(dataOffset))
		if err != nil {
			return err
		}
		t.strings[hash] = s
	}
	return nil
}

// LoadFromDirs scans each of roots in order for files with a ".loc"
// extension and merges them into t via Load, so callers should pass
// roots from lowest to highest priority: a later root's files override
// an earlier root's for the same hash (spec.md §4.10: "accepts multiple
// files scanned from overlay roots, later files overriding earlier
// entries"). A root that doesn't exist is skipped rather than treated as
// an error, matching how a missing overlay/update directory is treated
// everywhere else in this runtime. Returns the number of files loaded.
func (t *Table) LoadFromDirs(roots []string) (loaded int, err error) {
	for _, root := range roots {
		if root == "" {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return loaded, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".loc") {
				continue
			}
			path := filepath.Join(root, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return loaded, err
			}
			if err := t.Load(data); err != nil {
				return loaded, fmt.Errorf("%s: %w", path, err)
			}
			loaded++
		}
	}
	return loaded, nil
}

// decodeUTF16NullTerminated decodes a null-terminated UTF-16LE string
// starting at byte offset off within tdat.
func decodeUTF16NullTerminated(decoder *encoding.Decoder, tdat []byte, off int) (string, error) {
	if off < 0 || off+2 > len(tdat) {
		return "", kernelerr.ErrFormatError
	}
	end := off
	for end+1 < len(tdat) {
		if tdat[end] == 0 && tdat[end+1] == 0 {
			break
		}
		end += 2
	}
	if end+1 >= len(tdat) {
		return "", kernelerr.ErrFormatError
	}

	decoded, _, err := transform.Bytes(decoder, tdat[off:end])
	if err != nil {
		return "", kernelerr.ErrFormatError
	}
	return string(decoded), nil
}
