// Package overlay implements the virtual archive merge of spec.md §4.9:
// an on-disk archive's entry list with case-insensitive name overrides
// from a replacement directory, plus newly-added files appended, served
// through the same read interface as a real archive by materializing a
// merged byte image in memory. The image is built in full when Merge
// runs, not deferred until the first read.
package overlay

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xenonrt/kernel/internal/archive"
	"github.com/xenonrt/kernel/internal/kernelerr"
)

// Merge produces a virtual TableOfContents combining base with files
// found under replacementDir: files whose relative path case-
// insensitively matches a base entry override it, and files with no
// match are appended as new entries.
func Merge(base *archive.TableOfContents, replacementDir string) (*archive.TableOfContents, error) {
	replacements, err := scan(replacementDir)
	if err != nil {
		return nil, err
	}

	img := &virtualImage{base: base, files: make(map[string]string)}
	byLowerName := make(map[string]int, len(base.Entries))
	entries := make([]archive.Entry, len(base.Entries))
	copy(entries, base.Entries)
	for i, e := range entries {
		byLowerName[strings.ToLower(e.Name)] = i
	}

	for relPath, hostPath := range replacements {
		key := strings.ToLower(relPath)
		img.files[key] = hostPath
		size, err := fileSize(hostPath)
		if err != nil {
			return nil, err
		}
		entry := archive.Entry{Name: relPath, Size: size}
		if i, ok := byLowerName[key]; ok {
			entries[i] = entry
		} else {
			byLowerName[key] = len(entries)
			entries = append(entries, entry)
		}
	}

	img.entries = entries
	return img.toc(), nil
}

// scan walks replacementDir, returning a map from slash-separated
// relative path to absolute host path for every regular file found.
func scan(replacementDir string) (map[string]string, error) {
	out := make(map[string]string)
	if replacementDir == "" {
		return out, nil
	}
	info, err := os.Stat(replacementDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, kernelerr.ErrFormatError
	}

	err = filepath.Walk(replacementDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(replacementDir, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = p
		return nil
	})
	return out, err
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// virtualImage materializes, once, from Merge, the merged byte buffer the
// overlaid TableOfContents reads its base-archive entries from: base entries
// still point into the original archive's Raw bytes at their original
// offsets, but overridden/appended entries need their own storage, so
// the merged image appends those bodies after the base archive's raw
// bytes and rewrites their offsets to match.
type virtualImage struct {
	base    *archive.TableOfContents
	files   map[string]string // lower-cased relative path -> host path
	entries []archive.Entry

	once sync.Once
	raw  []byte
}

func (v *virtualImage) toc() *archive.TableOfContents {
	v.once.Do(v.materialize)
	return &archive.TableOfContents{Entries: v.entries, Raw: v.raw}
}

func (v *virtualImage) materialize() {
	v.raw = append([]byte{}, v.base.Raw...)
	kept := v.entries[:0]
	for i, e := range v.entries {
		hostPath, overridden := v.files[strings.ToLower(e.Name)]
		if !overridden {
			kept = append(kept, e) // unmodified base entry: offset already correct
			continue
		}
		data, err := os.ReadFile(hostPath)
		if err != nil {
			// treat an unreadable overlay file as absent: an overridden base
			// entry falls back to the base archive's, an appended one is dropped
			if i < len(v.base.Entries) {
				kept = append(kept, v.base.Entries[i])
			}
			continue
		}
		e.Offset = int64(len(v.raw))
		e.Size = int64(len(data))
		e.CompressedSize = 0
		kept = append(kept, e)
		v.raw = append(v.raw, data...)
	}
	v.entries = kept
}
