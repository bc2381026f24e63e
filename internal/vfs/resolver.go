// Package vfs implements the read-oriented guest path resolver of
// spec.md §4.7: drive-letter guest paths normalized and searched
// first-match-wins across mod overlays, an update directory, the
// installed game directory, and loaded archive indices, with a
// per-thread resolution cache invalidated on overlay rescan.
package vfs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/xenonrt/kernel/internal/archive"
	"github.com/xenonrt/kernel/internal/archive/overlay"
	"github.com/xenonrt/kernel/internal/xlog"
)

const tag = "vfs"

// Result is the outcome of resolving one guest path.
type Result struct {
	Found bool

	// HostPath is set when the path resolved to a real file on disk
	// (an overlay, the update directory, or the installed game directory).
	HostPath string

	// Archive and ArchiveEntry are set when the path resolved to an
	// entry in a loaded archive index instead.
	Archive      *archive.TableOfContents
	ArchiveEntry string
}

// NamedArchive pairs a parsed archive with the name it's registered
// under for diagnostics.
type NamedArchive struct {
	Name string
	TOC  *archive.TableOfContents
}

// Resolver holds the search configuration and per-thread caches.
type Resolver struct {
	overlayDirs []string // priority order, first wins
	updateDir   string
	gameDir     string
	archives    []NamedArchive

	mu        sync.Mutex
	perThread map[uint64]*cache.Cache
}

// Config is the search configuration Resolver is built from, matching
// spec.md §4.7's "mod overlay directories", "update overlay directory",
// and "installed game directory".
type Config struct {
	OverlayDirs []string
	UpdateDir   string
	GameDir     string
	Archives    []NamedArchive
}

// New constructs a Resolver from cfg. Per spec.md §2's dataflow ("VFS
// consults the overlay merger, which queries the archive readers"), each
// archive's table of contents is first passed through the overlay
// merger against the update directory and every mod overlay directory,
// so a later Resolve against an archive-backed path already reflects
// any host-filesystem override without a second search pass.
func New(cfg Config) *Resolver {
	return &Resolver{
		overlayDirs: append([]string{}, cfg.OverlayDirs...),
		updateDir:   cfg.UpdateDir,
		gameDir:     cfg.GameDir,
		archives:    mergeArchiveOverlays(cfg.Archives, cfg.OverlayDirs, cfg.UpdateDir),
		perThread:   make(map[uint64]*cache.Cache),
	}
}

// mergeArchiveOverlays layers the update directory and then every mod
// overlay directory (lowest priority first, so the first overlay
// directory's files win last) on top of each archive's table of
// contents via the overlay merger. A directory that doesn't exist or
// has no matching files leaves the table of contents unchanged, so this
// is a no-op when no overlay/update directory is configured.
func mergeArchiveOverlays(archives []NamedArchive, overlayDirs []string, updateDir string) []NamedArchive {
	out := make([]NamedArchive, len(archives))
	for i, a := range archives {
		toc := a.TOC
		if updateDir != "" {
			merged, err := overlay.Merge(toc, updateDir)
			if err != nil {
				xlog.Warnf(tag, "merging update overlay into archive %s: %v", a.Name, err)
			} else {
				toc = merged
			}
		}
		for j := len(overlayDirs) - 1; j >= 0; j-- {
			merged, err := overlay.Merge(toc, overlayDirs[j])
			if err != nil {
				xlog.Warnf(tag, "merging overlay %s into archive %s: %v", overlayDirs[j], a.Name, err)
			} else {
				toc = merged
			}
		}
		out[i] = NamedArchive{Name: a.Name, TOC: toc}
	}
	return out
}

// Normalize lowercases a guest path, converts backslashes to forward
// slashes, and strips a single leading slash (spec.md §4.7 step 1).
// Unicode normalization (NFC) is additionally applied so overlay files
// saved with a different normalization form than the archive's embedded
// names still compare equal, since the host filesystem and archive name
// tables are not guaranteed to agree on composed vs. decomposed forms.
func Normalize(guestPath string) string {
	p := strings.ToLower(guestPath)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	return norm.NFC.String(p)
}

// Resolve searches for guestPath in priority order, caching the result
// (hit or miss) for threadID.
func (r *Resolver) Resolve(threadID uint64, guestPath string) Result {
	key := Normalize(guestPath)

	tc := r.threadCache(threadID)
	if cached, ok := tc.Get(key); ok {
		return cached.(Result)
	}

	result := r.search(key)
	tc.Set(key, result, cache.NoExpiration)
	return result
}

func (r *Resolver) search(normalized string) Result {
	for _, dir := range r.overlayDirs {
		if hostPath, ok := statJoined(dir, normalized); ok {
			return Result{Found: true, HostPath: hostPath}
		}
	}
	if hostPath, ok := statJoined(r.updateDir, normalized); ok {
		return Result{Found: true, HostPath: hostPath}
	}
	if hostPath, ok := statJoined(r.gameDir, normalized); ok {
		return Result{Found: true, HostPath: hostPath}
	}
	for _, a := range r.archives {
		if a.TOC.Has(normalized) {
			return Result{Found: true, Archive: a.TOC, ArchiveEntry: normalized}
		}
	}
	return Result{Found: false}
}

// ResolveDir searches for guestDir as a directory using the same
// priority order as Resolve, but over the host filesystem search roots
// only: archives carry a flat name table and cannot be enumerated as
// directories (spec.md §4.8 describes no nested directory structure for
// either archive family).
func (r *Resolver) ResolveDir(guestDir string) (hostPath string, ok bool) {
	normalized := Normalize(guestDir)
	for _, dir := range r.overlayDirs {
		if p, ok := statJoinedDir(dir, normalized); ok {
			return p, true
		}
	}
	if p, ok := statJoinedDir(r.updateDir, normalized); ok {
		return p, true
	}
	if p, ok := statJoinedDir(r.gameDir, normalized); ok {
		return p, true
	}
	return "", false
}

func statJoinedDir(dir, rel string) (string, bool) {
	if dir == "" {
		return "", false
	}
	p := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return p, true
}

func statJoined(dir, rel string) (string, bool) {
	if dir == "" {
		return "", false
	}
	p := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// ScratchDir is a per-run, uuid-named temporary directory for
// materialized extractions that need a real host file path rather than
// an in-memory buffer (spec.md §6 supplement), cleaned up via Close once
// the process no longer needs it.
type ScratchDir struct {
	path string
}

// NewScratchDir creates a uuid-named directory under base (os.TempDir()
// if base is empty).
func NewScratchDir(base string) (*ScratchDir, error) {
	if base == "" {
		base = os.TempDir()
	}
	path := filepath.Join(base, "xenonrt-"+uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &ScratchDir{path: path}, nil
}

// Path returns the scratch directory's host path.
func (s *ScratchDir) Path() string { return s.path }

// Close removes the scratch directory and everything under it.
func (s *ScratchDir) Close() error {
	return os.RemoveAll(s.path)
}

func (r *Resolver) threadCache(threadID uint64) *cache.Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.perThread[threadID]
	if !ok {
		c = cache.New(cache.NoExpiration, cache.NoExpiration)
		r.perThread[threadID] = c
	}
	return c
}

// Rescan invalidates every per-thread resolution cache, forcing the
// next Resolve for each path to search again. Called after overlay
// directories change on disk. Flushes run concurrently since a title
// with many guest threads can accumulate one cache per thread.
func (r *Resolver) Rescan() {
	r.mu.Lock()
	caches := make(map[uint64]*cache.Cache, len(r.perThread))
	for id, c := range r.perThread {
		caches[id] = c
	}
	r.mu.Unlock()

	var g errgroup.Group
	for id, c := range caches {
		id, c := id, c
		g.Go(func() error {
			c.Flush()
			xlog.Debugf(tag, "flushed resolution cache for thread %d", id)
			return nil
		})
	}
	_ = g.Wait()
}
