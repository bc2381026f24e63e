// Package config defines the kernel's startup configuration (spec.md
// §4.12): guest memory sizing, VFS search roots, the archive decryption
// key, and the extraction cache's soft byte cap, bound to
// github.com/spf13/pflag flags and constructed once at startup rather
// than read piecemeal from package-level globals.
package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/xenonrt/kernel/internal/kernelerr"
)

// Config is the full set of values a kernel bring-up needs. Every field
// maps to exactly one flag registered by BindFlags.
type Config struct {
	// GuestMemorySize is the size in bytes of the emulated address space
	// reserved at startup (spec.md §4.1).
	GuestMemorySize uint32

	// GameDir is the installed title's root directory, the last entry
	// in the VFS search order (spec.md §4.7).
	GameDir string

	// UpdateDir is an optional title-update overlay directory, searched
	// before GameDir and after the mod overlays.
	UpdateDir string

	// OverlayDirs are mod overlay directories in priority order, first
	// wins (spec.md §4.7).
	OverlayDirs []string

	// Archives lists archive files (IMG or RPF) to load at startup,
	// lowest priority in the VFS search order.
	Archives []string

	// DecryptionKeyPath, if set, names a file holding the raw 32-byte
	// AES-256 key used to decrypt encrypted archive headers/tables
	// (spec.md §4.8). Empty means archives are expected unencrypted.
	DecryptionKeyPath string

	// CacheSoftCapBytes bounds the archive extraction cache (spec.md
	// §4.8's "soft cap triggering LRU eviction").
	CacheSoftCapBytes int64

	// PersistCachePath, if set, enables the optional bbolt-backed
	// extraction cache at this path, persisting extracted bytes across
	// runs (spec.md §6 supplement).
	PersistCachePath string

	// LogLevel names the internal/xlog verbosity (debug, info, warn,
	// error).
	LogLevel string
}

// Default returns a Config with the same defaults BindFlags registers,
// useful for tests and for embedding this kernel as a library without
// going through the CLI.
func Default() *Config {
	return &Config{
		GuestMemorySize:   512 << 20,
		CacheSoftCapBytes: 256 << 20,
		LogLevel:          "info",
	}
}

// BindFlags registers every Config field onto fs, following the
// teacher's convention of one pflag.FlagSet shared between the cobra
// command tree and this package (cmd/xenonrt wires fs to its root
// command's PersistentFlags).
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Uint32Var(&cfg.GuestMemorySize, "guest-memory", cfg.GuestMemorySize, "size in bytes of the emulated guest address space")
	fs.StringVar(&cfg.GameDir, "game-dir", cfg.GameDir, "installed title's root directory")
	fs.StringVar(&cfg.UpdateDir, "update-dir", cfg.UpdateDir, "optional title-update overlay directory")
	fs.StringSliceVar(&cfg.OverlayDirs, "overlay-dir", cfg.OverlayDirs, "mod overlay directory, first wins; may be repeated")
	fs.StringSliceVar(&cfg.Archives, "archive", cfg.Archives, "archive file (IMG or RPF) to load at startup; may be repeated")
	fs.StringVar(&cfg.DecryptionKeyPath, "decryption-key", cfg.DecryptionKeyPath, "path to a raw 32-byte AES-256 key for encrypted archives")
	fs.Int64Var(&cfg.CacheSoftCapBytes, "cache-cap", cfg.CacheSoftCapBytes, "soft byte cap on the archive extraction cache")
	fs.StringVar(&cfg.PersistCachePath, "persist-cache", cfg.PersistCachePath, "optional bbolt database path for a cross-run extraction cache")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log verbosity (debug, info, warn, error)")
}

// Validate checks the configuration for internal consistency, returning
// every problem found rather than stopping at the first (spec.md §4.12's
// error aggregation, grounded on backend/union/errors.go's Errors
// aggregate, generalized here via hashicorp/go-multierror).
func (c *Config) Validate() error {
	var errs kernelerr.Aggregate
	if c.GameDir == "" {
		errs.Add(fmt.Errorf("game-dir is required"))
	}
	if c.GuestMemorySize == 0 {
		errs.Add(fmt.Errorf("guest-memory must be nonzero"))
	}
	if c.CacheSoftCapBytes <= 0 {
		errs.Add(fmt.Errorf("cache-cap must be positive"))
	}
	return errs.ErrOrNil()
}

// Summary renders the configuration's size-bearing fields with
// human-readable byte counts, matching the corpus's convention of
// humanizing byte counts in startup and transfer logs.
func (c *Config) Summary() string {
	return fmt.Sprintf(
		"guest memory %s, cache cap %s, game dir %q, %d overlay(s), %d archive(s)",
		humanize.IBytes(uint64(c.GuestMemorySize)),
		humanize.IBytes(uint64(c.CacheSoftCapBytes)),
		c.GameDir,
		len(c.OverlayDirs),
		len(c.Archives),
	)
}
