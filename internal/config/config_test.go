package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsParsesOverlaysAndArchives(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)

	err := fs.Parse([]string{
		"--game-dir=/games/title",
		"--overlay-dir=/mods/a",
		"--overlay-dir=/mods/b",
		"--archive=/games/title/data.img",
		"--cache-cap=1048576",
	})
	require.NoError(t, err)

	assert.Equal(t, "/games/title", cfg.GameDir)
	assert.Equal(t, []string{"/mods/a", "/mods/b"}, cfg.OverlayDirs)
	assert.Equal(t, []string{"/games/title/data.img"}, cfg.Archives)
	assert.Equal(t, int64(1048576), cfg.CacheSoftCapBytes)
}

func TestValidateRequiresGameDir(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.GameDir = "/games/title"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAggregatesMultipleProblems(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game-dir")
	assert.Contains(t, err.Error(), "guest-memory")
	assert.Contains(t, err.Error(), "cache-cap")
}

func TestSummaryIncludesHumanizedSizes(t *testing.T) {
	cfg := Default()
	cfg.GameDir = "/games/title"
	s := cfg.Summary()
	assert.Contains(t, s, "/games/title")
	assert.Contains(t, s, "512 MiB")
	assert.Contains(t, s, "256 MiB")
}
