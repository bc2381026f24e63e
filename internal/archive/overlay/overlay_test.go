package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenonrt/kernel/internal/archive"
)

func TestMergeOverridesAndAppends(t *testing.T) {
	baseRaw := []byte("ORIGINALDATA-----")
	base := &archive.TableOfContents{
		Entries: []archive.Entry{
			{Name: "common/data/handling.dat", Offset: 0, Size: 12},
		},
		Raw: baseRaw,
	}

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "common", "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "common", "data", "handling.dat"), []byte("OVERRIDDEN"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_file.txt"), []byte("brand new"), 0o644))

	merged, err := Merge(base, dir)
	require.NoError(t, err)
	require.Len(t, merged.Entries, 2)

	got, err := merged.Extract("common/data/handling.dat")
	require.NoError(t, err)
	assert.Equal(t, "OVERRIDDEN", string(got))

	got, err = merged.Extract("new_file.txt")
	require.NoError(t, err)
	assert.Equal(t, "brand new", string(got))
}

func TestMergeWithMissingDirectoryIsPassthrough(t *testing.T) {
	base := &archive.TableOfContents{
		Entries: []archive.Entry{{Name: "a.dat", Offset: 0, Size: 5}},
		Raw:     []byte("hello"),
	}
	merged, err := Merge(base, filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Len(t, merged.Entries, 1)

	got, err := merged.Extract("a.dat")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
