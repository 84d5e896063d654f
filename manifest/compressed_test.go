package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressedCacheRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.properties.gz")
	cache := NewCompressedCache(path)

	entries := map[string]string{
		"file1.md": "abc123.1000",
		"file2.md": "def456.2000",
	}
	require.NoError(t, cache.Save(entries))

	got, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestCompressedCacheIsActuallyCompressedFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.properties.gz")
	cache := NewCompressedCache(path)
	require.NoError(t, cache.Save(map[string]string{"a.txt": "h.1"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic bytes")
}

func TestCompressedCacheLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	cache := NewCompressedCache(filepath.Join(t.TempDir(), "missing.gz"))
	got, err := cache.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}
