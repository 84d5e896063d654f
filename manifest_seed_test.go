package contentset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentset/manifest"
)

func TestAddDirectoryCachedSkipsUnchangedFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)
	cachePath := filepath.Join(t.TempDir(), "manifest.properties")
	cache := manifest.NewPropertiesCache(cachePath)

	fs, err := NewFileset(env).AddDirectoryCached(src, AddDirectoryOptions{}, cache)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"file1.md", "file2.md", "dir1/file3.md"}, fs.Ls())

	firstIDs := map[string]string{}
	for _, p := range fs.Ls() {
		firstIDs[p] = fs.BlobIDOf(p)
	}

	// A second pass over the same, untouched source with the same cache
	// should adopt every entry by id rather than rehashing, and report the
	// identical BlobIDs.
	again, err := NewFileset(env).AddDirectoryCached(src, AddDirectoryOptions{}, cache)
	require.NoError(t, err)

	for _, p := range again.Ls() {
		assert.Equal(t, firstIDs[p], again.BlobIDOf(p))
	}
}

func TestAddDirectoryCachedDetectsChanges(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)
	cachePath := filepath.Join(t.TempDir(), "manifest.properties")
	cache := manifest.NewPropertiesCache(cachePath)

	fs, err := NewFileset(env).AddDirectoryCached(src, AddDirectoryOptions{}, cache)
	require.NoError(t, err)
	oldID := fs.BlobIDOf("file1.md")

	// The cache notices a change through the file's mtime, so the rewrite
	// is given an mtime that cannot coincide with the cached one.
	changed := writeFile(t, src, "file1.md", "totally different content")
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(changed, later, later))

	updated, err := NewFileset(env).AddDirectoryCached(src, AddDirectoryOptions{}, cache)
	require.NoError(t, err)

	assert.NotEqual(t, oldID, updated.BlobIDOf("file1.md"))
}
