package contentset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreAddDedups(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "same bytes")

	e1, err := env.store.Add(path)
	require.NoError(t, err)
	e2, err := env.store.Add(path)
	require.NoError(t, err)

	assert.Equal(t, e1.BlobID, e2.BlobID, "identical content and mtime must dedup to the same blob")

	rec := env.store.blobs[e1.BlobID]
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.refcount)
}

func TestBlobStoreGetReturnsReadableContent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "payload bytes")

	entry, err := env.store.Add(path)
	require.NoError(t, err)

	blobPath, err := env.store.Get(entry.BlobID)
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", readFile(t, blobPath))
}

func TestBlobStoreDeletionRecovery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "recover me")

	entry, err := env.store.Add(path)
	require.NoError(t, err)

	blobPath, err := env.store.Get(entry.BlobID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(blobPath))

	_, err = os.Stat(blobPath)
	require.True(t, os.IsNotExist(err))

	recovered, err := env.store.Get(entry.BlobID)
	require.NoError(t, err)
	assert.Equal(t, "recover me", readFile(t, recovered))
}

func TestBlobStoreReleaseUnlinksAtZero(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "ephemeral")

	entry, err := env.store.Add(path)
	require.NoError(t, err)

	blobPath := env.store.blobPath(entry.BlobID)
	_, err = os.Stat(blobPath)
	require.NoError(t, err)

	env.store.Release(entry.BlobID)

	_, err = os.Stat(blobPath)
	assert.True(t, os.IsNotExist(err), "blob file should be unlinked once refcount hits zero")

	_, ok := env.store.blobs[entry.BlobID]
	assert.False(t, ok)
}

func TestBlobStoreRetainKeepsAliveAcrossOneRelease(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "shared")

	entry, err := env.store.Add(path)
	require.NoError(t, err)
	env.store.Retain(entry.BlobID)

	env.store.Release(entry.BlobID)

	blobPath := env.store.blobPath(entry.BlobID)
	_, err = os.Stat(blobPath)
	assert.NoError(t, err, "one remaining reference should keep the blob alive")

	env.store.Release(entry.BlobID)
	_, err = os.Stat(blobPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBlobStoreAddHardLink(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "linked content")

	entry, err := env.store.AddHardLink(path)
	require.NoError(t, err)

	blobPath, err := env.store.Get(entry.BlobID)
	require.NoError(t, err)

	srcInfo, err := os.Stat(path)
	require.NoError(t, err)
	blobInfo, err := os.Stat(blobPath)
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, blobInfo), "hard-linked blob shares the source's inode")
}

func TestBlobStoreAddBatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")

	entries, err := env.store.AddBatch([]string{a, b})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].BlobID, entries[1].BlobID)
}

func TestBlobStoreClosedRejectsAdd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "x")

	require.NoError(t, env.store.Close())

	_, err := env.store.Add(path)
	assert.Error(t, err)
}

func TestBlobStoreAddKnownIDAdoptsDurableBlob(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "blobs")
	env1, err := NewEnvironment(root)
	require.NoError(t, err)

	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "durable")
	entry, err := env1.store.Add(path)
	require.NoError(t, err)
	id := entry.BlobID
	require.NoError(t, env1.Close())

	env2, err := NewEnvironment(root)
	require.NoError(t, err)
	t.Cleanup(func() { env2.Close() })

	adopted, err := env2.store.AddKnownID(id)
	require.NoError(t, err)
	assert.Equal(t, id, adopted.BlobID)

	blobPath, err := env2.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "durable", readFile(t, blobPath))
}

func TestBlobStoreAddKnownIDMissesUnknownID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.store.AddKnownID(newBlobID("deadbeef", 1))
	assert.Error(t, err)
}
