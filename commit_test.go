package contentset

import (
	"os"
	"path/filepath"
	"regexp"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{})
	require.NoError(t, err)

	target := t.TempDir()
	_, err = env.Commit(fs, target)
	require.NoError(t, err)

	assert.Equal(t, "this is a file", readFile(t, filepath.Join(target, "file1.md")))
	assert.Equal(t, "second file", readFile(t, filepath.Join(target, "file2.md")))
	assert.Equal(t, "third file", readFile(t, filepath.Join(target, "dir1/file3.md")))

	entries := listTree(t, target)
	assert.ElementsMatch(t, []string{"file1.md", "file2.md", "dir1/file3.md"}, entries)
}

func TestCommitUpdateThenAdd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{})
	require.NoError(t, err)

	target := t.TempDir()
	_, err = env.Commit(fs, target)
	require.NoError(t, err)

	writeFile(t, target, "file1.md", "NEW CONTENT")
	writeFile(t, target, "dir1/file4.md", "NEW FILE")

	updated, err := fs.AddDirectory(target, AddDirectoryOptions{})
	require.NoError(t, err)

	target2 := t.TempDir()
	_, err = env.Commit(updated, target2)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"file1.md", "file2.md", "dir1/file3.md", "dir1/file4.md"},
		listTree(t, target2))
	assert.Equal(t, "NEW CONTENT", readFile(t, filepath.Join(target2, "file1.md")))
}

func TestCommitRemove(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{})
	require.NoError(t, err)

	removed := fs.Remove("dir1/file3.md")

	target := t.TempDir()
	_, err = env.Commit(removed, target)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"file1.md", "file2.md"}, listTree(t, target))
}

func TestCommitOutOfBandDeletionIsRelinked(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{})
	require.NoError(t, err)

	target := t.TempDir()
	_, err = env.Commit(fs, target)
	require.NoError(t, err)

	// Deleting a committed file out-of-band touches target's own mtime. The
	// clock may not have ticked since the commit recorded its timestamp, so
	// the mtime is moved forward explicitly: once it is past the shadow's
	// captured timestamp, the next commit of the same, unchanged fileset
	// must not trust the cached previous state — it has to notice the file
	// is gone and relink it.
	require.NoError(t, os.Remove(filepath.Join(target, "file1.md")))
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(target, later, later))

	committed, err := env.Commit(fs, target)
	require.NoError(t, err)

	assert.Equal(t, "this is a file", readFile(t, filepath.Join(target, "file1.md")))
	assert.ElementsMatch(t, []string{"file1.md", "file2.md", "dir1/file3.md"}, committed.Ls())
}

func TestCommitStaleShadowReconcilesDirectory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := newTestAssets(t)

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{})
	require.NoError(t, err)

	target := t.TempDir()
	_, err = env.Commit(fs, target)
	require.NoError(t, err)

	// Dropping an untracked file into the target out-of-band touches its
	// mtime; it is moved forward explicitly in case the clock has not
	// ticked since the commit. With the mtime past the shadow's timestamp,
	// the next commit treats the shadow as stale and rebuilds the previous
	// state from target's literal contents instead of trusting the cache.
	// Since the revised fileset doesn't name this path either, it gets
	// reconciled away along with the revised file.
	writeFile(t, target, "untracked.txt", "not part of any fileset")
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(target, later, later))

	revised := t.TempDir()
	writeFile(t, revised, "file1.md", "revised content")
	fs2, err := fs.AddDirectory(revised, AddDirectoryOptions{})
	require.NoError(t, err)

	committed, err := env.Commit(fs2, target)
	require.NoError(t, err)

	assert.Equal(t, "revised content", readFile(t, filepath.Join(target, "file1.md")))
	assert.Equal(t, "second file", readFile(t, filepath.Join(target, "file2.md")))
	assert.NoFileExists(t, filepath.Join(target, "untracked.txt"))
	assert.ElementsMatch(t, []string{"file1.md", "file2.md", "dir1/file3.md"}, committed.Ls())
}

func TestCommitMergeConflictDropsEntryFromResult(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := t.TempDir()
	writeFile(t, src, "conflict/leaf.txt", "leaf content")
	writeFile(t, src, "ok.txt", "fine")

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{})
	require.NoError(t, err)

	target := t.TempDir()
	// A named pipe occupying the path an entry needs as a parent
	// directory: not a regular file, so the committer's directory scan
	// never sees it and never schedules it for removal, but it still
	// isn't a directory, so MkdirAll for the nested entry genuinely
	// cannot succeed.
	require.NoError(t, syscall.Mkfifo(filepath.Join(target, "conflict"), 0o644))

	committed, err := env.Commit(fs, target)
	require.NoError(t, err, "a per-entry conflict must not abort the whole commit")

	assert.ElementsMatch(t, []string{"ok.txt"}, committed.Ls(), "the conflicting entry must be omitted from the returned fileset")
	assert.Equal(t, "fine", readFile(t, filepath.Join(target, "ok.txt")))
}

func TestCommitMetaFilterScenario(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	src := t.TempDir()
	writeFile(t, src, "file1.md", "one")
	writeFile(t, src, "file2.md", "two")

	fs, err := NewFileset(env).AddDirectory(src, AddDirectoryOptions{Meta: Meta{"input": true}})
	require.NoError(t, err)

	workDir := t.TempDir()
	_, err = env.Commit(fs, workDir)
	require.NoError(t, err)

	writeFile(t, workDir, "out/file1.out", "result one")
	writeFile(t, workDir, "out/file2.out", "result two")

	withOutputs, err := fs.AddDirectory(workDir, AddDirectoryOptions{
		Include: []*regexp.Regexp{regexp.MustCompile(`\.out$`)},
		Meta:    Meta{"output": true},
	})
	require.NoError(t, err)

	onlyOutputs := withOutputs.FilterByMeta(func(m Meta) bool {
		v, _ := m["output"].(bool)
		return v
	})

	target := t.TempDir()
	_, err = env.Commit(onlyOutputs, target)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"out/file1.out", "out/file2.out"}, listTree(t, target))
}

func listTree(t *testing.T, dir string) []string {
	t.Helper()
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return paths
}
