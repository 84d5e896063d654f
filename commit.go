package contentset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"contentset/internal/common"
)

// shadowEntry is the committer's record of what it last materialized into a
// target directory: the tree it wrote, plus the directory's own
// last-modified time at that moment. The mtime lets the next Commit decide
// whether the cached tree can still be trusted as "the previous state" or
// whether the directory was touched out-of-band and must be rescanned.
type shadowEntry struct {
	tree        tree
	mtimeMillis int64
}

type commitConfig struct {
	lockPath string
}

// CommitOption configures a single Commit call.
type CommitOption func(*commitConfig)

// WithProcessLock guards the commit's shadow-state mutation with a
// gofrs/flock lock file at path, so that multiple OS processes committing
// into the same target directory serialize rather than race. The library's
// single-process model already protects this with an in-memory mutex; this
// option extends that guarantee across process boundaries.
func WithProcessLock(path string) CommitOption {
	return func(c *commitConfig) { c.lockPath = path }
}

// Commit materializes fs into targetDir via hard links and returns the
// post-commit fileset: a new Fileset holding every entry of fs except those
// dropped because of a merge conflict (see below). The caller closes it like
// any other Fileset.
//
// The diff is computed against the shadow state this Environment recorded
// the last time it committed to the same canonicalized directory, but only
// if targetDir's own last-modified time has not advanced past the moment
// that shadow state was captured. If the directory was touched out-of-band
// since then — a file deleted, edited, or added outside this library — the
// shadow is stale and the previous state is rebuilt by rescanning the
// directory's current contents instead.
//
// A destination path that cannot be created or linked (e.g. a pre-existing,
// untracked file occupying a path an entry needs as a parent directory, or
// the link itself colliding) is a merge conflict: it is logged and the
// entry is dropped from the result and the updated shadow state, and Commit
// continues with the rest rather than aborting. A dropped entry is simply
// missing from the updated shadow state, so the next Commit attempt will
// try it again.
func (e *Environment) Commit(fs *Fileset, targetDir string, opts ...CommitOption) (*Fileset, error) {
	cfg := &commitConfig{}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.lockPath != "" {
		fl := flock.New(cfg.lockPath)
		if err := fl.Lock(); err != nil {
			return nil, fmt.Errorf("acquiring commit lock %s: %w", cfg.lockPath, err)
		}
		defer fl.Unlock()
	}

	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, fmt.Errorf("resolving target directory: %w", err)
	}
	canonical := filepath.Clean(absTarget)

	if err := os.MkdirAll(canonical, 0o755); err != nil {
		return nil, fmt.Errorf("creating target directory: %w", err)
	}

	e.shadowMu.Lock()
	defer e.shadowMu.Unlock()

	old, hadOldShadow := e.shadow[canonical]

	trustShadow := false
	if hadOldShadow {
		currentMillis, err := directoryModMillis(canonical)
		if err != nil {
			return nil, fmt.Errorf("reading target directory mtime: %w", err)
		}
		trustShadow = currentMillis <= old.mtimeMillis
	}

	var previous tree
	if trustShadow {
		previous = old.tree
	} else {
		previous, err = e.scanExistingDirectory(canonical)
		if err != nil {
			return nil, fmt.Errorf("scanning existing target directory: %w", err)
		}
	}

	next := fs.snapshot()

	removed, changedOrAdded := diffForCommit(previous, next)

	for _, path := range removed {
		fullPath := filepath.Join(canonical, path)
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing %q: %w", path, err)
		}
	}

	sort.Slice(changedOrAdded, func(i, j int) bool {
		return len(changedOrAdded[i]) > len(changedOrAdded[j])
	})

	committed := make(tree, len(next))
	for path, entry := range next {
		if be, wasTouched := previous[path]; wasTouched && be.BlobID == entry.BlobID {
			committed[path] = entry
		}
	}

	for _, path := range changedOrAdded {
		entry := next[path]
		fullPath := filepath.Join(canonical, path)

		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			conflict := fmt.Errorf("materializing %q: %w", path, common.ErrMergeConflict)
			e.Logger.WithField("path", path).WithError(conflict).Warn("commit: dropping conflicting entry")
			continue
		}

		os.Remove(fullPath)

		blobPath, err := e.store.Get(entry.BlobID)
		if err != nil {
			return nil, fmt.Errorf("resolving blob for %q: %w", path, err)
		}

		if err := os.Link(blobPath, fullPath); err != nil {
			conflict := fmt.Errorf("materializing %q: %w", path, common.ErrMergeConflict)
			e.Logger.WithField("path", path).WithError(conflict).Warn("commit: dropping conflicting entry")
			continue
		}
		committed[path] = entry
	}

	postMillis, err := directoryModMillis(canonical)
	if err != nil {
		return nil, fmt.Errorf("reading target directory mtime: %w", err)
	}

	if hadOldShadow {
		e.store.releaseShadowTree(old.tree)
	}
	e.store.retainShadowTree(committed)
	e.shadow[canonical] = shadowEntry{tree: committed, mtimeMillis: postMillis}

	return fs.derive(cloneRetain(e.store, committed)), nil
}

// directoryModMillis reads dir's own last-modified time, in epoch
// milliseconds — the signal Commit compares against a shadow entry's
// captured timestamp to decide whether that entry is still trustworthy.
func directoryModMillis(dir string) (int64, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixMilli(), nil
}

// scanExistingDirectory builds a best-effort previous-state tree from
// whatever regular files already sit in dir, for a Commit whose shadow
// state is absent or stale. Entries are synthesized directly from on-disk
// hash and mtime, without touching the blob store — they exist only to let
// the diff below recognize files that are already correct and leave them
// alone.
func (e *Environment) scanExistingDirectory(dir string) (tree, error) {
	t := make(tree)
	err := walkRegularFiles(e.Logger, dir, func(relPath, absPath string) error {
		id, err := blobIDForFile(absPath)
		if err != nil {
			return err
		}
		t[relPath] = entryFromID(id).withPath(relPath)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, err
	}
	return t, nil
}

// diffForCommit returns the paths present in previous but absent from next
// (to unlink), and the paths in next that are either new or whose BlobID
// differs from previous (to link).
func diffForCommit(previous, next tree) (removed, changedOrAdded []string) {
	for path := range previous {
		if _, ok := next[path]; !ok {
			removed = append(removed, path)
		}
	}
	for path, e := range next {
		be, existed := previous[path]
		if !existed || be.BlobID != e.BlobID {
			changedOrAdded = append(changedOrAdded, path)
		}
	}
	return removed, changedOrAdded
}

// retainShadowTree and releaseShadowTree let the committer hold its own
// independent reference to every blob named by the shadow state, the same
// way a live Fileset does, so a blob a commit still points at can't be
// released out from under it just because the Fileset that produced it was
// closed.
func (bs *BlobStore) retainShadowTree(t tree) {
	for _, e := range t {
		bs.Retain(e.BlobID)
	}
}

func (bs *BlobStore) releaseShadowTree(t tree) {
	for _, e := range t {
		bs.Release(e.BlobID)
	}
}
