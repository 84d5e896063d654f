package contentset

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"contentset/internal/common"
)

// Fileset is an immutable mapping from logical paths to entries. Every
// update method returns a new Fileset and leaves the receiver untouched.
// Call Close when a Fileset is no longer needed so the blobs it references
// can be released deterministically — Go has no destructors, so this is
// the explicit-scope mechanism the design calls for in place of the
// source's garbage-collector finalizer.
type Fileset struct {
	env *Environment

	mu     sync.Mutex
	tree   tree
	closed bool
}

// NewFileset returns an empty fileset bound to env.
func NewFileset(env *Environment) *Fileset {
	return &Fileset{env: env, tree: tree{}}
}

func (fs *Fileset) derive(t tree) *Fileset {
	return &Fileset{env: fs.env, tree: t}
}

// Close releases this fileset's references to every blob its entries
// point at. It is safe to call once; calling it again is a no-op.
func (fs *Fileset) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true
	releaseAll(fs.env.store, fs.tree)
	return nil
}

func (fs *Fileset) snapshot() tree {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree
}

// Ls returns the logical paths present in the fileset. Order is
// unspecified by the contract; this implementation returns them sorted for
// reproducible output.
func (fs *Fileset) Ls() []string {
	t := fs.snapshot()
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len reports how many entries the fileset holds.
func (fs *Fileset) Len() int {
	return len(fs.snapshot())
}

// entryAt returns the entry at path, or nil if absent.
func (fs *Fileset) entryAt(path string) *Entry {
	path = common.NormalizePath(path)
	return fs.snapshot()[path]
}

// HashOf returns path's content hash, and false if path is absent.
func (fs *Fileset) HashOf(path string) (string, bool) {
	e := fs.entryAt(path)
	if e == nil {
		return "", false
	}
	return e.Hash, true
}

// TimeOf returns path's captured last-modified time in epoch milliseconds,
// and false if path is absent.
func (fs *Fileset) TimeOf(path string) (int64, bool) {
	e := fs.entryAt(path)
	if e == nil {
		return 0, false
	}
	return e.Time, true
}

// OpenContent returns a readable handle to path's current on-disk blob,
// including deletion recovery, or false if path is absent. The caller is
// responsible for closing the handle; there is no streaming access through
// the fileset itself — callers open the file themselves, per the library's
// documented non-goal of partial/streaming reads through the handle.
func (fs *Fileset) OpenContent(path string) (*os.File, bool, error) {
	e := fs.entryAt(path)
	if e == nil {
		return nil, false, nil
	}
	blobPath, err := fs.env.store.Get(e.BlobID)
	if err != nil {
		return nil, true, err
	}
	f, err := os.Open(blobPath)
	if err != nil {
		return nil, true, err
	}
	return f, true, nil
}

// OpenFile is an alias for OpenContent, matching the library surface named
// in spec §6 (open_content / open_file both resolve to a readable handle).
func (fs *Fileset) OpenFile(path string) (*os.File, bool, error) {
	return fs.OpenContent(path)
}

// Remove returns a fileset with the given paths absent. Unknown paths are
// silently ignored.
func (fs *Fileset) Remove(paths ...string) *Fileset {
	src := fs.snapshot()
	dst := cloneRetain(fs.env.store, src)
	for _, p := range paths {
		p = common.NormalizePath(p)
		if e, ok := dst[p]; ok {
			fs.env.store.Release(e.BlobID)
			delete(dst, p)
		}
	}
	return fs.derive(dst)
}

// Filter returns a fileset containing only entries for which pred returns
// true.
func (fs *Fileset) Filter(pred func(*Entry) bool) *Fileset {
	src := fs.snapshot()
	dst := make(tree, len(src))
	for p, e := range src {
		if pred(e) {
			fs.env.store.Retain(e.BlobID)
			dst[p] = e
		}
	}
	return fs.derive(dst)
}

// FilterByMeta returns a fileset containing only entries whose Meta
// satisfies pred.
func (fs *Fileset) FilterByMeta(pred MetaPredicate) *Fileset {
	return fs.Filter(func(e *Entry) bool { return pred(e.Meta) })
}

// Rename moves the entry at from to to, sharing the same underlying blob.
// Fails with ErrNotFound if from is absent. If from == to, returns an
// independent fileset with identical contents. Fails with ErrConflict if to
// already names a different entry — this resolves the open question in
// spec.md §9 the way the spec itself recommends.
func (fs *Fileset) Rename(from, to string) (*Fileset, error) {
	from = common.NormalizePath(from)
	to = common.NormalizePath(to)

	src := fs.snapshot()
	entry, ok := src[from]
	if !ok {
		return nil, fmt.Errorf("rename %q: %w", from, common.ErrNotFound)
	}
	if from == to {
		return fs.derive(cloneRetain(fs.env.store, src)), nil
	}
	if _, exists := src[to]; exists {
		return nil, fmt.Errorf("rename %q to %q: %w", from, to, common.ErrConflict)
	}

	dst := cloneRetain(fs.env.store, src)
	delete(dst, from)
	dst[to] = entry.withPath(to)
	return fs.derive(dst), nil
}

// AdoptKnownBlob returns a fileset with path pointing at the existing blob
// named by blobID, trusting the caller's assertion that the id is correct
// (used by host integrations reconstructing a fileset from a serialized
// descriptor across process boundaries, where the blob directory is durable
// but in-memory refcounts are not). It fails with ErrNotFound if the blob
// isn't present in the store's directory.
func (fs *Fileset) AdoptKnownBlob(path, blobIDStr string, meta map[string]any) (*Fileset, error) {
	entry, err := fs.env.store.AddKnownID(BlobID(blobIDStr))
	if err != nil {
		return nil, err
	}
	entry.Path = common.NormalizePath(path)
	entry.Meta = Meta(meta).clone()

	src := fs.snapshot()
	dst := cloneRetain(fs.env.store, src)
	if old, exists := dst[entry.Path]; exists {
		fs.env.store.Release(old.BlobID)
	}
	dst[entry.Path] = entry
	return fs.derive(dst), nil
}

// BlobIDOf returns path's BlobID as a string, or "" if path is absent.
func (fs *Fileset) BlobIDOf(path string) string {
	e := fs.entryAt(path)
	if e == nil {
		return ""
	}
	return e.BlobID.String()
}

// MetaOf returns a copy of path's Meta as a plain map, or nil if path is
// absent.
func (fs *Fileset) MetaOf(path string) map[string]any {
	e := fs.entryAt(path)
	if e == nil {
		return nil
	}
	return map[string]any(e.Meta.clone())
}

// pickWinner resolves a merge collision: the entry with the greater Time
// wins; ties favor b (the later-listed fileset in a Merge call).
func pickWinner(a, b *Entry) (winner, loser *Entry) {
	if a.Time > b.Time {
		return a, b
	}
	return b, a
}

// Merge returns the path-union of fs and others. On collision, the entry
// with the greater Time wins (its blob is kept); Meta is the union of both,
// with the winner's values overlaying the loser's. If the losing entry
// differs from the winner in hash or meta, a warning is logged.
func (fs *Fileset) Merge(others ...*Fileset) *Fileset {
	dst := make(tree)
	sources := append([]*Fileset{fs}, others...)

	for _, src := range sources {
		for path, e := range src.snapshot() {
			cur, exists := dst[path]
			if !exists {
				fs.env.store.Retain(e.BlobID)
				dst[path] = e
				continue
			}

			winner, loser := pickWinner(cur, e)
			if winner.Hash != loser.Hash || !metaEqual(winner.Meta, loser.Meta) {
				fs.env.Logger.WithField("path", path).Warn("merge: colliding entries differ in hash or meta")
			}
			if winner != cur {
				fs.env.store.Release(cur.BlobID)
				fs.env.store.Retain(winner.BlobID)
			}
			dst[path] = &Entry{
				Path:   path,
				BlobID: winner.BlobID,
				Hash:   winner.Hash,
				Time:   winner.Time,
				Meta:   loser.Meta.mergedWith(winner.Meta),
			}
		}
	}
	return fs.derive(dst)
}

func metaEqual(a, b Meta) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// AddDirectory recursively walks sourceDir, ingests every regular file into
// the blob store, applies include/exclude filtering, tags entries with
// opts.Meta, and unions the result into the fileset's tree. On a path
// collision matched by a merger rule, the combiner resolves it; otherwise
// the newer entry wins.
//
// There is no cancellation support, matching the library's synchronous,
// blocking I/O model: callers that need to abort a long walk interrupt the
// calling goroutine's underlying OS thread themselves.
func (fs *Fileset) AddDirectory(sourceDir string, opts AddDirectoryOptions) (*Fileset, error) {
	src := fs.snapshot()
	dst := cloneRetain(fs.env.store, src)

	err := walkRegularFiles(fs.env.Logger, sourceDir, func(relPath, absPath string) error {
		if !opts.passesFilter(relPath) {
			return nil
		}

		existing, collides := dst[relPath]

		if collides {
			if combine, ok := opts.mergerFor(relPath); ok {
				merged, err := fs.runMerger(existing, absPath, combine, opts.Meta)
				if err != nil {
					return fmt.Errorf("merging %q: %w", relPath, err)
				}
				fs.env.store.Release(existing.BlobID)
				merged.Path = relPath
				dst[relPath] = merged
				return nil
			}
			fs.env.store.Release(existing.BlobID)
		}

		entry, err := fs.env.store.Add(absPath)
		if err != nil {
			return fmt.Errorf("adding %q: %w", relPath, err)
		}
		entry.Path = relPath
		if collides {
			entry.Meta = existing.Meta.clone()
		}
		entry.Meta = entry.Meta.mergedWith(opts.Meta)
		dst[relPath] = entry
		return nil
	})
	if err != nil {
		releaseAll(fs.env.store, dst)
		return nil, err
	}

	return fs.derive(dst), nil
}

// runMerger resolves a path collision via combine: reads the existing
// blob's content and the freshly walked file's content, writes the
// combiner's output to a scratch file, and ingests that as a fresh entry.
func (fs *Fileset) runMerger(existing *Entry, newPath string, combine Combiner, meta Meta) (*Entry, error) {
	oldBlobPath, err := fs.env.store.Get(existing.BlobID)
	if err != nil {
		return nil, err
	}
	oldFile, err := os.Open(oldBlobPath)
	if err != nil {
		return nil, err
	}
	defer oldFile.Close()

	newFile, err := os.Open(newPath)
	if err != nil {
		return nil, err
	}
	defer newFile.Close()

	scratchPath, cleanup, err := fs.env.scratch.newFile("merge-")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := os.Create(scratchPath)
	if err != nil {
		return nil, err
	}
	if err := combine(oldFile, newFile, out); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	entry, err := fs.env.store.Add(scratchPath)
	if err != nil {
		return nil, err
	}
	entry.Meta = entry.Meta.mergedWith(meta)
	return entry, nil
}
