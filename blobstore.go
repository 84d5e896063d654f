package contentset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contentset/internal/common"
)

// BlobStore is the process-owned, reference-counted repository of immutable
// regular files backing every Fileset created against the same
// Environment. It exclusively owns the files under its root directory;
// callers never write to that directory directly.
type BlobStore struct {
	root   string
	logger logrus.FieldLogger

	mu     sync.Mutex
	blobs  map[BlobID]*blobRecord
	closed bool
}

func newBlobStore(root string, logger logrus.FieldLogger) (*BlobStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BlobStore{
		root:   root,
		logger: logger,
		blobs:  make(map[BlobID]*blobRecord),
	}, nil
}

func (bs *BlobStore) blobPath(id BlobID) string {
	return filepath.Join(bs.root, id.String())
}

func (bs *BlobStore) tempPath() string {
	return filepath.Join(bs.root, ".tmp-"+uuid.NewString())
}

// Add hashes srcPath, computes its BlobID, and either attaches a new
// reference to an already-present blob or copies the source into the store
// under its final name. The source file is never moved or modified.
func (bs *BlobStore) Add(srcPath string) (*Entry, error) {
	id, err := blobIDForFile(srcPath)
	if err != nil {
		return nil, err
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.addLocked(id, srcPath, false)
}

// AddHardLink is the bulk-ingestion variant: instead of copying bytes, it
// hard-links srcPath into the store. Callers must only use this for sources
// known to be immutable for the lifetime of the resulting blob (e.g. a
// seeded, read-only cache directory) — the external contract returned to
// the caller is identical to Add.
func (bs *BlobStore) AddHardLink(srcPath string) (*Entry, error) {
	id, err := blobIDForFile(srcPath)
	if err != nil {
		return nil, err
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.addLocked(id, srcPath, true)
}

// AddBatch ingests many sources under a single lock acquisition, for callers
// doing bulk ingestion where per-file locking would be pure overhead. Per-file semantics are identical to Add.
func (bs *BlobStore) AddBatch(srcPaths []string) ([]*Entry, error) {
	ids := make([]BlobID, len(srcPaths))
	for i, p := range srcPaths {
		id, err := blobIDForFile(p)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	entries := make([]*Entry, len(srcPaths))
	for i, p := range srcPaths {
		e, err := bs.addLocked(ids[i], p, false)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

func blobIDForFile(srcPath string) (BlobID, error) {
	hash, err := hashFile(srcPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return "", err
	}
	return newBlobID(hash, info.ModTime().UnixMilli()), nil
}

// addLocked performs the existence-check, copy, and insert under bs.mu,
// serializing concurrent Add calls on the same id so exactly one creation
// wins and the others attach to it.
func (bs *BlobStore) addLocked(id BlobID, srcPath string, hardLink bool) (*Entry, error) {
	if bs.closed {
		return nil, common.ErrClosed
	}

	if rec, ok := bs.blobs[id]; ok {
		rec.refcount++
		return entryFromID(id), nil
	}

	finalPath := bs.blobPath(id)
	if hardLink {
		if err := os.Link(srcPath, finalPath); err != nil {
			return nil, fmt.Errorf("hard-linking blob %s: %w", id, err)
		}
	} else {
		if err := bs.copyIntoStore(srcPath, finalPath); err != nil {
			return nil, err
		}
		// A copy carries the time it was made; restamp it with the captured
		// time so hard links committed from it carry the entry's timestamp.
		mtime := unixMillisToTime(id.Millis())
		if err := os.Chtimes(finalPath, mtime, mtime); err != nil {
			return nil, fmt.Errorf("restoring mtime for blob %s: %w", id, err)
		}
	}

	if err := os.Chmod(finalPath, 0o444); err != nil {
		return nil, fmt.Errorf("marking blob %s read-only: %w", id, err)
	}

	handle, err := os.Open(finalPath)
	if err != nil {
		return nil, fmt.Errorf("opening held handle for blob %s: %w", id, err)
	}

	bs.blobs[id] = &blobRecord{id: id, path: finalPath, handle: handle, refcount: 1}
	bs.logger.WithField("blob_id", id.String()).Debug("blob created")
	return entryFromID(id), nil
}

// copyIntoStore implements the copy protocol from the spec: stage into a
// temp file in the same directory (so the final rename is atomic on the
// same filesystem), copy bytes, then atomically rename into place. A
// concurrent Add that lost the race for the same id still succeeds: rename
// with replace-existing semantics is idempotent.
func (bs *BlobStore) copyIntoStore(srcPath, finalPath string) error {
	tmpPath := bs.tempPath()
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp blob file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copying blob content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp blob file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming blob into place: %w", err)
	}
	return nil
}

// Get returns a path to a readable file containing id's bytes. If the blob
// file is missing — e.g. an administrator deleted it out-of-band — it is
// recreated from the store's held read handle, restoring the original
// last-modified time.
func (bs *BlobStore) Get(id BlobID) (string, error) {
	bs.mu.Lock()
	rec, ok := bs.blobs[id]
	bs.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("blob %s: %w", id, common.ErrNotFound)
	}

	if _, err := os.Stat(rec.path); err == nil {
		return rec.path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	bs.logger.WithField("blob_id", id.String()).Warn("blob missing on disk, recovering from held handle")
	return bs.recover(rec)
}

// recover copies the content back out of the held handle to rec.path and
// restores the entry's captured modification time. This is the guarantee
// that makes committed files safe to delete by accident: as long as any
// live fileset references the blob, its bytes can always be reproduced.
func (bs *BlobStore) recover(rec *blobRecord) (string, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	// Another goroutine may have already recovered it while we waited.
	if _, err := os.Stat(rec.path); err == nil {
		return rec.path, nil
	}

	if _, err := rec.handle.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding held handle for blob %s: %w", rec.id, err)
	}

	out, err := os.OpenFile(rec.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("recreating blob %s: %w", rec.id, err)
	}
	if _, err := io.Copy(out, rec.handle); err != nil {
		out.Close()
		return "", fmt.Errorf("recovering blob %s content: %w", rec.id, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(rec.path, 0o444); err != nil {
		return "", err
	}

	millis := rec.id.Millis()
	mtime := unixMillisToTime(millis)
	if err := os.Chtimes(rec.path, mtime, mtime); err != nil {
		return "", fmt.Errorf("restoring mtime for blob %s: %w", rec.id, err)
	}

	return rec.path, nil
}

// Release decrements id's refcount. At zero, the held handle is closed and
// the blob file unlinked.
func (bs *BlobStore) Release(id BlobID) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	rec, ok := bs.blobs[id]
	if !ok {
		return
	}
	rec.refcount--
	if rec.refcount > 0 {
		return
	}

	delete(bs.blobs, id)
	rec.handle.Close()
	if err := os.Remove(rec.path); err != nil && !os.IsNotExist(err) {
		bs.logger.WithField("blob_id", id.String()).WithError(err).Warn("failed to unlink released blob")
	} else {
		bs.logger.WithField("blob_id", id.String()).Debug("blob released")
	}
}

// Retain adds one reference to an already-present blob, for code deriving
// a new Entry that points at an existing blob (e.g. Rename).
func (bs *BlobStore) Retain(id BlobID) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if rec, ok := bs.blobs[id]; ok {
		rec.refcount++
	}
}

// AddKnownID attaches a new reference to blob id without touching any
// source file, trusting a caller-supplied assertion that id is already
// correct (for example, a manifest cache entry whose recorded mtime still
// matches the file on disk). It reuses an in-process record if one is live,
// and otherwise adopts the durable blob file left on disk by a prior
// process, opening a fresh held handle for it. It fails with ErrNotFound if
// neither exists — the manifest entry is then a cache miss the caller must
// resolve with Add.
func (bs *BlobStore) AddKnownID(id BlobID) (*Entry, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.closed {
		return nil, common.ErrClosed
	}
	if rec, ok := bs.blobs[id]; ok {
		rec.refcount++
		return entryFromID(id), nil
	}

	finalPath := bs.blobPath(id)
	if _, err := os.Stat(finalPath); err != nil {
		return nil, fmt.Errorf("blob %s: %w", id, common.ErrNotFound)
	}

	handle, err := os.Open(finalPath)
	if err != nil {
		return nil, fmt.Errorf("opening held handle for blob %s: %w", id, err)
	}

	bs.blobs[id] = &blobRecord{id: id, path: finalPath, handle: handle, refcount: 1}
	bs.logger.WithField("blob_id", id.String()).Debug("blob adopted from durable store")
	return entryFromID(id), nil
}

// Close closes every held read handle and marks the store closed; further
// Add/AddHardLink/AddBatch calls fail with ErrClosed. It does not unlink any
// blob files — the store's directory is a durable, on-disk artifact that
// outlives the process, and a later Environment reopening the same
// directory is expected to find them still there.
func (bs *BlobStore) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.closed {
		return nil
	}
	bs.closed = true
	for _, rec := range bs.blobs {
		rec.handle.Close()
	}
	return nil
}
