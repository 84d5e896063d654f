package contentset

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// scratchAllocator hands out unique per-operation subdirectories and files
// inside a process-global scratch root, for merger output and other
// staging work. Each operation removes its own file or subdirectory through
// the cleanup func it is handed; close (the library's stand-in for the
// host's shutdown-hook collaborator) removes the whole root when this
// allocator created it, sweeping up anything an interrupted merger left.
// A caller-supplied root is left in place.
// Names are uuid-unique, so concurrent callers never need to coordinate.
type scratchAllocator struct {
	root  string
	owned bool // true if this allocator created root and should remove it
}

func newScratchAllocator(root string, owned bool) *scratchAllocator {
	return &scratchAllocator{root: root, owned: owned}
}

// newFile returns a fresh, unique path for a scratch file under the
// allocator's root, named with the given prefix, plus a cleanup func that
// removes it. The caller creates the file itself (os.Create) — this only
// reserves the name.
func (s *scratchAllocator) newFile(prefix string) (string, func(), error) {
	path := filepath.Join(s.root, prefix+uuid.NewString())
	cleanup := func() { os.Remove(path) }
	return path, cleanup, nil
}

// newDir creates and returns a fresh, unique scratch subdirectory, plus a
// cleanup func that removes it and its contents.
func (s *scratchAllocator) newDir(prefix string) (string, func(), error) {
	path := filepath.Join(s.root, prefix+uuid.NewString())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(path) }
	return path, cleanup, nil
}

func (s *scratchAllocator) close() error {
	if !s.owned {
		return nil
	}
	return os.RemoveAll(s.root)
}
