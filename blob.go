package contentset

import (
	"os"
	"sync"
)

// blobRecord is the store's bookkeeping for one live blob: its refcount and
// a held read handle that keeps the content accessible even if the blob
// file is deleted out-of-band (the open fd survives an unlink on a POSIX
// filesystem; the store uses it to recreate the file on demand).
type blobRecord struct {
	id   BlobID
	path string

	// mu guards rewind+copy of handle during deletion recovery, separate
	// from the store's table mutex so recovery on one blob never blocks
	// unrelated Add/Release calls.
	mu       sync.Mutex
	handle   *os.File
	refcount int
}
