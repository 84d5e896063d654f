package contentset

import (
	"fmt"
	"strconv"
	"strings"
)

// BlobID identifies a blob by content hash and captured modification time:
// "<32-char-hex-md5>.<millis-since-epoch>". Two files with identical
// content but different timestamps get distinct BlobIDs; two files with
// identical content and timestamp share one.
type BlobID string

// newBlobID builds the canonical id from a content hash and a captured
// last-modified timestamp in milliseconds since the epoch.
func newBlobID(hash string, millis int64) BlobID {
	return BlobID(fmt.Sprintf("%s.%d", hash, millis))
}

// Hash returns the 32-char hex MD5 portion of the id.
func (id BlobID) Hash() string {
	h, _, ok := id.split()
	if !ok {
		return ""
	}
	return h
}

// Millis returns the captured last-modified-time portion of the id.
func (id BlobID) Millis() int64 {
	_, m, ok := id.split()
	if !ok {
		return 0
	}
	return m
}

func (id BlobID) split() (hash string, millis int64, ok bool) {
	s := string(id)
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", 0, false
	}
	millis, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return s[:i], millis, true
}

func (id BlobID) String() string { return string(id) }
