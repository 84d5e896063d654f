package contentset

import "time"

// Entry is one row of a fileset tree: a logical path mapped to a blob
// reference plus metadata. blob_id == hash + "." + time always holds.
type Entry struct {
	Path   string
	BlobID BlobID
	Hash   string
	Time   int64 // captured last-modified time, milliseconds since epoch
	Meta   Meta
}

func entryFromID(id BlobID) *Entry {
	return &Entry{
		BlobID: id,
		Hash:   id.Hash(),
		Time:   id.Millis(),
		Meta:   Meta{},
	}
}

// withPath returns a copy of e rooted at a new logical path, sharing the
// same blob reference (and so the same underlying bytes). Used by Rename
// and by derived entries that point at an already-live blob.
func (e *Entry) withPath(path string) *Entry {
	cp := *e
	cp.Path = path
	cp.Meta = e.Meta.clone()
	return &cp
}

func unixMillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
