package contentset

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Checksum returns a value-level identity for the fileset: an MD5 digest
// over the canonical serialization of (path, hash[, time]) triples for all
// entries, sorted lexicographically by path so the result is independent
// of map iteration order. If includeTimestamps is false, the digest
// ignores each entry's captured time.
func (fs *Fileset) Checksum(includeTimestamps bool) string {
	t := fs.snapshot()
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		e := t[p]
		b.WriteString(p)
		b.WriteByte('\t')
		b.WriteString(e.Hash)
		if includeTimestamps {
			b.WriteByte('\t')
			b.WriteString(strconv.FormatInt(e.Time, 10))
		}
		b.WriteByte('\n')
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
