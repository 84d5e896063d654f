package contentset

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashBufferSize is the read chunk size for streaming a file through MD5.
// 1 KiB is sufficient; this is not an observable part of the contract.
const hashBufferSize = 1024

// hashFile computes the MD5 of path's byte content at the moment of read,
// returning a 32-character lowercase hex string. Pure over the file's
// bytes: given the same bytes it always returns the same digest.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashReader(f)
}

// hashReader streams r through an MD5 accumulator in fixed-size buffers.
func hashReader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hexDigest(h.Sum(nil)), nil
}

// hexDigest renders sum as exactly 32 lowercase hex characters, left-padded
// with zeros. encoding/hex never shortens a fixed-size sum, but padding is
// kept explicit since BigInteger-style hex conversions in other languages do.
func hexDigest(sum []byte) string {
	s := hex.EncodeToString(sum)
	if len(s) < 32 {
		s = fmt.Sprintf("%032s", s)
	}
	return s
}
