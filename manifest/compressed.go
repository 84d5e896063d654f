package manifest

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"
)

// CompressedCache stores the same key=value content as PropertiesCache, but
// gzip-compressed on disk. Opt in for large trees where the manifest file
// itself becomes large enough to matter; the plain PropertiesCache remains
// the default wire format everywhere else.
type CompressedCache struct {
	Path string
}

// NewCompressedCache returns a Cache backed by a gzip-compressed properties
// file at path.
func NewCompressedCache(path string) *CompressedCache {
	return &CompressedCache{Path: path}
}

func (c *CompressedCache) Load() (map[string]string, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("opening compressed manifest %s: %w", c.Path, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompressing manifest %s: %w", c.Path, err)
	}
	defer gr.Close()

	return decodeProperties(gr)
}

func (c *CompressedCache) Save(entries map[string]string) error {
	f, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("creating compressed manifest %s: %w", c.Path, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := encodeProperties(gw, entries); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}
