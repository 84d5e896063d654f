package contentset

import (
	"os"

	"contentset/manifest"
)

// AddDirectoryCached behaves like AddDirectory, but consults cache first:
// for each regular file whose on-disk mtime still matches the mtime
// embedded in a cached BlobID, the file is adopted by id without being
// reread or rehashed. Anything the cache misses — new files, changed
// files, or a cached id whose blob no longer exists in the store — falls
// back to the normal hash-and-copy path. On return, cache is overwritten
// with the resulting fileset's current path -> blob_id mapping, ready to
// seed the next run.
func (fs *Fileset) AddDirectoryCached(sourceDir string, opts AddDirectoryOptions, cache manifest.Cache) (*Fileset, error) {
	cached, err := cache.Load()
	if err != nil {
		return nil, err
	}

	src := fs.snapshot()
	dst := cloneRetain(fs.env.store, src)

	err = walkRegularFiles(fs.env.Logger, sourceDir, func(relPath, absPath string) error {
		if !opts.passesFilter(relPath) {
			return nil
		}

		existing, collides := dst[relPath]
		if collides {
			if combine, ok := opts.mergerFor(relPath); ok {
				merged, err := fs.runMerger(existing, absPath, combine, opts.Meta)
				if err != nil {
					return err
				}
				fs.env.store.Release(existing.BlobID)
				merged.Path = relPath
				dst[relPath] = merged
				return nil
			}
			fs.env.store.Release(existing.BlobID)
		}

		entry, err := fs.addWithCache(relPath, absPath, cached)
		if err != nil {
			return err
		}
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

	result := fs.derive(dst)

	next := make(map[string]string, len(dst))
	for path, e := range dst {
		next[path] = e.BlobID.String()
	}
	if err := cache.Save(next); err != nil {
		return result, err
	}
	return result, nil
}

func (fs *Fileset) addWithCache(relPath, absPath string, cached map[string]string) (*Entry, error) {
	if idStr, ok := cached[relPath]; ok {
		id := BlobID(idStr)
		info, err := os.Stat(absPath)
		if err == nil && info.ModTime().UnixMilli() == id.Millis() {
			if entry, err := fs.env.store.AddKnownID(id); err == nil {
				entry.Path = relPath
				return entry, nil
			}
			// Cached id's blob is gone from the store; fall through to a
			// normal re-ingest rather than treating this as fatal.
			fs.env.Logger.WithField("path", relPath).Debug("manifest cache miss, blob no longer live")
		}
	}

	entry, err := fs.env.store.Add(absPath)
	if err != nil {
		return nil, err
	}
	entry.Path = relPath
	return entry, nil
}
