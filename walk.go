package contentset

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"contentset/internal/common"
)

// walkRegularFiles recursively walks dir, following symlinks, and invokes
// fn for every regular file found with its forward-slash path relative to
// dir and its absolute path. Anything that is not a regular file (after
// symlink resolution) is skipped. A file that disappears mid-walk is
// logged at debug and skipped, not treated as fatal.
func walkRegularFiles(logger logrus.FieldLogger, dir string, fn func(relPath, absPath string) error) error {
	return walkDir(logger, dir, dir, fn)
}

func walkDir(logger logrus.FieldLogger, root, current string, fn func(relPath, absPath string) error) error {
	entries, err := os.ReadDir(current)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("dir", current).Debug("directory vanished during walk")
			return nil
		}
		return err
	}

	for _, de := range entries {
		absPath := filepath.Join(current, de.Name())

		info, err := os.Stat(absPath) // follows symlinks
		if err != nil {
			if os.IsNotExist(err) {
				logger.WithField("path", absPath).Debug("file vanished during walk")
				continue
			}
			return err
		}

		if info.IsDir() {
			if err := walkDir(logger, root, absPath, fn); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		relPath, err := filepath.Rel(root, absPath)
		if err != nil {
			return err
		}
		relPath = common.NormalizePath(filepath.ToSlash(relPath))

		if err := fn(relPath, absPath); err != nil {
			return err
		}
	}
	return nil
}
