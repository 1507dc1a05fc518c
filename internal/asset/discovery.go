package asset

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/logfields"
)

// IncludeTree walks root and includes every file with a recognized
// extension. Files with unknown extensions are skipped silently; only an
// explicit Include of such a file reports an error. Walk order is lexical,
// so repeated scans of the same tree include in the same order.
func (r *Registry) IncludeTree(root string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	included := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to walk source tree").
				WithContext("path", path)
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !KnownExtension(path) {
			logger.Debug("skipping unrecognized file", logfields.Path(path))
			return nil
		}
		if _, err := r.Include(path); err != nil {
			return err
		}
		included++
		return nil
	})
	if err != nil {
		return included, err
	}
	logger.Debug("included source tree", logfields.Path(root), logfields.Count(included))
	return included, nil
}
