// Package workspace manages the directories an export pass works in: the
// output tree that receives built assets and the persistent cache tree that
// holds skip markers and the export history database across runs.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lejeunerenard/file-assets/internal/logfields"
)

// Manager handles workspace directory lifecycle for export passes.
type Manager struct {
	outputDir string
	cacheDir  string
}

// NewManager creates a workspace manager for the given output and cache
// directories.
func NewManager(outputDir, cacheDir string) *Manager {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "file-assets")
	}
	return &Manager{
		outputDir: outputDir,
		cacheDir:  cacheDir,
	}
}

// Prepare ensures both trees exist. The cache tree persists across runs;
// the output tree receives this run's assets.
func (m *Manager) Prepare() error {
	if err := os.MkdirAll(m.cacheDir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if m.outputDir != "" {
		if err := os.MkdirAll(m.outputDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	slog.Debug("Prepared workspace", logfields.Path(m.outputDir), slog.String("cache_dir", m.cacheDir))
	return nil
}

// OutputDir returns the output tree path.
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// CacheDir returns the persistent cache tree path.
func (m *Manager) CacheDir() string {
	return m.cacheDir
}

// CleanOutput removes the output tree and recreates it empty, forcing the
// next pass to rewrite everything.
func (m *Manager) CleanOutput() error {
	cleaned := filepath.Clean(m.outputDir)
	if cleaned == "" || cleaned == "." || cleaned == string(filepath.Separator) {
		return fmt.Errorf("refusing to clean output directory %q", m.outputDir)
	}

	if err := os.RemoveAll(cleaned); err != nil {
		return fmt.Errorf("failed to clean output directory: %w", err)
	}
	if err := os.MkdirAll(cleaned, 0o750); err != nil {
		return fmt.Errorf("failed to recreate output directory: %w", err)
	}

	slog.Info("Cleaned output directory", logfields.Path(cleaned))
	return nil
}
