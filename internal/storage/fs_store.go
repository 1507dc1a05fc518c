package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FSStore is the filesystem-backed Store. Writes go through a temporary
// file in the target directory followed by a rename, so a crash mid-write
// never leaves a truncated output in place.
type FSStore struct {
	mu sync.Mutex
}

// NewFSStore creates a filesystem-backed store.
func NewFSStore() *FSStore {
	return &FSStore{}
}

// ReadFile returns the content stored at path.
func (fs *FSStore) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Path: path}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile stores data at path atomically.
func (fs *FSStore) WriteFile(path string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", path, err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temporary file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Stat returns size and modification time for path.
func (fs *FSStore) Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrNotFound{Path: path}
		}
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Exists reports whether anything exists at path.
func (fs *FSStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Touch creates path as an empty file or bumps its modification time.
func (fs *FSStore) Touch(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("touch %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return f.Close()
}

// MkdirAll creates the directory at path along with any parents.
func (fs *FSStore) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// Remove deletes the file at path; missing files are ignored.
func (fs *FSStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveAll deletes path and everything below it.
func (fs *FSStore) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove tree %s: %w", path, err)
	}
	return nil
}
