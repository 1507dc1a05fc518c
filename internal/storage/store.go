// Package storage abstracts the filesystem surface the export engine
// writes through: output resources, cache markers, and reports.
package storage

import "time"

// Store is the write-side filesystem contract. Source content is read
// directly from disk by the asset registry; everything the engine produces
// goes through a Store so tests can count and inspect writes.
type Store interface {
	// ReadFile returns the content stored at path.
	// Returns ErrNotFound if no file exists there.
	ReadFile(path string) ([]byte, error)

	// WriteFile stores data at path, creating parent directories and
	// replacing any existing file. The replacement is atomic: content is
	// staged to a temporary file and renamed into place.
	WriteFile(path string, data []byte) error

	// Stat returns size and modification time for path.
	// Returns ErrNotFound if no file exists there.
	Stat(path string) (Info, error)

	// Exists reports whether a file or directory exists at path.
	Exists(path string) bool

	// Touch creates an empty file at path, or bumps its modification
	// time to now when it already exists.
	Touch(path string) error

	// MkdirAll creates the directory at path along with any parents.
	MkdirAll(path string) error

	// Remove deletes the file at path. Missing files are not an error.
	Remove(path string) error

	// RemoveAll deletes path and everything below it.
	RemoveAll(path string) error
}

// Info carries the stat fields the engine cares about.
type Info struct {
	Size    int64
	ModTime time.Time
}

// ErrNotFound is returned when a path has no stored content.
type ErrNotFound struct {
	Path string
}

func (e ErrNotFound) Error() string {
	return "not found: " + e.Path
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
