package storage

import (
	"path"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store for testing. It tracks per-method call
// counts so tests can assert properties like "the second export performed
// zero content writes".
type MemStore struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
	calls MemCalls
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	Read   int
	Write  int
	Stat   int
	Touch  int
	Remove int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		files: make(map[string]*memFile),
		dirs:  make(map[string]bool),
	}
}

// Calls returns a snapshot of the call counters.
func (m *MemStore) Calls() MemCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// ResetCalls zeroes the call counters without touching stored content.
func (m *MemStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = MemCalls{}
}

// SetModTime overrides a stored file's modification time, for tests that
// exercise age-based cache checks.
func (m *MemStore) SetModTime(p string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.Clean(p)]
	if ok {
		f.modTime = t
	}
	return ok
}

// ReadFile returns the content stored at path.
func (m *MemStore) ReadFile(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Read++

	f, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, ErrNotFound{Path: p}
	}
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

// WriteFile stores data at path.
func (m *MemStore) WriteFile(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Write++

	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[path.Clean(p)] = &memFile{data: stored, modTime: time.Now()}
	return nil
}

// Stat returns size and modification time for path.
func (m *MemStore) Stat(p string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Stat++

	f, ok := m.files[path.Clean(p)]
	if !ok {
		return Info{}, ErrNotFound{Path: p}
	}
	return Info{Size: int64(len(f.data)), ModTime: f.modTime}, nil
}

// Exists reports whether a file or directory exists at path.
func (m *MemStore) Exists(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clean := path.Clean(p)
	if _, ok := m.files[clean]; ok {
		return true
	}
	if m.dirs[clean] {
		return true
	}
	prefix := clean + "/"
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Touch creates an empty file at path or bumps its modification time.
func (m *MemStore) Touch(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Touch++

	clean := path.Clean(p)
	if f, ok := m.files[clean]; ok {
		f.modTime = time.Now()
		return nil
	}
	m.files[clean] = &memFile{modTime: time.Now()}
	return nil
}

// MkdirAll records the directory so Exists sees it.
func (m *MemStore) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path.Clean(p)] = true
	return nil
}

// Remove deletes the file at path; missing files are ignored.
func (m *MemStore) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Remove++
	delete(m.files, path.Clean(p))
	return nil
}

// RemoveAll deletes path and everything below it.
func (m *MemStore) RemoveAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Remove++

	clean := path.Clean(p)
	delete(m.files, clean)
	delete(m.dirs, clean)
	prefix := clean + "/"
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			delete(m.files, name)
		}
	}
	for name := range m.dirs {
		if strings.HasPrefix(name, prefix) {
			delete(m.dirs, name)
		}
	}
	return nil
}
