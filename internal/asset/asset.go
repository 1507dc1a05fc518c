package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Asset is a resource descriptor: one included file or inline content, with
// identity, ordering rank, and a lazily computed content digest. Descriptors
// are created by a Registry (on inclusion or on synthesis by a filter) and
// keep a back reference to it for digest memoization.
type Asset struct {
	key string

	// Path is the on-disk location; empty for inline content.
	Path string
	// URI is the externally visible reference used when rendering.
	URI string
	// Type is the declared content type.
	Type ContentType
	// Rank is the sort key controlling final export order. Default 0.
	// Mutable only before grouping.
	Rank int
	// Attrs carries free-form attributes (e.g. media for stylesheets).
	Attrs map[string]string
	// Derived marks descriptors synthesized by a filter build.
	Derived bool

	hidden bool

	inline    []byte
	inlineAt  time.Time
	inlineSum string

	reg *Registry
}

// Key returns the unique registry key: the cleaned path for on-disk
// resources, a derived marker for inline resources.
func (a *Asset) Key() string { return a.key }

// Hidden reports whether a filter has subsumed this descriptor into a
// combined output. Hidden descriptors are excluded from exports but remain
// addressable by key.
func (a *Asset) Hidden() bool { return a.hidden }

// Inline reports whether the descriptor has no backing file and renders as
// an inline block rather than a reference.
func (a *Asset) Inline() bool { return a.Path == "" && a.inline != nil }

// Kind derives the processing category: the declared content type, with the
// media attribute (default "screen") as the variant for stylesheets.
func (a *Asset) Kind() Kind {
	if a.Type.IsStylesheet() {
		media := a.Attrs["media"]
		if media == "" {
			media = "screen"
		}
		return Kind{Type: a.Type, Variant: media}
	}
	return Kind{Type: a.Type}
}

// Content returns the backing content bytes.
func (a *Asset) Content() ([]byte, error) {
	if a.inline != nil {
		out := make([]byte, len(a.inline))
		copy(out, a.inline)
		return out, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.SourceMissingError(a.Path, err)
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read source")
	}
	return data, nil
}

// ModTime returns the backing content's modification time. Inline content is
// pinned to its inclusion time.
func (a *Asset) ModTime() (time.Time, error) {
	if a.inline != nil {
		return a.inlineAt, nil
	}
	fi, err := os.Stat(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, errors.SourceMissingError(a.Path, err)
		}
		return time.Time{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat source")
	}
	return fi.ModTime(), nil
}

// Digest returns the content digest, computing it lazily. A digest computed
// for a given modification time is reused until the backing file changes.
func (a *Asset) Digest() (string, error) {
	if a.inline != nil {
		if a.inlineSum == "" {
			a.inlineSum = DigestBytes(a.inline)
		}
		return a.inlineSum, nil
	}
	if a.reg != nil {
		return a.reg.digestOf(a)
	}
	data, err := a.Content()
	if err != nil {
		return "", err
	}
	return DigestBytes(data), nil
}

// DigestBytes computes the hex content digest of a byte slice.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
