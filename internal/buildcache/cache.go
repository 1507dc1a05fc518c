// Package buildcache implements the build-skip cache: filesystem markers
// recording which input combinations a filter has already built, so an
// export can skip rewriting outputs whose inputs are unchanged.
package buildcache

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lejeunerenard/file-assets/internal/logfields"
	"github.com/lejeunerenard/file-assets/internal/storage"
)

// Policy selects which checks participate in a skip decision. With no check
// enabled the cache is inert and every build proceeds.
type Policy struct {
	// Age forces a rebuild when a source is newer than the digest marker.
	Age bool
	// Digest forces a rebuild when no marker exists for the aggregate
	// digest of the current input combination.
	Digest bool
	// Content additionally tracks one marker per distinct member content
	// digest, so identical content under a new name is recognized.
	Content bool
}

// Enabled reports whether any check participates.
func (p Policy) Enabled() bool { return p.Age || p.Digest || p.Content }

// Cache consults and maintains skip markers under a cache directory.
// Markers are namespaced by filter signature: no filter ever reads another
// filter's markers. A marker is opaque — only its existence and modification
// time carry meaning.
type Cache struct {
	store  storage.Store
	dir    string
	policy Policy
	logger *slog.Logger
}

// New creates a cache rooted at dir.
func New(store storage.Store, dir string, policy Policy) *Cache {
	return &Cache{
		store:  store,
		dir:    dir,
		policy: policy,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	c.logger = logger
	return c
}

// Policy returns the checks this cache applies.
func (c *Cache) Policy() Policy { return c.policy }

// ShouldRebuild decides whether a filter must rebuild its output. It skips
// only when every enabled check agrees the inputs were built before; any
// enabled check demanding a rebuild wins. The reason names the check that
// decided.
func (c *Cache) ShouldRebuild(signature, aggregate string, memberDigests []string, newestSource time.Time) (bool, string) {
	if !c.policy.Enabled() {
		return true, "cache disabled"
	}

	marker := c.markerPath(signature, aggregate)
	info, err := c.store.Stat(marker)
	haveMarker := err == nil
	if err != nil && !storage.IsNotFound(err) {
		c.logger.Warn("marker stat failed, rebuilding", logfields.Signature(signature), logfields.Error(err))
		return true, "marker unreadable"
	}

	if c.policy.Digest && !haveMarker {
		return true, "input combination not built before"
	}
	if c.policy.Age {
		if !haveMarker {
			return true, "no marker to compare source age against"
		}
		if newestSource.After(info.ModTime) {
			return true, "source newer than marker"
		}
	}
	if c.policy.Content {
		for _, d := range memberDigests {
			if !c.store.Exists(c.contentPath(signature, d)) {
				return true, "member content not built before"
			}
		}
	}
	return false, "all enabled checks passed"
}

// MarkBuilt touches the markers for an input combination. It runs after
// every successful pass, skip or build alike, so later passes compare
// against a fresh timestamp. A failed build never reaches it, leaving the
// stale or absent marker to force a retry on the next export.
func (c *Cache) MarkBuilt(signature, aggregate string, memberDigests []string) error {
	if !c.policy.Enabled() {
		return nil
	}
	if err := c.store.Touch(c.markerPath(signature, aggregate)); err != nil {
		return err
	}
	if c.policy.Content {
		for _, d := range memberDigests {
			if err := c.store.Touch(c.contentPath(signature, d)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear removes every marker for every filter.
func (c *Cache) Clear() error {
	if err := c.store.RemoveAll(filepath.Join(c.dir, "markers")); err != nil {
		return err
	}
	return c.store.RemoveAll(filepath.Join(c.dir, "content"))
}

func (c *Cache) markerPath(signature, digest string) string {
	return filepath.Join(c.dir, "markers", signature, shard(digest), digest)
}

func (c *Cache) contentPath(signature, digest string) string {
	return filepath.Join(c.dir, "content", signature, shard(digest), digest)
}

// shard keeps marker directories small, git-object style.
func shard(digest string) string {
	if len(digest) < 2 {
		return "xx"
	}
	return digest[:2]
}
