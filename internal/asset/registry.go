package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

const digestCacheSize = 1024

// digestKey identifies a computed file digest by path and stat identity.
// A file whose modification time or size changes gets a fresh entry.
type digestKey struct {
	path  string
	mtime int64
	size  int64
}

// Registry holds the included resource descriptors in insertion order and
// memoizes content digests across exports.
type Registry struct {
	assets  map[string]*Asset
	list    []*Asset
	digests *lru.Cache[digestKey, string]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	cache, err := lru.New[digestKey, string](digestCacheSize)
	if err != nil {
		// Size is a positive constant; lru.New only fails on size <= 0.
		panic(err)
	}
	return &Registry{
		assets:  make(map[string]*Asset),
		digests: cache,
	}
}

// Include registers a file resource and returns its descriptor. Including
// the same path again returns the existing descriptor unchanged; the
// registry never holds two descriptors for one key.
func (r *Registry) Include(path string) (*Asset, error) {
	key := filepath.Clean(path)
	if existing, ok := r.assets[key]; ok {
		return existing, nil
	}
	ct, err := Detect(key)
	if err != nil {
		return nil, err
	}
	a := &Asset{
		key:  key,
		Path: key,
		URI:  filepath.ToSlash(key),
		Type: ct,
		reg:  r,
	}
	r.insert(a)
	return a, nil
}

// IncludeInline registers content carried directly in the descriptor rather
// than on disk. The name keys the descriptor and must be unique among inline
// resources; re-including the same name returns the existing descriptor.
func (r *Registry) IncludeInline(name string, ct ContentType, content []byte) (*Asset, error) {
	if ct.IsZero() {
		return nil, errors.UnknownKindError(fmt.Sprintf("inline resource %q has no content type", name))
	}
	key := "inline:" + name
	if existing, ok := r.assets[key]; ok {
		return existing, nil
	}
	data := make([]byte, len(content))
	copy(data, content)
	a := &Asset{
		key:      key,
		URI:      name,
		Type:     ct,
		inline:   data,
		inlineAt: time.Now(),
		reg:      r,
	}
	r.insert(a)
	return a, nil
}

// NewDerived builds an unregistered descriptor for filter output. The caller
// wires it into the registry with Substitute. When content is non-nil the
// descriptor serves it from memory, so filters later in the chain read the
// freshly built bytes without a disk round trip; with nil content reads fall
// back to the path.
func (r *Registry) NewDerived(path, uri string, ct ContentType, attrs map[string]string, content []byte) *Asset {
	key := filepath.Clean(path)
	a := &Asset{
		key:     key,
		Path:    key,
		URI:     uri,
		Type:    ct,
		Attrs:   attrs,
		Derived: true,
		reg:     r,
	}
	if content != nil {
		a.inline = make([]byte, len(content))
		copy(a.inline, content)
		a.inlineAt = time.Now()
	}
	return a
}

func (r *Registry) insert(a *Asset) {
	r.assets[a.key] = a
	r.list = append(r.list, a)
}

// Lookup returns the descriptor registered under key, hidden or not.
func (r *Registry) Lookup(key string) (*Asset, bool) {
	a, ok := r.assets[filepath.Clean(key)]
	return a, ok
}

// Len reports the number of registered descriptors, hidden included.
func (r *Registry) Len() int { return len(r.list) }

// Hide withdraws a descriptor from exports without removing it.
func (r *Registry) Hide(a *Asset) { a.hidden = true }

// Substitute hides every matched descriptor and registers out in the list
// position of the earliest matched member, so the combined output renders
// where its first ingredient stood.
func (r *Registry) Substitute(matched []*Asset, out *Asset) error {
	if len(matched) == 0 {
		return errors.InternalError("substitute called with no matched resources", nil)
	}
	if _, exists := r.assets[out.key]; exists {
		return errors.InternalError(fmt.Sprintf("substitute output %q already registered", out.key), nil)
	}
	pos := -1
	for i, a := range r.list {
		if a == matched[0] {
			pos = i
			break
		}
	}
	if pos < 0 {
		return errors.InternalError(fmt.Sprintf("matched resource %q not in registry", matched[0].Key()), nil)
	}
	for _, a := range matched {
		a.hidden = true
	}
	r.assets[out.key] = out
	r.list[pos] = out
	// Matched members after the first keep their slots; they are hidden
	// and fall out of every view below.
	return nil
}

// Live returns the visible descriptors in insertion order.
func (r *Registry) Live() []*Asset {
	out := make([]*Asset, 0, len(r.list))
	for _, a := range r.list {
		if !a.hidden && r.assets[a.key] == a {
			out = append(out, a)
		}
	}
	return out
}

// Exports returns the visible descriptors ordered by rank. The sort is
// stable, so equal ranks keep insertion order.
func (r *Registry) Exports() []*Asset {
	out := r.Live()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// ExportsByType returns the rank-ordered visible descriptors of one content
// type class.
func (r *Registry) ExportsByType(ct ContentType) []*Asset {
	all := r.Exports()
	out := make([]*Asset, 0, len(all))
	for _, a := range all {
		if a.Type.class == ct.class && (ct.class != classOther || a.Type.mime == ct.mime) {
			out = append(out, a)
		}
	}
	return out
}

func (r *Registry) digestOf(a *Asset) (string, error) {
	fi, err := os.Stat(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.SourceMissingError(a.Path, err)
		}
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to stat source")
	}
	key := digestKey{path: a.Path, mtime: fi.ModTime().UnixNano(), size: fi.Size()}
	if sum, ok := r.digests.Get(key); ok {
		return sum, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.SourceMissingError(a.Path, err)
		}
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to read source")
	}
	sum := DigestBytes(data)
	r.digests.Add(key, sum)
	return sum, nil
}
