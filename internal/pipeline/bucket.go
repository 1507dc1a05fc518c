// Package pipeline groups registered resources into buckets by kind and
// drives the filter chain over them: matching members, consulting the
// build-skip cache, writing derived outputs, and substituting them back
// into the registry.
package pipeline

import (
	"github.com/lejeunerenard/file-assets/internal/asset"
)

// Bucket holds the live resources of one Kind, in rank order.
type Bucket struct {
	Kind    asset.Kind
	Members []*asset.Asset
}

// Group partitions the registry's live resources by Kind. Buckets appear in
// first-seen order; members keep the registry's rank order. Pass a zero
// content type to group every kind, or a concrete one to restrict the pass.
// Grouping is a pure projection of current registry state and is recomputed
// on every call.
func Group(reg *asset.Registry, only asset.ContentType) []*Bucket {
	var buckets []*Bucket
	index := make(map[string]*Bucket)
	for _, a := range reg.Exports() {
		if !only.IsZero() && a.Type != only {
			continue
		}
		kind := a.Kind()
		b, ok := index[kind.Key()]
		if !ok {
			b = &Bucket{Kind: kind}
			index[kind.Key()] = b
			buckets = append(buckets, b)
		}
		b.Members = append(b.Members, a)
	}
	return buckets
}

// refresh recomputes the bucket's member list from the registry, picking up
// hides and substitutions applied at a pass boundary.
func (b *Bucket) refresh(reg *asset.Registry) {
	b.Members = b.Members[:0]
	for _, a := range reg.Exports() {
		if a.Kind() == b.Kind {
			b.Members = append(b.Members, a)
		}
	}
}
