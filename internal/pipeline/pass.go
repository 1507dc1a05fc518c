package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/buildcache"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/rules"
)

// Pass is the per-traversal context for one (bucket, filter) pair. It is
// constructed fresh for every traversal and carries everything the filter
// lifecycle accumulates: the matched members and their content digests, in
// match order. Nothing in a Pass outlives the traversal.
type Pass struct {
	Bucket *Bucket
	Filter Filter

	matched []*asset.Asset
	digests []string

	reg       *asset.Registry
	paths     rules.Scheme
	attrs     rules.Scheme
	outputDir string
	baseURL   string
}

func newPass(b *Bucket, f Filter, reg *asset.Registry, paths, attrs rules.Scheme, outputDir, baseURL string) *Pass {
	return &Pass{
		Bucket:    b,
		Filter:    f,
		reg:       reg,
		paths:     paths,
		attrs:     attrs,
		outputDir: outputDir,
		baseURL:   baseURL,
	}
}

// add accepts a member into the pass, computing its content digest.
func (p *Pass) add(a *asset.Asset) error {
	digest, err := a.Digest()
	if err != nil {
		return err
	}
	p.matched = append(p.matched, a)
	p.digests = append(p.digests, digest)
	return nil
}

// Matched returns the accepted members in match order.
func (p *Pass) Matched() []*asset.Asset { return p.matched }

// MemberDigests returns the accepted members' content digests in match
// order.
func (p *Pass) MemberDigests() []string { return p.digests }

// AggregateDigest hashes the ordered member digest sequence; it identifies
// this exact input combination in the build-skip cache.
func (p *Pass) AggregateDigest() string {
	return buildcache.AggregateDigest(p.digests)
}

// NewestSource returns the most recent modification time among the matched
// members.
func (p *Pass) NewestSource() (time.Time, error) {
	var newest time.Time
	for _, a := range p.matched {
		mt, err := a.ModTime()
		if err != nil {
			return time.Time{}, err
		}
		if mt.After(newest) {
			newest = mt
		}
	}
	return newest, nil
}

// Concat returns the ordered concatenation of the matched members' contents.
func (p *Pass) Concat() ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range p.matched {
		content, err := a.Content()
		if err != nil {
			return nil, err
		}
		buf.Write(content)
	}
	return buf.Bytes(), nil
}

var placeholderPattern = regexp.MustCompile(`\{([a-z]+)\}`)

// OutputPath resolves the output path template for this pass through the
// path scheme and expands its placeholders. The result is relative to the
// output directory. Failing to resolve a template, or meeting an unknown
// placeholder, is a configuration error that aborts the export eagerly.
func (p *Pass) OutputPath() (string, error) {
	resolved := p.paths.Resolve(p.Bucket.Kind, p.Filter.Signature())
	template, err := rules.Field(resolved, "path")
	if err != nil {
		return "", errors.ConfigurationError(fmt.Sprintf("no output path rule matches kind %q filter %q", p.Bucket.Kind.Key(), p.Filter.Signature()))
	}

	values := map[string]string{
		"type":      p.Bucket.Kind.Type.Name(),
		"variant":   pathSafe(p.Bucket.Kind.Variant),
		"kind":      pathSafe(p.Bucket.Kind.Key()),
		"signature": pathSafe(p.Filter.Signature()),
		"digest":    shortDigest(p.AggregateDigest()),
		"ext":       p.Bucket.Kind.Type.Ext(),
	}
	var unknown string
	expanded := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := values[name]
		if !ok {
			unknown = name
			return m
		}
		return v
	})
	if unknown != "" {
		return "", errors.ConfigurationError(fmt.Sprintf("unknown placeholder {%s} in output path template %q", unknown, template))
	}
	return filepath.ToSlash(filepath.Clean(expanded)), nil
}

// OutputResource builds the derived descriptor for this pass's output,
// located under the output directory and addressed by the base URL. The
// descriptor takes the earliest matched member's rank and, for variant
// stylesheet buckets, the media attribute that keeps it in its bucket.
func (p *Pass) OutputResource(content []byte) (*asset.Asset, error) {
	if p.Bucket.Kind.Type.IsZero() {
		return nil, errors.UnknownKindError("cannot derive an output resource without a content type")
	}
	rel, err := p.OutputPath()
	if err != nil {
		return nil, err
	}

	attrs := p.attrs.Resolve(p.Bucket.Kind, p.Filter.Signature())
	if p.Bucket.Kind.Type.IsStylesheet() && p.Bucket.Kind.Variant != "" {
		if _, ok := attrs["media"]; !ok {
			attrs["media"] = p.Bucket.Kind.Variant
		}
	}

	full := filepath.Join(p.outputDir, filepath.FromSlash(rel))
	out := p.reg.NewDerived(full, joinURL(p.baseURL, rel), p.Bucket.Kind.Type, attrs, content)
	if len(p.matched) > 0 {
		out.Rank = p.matched[0].Rank
	}
	return out, nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func joinURL(base, rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if base == "" {
		return rel
	}
	return strings.TrimSuffix(base, "/") + "/" + rel
}
