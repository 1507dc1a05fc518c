package pipeline

import (
	"bytes"
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Filter is one transformation in a bucket's chain. The runner drives the
// lifecycle: Fits gates participation per bucket, Matches accepts members
// one by one, and Build turns the matched set into output content. All
// traversal state lives in the Pass the runner constructs, never on the
// filter itself, so one filter value can serve many buckets.
type Filter interface {
	// Signature identifies the filter in rule conditions, cache markers,
	// and logs.
	Signature() string
	// Fits reports whether the filter participates in buckets of a kind.
	Fits(kind asset.Kind) bool
	// Matches reports whether one member is accepted into the pass.
	Matches(a *asset.Asset) bool
	// Build produces the output content from the pass's matched members.
	Build(p *Pass) ([]byte, error)
}

// ByName returns the filter registered under a configuration name.
func ByName(name string) (Filter, error) {
	switch name {
	case "concat":
		return Concat{}, nil
	case "cssmin":
		return CSSMin{}, nil
	case "jsmin":
		return JSMin{}, nil
	default:
		return nil, errors.ValidationFailed("filters", fmt.Sprintf("unknown filter %q", name))
	}
}

// Concat combines every member of a bucket into one resource, preserving
// rank order.
type Concat struct{}

func (Concat) Signature() string { return "concat" }

func (Concat) Fits(kind asset.Kind) bool { return !kind.Type.IsZero() }

func (Concat) Matches(*asset.Asset) bool { return true }

func (Concat) Build(p *Pass) ([]byte, error) {
	return p.Concat()
}

// CSSMin combines and minifies stylesheet buckets.
type CSSMin struct{}

func (CSSMin) Signature() string { return "cssmin" }

func (CSSMin) Fits(kind asset.Kind) bool { return kind.Type.IsStylesheet() }

func (CSSMin) Matches(*asset.Asset) bool { return true }

func (CSSMin) Build(p *Pass) ([]byte, error) {
	combined, err := p.Concat()
	if err != nil {
		return nil, err
	}
	return minifyContent(p, "text/css", combined)
}

// JSMin combines and minifies script buckets.
type JSMin struct{}

func (JSMin) Signature() string { return "jsmin" }

func (JSMin) Fits(kind asset.Kind) bool { return kind.Type.IsScript() }

func (JSMin) Matches(*asset.Asset) bool { return true }

func (JSMin) Build(p *Pass) ([]byte, error) {
	combined, err := p.Concat()
	if err != nil {
		return nil, err
	}
	return minifyContent(p, "application/javascript", combined)
}

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return m
}()

func minifyContent(p *Pass, mediatype string, in []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := minifier.Minify(mediatype, &out, bytes.NewReader(in)); err != nil {
		return nil, errors.FilterContractViolation(p.Filter.Signature(), "minification failed: "+err.Error())
	}
	return out.Bytes(), nil
}
