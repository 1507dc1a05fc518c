// Package render turns exported resource descriptors into HTML reference
// markup: link elements for stylesheets, script elements for scripts, and a
// plain URI line for anything else.
package render

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Reference renders one descriptor. File-backed descriptors become reference
// markup pointing at their URI; inline descriptors become style/script blocks
// carrying their content verbatim.
func Reference(a *asset.Asset) (string, error) {
	if a.Type.IsZero() {
		return "", errors.UnknownKindError(fmt.Sprintf("cannot render descriptor %q without a content type", a.Key()))
	}

	if a.Inline() {
		return inlineBlock(a)
	}

	switch {
	case a.Type.IsStylesheet():
		var b strings.Builder
		b.WriteString(`<link rel="stylesheet" href="`)
		b.WriteString(html.EscapeString(a.URI))
		b.WriteString(`"`)
		writeAttrs(&b, a.Attrs)
		b.WriteString(">")
		return b.String(), nil
	case a.Type.IsScript():
		var b strings.Builder
		b.WriteString(`<script src="`)
		b.WriteString(html.EscapeString(a.URI))
		b.WriteString(`"`)
		writeAttrs(&b, a.Attrs)
		b.WriteString("></script>")
		return b.String(), nil
	default:
		return a.URI, nil
	}
}

// Fragment renders a descriptor list in order, one reference per line.
func Fragment(assets []*asset.Asset) (string, error) {
	if len(assets) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(assets))
	for _, a := range assets {
		line, err := Reference(a)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// inlineBlock renders inline content. Style and script bodies are written
// verbatim: escaping inside those elements would corrupt the content.
func inlineBlock(a *asset.Asset) (string, error) {
	content, err := a.Content()
	if err != nil {
		return "", err
	}

	switch {
	case a.Type.IsStylesheet():
		var b strings.Builder
		b.WriteString("<style")
		writeAttrs(&b, a.Attrs)
		b.WriteString(">\n")
		b.Write(content)
		b.WriteString("\n</style>")
		return b.String(), nil
	case a.Type.IsScript():
		var b strings.Builder
		b.WriteString("<script")
		writeAttrs(&b, a.Attrs)
		b.WriteString(">\n")
		b.Write(content)
		b.WriteString("\n</script>")
		return b.String(), nil
	default:
		return string(content), nil
	}
}

// writeAttrs appends attributes in sorted key order. Keys with an empty
// value render as bare boolean attributes (defer, async).
func writeAttrs(b *strings.Builder, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := attrs[k]
		b.WriteString(" ")
		b.WriteString(k)
		if v == "" {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(v))
		b.WriteString(`"`)
	}
}
