// Package asset provides the resource registry at the heart of the export
// engine: content kinds, resource descriptors, and the insertion-ordered
// registry that owns them.
package asset

import (
	"strings"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

type typeClass int

const (
	classNone typeClass = iota
	classStylesheet
	classScript
	classOther
)

// ContentType is a closed tagged variant over the content categories the
// engine understands: Stylesheet, Script, or Other with an explicit MIME
// type. The zero value means "no type declared".
type ContentType struct {
	class typeClass
	mime  string
}

var (
	// Stylesheet is CSS content.
	Stylesheet = ContentType{class: classStylesheet, mime: "text/css"}
	// Script is JavaScript content.
	Script = ContentType{class: classScript, mime: "application/javascript"}
)

// Other returns a content type for anything that is neither a stylesheet nor
// a script, carrying its MIME type.
func Other(mime string) ContentType {
	return ContentType{class: classOther, mime: mime}
}

// IsZero reports whether no content type was declared.
func (t ContentType) IsZero() bool { return t.class == classNone }

// IsStylesheet reports whether the type is CSS.
func (t ContentType) IsStylesheet() bool { return t.class == classStylesheet }

// IsScript reports whether the type is JavaScript.
func (t ContentType) IsScript() bool { return t.class == classScript }

// MIME returns the media type string.
func (t ContentType) MIME() string { return t.mime }

// Name returns the short type name used in rule conditions: "css", "js", or
// the MIME subtype for other types (a "+suffix" is stripped, so
// "image/svg+xml" becomes "svg").
func (t ContentType) Name() string {
	switch t.class {
	case classStylesheet:
		return "css"
	case classScript:
		return "js"
	case classOther:
		sub := t.mime
		if i := strings.LastIndex(sub, "/"); i >= 0 {
			sub = sub[i+1:]
		}
		if i := strings.Index(sub, "+"); i >= 0 {
			sub = sub[:i]
		}
		return sub
	default:
		return ""
	}
}

// Ext returns the conventional file extension for the type, without the dot.
func (t ContentType) Ext() string {
	switch t.class {
	case classStylesheet:
		return "css"
	case classScript:
		return "js"
	default:
		return t.Name()
	}
}

// Kind identifies a processing category: a content type plus an optional
// variant suffix (for stylesheets, the media attribute). Kinds are immutable
// values; two Kinds are equal iff both fields match.
type Kind struct {
	Type    ContentType
	Variant string
}

// Key renders the kind for rule matching: "css", "css/screen", "js", ...
func (k Kind) Key() string {
	if k.Variant == "" {
		return k.Type.Name()
	}
	return k.Type.Name() + "/" + k.Variant
}

func (k Kind) String() string { return k.Key() }

// MoreSpecificThan reports whether k carries a variant the other kind lacks.
func (k Kind) MoreSpecificThan(other Kind) bool {
	return k.Variant != "" && other.Variant == ""
}

// ParseKindKey parses a kind key of the form "<type>" or "<type>/<variant>"
// as written in rule conditions.
func ParseKindKey(s string) (Kind, error) {
	if s == "" {
		return Kind{}, errors.ValidationFailed("kind", "empty kind key")
	}
	name := s
	variant := ""
	if i := strings.Index(s, "/"); i >= 0 {
		name = s[:i]
		variant = s[i+1:]
		if name == "" || variant == "" {
			return Kind{}, errors.ValidationFailed("kind", "malformed kind key: "+s)
		}
	}
	return Kind{Type: TypeFromName(name), Variant: variant}, nil
}

// TypeFromName maps a short type name back to its ContentType. Names that
// match a known extension resolve to the detected type; anything else is
// treated as an Other MIME subtype.
func TypeFromName(name string) ContentType {
	switch name {
	case "css":
		return Stylesheet
	case "js":
		return Script
	}
	if t, ok := extTypes[name]; ok {
		return t
	}
	return Other(name)
}
