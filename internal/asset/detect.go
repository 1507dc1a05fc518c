package asset

import (
	"path/filepath"
	"strings"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

// extTypes maps file extensions (without dot) to content types.
var extTypes = map[string]ContentType{
	"css":   Stylesheet,
	"js":    Script,
	"mjs":   Script,
	"json":  Other("application/json"),
	"map":   Other("application/json"),
	"svg":   Other("image/svg+xml"),
	"png":   Other("image/png"),
	"jpg":   Other("image/jpeg"),
	"jpeg":  Other("image/jpeg"),
	"gif":   Other("image/gif"),
	"ico":   Other("image/vnd.microsoft.icon"),
	"webp":  Other("image/webp"),
	"woff":  Other("font/woff"),
	"woff2": Other("font/woff2"),
	"txt":   Other("text/plain"),
}

// Detect derives the content type from a path's extension. An extension with
// no mapping yields an UnknownKindError; callers that include files
// explicitly must either rely on a known extension or declare the type.
func Detect(path string) (ContentType, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return ContentType{}, errors.UnknownKindError("no file extension to detect content type from").
			WithContext("path", path)
	}
	if t, ok := extTypes[ext]; ok {
		return t, nil
	}
	return ContentType{}, errors.UnknownKindError("no content type mapping for extension ." + ext).
		WithContext("path", path)
}

// KnownExtension reports whether the extension maps to a content type.
func KnownExtension(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := extTypes[ext]
	return ok
}
