package htmlscan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="css/screen.css">
  <link rel="stylesheet" href="css/print.css" media="print">
  <link rel="stylesheet" href="/assets/site.css">
  <link rel="stylesheet" href="https://cdn.example.com/lib.css">
  <link rel="stylesheet" href="//cdn.example.com/proto.css">
  <link rel="icon" href="favicon.ico">
  <script src="js/app.js"></script>
  <script src="https://cdn.example.com/lib.js"></script>
  <script>var inline = true;</script>
</head>
<body>
  <a href="other.html">other</a>
</body>
</html>`

func TestExtractRefsFromReader(t *testing.T) {
	refs, err := ExtractRefsFromReader(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(refs) != 4 {
		t.Fatalf("expected 4 local refs, got %d: %+v", len(refs), refs)
	}

	want := []struct {
		url   string
		tag   string
		media string
	}{
		{"css/screen.css", "link", ""},
		{"css/print.css", "link", "print"},
		{"/assets/site.css", "link", ""},
		{"js/app.js", "script", ""},
	}

	for i, w := range want {
		if refs[i].URL != w.url {
			t.Errorf("ref %d: url=%q, want %q", i, refs[i].URL, w.url)
		}
		if refs[i].Tag != w.tag {
			t.Errorf("ref %d: tag=%q, want %q", i, refs[i].Tag, w.tag)
		}
		if refs[i].Media != w.media {
			t.Errorf("ref %d: media=%q, want %q", i, refs[i].Media, w.media)
		}
	}
}

func TestExtractRefs_FromFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	if err := os.WriteFile(page, []byte(samplePage), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}

	refs, err := ExtractRefs(page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(refs) != 4 {
		t.Errorf("expected 4 refs, got %d", len(refs))
	}
}

func TestExtractRefs_MissingFile(t *testing.T) {
	_, err := ExtractRefs(filepath.Join(t.TempDir(), "nope.html"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.IsCategory(err, errors.CategoryFileSystem) {
		t.Errorf("expected filesystem category, got %v", errors.GetCategory(err))
	}
}

func TestIsLocalRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"css/a.css", true},
		{"/assets/a.css", true},
		{"../shared/a.css", true},
		{"a.css?v=3", true},
		{"https://cdn.example.com/a.css", false},
		{"http://cdn.example.com/a.css", false},
		{"//cdn.example.com/a.css", false},
		{"data:text/css,body{}", false},
		{"#top", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isLocalRef(tt.ref); got != tt.want {
			t.Errorf("isLocalRef(%q)=%v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestReference_LocalPath(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"relative", "css/a.css", filepath.Join("site", "pages", "css", "a.css")},
		{"parent relative", "../shared/a.css", filepath.Join("site", "shared", "a.css")},
		{"root relative", "/assets/a.css", filepath.Join("site", "assets", "a.css")},
		{"query stripped", "css/a.css?v=3", filepath.Join("site", "pages", "css", "a.css")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &Reference{URL: tt.url}
			got := ref.LocalPath(filepath.Join("site", "pages"), "site")
			if got != tt.want {
				t.Errorf("LocalPath(%q)=%q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
