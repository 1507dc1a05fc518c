package pipeline

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/buildcache"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/storage"
)

// stubFilter lets a test control any lifecycle hook; unset hooks behave
// like Concat.
type stubFilter struct {
	sig     string
	fits    func(asset.Kind) bool
	matches func(*asset.Asset) bool
	build   func(*Pass) ([]byte, error)
}

func (s stubFilter) Signature() string { return s.sig }

func (s stubFilter) Fits(k asset.Kind) bool {
	if s.fits == nil {
		return !k.Type.IsZero()
	}
	return s.fits(k)
}

func (s stubFilter) Matches(a *asset.Asset) bool {
	if s.matches == nil {
		return true
	}
	return s.matches(a)
}

func (s stubFilter) Build(p *Pass) ([]byte, error) {
	if s.build == nil {
		return p.Concat()
	}
	return s.build(p)
}

func attachAll(filters ...Filter) func(asset.Kind) []Filter {
	return func(asset.Kind) []Filter { return filters }
}

func quietRunner(reg *asset.Registry, store storage.Store, cache *buildcache.Cache, opts Options) *Runner {
	return NewRunner(reg, store, cache, opts).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func defaultOptions(t *testing.T, template string) Options {
	t.Helper()
	return Options{
		Paths:     pathScheme(t, template),
		OutputDir: "public",
		BaseURL:   "/static",
	}
}

func TestRun_NoFilters_LeavesExportsUntouched(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	a := include(t, reg, writeSource(t, dir, "a.css", "a{}"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "bundle.{ext}"))

	results, err := r.Run(attachAll(), asset.ContentType{})
	require.NoError(t, err)
	require.Empty(t, results)

	exports := reg.Exports()
	require.Len(t, exports, 1)
	require.Same(t, a, exports[0])
	require.Zero(t, store.Calls().Write)
}

func TestRun_Concat_WritesCombinedOutputAndSubstitutes(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	include(t, reg, writeSource(t, dir, "a.css", "body{color:red}\n"))
	include(t, reg, writeSource(t, dir, "b.css", ".x{top:0}\n"))
	include(t, reg, writeSource(t, dir, "app.js", "var a = 1;\n"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "assets/{type}/bundle.{digest}.{ext}"))

	results, err := r.Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "concat", results[0].Filter)
	require.Equal(t, "css/screen", results[0].Kind)
	require.Equal(t, 2, results[0].Members)
	require.Equal(t, ActionBuilt, results[0].Action)
	require.Equal(t, "js", results[1].Kind)
	require.Equal(t, 1, results[1].Members)

	written, err := store.ReadFile(results[0].Output)
	require.NoError(t, err)
	require.Equal(t, "body{color:red}\n.x{top:0}\n", string(written))

	exports := reg.Exports()
	require.Len(t, exports, 2)
	require.True(t, exports[0].Derived)
	require.True(t, exports[1].Derived)

	cssContent, err := exports[0].Content()
	require.NoError(t, err)
	require.Equal(t, "body{color:red}\n.x{top:0}\n", string(cssContent))
	require.Regexp(t, `^/static/assets/css/bundle\.[0-9a-f]{12}\.css$`, exports[0].URI)

	jsContent, err := exports[1].Content()
	require.NoError(t, err)
	require.Equal(t, "var a = 1;\n", string(jsContent))
}

func TestRun_FilterMatchingNothing_HasNoEffect(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	a := include(t, reg, writeSource(t, dir, "a.css", "a{}"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "bundle.{ext}"))

	none := stubFilter{sig: "none", matches: func(*asset.Asset) bool { return false }}
	results, err := r.Run(attachAll(none), asset.ContentType{})
	require.NoError(t, err)
	require.Empty(t, results)

	exports := reg.Exports()
	require.Len(t, exports, 1)
	require.Same(t, a, exports[0])
	require.False(t, a.Hidden())
}

func TestRun_EmptyBuildOutput_FailsFilterContract(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	include(t, reg, writeSource(t, dir, "a.css", "a{}"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "bundle.{ext}"))

	empty := stubFilter{sig: "empty", build: func(*Pass) ([]byte, error) { return nil, nil }}
	_, err := r.Run(attachAll(empty), asset.ContentType{})
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryFilterContract))
	require.Zero(t, store.Calls().Write)
}

func TestRun_BrokenPathRule_FailsBeforeBuilding(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	include(t, reg, writeSource(t, dir, "a.css", "a{}"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "assets/{bogus}.css"))

	built := false
	probe := stubFilter{sig: "probe", build: func(p *Pass) ([]byte, error) {
		built = true
		return p.Concat()
	}}
	_, err := r.Run(attachAll(probe), asset.ContentType{})
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryConfig))
	require.False(t, built)
	require.Zero(t, store.Calls().Write)
}

func TestRun_CacheSkip_SecondExportBuildsNothing(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.css", "body{color:red}\n")
	writeSource(t, dir, "b.css", ".x{top:0}\n")

	store := storage.NewMemStore()
	cache := buildcache.New(store, "cache", buildcache.Policy{Digest: true})
	opts := defaultOptions(t, "assets/{kind}-{digest}.{ext}")

	first := asset.NewRegistry()
	include(t, first, filepath.Join(dir, "a.css"))
	include(t, first, filepath.Join(dir, "b.css"))
	results1, err := quietRunner(first, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Len(t, results1, 1)
	require.Equal(t, ActionBuilt, results1[0].Action)

	store.ResetCalls()

	second := asset.NewRegistry()
	include(t, second, filepath.Join(dir, "a.css"))
	include(t, second, filepath.Join(dir, "b.css"))
	results2, err := quietRunner(second, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Len(t, results2, 1)
	require.Equal(t, ActionSkippedCache, results2[0].Action)
	require.Equal(t, results1[0].Digest, results2[0].Digest)
	require.Zero(t, store.Calls().Write)
	require.Positive(t, store.Calls().Touch)

	exports := second.Exports()
	require.Len(t, exports, 1)
	require.True(t, exports[0].Derived)
	require.Equal(t, results1[0].Output, exports[0].Path)
}

func TestRun_SourceChange_Rebuilds(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.css", "body{color:red}\n")
	writeSource(t, dir, "b.css", ".x{top:0}\n")

	store := storage.NewMemStore()
	cache := buildcache.New(store, "cache", buildcache.Policy{Digest: true})
	opts := defaultOptions(t, "assets/{kind}-{digest}.{ext}")

	first := asset.NewRegistry()
	include(t, first, filepath.Join(dir, "a.css"))
	include(t, first, filepath.Join(dir, "b.css"))
	results1, err := quietRunner(first, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.css"), []byte(".x{top:0;left:1em}\n"), 0o644))
	store.ResetCalls()

	second := asset.NewRegistry()
	include(t, second, filepath.Join(dir, "a.css"))
	include(t, second, filepath.Join(dir, "b.css"))
	results2, err := quietRunner(second, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Equal(t, ActionBuilt, results2[0].Action)
	require.NotEqual(t, results1[0].Digest, results2[0].Digest)
	require.Equal(t, 1, store.Calls().Write)
}

func TestRun_SkipExisting_SubstitutesWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.css", "a{}")

	store := storage.NewMemStore()
	cache := buildcache.New(store, "cache", buildcache.Policy{})
	opts := defaultOptions(t, "assets/bundle.{ext}")

	first := asset.NewRegistry()
	include(t, first, filepath.Join(dir, "a.css"))
	_, err := quietRunner(first, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	store.ResetCalls()

	opts.SkipExisting = true
	second := asset.NewRegistry()
	include(t, second, filepath.Join(dir, "a.css"))
	results, err := quietRunner(second, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, ActionSkippedExisting, results[0].Action)
	require.Zero(t, store.Calls().Write)

	exports := second.Exports()
	require.Len(t, exports, 1)
	require.True(t, exports[0].Derived)
}

func TestRun_OutputRemoved_RebuildsDespiteMarkers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.css", "body{color:red}\n")

	store := storage.NewMemStore()
	cache := buildcache.New(store, "cache", buildcache.Policy{Digest: true, Age: true})
	opts := defaultOptions(t, "assets/{kind}-{digest}.{ext}")

	first := asset.NewRegistry()
	include(t, first, filepath.Join(dir, "a.css"))
	results1, err := quietRunner(first, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Equal(t, ActionBuilt, results1[0].Action)

	// Output cleaning wipes the output tree but never the cache
	// directory, so the markers still vouch for this input combination.
	require.NoError(t, store.Remove(results1[0].Output))
	store.ResetCalls()

	second := asset.NewRegistry()
	include(t, second, filepath.Join(dir, "a.css"))
	results2, err := quietRunner(second, store, cache, opts).Run(attachAll(Concat{}), asset.ContentType{})
	require.NoError(t, err)
	require.Len(t, results2, 1)
	require.Equal(t, ActionBuilt, results2[0].Action)
	require.Equal(t, 1, store.Calls().Write)

	written, err := store.ReadFile(results2[0].Output)
	require.NoError(t, err)
	require.Equal(t, "body{color:red}\n", string(written))
}

func TestRun_ChainAppliesLaterFilterToEarlierOutput(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	include(t, reg, writeSource(t, dir, "a.css", "body { color: red; }\n"))
	include(t, reg, writeSource(t, dir, "b.css", ".x { top: 0px; }\n"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "assets/{signature}-{digest}.{ext}"))

	results, err := r.Run(attachAll(Concat{}, CSSMin{}), asset.ContentType{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "concat", results[0].Filter)
	require.Equal(t, 2, results[0].Members)
	require.Equal(t, "cssmin", results[1].Filter)
	require.Equal(t, 1, results[1].Members)

	exports := reg.Exports()
	require.Len(t, exports, 1)
	minified, err := exports[0].Content()
	require.NoError(t, err)
	require.Contains(t, string(minified), "body{color:red}")
	require.Contains(t, string(minified), "top:0")

	combined, err := store.ReadFile(results[0].Output)
	require.NoError(t, err)
	require.Less(t, len(minified), len(combined))
}

func TestRun_RestrictsToContentType(t *testing.T) {
	dir := t.TempDir()
	reg := asset.NewRegistry()
	cssA := include(t, reg, writeSource(t, dir, "a.css", "a{}"))
	cssB := include(t, reg, writeSource(t, dir, "b.css", "b{}"))
	include(t, reg, writeSource(t, dir, "app.js", "var a;"))

	store := storage.NewMemStore()
	r := quietRunner(reg, store, buildcache.New(store, "cache", buildcache.Policy{}), defaultOptions(t, "assets/{type}-bundle.{ext}"))

	results, err := r.Run(attachAll(Concat{}), asset.Script)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "js", results[0].Kind)

	exports := reg.Exports()
	require.Len(t, exports, 3)
	require.Same(t, cssA, exports[0])
	require.Same(t, cssB, exports[1])
	require.True(t, exports[2].Derived)
}
