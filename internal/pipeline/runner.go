package pipeline

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/buildcache"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/logfields"
	"github.com/lejeunerenard/file-assets/internal/metrics"
	"github.com/lejeunerenard/file-assets/internal/rules"
	"github.com/lejeunerenard/file-assets/internal/storage"
)

// Action describes how a filter traversal concluded.
type Action string

const (
	// ActionBuilt means content was produced and written.
	ActionBuilt Action = "built"
	// ActionSkippedCache means the build-skip cache recognized the input
	// combination and no write happened.
	ActionSkippedCache Action = "skipped-cache"
	// ActionSkippedExisting means the output already existed non-empty
	// and the short-circuit was enabled.
	ActionSkippedExisting Action = "skipped-existing"
)

// BuildResult records one traversal that produced or reused an output.
type BuildResult struct {
	Filter   string        `json:"filter"`
	Kind     string        `json:"kind"`
	Output   string        `json:"output"`
	URI      string        `json:"uri"`
	Members  int           `json:"members"`
	Digest   string        `json:"digest"`
	Action   Action        `json:"action"`
	Duration time.Duration `json:"-"`
}

// Options carries the scheme and layout settings a Runner resolves outputs
// against.
type Options struct {
	// Paths resolves output path templates; the "path" field is required
	// for any traversal that builds.
	Paths rules.Scheme
	// Attrs resolves attributes stamped onto derived outputs.
	Attrs rules.Scheme
	// OutputDir roots all written outputs.
	OutputDir string
	// BaseURL prefixes derived output URIs.
	BaseURL string
	// SkipExisting short-circuits a build when the resolved output
	// already exists non-empty. The substitution still happens.
	SkipExisting bool
}

// Runner drives filter chains over buckets: one traversal per
// (bucket, filter) pair, filters in attachment order, hides and insertions
// applied only at traversal boundaries.
type Runner struct {
	reg    *asset.Registry
	store  storage.Store
	cache  *buildcache.Cache
	rec    metrics.Recorder
	logger *slog.Logger
	opts   Options
}

// NewRunner creates a runner over a registry.
func NewRunner(reg *asset.Registry, store storage.Store, cache *buildcache.Cache, opts Options) *Runner {
	return &Runner{
		reg:    reg,
		store:  store,
		cache:  cache,
		rec:    metrics.NoopRecorder{},
		logger: slog.Default(),
		opts:   opts,
	}
}

// WithLogger sets a custom logger.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// WithRecorder sets a metrics recorder.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	r.rec = rec
	return r
}

// Run groups the registry and drives every attached filter over every
// bucket. attach supplies each bucket's filters in application order; a
// later filter sees the substitutions of earlier ones. Pass a zero content
// type to process every kind.
func (r *Runner) Run(attach func(kind asset.Kind) []Filter, only asset.ContentType) ([]BuildResult, error) {
	var results []BuildResult
	for _, b := range Group(r.reg, only) {
		for _, f := range attach(b.Kind) {
			res, err := r.traverse(b, f)
			if err != nil {
				return results, err
			}
			if res != nil {
				results = append(results, *res)
			}
		}
	}
	return results, nil
}

// traverse runs one filter's full lifecycle over one bucket. It returns nil
// when the filter does not participate or matched nothing.
func (r *Runner) traverse(b *Bucket, f Filter) (*BuildResult, error) {
	if !f.Fits(b.Kind) {
		return nil, nil
	}
	start := time.Now()

	pass := newPass(b, f, r.reg, r.opts.Paths, r.opts.Attrs, r.opts.OutputDir, r.opts.BaseURL)
	snapshot := append([]*asset.Asset(nil), b.Members...)
	for _, m := range snapshot {
		if f.Matches(m) {
			if err := pass.add(m); err != nil {
				return nil, err
			}
		}
	}
	if len(pass.Matched()) == 0 {
		r.logger.Debug("filter matched nothing", logfields.Filter(f.Signature()), logfields.Kind(b.Kind.Key()))
		return nil, nil
	}

	// A broken output rule fails the whole export before any build work.
	rel, err := pass.OutputPath()
	if err != nil {
		return nil, err
	}
	full := filepath.Join(r.opts.OutputDir, filepath.FromSlash(rel))

	aggregate := pass.AggregateDigest()
	action := ActionBuilt
	var content []byte

	switch {
	case r.opts.SkipExisting && r.outputPresent(full):
		action = ActionSkippedExisting
		r.rec.IncOutputSkipped(metrics.SkipExisting)
	default:
		newest, err := pass.NewestSource()
		if err != nil {
			return nil, err
		}
		rebuild, reason := r.cache.ShouldRebuild(f.Signature(), aggregate, pass.MemberDigests(), newest)
		if !rebuild && !r.outputPresent(full) {
			// Markers outlive the output tree (output cleaning never
			// touches the cache directory), so a passing cache check
			// must never stand in for the file itself.
			rebuild = true
			reason = "output missing"
		}
		if !rebuild {
			action = ActionSkippedCache
			r.rec.IncCacheResult(f.Signature(), metrics.CacheHit)
			r.rec.IncOutputSkipped(metrics.SkipCache)
			r.logger.Debug("build skipped", logfields.Filter(f.Signature()), logfields.Output(full), slog.String("reason", reason))
			break
		}
		r.rec.IncCacheResult(f.Signature(), metrics.CacheMiss)
		content, err = f.Build(pass)
		if err != nil {
			return nil, err
		}
		if len(content) == 0 {
			return nil, errors.FilterContractViolation(f.Signature(), "filter accepted members but built no output")
		}
		if err := r.store.WriteFile(full, content); err != nil {
			return nil, errors.WriteError(full, err)
		}
		r.rec.IncOutputWritten()
	}

	out, err := pass.OutputResource(content)
	if err != nil {
		return nil, err
	}
	if err := r.reg.Substitute(pass.Matched(), out); err != nil {
		return nil, err
	}
	b.refresh(r.reg)

	// Touch markers after every successful pass, skip or build alike, so
	// the next pass compares against fresh state. A failed build returns
	// above and leaves its marker absent or stale.
	if err := r.cache.MarkBuilt(f.Signature(), aggregate, pass.MemberDigests()); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to touch cache markers")
	}

	duration := time.Since(start)
	r.rec.ObserveFilterDuration(f.Signature(), duration)
	r.logger.Info("filter pass complete",
		logfields.Filter(f.Signature()),
		logfields.Kind(b.Kind.Key()),
		logfields.Output(full),
		logfields.Count(len(pass.Matched())),
		slog.String("action", string(action)),
		logfields.DurationMS(float64(duration.Microseconds())/1000.0))

	return &BuildResult{
		Filter:   f.Signature(),
		Kind:     b.Kind.Key(),
		Output:   full,
		URI:      out.URI,
		Members:  len(pass.Matched()),
		Digest:   aggregate,
		Action:   action,
		Duration: duration,
	}, nil
}

func (r *Runner) outputPresent(path string) bool {
	info, err := r.store.Stat(path)
	return err == nil && info.Size > 0
}
