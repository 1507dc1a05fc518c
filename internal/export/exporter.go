package export

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/buildcache"
	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/gitinfo"
	"github.com/lejeunerenard/file-assets/internal/logfields"
	"github.com/lejeunerenard/file-assets/internal/metrics"
	"github.com/lejeunerenard/file-assets/internal/pipeline"
	"github.com/lejeunerenard/file-assets/internal/report"
	"github.com/lejeunerenard/file-assets/internal/rules"
	"github.com/lejeunerenard/file-assets/internal/storage"
	"github.com/lejeunerenard/file-assets/internal/workspace"
)

// ReportFilename is the report written into the output directory after
// every successful pass.
const ReportFilename = "export-report.json"

// DefaultExportService is the standard implementation of ExportService.
// It orchestrates the full pass: workspace → discovery → plan → pipeline →
// report, with optional event emission for history tracking.
type DefaultExportService struct {
	store      storage.Store
	recorder   metrics.Recorder
	events     eventstore.Store
	projection *eventstore.ExportHistoryProjection
	logger     *slog.Logger
}

// NewExportService creates a DefaultExportService backed by the real
// filesystem, without metrics or event emission.
func NewExportService() *DefaultExportService {
	return &DefaultExportService{
		store:    storage.NewFSStore(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithStore injects a storage backend (for testing).
func (s *DefaultExportService) WithStore(store storage.Store) *DefaultExportService {
	s.store = store
	return s
}

// WithRecorder sets a metrics recorder.
func (s *DefaultExportService) WithRecorder(rec metrics.Recorder) *DefaultExportService {
	s.recorder = rec
	return s
}

// WithEventStore enables event emission into the history store.
func (s *DefaultExportService) WithEventStore(events eventstore.Store) *DefaultExportService {
	s.events = events
	return s
}

// WithProjection keeps an in-memory history projection updated as events
// are emitted, so the daemon's status surface stays live without re-reading
// the store.
func (s *DefaultExportService) WithProjection(p *eventstore.ExportHistoryProjection) *DefaultExportService {
	s.projection = p
	return s
}

// WithLogger sets a custom logger.
func (s *DefaultExportService) WithLogger(logger *slog.Logger) *DefaultExportService {
	s.logger = logger
	return s
}

// Run executes the complete export pass.
func (s *DefaultExportService) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()

	result := &Result{
		Status:    StatusFailed,
		StartTime: startTime,
	}

	if req.Config == nil {
		s.finish(result, startTime)
		s.recorder.IncExportOutcome(string(StatusFailed))
		return result, errors.ConfigurationError("config required")
	}
	cfg := req.Config

	exportID := uuid.NewString()
	result.ExportID = exportID
	logger := s.logger.With(logfields.ExportID(exportID))

	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerCLI
	}

	sourcePaths := make([]string, len(cfg.Sources))
	for i, src := range cfg.Sources {
		sourcePaths[i] = src.Path
	}
	s.emit(ctx, logger, func() (eventstore.Event, error) {
		return eventstore.NewExportStarted(exportID, trigger, cfg.Snapshot(), sourcePaths)
	})

	logger.Info("export started",
		slog.String("trigger", trigger),
		logfields.Count(len(cfg.Sources)))

	// Stage: workspace
	ws := workspace.NewManager(cfg.Output.Directory, cfg.Cache.Directory)
	if err := ws.Prepare(); err != nil {
		return s.fail(ctx, logger, result, "workspace", err)
	}
	if cfg.Output.Clean {
		if err := ws.CleanOutput(); err != nil {
			return s.fail(ctx, logger, result, "workspace", err)
		}
	}

	// Stage: discovery. Every pass starts from a fresh registry; membership
	// is never carried over from a previous run.
	reg, inputs, err := Discover(cfg, req.Seeds, logger)
	if err != nil {
		return s.fail(ctx, logger, result, "discovery", err)
	}
	result.Assets = reg.Len()

	if err := ctx.Err(); err != nil {
		return s.cancel(ctx, logger, result, err)
	}

	// Stage: plan
	paths, err := cfg.Scheme.OutputPath.ToScheme()
	if err != nil {
		return s.fail(ctx, logger, result, "plan", err)
	}
	attrs, err := cfg.Scheme.OutputAttrs.ToScheme()
	if err != nil {
		return s.fail(ctx, logger, result, "plan", err)
	}
	filtersScheme, err := cfg.Scheme.Filters.ToScheme()
	if err != nil {
		return s.fail(ctx, logger, result, "plan", err)
	}
	instances, planned, err := resolveFilters(cfg)
	if err != nil {
		return s.fail(ctx, logger, result, "plan", err)
	}
	policy, err := cfg.Cache.Policy()
	if err != nil {
		return s.fail(ctx, logger, result, "plan", err)
	}

	attach := attachFunc(filtersScheme, instances)

	var only asset.ContentType
	if cfg.Build.Only != "" {
		only = asset.TypeFromName(cfg.Build.Only)
	}

	// Stage: pipeline
	cache := buildcache.New(s.store, cfg.Cache.Directory, policy).WithLogger(logger)
	runner := pipeline.NewRunner(reg, s.store, cache, pipeline.Options{
		Paths:        paths,
		Attrs:        attrs,
		OutputDir:    cfg.Output.Directory,
		BaseURL:      cfg.Output.BaseURL,
		SkipExisting: cfg.Build.SkipExisting,
	}).WithLogger(logger).WithRecorder(s.recorder)

	outputs, err := runner.Run(attach, only)
	if err != nil {
		return s.fail(ctx, logger, result, "pipeline", err)
	}
	result.Outputs = outputs

	for _, out := range outputs {
		s.emit(ctx, logger, func() (eventstore.Event, error) {
			return eventstore.NewFilterPassCompleted(exportID, out.Filter, out.Kind,
				out.Output, out.Members, out.Digest, string(out.Action), out.Duration)
		})
	}

	if only.IsZero() {
		result.Exports = reg.Exports()
	} else {
		result.Exports = reg.ExportsByType(only)
	}

	// Stage: report
	written, skipped := tally(outputs)
	rep := &report.Report{
		ID:        exportID,
		Timestamp: startTime,
		Revision:  sourceRevision(cfg.Sources),
		Inputs:    report.Inputs{Sources: inputs, ConfigHash: cfg.Snapshot()},
		Plan:      report.Plan{Filters: planned, Only: cfg.Build.Only},
		Outputs:   reportOutputs(outputs),
		Totals:    report.Totals{Assets: result.Assets, Written: written, Skipped: skipped},
		Status:    report.StatusSuccess,
		Duration:  time.Since(startTime).Milliseconds(),
	}
	if err := rep.Write(s.store, filepath.Join(cfg.Output.Directory, ReportFilename)); err != nil {
		return s.fail(ctx, logger, result, "report", err)
	}
	result.Report = rep

	reportHash, err := rep.Hash()
	if err != nil {
		logger.Warn("report hash failed", logfields.Error(err))
	}

	s.finish(result, startTime)
	result.Status = StatusSuccess

	s.emit(ctx, logger, func() (eventstore.Event, error) {
		return eventstore.NewExportCompleted(exportID, len(outputs), written, skipped, reportHash, result.Duration)
	})
	s.pruneHistory(ctx, logger, cfg)

	s.recorder.IncExportOutcome(string(StatusSuccess))
	s.recorder.SetAssetsExported(len(result.Exports))
	s.recorder.ObserveExportDuration(result.Duration)

	logger.Info("export complete",
		logfields.Count(len(outputs)),
		slog.Int("written", written),
		slog.Int("skipped", skipped),
		logfields.DurationMS(float64(result.Duration.Microseconds())/1000.0))

	return result, nil
}

// Discover builds a fresh registry from the configured sources plus any
// extra seeds. It is the discovery stage of Run, exported so inspection
// surfaces (the ls command) can see exactly the membership a pass would
// start from.
func Discover(cfg *config.Config, seeds []Seed, logger *slog.Logger) (*asset.Registry, []report.SourceInput, error) {
	reg := asset.NewRegistry()
	inputs := make([]report.SourceInput, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		count, err := includeSource(reg, src, logger)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, report.SourceInput{Path: src.Path, Rank: src.Rank, Count: count})
	}
	for _, seed := range seeds {
		a, err := reg.Include(seed.Path)
		if err != nil {
			return nil, nil, err
		}
		stamp(a, seed.Rank, seed.Attrs)
	}
	return reg, inputs, nil
}

// includeSource adds one configured source to the registry: every
// recognized file under a directory root, or the file itself. The source's
// rank and attributes stamp every descriptor it contributed.
func includeSource(reg *asset.Registry, src config.SourceConfig, logger *slog.Logger) (int, error) {
	fi, err := os.Stat(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.SourceMissingError(src.Path, err)
		}
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat source").
			WithContext("path", src.Path)
	}

	if !fi.IsDir() {
		a, err := reg.Include(src.Path)
		if err != nil {
			return 0, err
		}
		stamp(a, src.Rank, src.Attrs)
		return 1, nil
	}

	before := len(reg.Live())
	count, err := reg.IncludeTree(src.Path, logger)
	if err != nil {
		return count, err
	}
	for _, a := range reg.Live()[before:] {
		stamp(a, src.Rank, src.Attrs)
	}
	return count, nil
}

// stamp applies source-level rank and attribute defaults to a descriptor.
// Attributes already present on the descriptor win.
func stamp(a *asset.Asset, rank int, attrs map[string]string) {
	if rank != 0 {
		a.Rank = rank
	}
	for k, v := range attrs {
		if a.Attrs == nil {
			a.Attrs = make(map[string]string, len(attrs))
		}
		if _, ok := a.Attrs[k]; !ok {
			a.Attrs[k] = v
		}
	}
}

// resolveFilters instantiates every filter the scheme names, failing fast on
// unknown names. It returns the instances keyed by name plus the distinct
// names in rule order for the report plan.
func resolveFilters(cfg *config.Config) (map[string]pipeline.Filter, []string, error) {
	instances := make(map[string]pipeline.Filter)
	var planned []string
	for _, rc := range cfg.Scheme.Filters {
		for _, name := range config.SplitFilterNames(rc.Fields["use"]) {
			if _, ok := instances[name]; ok {
				continue
			}
			f, err := pipeline.ByName(name)
			if err != nil {
				return nil, nil, err
			}
			instances[name] = f
			planned = append(planned, name)
		}
	}
	return instances, planned, nil
}

// attachFunc builds the per-bucket filter attachment: the filters scheme
// resolves each kind to a use list, in application order.
func attachFunc(scheme rules.Scheme, instances map[string]pipeline.Filter) func(asset.Kind) []pipeline.Filter {
	return func(kind asset.Kind) []pipeline.Filter {
		fields := scheme.Resolve(kind, "")
		names := config.SplitFilterNames(fields["use"])
		out := make([]pipeline.Filter, 0, len(names))
		for _, name := range names {
			if f, ok := instances[name]; ok {
				out = append(out, f)
			}
		}
		return out
	}
}

func tally(outputs []pipeline.BuildResult) (written, skipped int) {
	for _, out := range outputs {
		if out.Action == pipeline.ActionBuilt {
			written++
		} else {
			skipped++
		}
	}
	return written, skipped
}

func reportOutputs(outputs []pipeline.BuildResult) []report.Output {
	if len(outputs) == 0 {
		return nil
	}
	out := make([]report.Output, len(outputs))
	for i, o := range outputs {
		out[i] = report.Output{
			Filter:  o.Filter,
			Kind:    o.Kind,
			Path:    o.Output,
			URI:     o.URI,
			Members: o.Members,
			Digest:  o.Digest,
			Action:  string(o.Action),
		}
	}
	return out
}

// sourceRevision resolves the first source root that sits inside a git work
// tree. Exports of sources outside version control carry no revision.
func sourceRevision(sources []config.SourceConfig) string {
	for _, src := range sources {
		dir := src.Path
		if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
			dir = filepath.Dir(dir)
		}
		if rev := gitinfo.Short(dir); rev != "" {
			return rev
		}
	}
	return ""
}

// emit constructs and records one event. History is best-effort: emission
// failures are logged, never propagated into the export outcome.
func (s *DefaultExportService) emit(ctx context.Context, logger *slog.Logger, build func() (eventstore.Event, error)) {
	if s.events == nil && s.projection == nil {
		return
	}
	e, err := build()
	if err != nil {
		logger.Warn("event construction failed", logfields.Error(err))
		return
	}
	if s.events != nil {
		// A cancelled pass still records how far it got.
		appendCtx := ctx
		if ctx.Err() != nil {
			appendCtx = context.Background()
		}
		if err := eventstore.AppendEvent(appendCtx, s.events, e); err != nil {
			logger.Warn("event append failed", logfields.Error(err))
		}
	}
	if s.projection != nil {
		s.projection.Apply(e)
	}
}

// pruneHistory drops the oldest export runs beyond the configured keep.
func (s *DefaultExportService) pruneHistory(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if s.events == nil || cfg.History == nil || !cfg.History.Enabled || cfg.History.Keep <= 0 {
		return
	}
	if err := s.events.Prune(ctx, cfg.History.Keep); err != nil {
		logger.Warn("history prune failed", logfields.Error(err))
	}
}

func (s *DefaultExportService) fail(ctx context.Context, logger *slog.Logger, result *Result, stage string, err error) (*Result, error) {
	s.finish(result, result.StartTime)
	result.Status = StatusFailed

	s.emit(ctx, logger, func() (eventstore.Event, error) {
		return eventstore.NewExportFailed(result.ExportID, stage, err)
	})
	s.recorder.IncExportOutcome(string(StatusFailed))

	logger.Error("export failed",
		slog.String("stage", stage),
		logfields.Error(err))
	return result, err
}

func (s *DefaultExportService) cancel(ctx context.Context, logger *slog.Logger, result *Result, err error) (*Result, error) {
	s.finish(result, result.StartTime)
	result.Status = StatusCancelled

	s.emit(ctx, logger, func() (eventstore.Event, error) {
		return eventstore.NewExportFailed(result.ExportID, "cancelled", err)
	})
	s.recorder.IncExportOutcome(string(StatusCancelled))

	logger.Warn("export cancelled", logfields.Error(err))
	return result, err
}

func (s *DefaultExportService) finish(result *Result, startTime time.Time) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
}
