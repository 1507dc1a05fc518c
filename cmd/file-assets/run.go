package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/buildcache"
	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/daemon"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/export"
	"github.com/lejeunerenard/file-assets/internal/htmlscan"
	"github.com/lejeunerenard/file-assets/internal/pipeline"
	"github.com/lejeunerenard/file-assets/internal/render"
	"github.com/lejeunerenard/file-assets/internal/storage"
)

// timeRound trims durations in human-facing output.
const timeRound = time.Millisecond

func runBuild(ctx context.Context, cfg *config.Config, logger *slog.Logger, only string, refs bool) error {
	if err := applyOnly(cfg, only); err != nil {
		return err
	}

	svc, closeHistory, err := newExportService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	result, err := svc.Run(ctx, export.Request{Config: cfg, Trigger: export.TriggerCLI})
	if err != nil {
		return err
	}
	return printResult(result, refs)
}

func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, page, webRoot string, refs bool) error {
	extracted, err := htmlscan.ExtractRefs(page)
	if err != nil {
		return err
	}
	seeds := seedsFromRefs(extracted, filepath.Dir(page), webRoot)
	logger.Info("page scanned",
		slog.String("page", page),
		slog.Int("references", len(seeds)))

	svc, closeHistory, err := newExportService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	result, err := svc.Run(ctx, export.Request{Config: cfg, Trigger: export.TriggerCLI, Seeds: seeds})
	if err != nil {
		return err
	}
	return printResult(result, refs)
}

func runLs(cfg *config.Config, logger *slog.Logger, only string) error {
	if err := applyOnly(cfg, only); err != nil {
		return err
	}
	var onlyType asset.ContentType
	if cfg.Build.Only != "" {
		onlyType = asset.TypeFromName(cfg.Build.Only)
	}

	reg, _, err := export.Discover(cfg, nil, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, b := range pipeline.Group(reg, onlyType) {
		fmt.Fprintf(w, "%s\t(%d members)\n", b.Kind, len(b.Members))
		for _, a := range b.Members {
			digest := "-"
			if d, err := a.Digest(); err == nil && len(d) >= 12 {
				digest = d[:12]
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", a.Rank, digest, a.Path, a.URI)
		}
	}
	return w.Flush()
}

func runInit(configPath string, force bool) error {
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", configPath)
	return nil
}

func runHistory(ctx context.Context, cfg *config.Config, limit int) error {
	if cfg.History == nil || !cfg.History.Enabled {
		return errors.ConfigurationError("history is not enabled; set history.enabled in the configuration")
	}

	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewExportHistoryProjection(store, limit)
	if err := projection.Rebuild(ctx); err != nil {
		return err
	}

	history := projection.GetHistory()
	if len(history) == 0 {
		fmt.Println("No export passes recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tID\tTRIGGER\tSTATUS\tOUTPUTS\tWRITTEN\tSKIPPED\tDURATION")
	for _, s := range history {
		id := s.ExportID
		if len(id) > 8 {
			id = id[:8]
		}
		status := s.Status
		if s.ErrorStage != "" {
			status = fmt.Sprintf("%s (%s)", s.Status, s.ErrorStage)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			s.StartedAt.Format("2006-01-02 15:04:05"), id, s.Trigger, status,
			s.OutputCount, s.WrittenCount, s.SkippedCount, s.Duration.Round(timeRound))
	}
	return w.Flush()
}

func runClean(cfg *config.Config, logger *slog.Logger) error {
	policy, err := cfg.Cache.Policy()
	if err != nil {
		return err
	}
	cache := buildcache.New(storage.NewFSStore(), cfg.Cache.Directory, policy).WithLogger(logger)
	if err := cache.Clear(); err != nil {
		return err
	}
	fmt.Printf("Cache markers cleared from %s\n", cfg.Cache.Directory)
	return nil
}

func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Daemon == nil {
		return errors.ConfigurationError("daemon section missing from configuration")
	}
	d, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}
	return d.Start(ctx)
}

// newExportService assembles the CLI export service. When history is
// enabled the pass is recorded in the same store the daemon appends to.
func newExportService(cfg *config.Config, logger *slog.Logger) (export.ExportService, func(), error) {
	svc := export.NewExportService().WithLogger(logger)
	if cfg.History == nil || !cfg.History.Enabled {
		return svc, func() {}, nil
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return nil, nil, err
	}
	svc = svc.WithEventStore(store)
	return svc, func() { _ = store.Close() }, nil
}

// applyOnly overrides the configured type restriction with the CLI flag.
func applyOnly(cfg *config.Config, only string) error {
	if only == "" {
		return nil
	}
	if t := asset.TypeFromName(only); t != asset.Stylesheet && t != asset.Script {
		return errors.ValidationFailed("--only", fmt.Sprintf("unknown content type %q (expected css or js)", only))
	}
	cfg.Build.Only = only
	return nil
}

// seedsFromRefs converts extracted page references into export seeds. Page
// order is preserved through registry insertion order; ranks stay 0 so
// configured sources and seeds interleave by inclusion.
func seedsFromRefs(refs []*htmlscan.Reference, pageDir, webRoot string) []export.Seed {
	seeds := make([]export.Seed, 0, len(refs))
	for _, ref := range refs {
		seed := export.Seed{Path: ref.LocalPath(pageDir, webRoot)}
		if ref.Media != "" {
			seed.Attrs = map[string]string{"media": ref.Media}
		}
		seeds = append(seeds, seed)
	}
	return seeds
}

func printResult(result *export.Result, refs bool) error {
	written, skipped := 0, 0
	for _, out := range result.Outputs {
		if out.Action == pipeline.ActionBuilt {
			written++
		} else {
			skipped++
		}
	}
	fmt.Printf("Export %s: %d assets, %d outputs (%d written, %d skipped) in %s\n",
		result.Status, result.Assets, len(result.Outputs), written, skipped,
		result.Duration.Round(timeRound))

	if refs {
		fragment, err := render.Fragment(result.Exports)
		if err != nil {
			return err
		}
		fmt.Print(fragment)
	}
	return nil
}
