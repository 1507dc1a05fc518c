package export

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/pipeline"
	"github.com/lejeunerenard/file-assets/internal/report"
	"github.com/lejeunerenard/file-assets/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source %s: %v", name, err)
	}
	return path
}

// testConfig builds a minimal single-source configuration with its own
// output and cache directories.
func testConfig(t *testing.T, srcDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Version: "1.0",
		Sources: []config.SourceConfig{{Path: srcDir}},
		Output: config.OutputConfig{
			Directory: t.TempDir(),
			BaseURL:   "/static",
		},
		Cache: config.CacheConfig{
			Directory: t.TempDir(),
			Checks:    []string{"digest"},
		},
		Scheme: config.SchemeConfig{
			OutputPath: config.RuleList{
				{Match: "default", Fields: map[string]string{"path": "assets/{type}/bundle.{digest}.{ext}"}},
			},
			Filters: config.RuleList{
				{Match: "default", Fields: map[string]string{"use": "concat"}},
			},
		},
	}
}

func TestStatus_IsSuccess(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusSuccess, true},
		{StatusFailed, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsSuccess(); got != tt.expected {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewExportService(t *testing.T) {
	svc := NewExportService()
	if svc == nil {
		t.Fatal("NewExportService() returned nil")
	}
	if svc.store == nil {
		t.Error("store should be set")
	}
	if svc.recorder == nil {
		t.Error("recorder should be set")
	}
	if svc.logger == nil {
		t.Error("logger should be set")
	}
}

func TestDefaultExportService_Run_NilConfig(t *testing.T) {
	svc := NewExportService().WithLogger(quietLogger())

	result, err := svc.Run(context.Background(), Request{Config: nil})

	if err == nil {
		t.Error("expected error for nil config")
	}
	if result.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, result.Status)
	}
}

func TestDefaultExportService_Run_EndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	writeSource(t, srcDir, "b.css", "p { margin: 0 }\n")
	cfg := testConfig(t, srcDir)

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Fatalf("expected status %s, got %s", StatusSuccess, result.Status)
	}
	if result.ExportID == "" {
		t.Error("expected a generated export ID")
	}
	if result.Assets != 2 {
		t.Errorf("expected 2 assets discovered, got %d", result.Assets)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(result.Outputs))
	}

	out := result.Outputs[0]
	if out.Action != pipeline.ActionBuilt {
		t.Errorf("expected action %s, got %s", pipeline.ActionBuilt, out.Action)
	}
	if out.Kind != "css/screen" {
		t.Errorf("expected kind css/screen, got %s", out.Kind)
	}
	if out.Members != 2 {
		t.Errorf("expected 2 members, got %d", out.Members)
	}

	content, err := os.ReadFile(out.Output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "color: red") || !strings.Contains(text, "margin: 0") {
		t.Errorf("combined output missing member content: %q", text)
	}
	if strings.Index(text, "color: red") > strings.Index(text, "margin: 0") {
		t.Error("members concatenated out of inclusion order")
	}

	if len(result.Exports) != 1 {
		t.Fatalf("expected 1 export, got %d", len(result.Exports))
	}
	if !result.Exports[0].Derived {
		t.Error("export should be the derived output")
	}
	if !strings.HasPrefix(result.Exports[0].URI, "/static/") {
		t.Errorf("export URI missing base URL prefix: %s", result.Exports[0].URI)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, ReportFilename))
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	rep, err := report.FromJSON(data)
	if err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if rep.ID != result.ExportID {
		t.Errorf("report ID %s does not match export ID %s", rep.ID, result.ExportID)
	}
	if rep.Status != report.StatusSuccess {
		t.Errorf("expected report status %s, got %s", report.StatusSuccess, rep.Status)
	}
	if rep.Totals.Assets != 2 || rep.Totals.Written != 1 || rep.Totals.Skipped != 0 {
		t.Errorf("unexpected totals: %+v", rep.Totals)
	}
	if len(rep.Plan.Filters) != 1 || rep.Plan.Filters[0] != "concat" {
		t.Errorf("unexpected plan filters: %v", rep.Plan.Filters)
	}
	if len(rep.Inputs.Sources) != 1 || rep.Inputs.Sources[0].Count != 2 {
		t.Errorf("unexpected input sources: %+v", rep.Inputs.Sources)
	}
	if rep.Inputs.ConfigHash == "" {
		t.Error("expected a config hash in the report")
	}
}

func TestDefaultExportService_Run_SecondPassSkipsCached(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	writeSource(t, srcDir, "b.css", "p { margin: 0 }\n")
	cfg := testConfig(t, srcDir)

	mem := storage.NewMemStore()
	svc := NewExportService().WithStore(mem).WithLogger(quietLogger())

	first, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Outputs[0].Action != pipeline.ActionBuilt {
		t.Fatalf("expected first pass to build, got %s", first.Outputs[0].Action)
	}

	mem.ResetCalls()
	second, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if second.Outputs[0].Action != pipeline.ActionSkippedCache {
		t.Errorf("expected action %s, got %s", pipeline.ActionSkippedCache, second.Outputs[0].Action)
	}
	if second.Report.Totals.Written != 0 || second.Report.Totals.Skipped != 1 {
		t.Errorf("unexpected second pass totals: %+v", second.Report.Totals)
	}
	// Only the report is rewritten when every output comes from cache.
	if calls := mem.Calls(); calls.Write != 1 {
		t.Errorf("expected 1 content write (the report), got %d", calls.Write)
	}
	if second.Outputs[0].Digest != first.Outputs[0].Digest {
		t.Errorf("digest changed across identical passes: %s vs %s",
			first.Outputs[0].Digest, second.Outputs[0].Digest)
	}
}

func TestDefaultExportService_Run_SourceChangeRebuilds(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)

	svc := NewExportService().WithStore(storage.NewMemStore()).WithLogger(quietLogger())

	first, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}

	writeSource(t, srcDir, "a.css", "body { color: blue }\n")

	second, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if second.Outputs[0].Action != pipeline.ActionBuilt {
		t.Errorf("expected changed source to rebuild, got %s", second.Outputs[0].Action)
	}
	if second.Outputs[0].Digest == first.Outputs[0].Digest {
		t.Error("expected a new aggregate digest after the content change")
	}
}

func TestDefaultExportService_Run_CleanedOutputRebuilds(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)
	cfg.Output.Clean = true
	cfg.Cache.Checks = []string{"digest", "age"}

	svc := NewExportService().WithLogger(quietLogger())

	first, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Outputs[0].Action != pipeline.ActionBuilt {
		t.Fatalf("expected first pass to build, got %s", first.Outputs[0].Action)
	}

	// The second pass wipes the output tree before filtering; cache
	// markers live under the cache directory and survive the wipe, so
	// they alone must not let the pass skip the rewrite.
	second, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Outputs[0].Action != pipeline.ActionBuilt {
		t.Errorf("expected cleaned output to rebuild, got %s", second.Outputs[0].Action)
	}
	if _, err := os.Stat(second.Outputs[0].Output); err != nil {
		t.Errorf("output missing after second pass: %v", err)
	}
}

func TestDefaultExportService_Run_MissingSource(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(context.Background(), Request{Config: cfg})

	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !errors.IsCategory(err, errors.CategorySourceMissing) {
		t.Errorf("expected source_missing category, got %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, result.Status)
	}
}

func TestDefaultExportService_Run_UnknownFilter(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)
	cfg.Scheme.Filters = config.RuleList{
		{Match: "default", Fields: map[string]string{"use": "gzip"}},
	}

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(context.Background(), Request{Config: cfg})

	if err == nil {
		t.Fatal("expected error for unknown filter name")
	}
	if !errors.IsCategory(err, errors.CategoryValidation) {
		t.Errorf("expected validation category, got %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, result.Status)
	}
}

func TestDefaultExportService_Run_OnlyRestrictsTypes(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	writeSource(t, srcDir, "app.js", "console.log('hi');\n")
	cfg := testConfig(t, srcDir)
	cfg.Build.Only = "js"

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(result.Outputs))
	}
	if result.Outputs[0].Kind != "js" {
		t.Errorf("expected kind js, got %s", result.Outputs[0].Kind)
	}
	for _, a := range result.Exports {
		if !a.Type.IsScript() {
			t.Errorf("export %s is not a script", a.URI)
		}
	}
	if result.Report.Plan.Only != "js" {
		t.Errorf("expected plan only js, got %q", result.Report.Plan.Only)
	}
}

func TestDefaultExportService_Run_SeedsAddVariantBucket(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	seedDir := t.TempDir()
	printCSS := writeSource(t, seedDir, "print.css", "@page { margin: 1cm }\n")

	cfg := testConfig(t, srcDir)
	cfg.Scheme.OutputAttrs = config.RuleList{
		{Match: "css/print", Fields: map[string]string{"media": "print"}},
	}

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(context.Background(), Request{
		Config: cfg,
		Seeds:  []Seed{{Path: printCSS, Attrs: map[string]string{"media": "print"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Assets != 2 {
		t.Errorf("expected 2 assets, got %d", result.Assets)
	}
	kinds := make(map[string]int)
	for _, out := range result.Outputs {
		kinds[out.Kind] = out.Members
	}
	if kinds["css/screen"] != 1 || kinds["css/print"] != 1 {
		t.Errorf("unexpected bucket layout: %v", kinds)
	}

	if len(result.Exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(result.Exports))
	}
	last := result.Exports[len(result.Exports)-1]
	if last.Attrs["media"] != "print" {
		t.Errorf("expected the print bundle to carry its media attribute, got %v", last.Attrs)
	}
}

func TestDefaultExportService_Run_CleanOutput(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)
	cfg.Output.Clean = true

	stale := filepath.Join(cfg.Output.Directory, "stale.css")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("writing stale file: %v", err)
	}

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file should have been removed by clean")
	}
	if _, err := os.Stat(result.Outputs[0].Output); err != nil {
		t.Errorf("expected fresh output on disk: %v", err)
	}
}

func TestDefaultExportService_Run_CancelledContext(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewExportService().WithLogger(quietLogger())
	result, err := svc.Run(ctx, Request{Config: cfg})

	if result.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, result.Status)
	}
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultExportService_Run_EmitsEvents(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)

	events, err := eventstore.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening event store: %v", err)
	}
	defer events.Close()
	projection := eventstore.NewExportHistoryProjection(events, 10)

	svc := NewExportService().
		WithEventStore(events).
		WithProjection(projection).
		WithLogger(quietLogger())

	result, err := svc.Run(context.Background(), Request{Config: cfg, Trigger: TriggerWatch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := events.GetByExportID(context.Background(), result.ExportID)
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	want := []string{
		eventstore.TypeExportStarted,
		eventstore.TypeFilterPassCompleted,
		eventstore.TypeExportCompleted,
	}
	if len(stored) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(stored))
	}
	for i, e := range stored {
		if e.Type() != want[i] {
			t.Errorf("event %d: expected type %s, got %s", i, want[i], e.Type())
		}
	}

	summary, ok := projection.GetExport(result.ExportID)
	if !ok {
		t.Fatal("projection has no summary for the export")
	}
	if summary.Status != "completed" {
		t.Errorf("expected completed status, got %s", summary.Status)
	}
	if summary.Trigger != TriggerWatch {
		t.Errorf("expected watch trigger, got %s", summary.Trigger)
	}
	if summary.OutputCount != 1 || summary.WrittenCount != 1 {
		t.Errorf("unexpected summary counts: outputs=%d written=%d",
			summary.OutputCount, summary.WrittenCount)
	}
}

func TestDefaultExportService_Run_FailureRecorded(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))

	events, err := eventstore.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening event store: %v", err)
	}
	defer events.Close()
	projection := eventstore.NewExportHistoryProjection(events, 10)

	svc := NewExportService().
		WithEventStore(events).
		WithProjection(projection).
		WithLogger(quietLogger())

	result, err := svc.Run(context.Background(), Request{Config: cfg})
	if err == nil {
		t.Fatal("expected error for missing source")
	}

	stored, err := events.GetByExportID(context.Background(), result.ExportID)
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected started and failed events, got %d", len(stored))
	}
	if stored[1].Type() != eventstore.TypeExportFailed {
		t.Errorf("expected %s, got %s", eventstore.TypeExportFailed, stored[1].Type())
	}

	summary, ok := projection.GetExport(result.ExportID)
	if !ok {
		t.Fatal("projection has no summary for the export")
	}
	if summary.Status != "failed" {
		t.Errorf("expected failed status, got %s", summary.Status)
	}
	if summary.ErrorStage != "discovery" {
		t.Errorf("expected discovery stage, got %s", summary.ErrorStage)
	}
}

func TestDefaultExportService_Run_PrunesHistory(t *testing.T) {
	srcDir := t.TempDir()
	writeSource(t, srcDir, "a.css", "body { color: red }\n")
	cfg := testConfig(t, srcDir)
	cfg.History = &config.HistoryConfig{Enabled: true, Keep: 1}

	events, err := eventstore.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening event store: %v", err)
	}
	defer events.Close()

	svc := NewExportService().WithEventStore(events).WithLogger(quietLogger())

	first, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := svc.Run(context.Background(), Request{Config: cfg})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	gone, err := events.GetByExportID(context.Background(), first.ExportID)
	if err != nil {
		t.Fatalf("reading pruned export: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("expected the first export's events pruned, got %d", len(gone))
	}
	kept, err := events.GetByExportID(context.Background(), second.ExportID)
	if err != nil {
		t.Fatalf("reading kept export: %v", err)
	}
	if len(kept) == 0 {
		t.Error("expected the latest export's events retained")
	}
}
