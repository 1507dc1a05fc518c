package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/report"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDaemon struct {
	status    string
	started   time.Time
	history   []*eventstore.ExportSummary
	active    *eventstore.ExportSummary
	report    *report.Report
	accept    bool
	triggered []string
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		status:  "running",
		started: time.Now().Add(-time.Minute),
		accept:  true,
	}
}

func (f *fakeDaemon) Status() string                          { return f.status }
func (f *fakeDaemon) StartTime() time.Time                    { return f.started }
func (f *fakeDaemon) History() []*eventstore.ExportSummary    { return f.history }
func (f *fakeDaemon) ActiveExport() *eventstore.ExportSummary { return f.active }
func (f *fakeDaemon) LastReport() *report.Report              { return f.report }

func (f *fakeDaemon) TriggerExport(reason string) bool {
	f.triggered = append(f.triggered, reason)
	return f.accept
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Output: config.OutputConfig{Directory: t.TempDir()},
		Daemon: &config.DaemonConfig{
			HTTP: config.HTTPConfig{Listen: "127.0.0.1:0"},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
	if resp.DaemonStatus != "running" {
		t.Errorf("expected daemon_status running, got %s", resp.DaemonStatus)
	}
	if resp.UptimeSeconds <= 0 {
		t.Errorf("expected positive uptime, got %f", resp.UptimeSeconds)
	}
}

func TestHandleHealth_DaemonDown(t *testing.T) {
	d := newFakeDaemon()
	d.status = "error"
	s := New(testConfig(t), d, nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleHealth_MethodNotAllowed(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleHealth_CustomPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitoring = &config.MonitoringConfig{
		Health: config.MonitoringHealth{Path: "/ping"},
	}
	s := New(cfg, newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on custom health path, got %d", rec.Code)
	}
}

func TestHandleReport_NoExportYet(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the first export, got %d", rec.Code)
	}
}

func TestHandleReport(t *testing.T) {
	d := newFakeDaemon()
	d.report = &report.Report{
		ID:     "exp-1",
		Status: "success",
		Totals: report.Totals{Assets: 3, Written: 2, Skipped: 1},
	}
	s := New(testConfig(t), d, nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rep report.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.ID != "exp-1" {
		t.Errorf("expected report id exp-1, got %s", rep.ID)
	}
	if rep.Totals.Written != 2 {
		t.Errorf("expected 2 written, got %d", rep.Totals.Written)
	}
}

func TestHandleTrigger(t *testing.T) {
	d := newFakeDaemon()
	s := New(testConfig(t), d, nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/export/trigger", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp triggerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode trigger response: %v", err)
	}
	if !resp.Triggered {
		t.Error("expected triggered true")
	}
	if len(d.triggered) != 1 || d.triggered[0] != "api" {
		t.Errorf("expected one api trigger, got %v", d.triggered)
	}
}

func TestHandleTrigger_AlreadyPending(t *testing.T) {
	d := newFakeDaemon()
	d.accept = false
	s := New(testConfig(t), d, nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/export/trigger", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp triggerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode trigger response: %v", err)
	}
	if resp.Triggered {
		t.Error("expected triggered false when a pass is pending")
	}
	if resp.Detail == "" {
		t.Error("expected a detail message")
	}
}

func TestHandleTrigger_GetRejected(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export/trigger", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})
	s := New(testConfig(t), newFakeDaemon(), handler, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "metrics" {
		t.Fatalf("unexpected metrics body: %q", rec.Body.String())
	}
}

func TestMetricsRoute_Disabled(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a metrics handler, got %d", rec.Code)
	}
}

func TestServeOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.HTTP.ServeOutput = true
	path := filepath.Join(cfg.Output.Directory, "bundle.css")
	if err := os.WriteFile(path, []byte("p { margin: 0 }"), 0o644); err != nil {
		t.Fatalf("write output file: %v", err)
	}
	s := New(cfg, newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bundle.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "margin") {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestServeOutput_Disabled(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bundle.css", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when output serving is off, got %d", rec.Code)
	}
}

func TestStart_RequiresDaemonConfig(t *testing.T) {
	s := New(&config.Config{}, newFakeDaemon(), nil, quietLogger())

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected an error without daemon configuration")
	}
}

func TestStartAndStop(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if s.Addr() == "" {
		t.Fatal("expected a bound address")
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStop_BeforeStart(t *testing.T) {
	s := New(testConfig(t), newFakeDaemon(), nil, quietLogger())

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start should be a no-op, got %v", err)
	}
}
