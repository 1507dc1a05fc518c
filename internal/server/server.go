// Package server exposes the daemon's HTTP surface: health and status
// endpoints, the latest export report, a manual trigger, Prometheus metrics
// and optional static serving of the output directory.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/logfields"
	"github.com/lejeunerenard/file-assets/internal/report"
)

// Daemon is the slice of daemon state the HTTP handlers need. The daemon
// package implements it; tests substitute a fake.
type Daemon interface {
	Status() string
	StartTime() time.Time
	History() []*eventstore.ExportSummary
	ActiveExport() *eventstore.ExportSummary
	LastReport() *report.Report
	TriggerExport(reason string) bool
}

// HTTPServer serves the daemon's admin endpoints.
type HTTPServer struct {
	cfg     *config.Config
	daemon  Daemon
	metrics http.Handler
	logger  *slog.Logger
	server  *http.Server
	addr    string
}

// New creates an HTTP server for the given daemon. metricsHandler may be nil
// to disable the metrics endpoint.
func New(cfg *config.Config, d Daemon, metricsHandler http.Handler, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		cfg:     cfg,
		daemon:  d,
		metrics: metricsHandler,
		logger:  logger,
	}
}

// Start binds the listen address and begins serving in the background.
// Binding happens synchronously so an occupied port fails Start instead of
// surfacing later in a goroutine log line.
func (s *HTTPServer) Start(ctx context.Context) error {
	if s.cfg == nil || s.cfg.Daemon == nil {
		return errors.DaemonError("http server requires daemon configuration")
	}

	addr := s.cfg.Daemon.HTTP.Listen
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to bind http listener").
			WithContext("listen", addr)
	}
	s.addr = listener.Addr().String()

	s.server = &http.Server{
		Handler:      Chain(s.routes(), Recovery(s.logger), Logging(s.logger)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", logfields.Error(err))
		}
	}()

	s.logger.Info("http server listening", slog.String("listen", s.addr))
	return nil
}

// Addr reports the bound listen address once Start has succeeded. Useful
// when the configured port is 0.
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Stop gracefully shuts the server down, waiting for in-flight requests up
// to the context deadline.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	healthPath := "/healthz"
	metricsPath := "/metrics"
	if s.cfg.Monitoring != nil {
		if p := s.cfg.Monitoring.Health.Path; p != "" {
			healthPath = p
		}
		if p := s.cfg.Monitoring.Metrics.Path; p != "" {
			metricsPath = p
		}
	}

	mux.HandleFunc(healthPath, s.handleHealth)
	if s.metrics != nil {
		mux.Handle(metricsPath, s.metrics)
	}
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/export/trigger", s.handleTrigger)

	// Serving the output directory gives a local preview of exported
	// bundles without a separate web server.
	if s.cfg.Daemon.HTTP.ServeOutput && s.cfg.Output.Directory != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.Output.Directory)))
	}

	return mux
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status        string    `json:"status"`
	DaemonStatus  string    `json:"daemon_status"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := "ok"
	daemonStatus := s.daemon.Status()
	code := http.StatusOK
	if daemonStatus == "error" || daemonStatus == "stopped" {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, healthResponse{
		Status:        status,
		DaemonStatus:  daemonStatus,
		UptimeSeconds: time.Since(s.daemon.StartTime()).Seconds(),
		Timestamp:     time.Now().UTC(),
	})
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rep := s.daemon.LastReport()
	if rep == nil {
		writeJSONError(w, http.StatusNotFound, "no export has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// triggerResponse acknowledges a manual export request.
type triggerResponse struct {
	Triggered bool   `json:"triggered"`
	Detail    string `json:"detail,omitempty"`
}

func (s *HTTPServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	accepted := s.daemon.TriggerExport("api")
	resp := triggerResponse{Triggered: accepted}
	if !accepted {
		resp.Detail = "an export is already pending"
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// writeJSON encodes v into a buffer first so a marshal failure can still
// produce a 500 instead of a half-written body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
