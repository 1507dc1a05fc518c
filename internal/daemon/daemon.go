// Package daemon runs continuous exports. It watches source trees, runs
// scheduled passes, serves the admin HTTP endpoints and announces completed
// exports on NATS.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/export"
	"github.com/lejeunerenard/file-assets/internal/logfields"
	"github.com/lejeunerenard/file-assets/internal/metrics"
	"github.com/lejeunerenard/file-assets/internal/report"
	"github.com/lejeunerenard/file-assets/internal/server"
)

// Daemon lifecycle states reported by Status.
const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateError    = "error"
)

const defaultHistorySize = 100

// Daemon coordinates continuous exports. Watch events, the cron schedule,
// the HTTP trigger endpoint and the startup pass all funnel into a single
// trigger channel so passes never overlap.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	exporter   export.ExportService
	watcher    *SourceWatcher
	scheduler  *Scheduler
	announcer  *Announcer
	httpServer *server.HTTPServer
	events     *eventstore.SQLiteStore
	projection *eventstore.ExportHistoryProjection

	status    atomic.Value
	startTime time.Time
	triggers  chan string
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu         sync.RWMutex
	lastReport *report.Report
}

// New assembles a daemon from configuration. Network facing pieces (the
// HTTP listener, the NATS connection) are deferred to Start so New stays
// usable offline.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.DaemonError("configuration required")
	}
	if cfg.Daemon == nil {
		return nil, errors.DaemonError("daemon section missing from configuration")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		triggers:  make(chan string, 1),
		stopChan:  make(chan struct{}),
	}
	d.status.Store(StateStopped)

	registry := prometheus.NewRegistry()
	exporter := export.NewExportService().
		WithRecorder(metrics.NewPrometheusRecorder(registry)).
		WithLogger(logger)

	if cfg.History != nil && cfg.History.Enabled {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to open history store").
				WithContext("path", cfg.History.Path)
		}
		keep := cfg.History.Keep
		if keep <= 0 {
			keep = defaultHistorySize
		}
		d.events = store
		d.projection = eventstore.NewExportHistoryProjection(store, keep)
		exporter = exporter.WithEventStore(store).WithProjection(d.projection)
	}
	d.exporter = exporter

	if cfg.Daemon.Watch.Enabled {
		debounce, err := cfg.Daemon.Watch.DebounceDuration()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid watch debounce").
				WithContext("debounce", cfg.Daemon.Watch.Debounce)
		}
		watcher, err := NewSourceWatcher(cfg.Sources, debounce, d.watchFire, logger)
		if err != nil {
			return nil, err
		}
		d.watcher = watcher
	}

	if cfg.Daemon.Sync.Schedule != "" {
		scheduler, err := NewScheduler(cfg.Daemon.Sync.Schedule, d.scheduleFire, logger)
		if err != nil {
			return nil, err
		}
		d.scheduler = scheduler
	}

	var metricsHandler http.Handler
	if cfg.Monitoring != nil && cfg.Monitoring.Metrics.Enabled {
		metricsHandler = metrics.HTTPHandler(registry)
	}
	d.httpServer = server.New(cfg, d, metricsHandler, logger)

	return d, nil
}

// Start brings all components up and then blocks processing triggers until
// the context is cancelled or Stop is called. An immediate startup pass
// brings the output tree up to date before any watch or schedule event.
func (d *Daemon) Start(ctx context.Context) error {
	d.status.Store(StateStarting)
	d.startTime = time.Now()
	d.logger.Info("daemon starting")

	if d.projection != nil {
		if err := d.projection.Rebuild(ctx); err != nil {
			d.logger.Warn("history rebuild failed", logfields.Error(err))
		}
	}

	if d.cfg.Daemon.NATS != nil {
		announcer, err := NewAnnouncer(d.cfg.Daemon.NATS, d.logger)
		if err != nil {
			d.status.Store(StateError)
			return err
		}
		d.announcer = announcer
	}

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			d.status.Store(StateError)
			return err
		}
	}

	if d.scheduler != nil {
		d.scheduler.Start()
	}

	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StateError)
		return err
	}

	d.status.Store(StateRunning)
	d.logger.Info("daemon running", slog.String("listen", d.cfg.Daemon.HTTP.Listen))

	d.TriggerExport(export.TriggerStartup)

	d.mainLoop(ctx)
	return nil
}

func (d *Daemon) mainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon context cancelled")
			return
		case <-d.stopChan:
			return
		case trigger := <-d.triggers:
			d.runExport(ctx, trigger)
		}
	}
}

func (d *Daemon) runExport(ctx context.Context, trigger string) {
	d.logger.Info("export pass starting", slog.String("trigger", trigger))

	result, err := d.exporter.Run(ctx, export.Request{Config: d.cfg, Trigger: trigger})
	if err != nil {
		d.logger.Error("export pass failed",
			slog.String("trigger", trigger), logfields.Error(err))
		return
	}

	d.mu.Lock()
	d.lastReport = result.Report
	d.mu.Unlock()

	if d.announcer != nil && result.Report != nil {
		if err := d.announcer.PublishReport(result.Report); err != nil {
			d.logger.Warn("report announcement failed", logfields.Error(err))
		}
	}
}

// Stop shuts components down in reverse start order. Safe to call more than
// once and from a different goroutine than Start.
func (d *Daemon) Stop() error {
	d.status.Store(StateStopping)
	d.logger.Info("daemon stopping")

	d.stopOnce.Do(func() {
		close(d.stopChan)
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(d.httpServer.Stop(shutdownCtx))
	if d.scheduler != nil {
		record(d.scheduler.Stop())
	}
	if d.watcher != nil {
		record(d.watcher.Stop())
	}
	if d.announcer != nil {
		d.announcer.Close()
	}
	if d.events != nil {
		record(d.events.Close())
	}

	d.status.Store(StateStopped)
	d.logger.Info("daemon stopped")
	return firstErr
}

// TriggerExport queues an export pass, returning false when one is already
// queued. A dropped trigger loses nothing: the queued pass reads the latest
// source state when it runs.
func (d *Daemon) TriggerExport(trigger string) bool {
	select {
	case d.triggers <- trigger:
		return true
	default:
		return false
	}
}

func (d *Daemon) watchFire(cause string) {
	d.logger.Debug("source change settled", slog.String("cause", cause))
	d.TriggerExport(export.TriggerWatch)
}

func (d *Daemon) scheduleFire(string) {
	d.TriggerExport(export.TriggerSchedule)
}

// Status reports the current lifecycle state.
func (d *Daemon) Status() string {
	return d.status.Load().(string)
}

// StartTime reports when the daemon started.
func (d *Daemon) StartTime() time.Time {
	return d.startTime
}

// History returns recent export summaries, newest first. Empty without a
// history store.
func (d *Daemon) History() []*eventstore.ExportSummary {
	if d.projection == nil {
		return nil
	}
	return d.projection.GetHistory()
}

// ActiveExport returns the summary of a currently running export, or nil.
func (d *Daemon) ActiveExport() *eventstore.ExportSummary {
	if d.projection == nil {
		return nil
	}
	return d.projection.GetActiveExport()
}

// LastReport returns the report of the most recent completed pass, or nil.
func (d *Daemon) LastReport() *report.Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastReport
}
