package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	exportDuration prom.Histogram
	filterDuration *prom.HistogramVec
	exportOutcome  *prom.CounterVec
	cacheResults   *prom.CounterVec
	outputsWritten prom.Counter
	outputsSkipped *prom.CounterVec
	assetsExported prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.exportDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "fileassets",
			Name:      "export_duration_seconds",
			Help:      "Total export pass duration",
			Buckets:   prom.DefBuckets,
		})
		pr.filterDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "fileassets",
			Name:      "filter_duration_seconds",
			Help:      "Duration of individual filter traversals",
			Buckets:   prom.DefBuckets,
		}, []string{"filter"})
		pr.exportOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fileassets",
			Name:      "export_outcomes_total",
			Help:      "Export outcomes by final status",
		}, []string{"outcome"})
		pr.cacheResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fileassets",
			Name:      "cache_results_total",
			Help:      "Build-skip cache decisions per filter",
		}, []string{"filter", "result"})
		pr.outputsWritten = prom.NewCounter(prom.CounterOpts{
			Namespace: "fileassets",
			Name:      "outputs_written_total",
			Help:      "Derived outputs written to the store",
		})
		pr.outputsSkipped = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fileassets",
			Name:      "outputs_skipped_total",
			Help:      "Derived output writes skipped, by reason",
		}, []string{"reason"})
		pr.assetsExported = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fileassets",
			Name:      "assets_exported",
			Help:      "Live resources in the last export",
		})
		reg.MustRegister(pr.exportDuration, pr.filterDuration, pr.exportOutcome, pr.cacheResults, pr.outputsWritten, pr.outputsSkipped, pr.assetsExported)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveExportDuration(d time.Duration) {
	if p == nil || p.exportDuration == nil {
		return
	}
	p.exportDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveFilterDuration(filter string, d time.Duration) {
	if p == nil || p.filterDuration == nil {
		return
	}
	p.filterDuration.WithLabelValues(filter).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncExportOutcome(outcome string) {
	if p == nil || p.exportOutcome == nil {
		return
	}
	p.exportOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncCacheResult(filter string, result CacheResult) {
	if p == nil || p.cacheResults == nil {
		return
	}
	p.cacheResults.WithLabelValues(filter, string(result)).Inc()
}

func (p *PrometheusRecorder) IncOutputWritten() {
	if p == nil || p.outputsWritten == nil {
		return
	}
	p.outputsWritten.Inc()
}

func (p *PrometheusRecorder) IncOutputSkipped(reason SkipReason) {
	if p == nil || p.outputsSkipped == nil {
		return
	}
	p.outputsSkipped.WithLabelValues(string(reason)).Inc()
}

func (p *PrometheusRecorder) SetAssetsExported(n int) {
	if p == nil || p.assetsExported == nil {
		return
	}
	p.assetsExported.Set(float64(n))
}
