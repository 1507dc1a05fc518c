package metrics

import "time"

// CacheResult enumerates build-skip cache outcomes for counters.
type CacheResult string

const (
	CacheHit  CacheResult = "hit"
	CacheMiss CacheResult = "miss"
)

// SkipReason enumerates why an output write was skipped.
type SkipReason string

const (
	SkipCache    SkipReason = "cache"
	SkipExisting SkipReason = "existing"
)

// Recorder defines observability hooks for export and filter metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe for nil receivers when using the NoopRecorder (allowing
// optional injection).
type Recorder interface {
	ObserveExportDuration(d time.Duration)
	ObserveFilterDuration(filter string, d time.Duration)
	IncExportOutcome(outcome string) // outcome: success|failed
	IncCacheResult(filter string, result CacheResult)
	IncOutputWritten()
	IncOutputSkipped(reason SkipReason)
	SetAssetsExported(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveExportDuration(time.Duration)         {}
func (NoopRecorder) ObserveFilterDuration(string, time.Duration) {}
func (NoopRecorder) IncExportOutcome(string)                     {}
func (NoopRecorder) IncCacheResult(string, CacheResult)          {}
func (NoopRecorder) IncOutputWritten()                           {}
func (NoopRecorder) IncOutputSkipped(SkipReason)                 {}
func (NoopRecorder) SetAssetsExported(int)                       {}
