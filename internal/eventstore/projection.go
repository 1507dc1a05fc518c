package eventstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	exportStatusRunning   = "running"
	exportStatusCompleted = "completed"
	exportStatusFailed    = "failed"
)

// ExportSummary is a read model summarizing a completed or in-progress export.
type ExportSummary struct {
	ExportID     string        `json:"export_id"`
	Trigger      string        `json:"trigger,omitempty"`
	ConfigHash   string        `json:"config_hash,omitempty"`
	Status       string        `json:"status"` // "running", "completed", "failed"
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	OutputCount  int           `json:"output_count"`
	WrittenCount int           `json:"written_count"`
	SkippedCount int           `json:"skipped_count"`
	ReportHash   string        `json:"report_hash,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// ExportHistoryProjection maintains an in-memory view of export history,
// reconstructed from events stored in the event store.
type ExportHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	exports  map[string]*ExportSummary // exportID -> summary
	history  []*ExportSummary          // ordered by start time, newest first
	maxSize  int
	lastSync time.Time
}

// NewExportHistoryProjection creates a new projection backed by the given store.
func NewExportHistoryProjection(store Store, maxHistorySize int) *ExportHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &ExportHistoryProjection{
		store:   store,
		exports: make(map[string]*ExportSummary),
		history: make([]*ExportSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from the newest runs in the store,
// bounded by the projection size. This is typically called at startup.
func (p *ExportHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRecent(ctx, p.maxSize)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.exports = make(map[string]*ExportSummary)
	p.history = make([]*ExportSummary, 0, p.maxSize)

	for _, event := range events {
		p.applyEventLocked(event)
	}

	p.sortHistoryLocked()

	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any running exports.
	p.pruneExportsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
// This is used for real-time updates when events are emitted.
func (p *ExportHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *ExportHistoryProjection) applyEventLocked(event Event) {
	exportID := event.ExportID()
	if exportID == "" {
		return
	}

	summary, exists := p.exports[exportID]
	if !exists {
		summary = &ExportSummary{
			ExportID:  exportID,
			Status:    exportStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.exports[exportID] = summary
	}

	switch event.Type() {
	case TypeExportStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = exportStatusRunning
		var payload struct {
			Trigger    string `json:"trigger"`
			ConfigHash string `json:"config_hash"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Trigger = payload.Trigger
			summary.ConfigHash = payload.ConfigHash
		}

	case TypeFilterPassCompleted:
		summary.OutputCount++
		var payload struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Action == "built" {
				summary.WrittenCount++
			} else {
				summary.SkippedCount++
			}
		}

	case TypeExportCompleted:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = exportStatusCompleted
		var payload struct {
			Outputs    int    `json:"outputs"`
			Written    int    `json:"written"`
			Skipped    int    `json:"skipped"`
			ReportHash string `json:"report_hash"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.OutputCount = payload.Outputs
			summary.WrittenCount = payload.Written
			summary.SkippedCount = payload.Skipped
			summary.ReportHash = payload.ReportHash
		}
		p.addToHistoryLocked(summary)

	case TypeExportFailed:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = exportStatusFailed
		var payload struct {
			Stage string `json:"stage"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		p.addToHistoryLocked(summary)
	}
}

// addToHistoryLocked adds a finished export to history if not already present.
func (p *ExportHistoryProjection) addToHistoryLocked(summary *ExportSummary) {
	for _, h := range p.history {
		if h.ExportID == summary.ExportID {
			return
		}
	}

	p.history = append([]*ExportSummary{summary}, p.history...)

	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	p.pruneExportsLocked()
}

// pruneExportsLocked removes finished exports not present in the bounded
// history. It keeps any exports that are still marked as running.
// Caller must hold p.mu (write lock).
func (p *ExportHistoryProjection) pruneExportsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		if h != nil {
			keep[h.ExportID] = struct{}{}
		}
	}

	for id, summary := range p.exports {
		if summary != nil && summary.Status == exportStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.exports, id)
		}
	}
}

// sortHistoryLocked sorts history by start time, newest first.
func (p *ExportHistoryProjection) sortHistoryLocked() {
	// Simple insertion sort (history is usually small)
	for i := 1; i < len(p.history); i++ {
		for j := i; j > 0 && p.history[j].StartedAt.After(p.history[j-1].StartedAt); j-- {
			p.history[j], p.history[j-1] = p.history[j-1], p.history[j]
		}
	}
}

// GetHistory returns the export history, newest first.
func (p *ExportHistoryProjection) GetHistory() []*ExportSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*ExportSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetExport returns the summary for a specific export run.
func (p *ExportHistoryProjection) GetExport(exportID string) (*ExportSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.exports[exportID]
	if !exists {
		return nil, false
	}

	cp := *summary
	return &cp, true
}

// GetActiveExport returns a currently running export if any.
func (p *ExportHistoryProjection) GetActiveExport() *ExportSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, summary := range p.exports {
		if summary.Status == exportStatusRunning {
			cp := *summary
			return &cp
		}
	}
	return nil
}

// GetLastCompletedExport returns the most recently finished export
// (success or failure).
func (p *ExportHistoryProjection) GetLastCompletedExport() *ExportSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}

	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last synchronized.
func (p *ExportHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
