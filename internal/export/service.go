// Package export provides the canonical export execution pipeline.
// All execution paths (CLI, daemon, tests) route through ExportService.
package export

import (
	"context"
	"time"

	"github.com/lejeunerenard/file-assets/internal/asset"
	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/pipeline"
	"github.com/lejeunerenard/file-assets/internal/report"
)

// ExportService is the canonical interface for executing asset exports.
// CLI and daemon are thin wrappers over this interface.
type ExportService interface {
	// Run executes a complete export pass: discover → group → filter →
	// write → report. Returns a Result with detailed outcomes and any
	// error encountered.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Export triggers, recorded in events and history.
const (
	TriggerCLI      = "cli"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerAPI      = "api"
)

// Request contains all inputs required to execute an export pass.
type Request struct {
	// Config is the loaded configuration for this export.
	Config *config.Config

	// Trigger records what initiated the pass. Defaults to TriggerCLI.
	Trigger string

	// Seeds are extra inclusions beyond the configured sources, e.g.
	// references extracted from an HTML page.
	Seeds []Seed
}

// Seed is one extra file to include into the pass.
type Seed struct {
	Path  string
	Rank  int
	Attrs map[string]string
}

// Result contains the outcome of an export execution.
type Result struct {
	// Status indicates the overall export outcome.
	Status Status

	// ExportID identifies this pass in events, history, and the report.
	ExportID string

	// Report is the full export report; nil when the pass failed before
	// report assembly.
	Report *report.Report

	// Outputs are the per-filter-pass build results.
	Outputs []pipeline.BuildResult

	// Exports is the final descriptor list in rank order, ready for
	// reference rendering.
	Exports []*asset.Asset

	// Assets is the count of discovered source descriptors.
	Assets int

	// StartTime is when the export started.
	StartTime time.Time

	// EndTime is when the export finished.
	EndTime time.Time

	// Duration is the total export execution time.
	Duration time.Duration
}

// Status represents the outcome of an export execution.
type Status string

const (
	// StatusSuccess indicates the export completed successfully.
	StatusSuccess Status = "success"

	// StatusFailed indicates the export encountered an error.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the export was cancelled.
	StatusCancelled Status = "cancelled"
)

// IsSuccess returns true if the export completed successfully.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}
