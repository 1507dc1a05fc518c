// Package eventstore provides event sourcing primitives for export
// tracking: an append-only event log keyed by export ID, with a projection
// rebuilding run summaries from it.
package eventstore

import (
	"encoding/json"
	"time"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Event type names.
const (
	TypeExportStarted       = "ExportStarted"
	TypeFilterPassCompleted = "FilterPassCompleted"
	TypeExportCompleted     = "ExportCompleted"
	TypeExportFailed        = "ExportFailed"
)

// ExportStarted is emitted when an export run begins.
type ExportStarted struct {
	BaseEvent
	Trigger    string   `json:"trigger"` // cli, watch, schedule, startup
	ConfigHash string   `json:"config_hash"`
	Sources    []string `json:"sources"`
}

// NewExportStarted creates an ExportStarted event.
func NewExportStarted(exportID, trigger, configHash string, sources []string) (*ExportStarted, error) {
	payload, err := json.Marshal(map[string]any{
		"trigger":     trigger,
		"config_hash": configHash,
		"sources":     sources,
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to marshal ExportStarted payload").
			WithContext("export_id", exportID)
	}

	return &ExportStarted{
		BaseEvent: BaseEvent{
			EventExportID:  exportID,
			EventType:      TypeExportStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Trigger:    trigger,
		ConfigHash: configHash,
		Sources:    sources,
	}, nil
}

// FilterPassCompleted is emitted for every filter traversal that produced or
// reused an output.
type FilterPassCompleted struct {
	BaseEvent
	Filter   string `json:"filter"`
	Kind     string `json:"kind"`
	Output   string `json:"output"`
	Members  int    `json:"members"`
	Digest   string `json:"digest"`
	Action   string `json:"action"`
	Duration int64  `json:"duration_ms"`
}

// NewFilterPassCompleted creates a FilterPassCompleted event.
func NewFilterPassCompleted(exportID, filter, kind, output string, members int, digest, action string, duration time.Duration) (*FilterPassCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"filter":      filter,
		"kind":        kind,
		"output":      output,
		"members":     members,
		"digest":      digest,
		"action":      action,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to marshal FilterPassCompleted payload").
			WithContext("export_id", exportID).
			WithContext("filter", filter)
	}

	return &FilterPassCompleted{
		BaseEvent: BaseEvent{
			EventExportID:  exportID,
			EventType:      TypeFilterPassCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Filter:   filter,
		Kind:     kind,
		Output:   output,
		Members:  members,
		Digest:   digest,
		Action:   action,
		Duration: duration.Milliseconds(),
	}, nil
}

// ExportCompleted is emitted when an export run finishes successfully.
type ExportCompleted struct {
	BaseEvent
	Outputs    int    `json:"outputs"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	ReportHash string `json:"report_hash"`
	Duration   int64  `json:"duration_ms"`
}

// NewExportCompleted creates an ExportCompleted event.
func NewExportCompleted(exportID string, outputs, written, skipped int, reportHash string, duration time.Duration) (*ExportCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"outputs":     outputs,
		"written":     written,
		"skipped":     skipped,
		"report_hash": reportHash,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to marshal ExportCompleted payload").
			WithContext("export_id", exportID)
	}

	return &ExportCompleted{
		BaseEvent: BaseEvent{
			EventExportID:  exportID,
			EventType:      TypeExportCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Outputs:    outputs,
		Written:    written,
		Skipped:    skipped,
		ReportHash: reportHash,
		Duration:   duration.Milliseconds(),
	}, nil
}

// ExportFailed is emitted when an export run aborts.
type ExportFailed struct {
	BaseEvent
	Stage string `json:"stage"` // discovery, pipeline, report
	Error string `json:"error"`
}

// NewExportFailed creates an ExportFailed event.
func NewExportFailed(exportID, stage string, cause error) (*ExportFailed, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	payload, err := json.Marshal(map[string]any{
		"stage": stage,
		"error": message,
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to marshal ExportFailed payload").
			WithContext("export_id", exportID)
	}

	return &ExportFailed{
		BaseEvent: BaseEvent{
			EventExportID:  exportID,
			EventType:      TypeExportFailed,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Stage: stage,
		Error: message,
	}, nil
}
