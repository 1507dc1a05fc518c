// Package report records what one export run did: which sources went in,
// which filters ran, and which outputs came out. Reports serialize to JSON
// for the output directory, the history store, and the daemon's status
// surface.
package report

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lejeunerenard/file-assets/internal/storage"
)

// Report statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Report represents a complete record of an export's inputs, plan, and
// outputs.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Revision  string    `json:"revision,omitempty"` // source tree HEAD when available
	Inputs    Inputs    `json:"inputs"`
	Plan      Plan      `json:"plan"`
	Outputs   []Output  `json:"outputs,omitempty"`
	Totals    Totals    `json:"totals"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
}

// Inputs captures all inputs to the export.
type Inputs struct {
	Sources    []SourceInput `json:"sources"`
	ConfigHash string        `json:"config_hash"`
}

// SourceInput records one configured source and how many resources it
// contributed.
type SourceInput struct {
	Path  string `json:"path"`
	Rank  int    `json:"rank,omitempty"`
	Count int    `json:"count"`
}

// Plan captures the export execution plan.
type Plan struct {
	Filters []string `json:"filters"`
	Only    string   `json:"only,omitempty"`
}

// Output records one combined resource an export produced or reused.
type Output struct {
	Filter  string `json:"filter"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	URI     string `json:"uri"`
	Members int    `json:"members"`
	Digest  string `json:"digest"`
	Action  string `json:"action"`
}

// Totals aggregates the export outcome.
type Totals struct {
	Assets  int `json:"assets"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// ToJSON serializes the report to JSON.
func (r *Report) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a report from JSON.
func FromJSON(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// Hash computes a deterministic hash of the report's inputs and plan. Two
// exports over identical inputs with an identical plan hash the same, which
// is how the history store recognizes repeat runs.
func (r *Report) Hash() (string, error) {
	hashInput := struct {
		Sources    []SourceInput `json:"sources"`
		ConfigHash string        `json:"config_hash"`
		Filters    []string      `json:"filters"`
		Only       string        `json:"only"`
	}{
		Sources:    r.Inputs.Sources,
		ConfigHash: r.Inputs.ConfigHash,
		Filters:    r.Plan.Filters,
		Only:       r.Plan.Only,
	}

	data, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Write persists the report through the store, atomically where the store
// supports it.
func (r *Report) Write(store storage.Store, path string) error {
	data, err := r.ToJSON()
	if err != nil {
		return err
	}
	if err := store.WriteFile(path, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
