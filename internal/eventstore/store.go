package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, exportID, eventType string, payload []byte, metadata map[string]string) error

	// GetByExportID retrieves all events for a specific export run.
	GetByExportID(ctx context.Context, exportID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// GetRecent retrieves the events of the newest limit export runs,
	// in append order. Runs are ordered by their first event, so a
	// still-running export counts as the newest.
	GetRecent(ctx context.Context, limit int) ([]Event, error)

	// Prune drops the oldest export runs beyond keep, by start time.
	Prune(ctx context.Context, keep int) error

	// Close closes the store and releases resources.
	Close() error
}

// AppendEvent persists a constructed event through the store.
func AppendEvent(ctx context.Context, store Store, e Event) error {
	return store.Append(ctx, e.ExportID(), e.Type(), e.Payload(), e.Metadata())
}
