package audit

import (
	"context"
	"time"
)

// AuditStore persists audit records.
// Interface owned by the domain per hexagonal architecture.
// Implementations handle batching and async writes.
type AuditStore interface {
	// Append stores audit records. Must be non-blocking from the
	// caller's perspective.
	Append(ctx context.Context, records ...Record) error

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// RecentSource exposes the most recent records for admin queries.
// Both store implementations keep a bounded in-memory ring buffer.
type RecentSource interface {
	// Recent returns up to n of the most recent records, newest first.
	Recent(n int) []Record
}

// Filter specifies query parameters for audit record queries.
type Filter struct {
	// StartTime is the beginning of the time range (zero = unbounded).
	StartTime time.Time
	// EndTime is the end of the time range (zero = unbounded).
	EndTime time.Time
	// Event filters by event name (optional).
	Event string
	// SessionID filters by session (optional).
	SessionID string
	// Limit is the maximum number of records to return (default 100,
	// max 100).
	Limit int
}
