package domain

import (
	"context"
	"errors"
)

// ErrInvalidFilter is returned by the query path when a filter fails
// validation before reaching the store.
var ErrInvalidFilter = errors.New("invalid query filter")

// LogStore is the persistence boundary of the pipeline: a column-oriented
// store that accepts bulk inserts and serves filtered reads. Implementations
// do not retry failed writes; retry is the aggregator's responsibility.
type LogStore interface {
	// InsertBatch durably writes a completed batch. Any error means the
	// caller still owns the records and must requeue them.
	InsertBatch(ctx context.Context, records []LogRecord) error

	// Query executes a validated filter and returns the matching page of
	// records plus the total match count unbounded by limit/offset.
	Query(ctx context.Context, filter QueryFilter) ([]LogRecord, uint64, error)
}

// TailPublisher fans freshly ingested records out to live-tail subscribers.
// Publishing is best-effort; a failure never fails ingestion.
type TailPublisher interface {
	Publish(ctx context.Context, record LogRecord) error
}
