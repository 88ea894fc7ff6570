package domain

import "time"

// LogRecord is the canonical, fully-defaulted representation of one log event
// flowing through the pipeline. Every field is non-nil in the persisted form;
// strings may be empty except TenantID and SourceID, which always carry at
// least their sentinel values.
type LogRecord struct {
	ID                 uint64            `json:"id"`
	TenantID           string            `json:"tenant_id"`
	SourceID           string            `json:"source_id"`
	TimestampMs        uint64            `json:"timestamp_ms"`
	SeverityText       string            `json:"severity_text"`
	SeverityNumber     uint8             `json:"severity_number"`
	Body               string            `json:"body"`
	ResourceAttributes map[string]string `json:"resource_attributes"`
	LogAttributes      map[string]string `json:"log_attributes"`
	TraceID            string            `json:"trace_id"`
	SpanID             string            `json:"span_id"`
	Endpoint           string            `json:"endpoint"`
	ServiceName        string            `json:"service_name"`
	ServiceVersion     string            `json:"service_version"`
}

// Time returns the record's event time.
func (r LogRecord) Time() time.Time {
	return time.UnixMilli(int64(r.TimestampMs)).UTC()
}

// PartitionKey identifies the aggregation unit for one tenant+source pair.
type PartitionKey struct {
	TenantID string
	SourceID string
}

// Batch is a detached set of records for one partition, ready for the sink.
type Batch struct {
	Key     PartitionKey
	Records []LogRecord
}

// Sentinel partition values used when the wire record omits the tenant or
// source resource attributes.
const (
	DefaultTenantID = "default"
	DefaultSourceID = "unknown"
)
