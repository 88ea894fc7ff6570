package domain

// Sort orders for query results, by event timestamp.
const (
	SortAscending  = "asc"
	SortDescending = "desc"
)

// Query limit bounds. A zero limit is replaced by DefaultQueryLimit.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 10000
)

// QueryFilter describes one read-side request against the log store.
// TenantID is the only required field; everything else narrows the result.
type QueryFilter struct {
	TenantID    string   `json:"tenant_id"`
	SourceID    string   `json:"source_id,omitempty"`
	StartTimeMs uint64   `json:"start_time_ms,omitempty"`
	EndTimeMs   uint64   `json:"end_time_ms,omitempty"`
	Severities  []string `json:"severities,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
	SortOrder   string   `json:"sort_order,omitempty"`
}

// QueryResult is the response for one query: the matched page of records plus
// the total match count independent of pagination.
type QueryResult struct {
	Records     []LogRecord `json:"records"`
	TotalCount  uint64      `json:"total_count"`
	HasMore     bool        `json:"has_more"`
	RequestID   string      `json:"request_id"`
	ExecutionMs int64       `json:"execution_ms"`
}
