package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loghorn/loghorn/internal/domain"
)

// The log table is partitioned by month of event time, ordered on the
// pipeline's row identity, and expired after 90 days. The timestamp column
// is materialized from timestamp_ms so both representations stay in sync.
const logsSchema = `
CREATE TABLE IF NOT EXISTS logs (
    id                  UInt64,
    tenant_id           LowCardinality(String),
    source_id           LowCardinality(String),
    timestamp_ms        UInt64,
    timestamp           DateTime64(3) MATERIALIZED fromUnixTimestamp64Milli(timestamp_ms),
    severity_text       LowCardinality(String),
    severity_number     UInt8,
    body                String,
    resource_attributes Map(String, String),
    log_attributes      Map(String, String),
    trace_id            String,
    span_id             String,
    endpoint            String,
    service_name        LowCardinality(String),
    service_version     String,
    ingested_at         DateTime DEFAULT now()
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(timestamp)
ORDER BY (tenant_id, source_id, timestamp_ms, id)
TTL toDateTime(timestamp) + INTERVAL 90 DAY
`

const insertColumns = `id, tenant_id, source_id, timestamp_ms, severity_text, severity_number, body,
	resource_attributes, log_attributes, trace_id, span_id, endpoint, service_name, service_version`

// Options carries the connection parameters for the store.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	UseTLS   bool
}

// Connect opens a native-protocol connection and verifies it with a ping.
func Connect(ctx context.Context, opts Options) (driver.Conn, error) {
	chOpts := &clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	}
	if opts.UseTLS {
		chOpts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return conn, nil
}

// LogRepository implements domain.LogStore against ClickHouse. Writes are
// bulk-only; the repository never retries internally, failures propagate to
// the aggregator which owns the requeue policy.
type LogRepository struct {
	conn   driver.Conn
	logger *slog.Logger
}

// NewLogRepository creates a ClickHouse-backed log store.
func NewLogRepository(conn driver.Conn, logger *slog.Logger) *LogRepository {
	return &LogRepository{conn: conn, logger: logger.With("component", "clickhouse_repository")}
}

// Migrate creates the log table if it does not exist.
func (r *LogRepository) Migrate(ctx context.Context) error {
	if err := r.conn.Exec(ctx, logsSchema); err != nil {
		return fmt.Errorf("create logs table: %w", err)
	}
	return nil
}

// InsertBatch appends all records to one native insert block and sends it.
func (r *LogRepository) InsertBatch(ctx context.Context, records []domain.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO logs ("+insertColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range records {
		err := batch.Append(
			rec.ID,
			rec.TenantID,
			rec.SourceID,
			rec.TimestampMs,
			rec.SeverityText,
			rec.SeverityNumber,
			rec.Body,
			rec.ResourceAttributes,
			rec.LogAttributes,
			rec.TraceID,
			rec.SpanID,
			rec.Endpoint,
			rec.ServiceName,
			rec.ServiceVersion,
		)
		if err != nil {
			return fmt.Errorf("append record %d to batch: %w", rec.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Query executes the filter as an ordered, bounded read plus an independent
// count of all matching rows.
func (r *LogRepository) Query(ctx context.Context, filter domain.QueryFilter) ([]domain.LogRecord, uint64, error) {
	where, args := buildPredicate(filter)

	direction := "DESC"
	if filter.SortOrder == domain.SortAscending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM logs
		WHERE %s
		ORDER BY timestamp_ms %s, id %s
		LIMIT %d OFFSET %d`,
		insertColumns, where, direction, direction, filter.Limit, filter.Offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var records []domain.LogRecord
	for rows.Next() {
		var rec domain.LogRecord
		err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.SourceID,
			&rec.TimestampMs,
			&rec.SeverityText,
			&rec.SeverityNumber,
			&rec.Body,
			&rec.ResourceAttributes,
			&rec.LogAttributes,
			&rec.TraceID,
			&rec.SpanID,
			&rec.Endpoint,
			&rec.ServiceName,
			&rec.ServiceVersion,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan log row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total uint64
	countQuery := "SELECT count() FROM logs WHERE " + where
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	return records, total, nil
}

// buildPredicate renders the filter into a WHERE clause with bind arguments.
// The tenant condition is always present.
func buildPredicate(filter domain.QueryFilter) (string, []any) {
	conds := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}

	if filter.SourceID != "" {
		conds = append(conds, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.StartTimeMs != 0 {
		conds = append(conds, "timestamp_ms >= ?")
		args = append(args, filter.StartTimeMs)
	}
	if filter.EndTimeMs != 0 {
		conds = append(conds, "timestamp_ms <= ?")
		args = append(args, filter.EndTimeMs)
	}
	if len(filter.Severities) > 0 {
		conds = append(conds, "severity_text IN (?)")
		args = append(args, filter.Severities)
	}
	if filter.SearchQuery != "" {
		conds = append(conds, "body ILIKE ?")
		args = append(args, "%"+filter.SearchQuery+"%")
	}
	if filter.Endpoint != "" {
		conds = append(conds, "endpoint = ?")
		args = append(args, filter.Endpoint)
	}

	return strings.Join(conds, " AND "), args
}
