package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/loghorn/loghorn/internal/adapter/metrics"
	"github.com/loghorn/loghorn/internal/domain"
)

// QueryUseCase serves the read path: validated, filtered, paginated reads
// against the log store. It shares nothing with the write path beyond the
// store itself.
type QueryUseCase struct {
	store   domain.LogStore
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewQueryUseCase creates a QueryUseCase backed by the given store.
func NewQueryUseCase(store domain.LogStore, m *metrics.PipelineMetrics, logger *slog.Logger) *QueryUseCase {
	return &QueryUseCase{
		store:   store,
		metrics: m,
		logger:  logger.With("component", "query"),
	}
}

// Query validates the filter, executes it, and assembles the result page.
// Invalid filters are rejected before the store is touched; store errors
// propagate without retry.
func (uc *QueryUseCase) Query(ctx context.Context, filter domain.QueryFilter) (*domain.QueryResult, error) {
	ctx, span := otel.Tracer("query-service").Start(ctx, "Query")
	defer span.End()

	normalized, err := normalizeFilter(filter)
	if err != nil {
		uc.metrics.QueryRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := time.Now()
	records, total, err := uc.store.Query(ctx, normalized)
	elapsed := time.Since(start)
	uc.metrics.QueryDuration.Observe(elapsed.Seconds())

	if err != nil {
		uc.metrics.QueryRequests.WithLabelValues("error").Inc()
		uc.logger.Error("store query failed", "error", err, "tenant_id", normalized.TenantID)
		return nil, fmt.Errorf("query store: %w", err)
	}

	uc.metrics.QueryRequests.WithLabelValues("ok").Inc()
	return &domain.QueryResult{
		Records:     records,
		TotalCount:  total,
		HasMore:     uint64(normalized.Offset+len(records)) < total,
		RequestID:   uuid.NewString(),
		ExecutionMs: elapsed.Milliseconds(),
	}, nil
}

// normalizeFilter applies defaults and bounds, rejecting combinations the
// store should never see.
func normalizeFilter(f domain.QueryFilter) (domain.QueryFilter, error) {
	if f.TenantID == "" {
		return f, fmt.Errorf("%w: tenant_id is required", domain.ErrInvalidFilter)
	}
	if f.Offset < 0 {
		return f, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidFilter)
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("%w: limit must be >= 0", domain.ErrInvalidFilter)
	}
	if f.StartTimeMs != 0 && f.EndTimeMs != 0 && f.StartTimeMs > f.EndTimeMs {
		return f, fmt.Errorf("%w: start_time_ms is after end_time_ms", domain.ErrInvalidFilter)
	}

	switch f.SortOrder {
	case "":
		f.SortOrder = domain.SortDescending
	case domain.SortAscending, domain.SortDescending:
	default:
		return f, fmt.Errorf("%w: sort_order must be %q or %q", domain.ErrInvalidFilter, domain.SortAscending, domain.SortDescending)
	}

	if f.Limit == 0 {
		f.Limit = domain.DefaultQueryLimit
	}
	if f.Limit > domain.MaxQueryLimit {
		f.Limit = domain.MaxQueryLimit
	}
	return f, nil
}
