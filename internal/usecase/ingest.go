package usecase

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/loghorn/loghorn/internal/adapter/metrics"
	"github.com/loghorn/loghorn/internal/domain"
)

// IngestUseCase feeds decoded records into the aggregator and fans them out
// to live-tail subscribers. It never rejects individual records: missing
// fields are defaulted upstream by the decoder.
type IngestUseCase struct {
	agg     *Aggregator
	tail    domain.TailPublisher
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewIngestUseCase creates an IngestUseCase. tail may be nil when live tail
// is not configured.
func NewIngestUseCase(agg *Aggregator, tail domain.TailPublisher, m *metrics.PipelineMetrics, logger *slog.Logger) *IngestUseCase {
	return &IngestUseCase{
		agg:     agg,
		tail:    tail,
		metrics: m,
		logger:  logger.With("component", "ingest"),
	}
}

// Ingest appends every record to its partition. Tail publishing is
// best-effort and never fails the ingestion path.
func (uc *IngestUseCase) Ingest(ctx context.Context, records []domain.LogRecord) {
	_, span := otel.Tracer("ingest-service").Start(ctx, "Ingest")
	defer span.End()

	for _, record := range records {
		uc.agg.Append(ctx, record)

		if uc.tail != nil {
			if err := uc.tail.Publish(ctx, record); err != nil {
				uc.metrics.TailPublishDrops.Inc()
				uc.logger.Debug("tail publish dropped", "error", err, "tenant_id", record.TenantID)
			}
		}
	}

	uc.metrics.RecordsIngested.Add(float64(len(records)))
}
