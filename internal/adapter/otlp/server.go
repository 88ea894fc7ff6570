package otlp

import (
	"context"
	"log/slog"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"

	"github.com/loghorn/loghorn/internal/adapter/metrics"
	"github.com/loghorn/loghorn/internal/usecase"
)

// Server is the protocol-facing front door: the OTLP logs-export service.
// Payloads that fail protobuf decoding are rejected by the gRPC transport
// before this handler runs, so Export only ever sees well-formed requests.
type Server struct {
	collogspb.UnimplementedLogsServiceServer

	decoder *Decoder
	ingest  *usecase.IngestUseCase
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewServer creates the logs-export service handler.
func NewServer(decoder *Decoder, ingest *usecase.IngestUseCase, m *metrics.PipelineMetrics, logger *slog.Logger) *Server {
	return &Server{
		decoder: decoder,
		ingest:  ingest,
		metrics: m,
		logger:  logger.With("component", "otlp_server"),
	}
}

// Export decodes the request and feeds every record to the aggregator. The
// pipeline defaults missing fields instead of rejecting records, so the
// acknowledgement always reports zero rejected records and no partial
// success message.
func (s *Server) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	records := s.decoder.Decode(req)
	if len(records) > 0 {
		s.ingest.Ingest(ctx, records)
	}

	s.metrics.ExportRequests.WithLabelValues("ok").Inc()
	return &collogspb.ExportLogsServiceResponse{}, nil
}
