package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loghorn/loghorn/internal/domain"
	"github.com/loghorn/loghorn/internal/domain/mocks"
)

func TestIngestUseCase_Ingest(t *testing.T) {
	t.Run("Appends And Publishes", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		tail := &mocks.MockTailPublisher{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
		uc := NewIngestUseCase(agg, tail, testMetrics, testLogger())

		uc.Ingest(context.Background(), []domain.LogRecord{
			record(1, "T1", "S1"),
			record(2, "T1", "S2"),
		})

		if got := agg.Pending(domain.PartitionKey{TenantID: "T1", SourceID: "S1"}); len(got) != 1 {
			t.Errorf("expected 1 record buffered for S1, got %d", len(got))
		}
		if got := agg.Pending(domain.PartitionKey{TenantID: "T1", SourceID: "S2"}); len(got) != 1 {
			t.Errorf("expected 1 record buffered for S2, got %d", len(got))
		}
		if got := tail.PublishedCount(); got != 2 {
			t.Errorf("expected 2 records published to tail, got %d", got)
		}
	})

	t.Run("Tail Failure Does Not Fail Ingestion", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		tail := &mocks.MockTailPublisher{PublishErr: errors.New("redis is down")}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
		uc := NewIngestUseCase(agg, tail, testMetrics, testLogger())

		uc.Ingest(context.Background(), []domain.LogRecord{record(1, "T1", "S1")})

		if got := agg.Pending(domain.PartitionKey{TenantID: "T1", SourceID: "S1"}); len(got) != 1 {
			t.Errorf("expected record buffered despite tail failure, got %d", len(got))
		}
	})

	t.Run("Nil Tail Publisher", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
		uc := NewIngestUseCase(agg, nil, testMetrics, testLogger())

		uc.Ingest(context.Background(), []domain.LogRecord{record(1, "T1", "S1")})

		if got := agg.Pending(domain.PartitionKey{TenantID: "T1", SourceID: "S1"}); len(got) != 1 {
			t.Errorf("expected record buffered with no tail configured, got %d", len(got))
		}
	})
}
