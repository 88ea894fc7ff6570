package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/loghorn/loghorn/internal/adapter/metrics"
	"github.com/loghorn/loghorn/internal/domain"
	"github.com/loghorn/loghorn/internal/domain/mocks"
)

// Prometheus collectors register against the default registry once per
// process, so every test in this package shares one metrics instance.
var testMetrics = metrics.NewPipelineMetrics()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id uint64, tenant, source string) domain.LogRecord {
	return domain.LogRecord{
		ID:          id,
		TenantID:    tenant,
		SourceID:    source,
		TimestampMs: uint64(time.Now().UnixMilli()),
		Body:        fmt.Sprintf("event %d", id),
	}
}

func TestAggregator_SizeTrigger(t *testing.T) {
	store := &mocks.MockLogStore{}
	agg := NewAggregator(store, testMetrics, testLogger(), 2, time.Second)
	key := domain.PartitionKey{TenantID: "T1", SourceID: "S1"}

	agg.Append(context.Background(), record(1, "T1", "S1"))
	agg.Append(context.Background(), record(2, "T1", "S1"))
	agg.Append(context.Background(), record(3, "T1", "S1"))

	if got := store.BatchCount(); got != 1 {
		t.Fatalf("expected exactly 1 sink call, got %d", got)
	}
	flushed := store.Batches[0]
	if len(flushed) != 2 || flushed[0].ID != 1 || flushed[1].ID != 2 {
		t.Errorf("expected first two records in insertion order, got %+v", flushed)
	}

	pending := agg.Pending(key)
	if len(pending) != 1 || pending[0].ID != 3 {
		t.Errorf("expected partition to hold exactly the third record, got %+v", pending)
	}
}

func TestAggregator_ScanExpired(t *testing.T) {
	t.Run("Old Partition Is Returned", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)

		agg.Append(context.Background(), record(1, "T1", "S1"))
		time.Sleep(5 * time.Millisecond)

		batches := agg.ScanExpired(time.Millisecond)
		if len(batches) != 1 {
			t.Fatalf("expected 1 expired batch, got %d", len(batches))
		}
		if len(batches[0].Records) != 1 || batches[0].Records[0].ID != 1 {
			t.Errorf("unexpected batch contents: %+v", batches[0].Records)
		}
		if pending := agg.Pending(batches[0].Key); pending != nil {
			t.Errorf("expected partition removed after detach, still holds %d records", len(pending))
		}
	})

	t.Run("Young Partition Is Not Returned", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)

		agg.Append(context.Background(), record(1, "T1", "S1"))

		if batches := agg.ScanExpired(time.Hour); len(batches) != 0 {
			t.Errorf("expected no expired batches, got %d", len(batches))
		}
	})

	t.Run("Multi Tenant Isolation", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)

		agg.Append(context.Background(), record(1, "T1", "S1"))
		agg.Append(context.Background(), record(2, "T2", "S1"))
		time.Sleep(5 * time.Millisecond)

		batches := agg.ScanExpired(time.Millisecond)
		if len(batches) != 2 {
			t.Fatalf("expected 2 independent batches, got %d", len(batches))
		}
		for _, b := range batches {
			if len(b.Records) != 1 {
				t.Errorf("expected 1 record for key %+v, got %d", b.Key, len(b.Records))
			}
			if b.Records[0].TenantID != b.Key.TenantID {
				t.Errorf("record for %+v landed in wrong batch", b.Key)
			}
		}
	})
}

func TestAggregator_Requeue(t *testing.T) {
	t.Run("Failed Flush Preserves Data", func(t *testing.T) {
		store := &mocks.MockLogStore{InsertErr: errors.New("store is down"), FailTimes: 1}
		agg := NewAggregator(store, testMetrics, testLogger(), 2, time.Second)
		key := domain.PartitionKey{TenantID: "T1", SourceID: "S1"}

		// Size trigger fires, the write fails once, the batch is requeued.
		agg.Append(context.Background(), record(1, "T1", "S1"))
		agg.Append(context.Background(), record(2, "T1", "S1"))

		if got := store.BatchCount(); got != 0 {
			t.Fatalf("expected no successful sink calls yet, got %d", got)
		}
		if pending := agg.Pending(key); len(pending) != 2 {
			t.Fatalf("expected 2 requeued records, got %d", len(pending))
		}

		// Retry via the age path succeeds.
		for _, batch := range agg.ScanExpired(0) {
			if err := agg.FlushBatch(context.Background(), batch, TriggerAge); err != nil {
				t.Fatalf("expected retry to succeed, got %v", err)
			}
		}

		inserted := store.InsertedRecords()
		if len(inserted) != 2 || inserted[0].ID != 1 || inserted[1].ID != 2 {
			t.Errorf("expected both records sunk in order, got %+v", inserted)
		}
	})

	t.Run("Requeue Prepends Before Newer Records", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
		key := domain.PartitionKey{TenantID: "T1", SourceID: "S1"}

		agg.Append(context.Background(), record(3, "T1", "S1"))
		agg.Requeue(key, []domain.LogRecord{record(1, "T1", "S1"), record(2, "T1", "S1")})

		pending := agg.Pending(key)
		if len(pending) != 3 {
			t.Fatalf("expected 3 pending records, got %d", len(pending))
		}
		for i, want := range []uint64{1, 2, 3} {
			if pending[i].ID != want {
				t.Errorf("position %d: expected id %d, got %d", i, want, pending[i].ID)
			}
		}
	})

	t.Run("Requeue Resets Age Window", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
		key := domain.PartitionKey{TenantID: "T1", SourceID: "S1"}

		agg.Requeue(key, []domain.LogRecord{record(1, "T1", "S1")})

		if batches := agg.ScanExpired(time.Hour); len(batches) != 0 {
			t.Errorf("requeued batch should not be expired immediately, got %d batches", len(batches))
		}
	})
}

// Concurrent size-triggered flushes and age scans racing on the same
// partitions must flush every record exactly once.
func TestAggregator_NoDoubleFlush(t *testing.T) {
	store := &mocks.MockLogStore{}
	agg := NewAggregator(store, testMetrics, testLogger(), 10, time.Second)

	const (
		writers          = 8
		recordsPerWriter = 500
	)

	var wg sync.WaitGroup
	stopScan := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stopScan:
				return
			default:
				for _, batch := range agg.ScanExpired(0) {
					_ = agg.FlushBatch(context.Background(), batch, TriggerAge)
				}
			}
		}
	}()

	var writerWg sync.WaitGroup
	for w := 0; w < writers; w++ {
		writerWg.Add(1)
		go func(w int) {
			defer writerWg.Done()
			tenant := fmt.Sprintf("T%d", w%4)
			for i := 0; i < recordsPerWriter; i++ {
				agg.Append(context.Background(), record(uint64(w*recordsPerWriter+i+1), tenant, "S1"))
			}
		}(w)
	}
	writerWg.Wait()
	close(stopScan)
	wg.Wait()

	// Drain whatever is left after the race.
	for _, batch := range agg.DrainAll() {
		_ = agg.FlushBatch(context.Background(), batch, TriggerShutdown)
	}

	seen := make(map[uint64]int)
	for _, rec := range store.InsertedRecords() {
		seen[rec.ID]++
	}

	total := writers * recordsPerWriter
	if len(seen) != total {
		t.Errorf("expected %d distinct records sunk, got %d", total, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("record %d flushed %d times", id, count)
		}
	}
}

func TestAggregator_DrainAll(t *testing.T) {
	store := &mocks.MockLogStore{}
	agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)

	agg.Append(context.Background(), record(1, "T1", "S1"))
	agg.Append(context.Background(), record(2, "T2", "S2"))

	batches := agg.DrainAll()
	if len(batches) != 2 {
		t.Fatalf("expected 2 drained batches, got %d", len(batches))
	}
	if again := agg.DrainAll(); len(again) != 0 {
		t.Errorf("expected aggregator empty after drain, got %d batches", len(again))
	}
}
