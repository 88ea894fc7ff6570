package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loghorn/loghorn/internal/adapter/metrics"
	"github.com/loghorn/loghorn/internal/domain"
)

// Flush trigger labels, reported on the batches_flushed metric.
const (
	TriggerSize     = "size"
	TriggerAge      = "age"
	TriggerShutdown = "shutdown"
)

// partition accumulates records for one tenant+source pair. A partition
// exists only while it holds at least one record; flushing removes it from
// the map entirely.
type partition struct {
	records     []domain.LogRecord
	firstSeenAt time.Time
}

// Aggregator owns the in-flight batches for all partitions. It is the only
// component in the pipeline with shared mutable state: the partition map,
// guarded by a single mutex. Detaching a batch (size trigger, age scan, or
// shutdown drain) happens atomically under the lock; the sink write always
// happens after the lock is released, so a slow store never stalls appends
// to other partitions.
type Aggregator struct {
	store        domain.LogStore
	metrics      *metrics.PipelineMetrics
	logger       *slog.Logger
	maxBatchSize int
	writeTimeout time.Duration

	mu         sync.Mutex
	partitions map[domain.PartitionKey]*partition
}

// NewAggregator creates an Aggregator flushing to the given store.
func NewAggregator(store domain.LogStore, m *metrics.PipelineMetrics, logger *slog.Logger, maxBatchSize int, writeTimeout time.Duration) *Aggregator {
	return &Aggregator{
		store:        store,
		metrics:      m,
		logger:       logger.With("component", "aggregator"),
		maxBatchSize: maxBatchSize,
		writeTimeout: writeTimeout,
		partitions:   make(map[domain.PartitionKey]*partition),
	}
}

// Append adds one record to its partition, creating the partition on first
// insert. When the partition reaches maxBatchSize the batch is detached
// under the lock and written to the sink synchronously on the calling
// goroutine. A failed write is requeued, never surfaced to the producer.
func (a *Aggregator) Append(ctx context.Context, record domain.LogRecord) {
	key := domain.PartitionKey{TenantID: record.TenantID, SourceID: record.SourceID}

	a.mu.Lock()
	p, ok := a.partitions[key]
	if !ok {
		p = &partition{firstSeenAt: time.Now()}
		a.partitions[key] = p
		a.metrics.OpenPartitions.Inc()
	}
	p.records = append(p.records, record)

	var detached []domain.LogRecord
	if len(p.records) >= a.maxBatchSize {
		detached = p.records
		delete(a.partitions, key)
		a.metrics.OpenPartitions.Dec()
	}
	a.mu.Unlock()

	if detached != nil {
		_ = a.FlushBatch(ctx, domain.Batch{Key: key, Records: detached}, TriggerSize)
	}
}

// ScanExpired detaches and returns every partition whose first record is at
// least maxAge old. The caller performs the sink writes.
func (a *Aggregator) ScanExpired(maxAge time.Duration) []domain.Batch {
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	var expired []domain.Batch
	for key, p := range a.partitions {
		if now.Sub(p.firstSeenAt) >= maxAge {
			expired = append(expired, domain.Batch{Key: key, Records: p.records})
			delete(a.partitions, key)
			a.metrics.OpenPartitions.Dec()
		}
	}
	return expired
}

// DrainAll detaches every non-empty partition regardless of age. Used for
// the final flush on graceful shutdown.
func (a *Aggregator) DrainAll() []domain.Batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	var all []domain.Batch
	for key, p := range a.partitions {
		all = append(all, domain.Batch{Key: key, Records: p.records})
		delete(a.partitions, key)
		a.metrics.OpenPartitions.Dec()
	}
	return all
}

// Requeue re-inserts records at the front of their partition after a failed
// sink write, preserving their original relative order, and resets the age
// window so the batch is not retried before the next scan.
func (a *Aggregator) Requeue(key domain.PartitionKey, records []domain.LogRecord) {
	if len(records) == 0 {
		return
	}

	a.mu.Lock()
	p, ok := a.partitions[key]
	if !ok {
		p = &partition{}
		a.partitions[key] = p
		a.metrics.OpenPartitions.Inc()
	}
	merged := make([]domain.LogRecord, 0, len(records)+len(p.records))
	merged = append(merged, records...)
	merged = append(merged, p.records...)
	p.records = merged
	p.firstSeenAt = time.Now()
	a.mu.Unlock()

	a.metrics.RecordsRequeued.Add(float64(len(records)))
}

// FlushBatch writes one detached batch to the store under the configured
// timeout. On failure the batch is requeued and the error returned; the
// records are never dropped.
func (a *Aggregator) FlushBatch(ctx context.Context, batch domain.Batch, trigger string) error {
	wctx, cancel := context.WithTimeout(ctx, a.writeTimeout)
	defer cancel()

	if err := a.store.InsertBatch(wctx, batch.Records); err != nil {
		a.metrics.FlushFailures.Inc()
		a.logger.Error("sink write failed, requeueing batch",
			"error", err,
			"tenant_id", batch.Key.TenantID,
			"source_id", batch.Key.SourceID,
			"records", len(batch.Records),
			"trigger", trigger,
		)
		a.Requeue(batch.Key, batch.Records)
		return err
	}

	a.metrics.BatchesFlushed.WithLabelValues(trigger).Inc()
	a.metrics.FlushBatchSize.Observe(float64(len(batch.Records)))
	a.logger.Debug("batch flushed",
		"tenant_id", batch.Key.TenantID,
		"source_id", batch.Key.SourceID,
		"records", len(batch.Records),
		"trigger", trigger,
	)
	return nil
}

// Pending returns a copy of the records currently buffered for a key, or nil
// if the partition does not exist. The partition map itself is never exposed.
func (a *Aggregator) Pending(key domain.PartitionKey) []domain.LogRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.partitions[key]
	if !ok {
		return nil
	}
	out := make([]domain.LogRecord, len(p.records))
	copy(out, p.records)
	return out
}
