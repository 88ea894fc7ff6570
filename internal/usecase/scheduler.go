package usecase

import (
	"context"
	"log/slog"
	"time"
)

// FlushScheduler is the single background loop that flushes partitions on
// age. It runs for the lifetime of the process; on shutdown it performs one
// final drain of every non-empty partition so no buffered records are lost.
type FlushScheduler struct {
	agg      *Aggregator
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewFlushScheduler creates a scheduler ticking every interval and flushing
// partitions older than maxAge.
func NewFlushScheduler(agg *Aggregator, interval, maxAge time.Duration, logger *slog.Logger) *FlushScheduler {
	return &FlushScheduler{
		agg:      agg,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.With("component", "flush_scheduler"),
	}
}

// Run blocks until ctx is cancelled. One partition's flush failure never
// stops the loop or the remaining partitions in the same tick.
func (s *FlushScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("flush scheduler started", "interval", s.interval, "max_age", s.maxAge)

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case <-ticker.C:
			s.flushExpired(ctx)
		}
	}
}

func (s *FlushScheduler) flushExpired(ctx context.Context) {
	for _, batch := range s.agg.ScanExpired(s.maxAge) {
		// FlushBatch requeues on failure; nothing more to do here.
		_ = s.agg.FlushBatch(ctx, batch, TriggerAge)
	}
}

// drain flushes everything left in the aggregator regardless of age. The
// parent context is already cancelled at this point, so writes run under a
// fresh background context bounded by the sink write timeout.
func (s *FlushScheduler) drain() {
	batches := s.agg.DrainAll()
	if len(batches) == 0 {
		s.logger.Info("flush scheduler stopped, nothing to drain")
		return
	}

	s.logger.Info("draining remaining partitions before shutdown", "partitions", len(batches))
	for _, batch := range batches {
		if err := s.agg.FlushBatch(context.Background(), batch, TriggerShutdown); err != nil {
			s.logger.Error("final drain failed for partition, records remain requeued in memory",
				"tenant_id", batch.Key.TenantID,
				"source_id", batch.Key.SourceID,
				"records", len(batch.Records),
			)
		}
	}
}
