package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/loghorn/loghorn/internal/domain/mocks"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestFlushScheduler_AgeFlush(t *testing.T) {
	store := &mocks.MockLogStore{}
	agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
	sched := NewFlushScheduler(agg, 5*time.Millisecond, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	agg.Append(context.Background(), record(1, "T1", "S1"))

	waitFor(t, time.Second, func() bool { return store.BatchCount() == 1 })

	cancel()
	<-done

	inserted := store.InsertedRecords()
	if len(inserted) != 1 || inserted[0].ID != 1 {
		t.Errorf("expected the record flushed by age, got %+v", inserted)
	}
}

func TestFlushScheduler_DrainsOnShutdown(t *testing.T) {
	store := &mocks.MockLogStore{}
	agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
	// Age window far in the future: only the shutdown drain can flush.
	sched := NewFlushScheduler(agg, time.Millisecond, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	agg.Append(context.Background(), record(1, "T1", "S1"))
	agg.Append(context.Background(), record(2, "T2", "S1"))

	// Give the ticker a few cycles to prove age does not trigger.
	time.Sleep(20 * time.Millisecond)
	if got := store.BatchCount(); got != 0 {
		t.Fatalf("expected no flushes before shutdown, got %d", got)
	}

	cancel()
	<-done

	if got := len(store.InsertedRecords()); got != 2 {
		t.Errorf("expected both buffered records drained on shutdown, got %d", got)
	}
}

func TestFlushScheduler_ContinuesPastFailures(t *testing.T) {
	store := &mocks.MockLogStore{InsertErr: context.DeadlineExceeded, FailTimes: 1}
	agg := NewAggregator(store, testMetrics, testLogger(), 100, time.Second)
	sched := NewFlushScheduler(agg, 5*time.Millisecond, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	agg.Append(context.Background(), record(1, "T1", "S1"))

	// First flush fails and requeues; a later tick retries and succeeds.
	waitFor(t, time.Second, func() bool { return store.BatchCount() == 1 })

	cancel()
	<-done

	inserted := store.InsertedRecords()
	if len(inserted) != 1 || inserted[0].ID != 1 {
		t.Errorf("expected record to survive the failed flush, got %+v", inserted)
	}
}
