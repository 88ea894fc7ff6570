package mocks

import (
	"context"
	"sync"

	"github.com/loghorn/loghorn/internal/domain"
)

// MockLogStore is a mock implementation of domain.LogStore for testing.
type MockLogStore struct {
	mu        sync.Mutex
	Batches   [][]domain.LogRecord
	InsertErr error
	// FailTimes makes the first N InsertBatch calls fail with InsertErr,
	// after which inserts succeed. Ignored when zero.
	FailTimes   int
	failures    int
	QueryResult []domain.LogRecord
	QueryTotal  uint64
	QueryErr    error
	LastFilter  domain.QueryFilter
}

func (m *MockLogStore) InsertBatch(ctx context.Context, records []domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil && (m.FailTimes == 0 || m.failures < m.FailTimes) {
		m.failures++
		return m.InsertErr
	}
	batch := make([]domain.LogRecord, len(records))
	copy(batch, records)
	m.Batches = append(m.Batches, batch)
	return nil
}

func (m *MockLogStore) Query(ctx context.Context, filter domain.QueryFilter) ([]domain.LogRecord, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastFilter = filter
	if m.QueryErr != nil {
		return nil, 0, m.QueryErr
	}
	return m.QueryResult, m.QueryTotal, nil
}

// InsertedRecords flattens all sunk batches in arrival order.
func (m *MockLogStore) InsertedRecords() []domain.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.LogRecord
	for _, b := range m.Batches {
		all = append(all, b...)
	}
	return all
}

// BatchCount returns the number of successful InsertBatch calls.
func (m *MockLogStore) BatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}

// MockTailPublisher is a mock implementation of domain.TailPublisher.
type MockTailPublisher struct {
	mu         sync.Mutex
	Published  []domain.LogRecord
	PublishErr error
}

func (m *MockTailPublisher) Publish(ctx context.Context, record domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, record)
	return nil
}

// PublishedCount returns the number of successfully published records.
func (m *MockTailPublisher) PublishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}
