package confirm

import (
	"context"
	"sync"

	ordersdb "bapflow/internal/db/orders"
)

// NewInMemoryOrderStore constructs an in-memory order store.
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		records: make(map[string]ordersdb.Record),
	}
}

// InMemoryOrderStore keeps order records in memory. Used as the fallback
// when Postgres is unavailable and by tests.
type InMemoryOrderStore struct {
	mu      sync.Mutex
	records map[string]ordersdb.Record
}

func (s *InMemoryOrderStore) GetByTransactionID(ctx context.Context, transactionID string) (ordersdb.Record, error) {
	if err := ctx.Err(); err != nil {
		return ordersdb.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[transactionID]
	if !ok {
		return ordersdb.Record{}, ordersdb.ErrOrderNotFound
	}
	return record, nil
}

func (s *InMemoryOrderStore) Upsert(ctx context.Context, transactionID string, record ordersdb.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.TransactionID = transactionID
	s.records[transactionID] = record
	return nil
}

// Seed inserts a record directly (for wiring and tests).
func (s *InMemoryOrderStore) Seed(record ordersdb.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.TransactionID] = record
}
