// Package memory is an in-memory ledger used by tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"benta/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[int64]core.Transaction
	order []int64
}

func New() *Store {
	return &Store{items: make(map[int64]core.Transaction)}
}

// AppendTransaction stores the row and returns a synthetic reference.
// Re-appending an existing ID overwrites the stored row, matching how
// a sync retry behaves against the real ledger.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.items[t.ID] = t
	return fmt.Sprintf("mem:%d", t.ID), nil
}

func (s *Store) DeleteTransaction(_ context.Context, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, transactionID)
	for i, id := range s.order {
		if id == transactionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Transactions returns the stored rows in append order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}
