package tx

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for demo mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]Transaction
	order  []string
	states map[string]*IngestionState

	// failNext injects a store error for the next InsertBatch call so
	// tests can exercise the retry path.
	failNext error
}

// NewMemoryStore creates an empty in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Transaction),
		states: make(map[string]*IngestionState),
	}
}

// FailNext makes the next InsertBatch return err instead of committing.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *MemoryStore) InsertBatch(ctx context.Context, consumer string, txs []Transaction) (*BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}

	res := &BatchResult{}
	for _, t := range txs {
		if _, ok := s.byID[t.TxID]; ok {
			res.Duplicates++
			continue
		}
		s.byID[t.TxID] = t
		s.order = append(s.order, t.TxID)
		res.InsertedIDs = append(res.InsertedIDs, t.TxID)
	}

	now := time.Now().UTC()
	st := s.stateLocked(consumer)
	st.TotalInserted += int64(len(res.InsertedIDs))
	st.LastError = ""
	st.LastBatchAt = &now
	st.UpdatedAt = now
	return res, nil
}

func (s *MemoryStore) RecordFailure(ctx context.Context, consumer string, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(consumer)
	st.LastError = cause
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) State(ctx context.Context, consumer string) (*IngestionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[consumer]
	if !ok {
		return &IngestionState{Consumer: consumer}, nil
	}
	cp := *st
	if st.LastBatchAt != nil {
		t := *st.LastBatchAt
		cp.LastBatchAt = &t
	}
	return &cp, nil
}

func (s *MemoryStore) All(ctx context.Context) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

func (s *MemoryStore) CountIngestedSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, t := range s.byID {
		if !t.IngestedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) stateLocked(consumer string) *IngestionState {
	st, ok := s.states[consumer]
	if !ok {
		st = &IngestionState{Consumer: consumer}
		s.states[consumer] = st
	}
	return st
}
