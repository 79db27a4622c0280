package scoring

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for demo mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   []*Run
	scores map[string]map[string]*StoredScore // run_id -> wallet -> score

	// failNext injects an error for the next SaveRun call so tests can
	// verify that a failed run leaves nothing visible.
	failNext error
}

// NewMemoryStore creates an empty in-memory scoring store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]map[string]*StoredScore)}
}

// FailNext makes the next SaveRun return err without persisting anything.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *MemoryStore) SaveRun(ctx context.Context, run *Run, scores []*WalletScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	rows := make(map[string]*StoredScore, len(scores))
	for _, sc := range scores {
		rows[sc.Wallet] = &StoredScore{
			WalletScore: *sc,
			RunID:       run.ID,
			CreatedAt:   run.CreatedAt,
		}
	}

	cp := *run
	s.runs = append(s.runs, &cp)
	s.scores[run.ID] = rows
	return nil
}

func (s *MemoryStore) LatestRun(ctx context.Context) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return nil, ErrRunNotFound
	}
	cp := *s.runs[len(s.runs)-1]
	return &cp, nil
}

func (s *MemoryStore) RunByID(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRunNotFound
}

func (s *MemoryStore) TopScores(ctx context.Context, runID string, limit int) ([]*StoredScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.scores[runID]
	if !ok {
		return nil, ErrRunNotFound
	}

	out := make([]*StoredScore, 0, len(rows))
	for _, sc := range rows {
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Wallet < out[j].Wallet
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Score(ctx context.Context, runID, wallet string) (*StoredScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.scores[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	sc, ok := rows[wallet]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *sc
	return &cp, nil
}
