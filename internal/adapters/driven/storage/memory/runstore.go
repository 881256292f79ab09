package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]storedRun
	seq  int
}

// storedRun remembers insertion order to break StartedAt ties.
type storedRun struct {
	run domain.RunSummary
	seq int
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]storedRun),
	}
}

// SaveRun stores or replaces a run summary.
func (s *RunStore) SaveRun(_ context.Context, run domain.RunSummary) error {
	if run.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		s.seq++
		stored.seq = s.seq
	}
	stored.run = run
	s.runs[run.ID] = stored
	return nil
}

// LastRun returns the most recently started run.
func (s *RunStore) LastRun(ctx context.Context) (*domain.RunSummary, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first; runs started at the same
// instant are ordered by when they were first saved. A limit <= 0 returns all.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	s.mu.RLock()
	stored := make([]storedRun, 0, len(s.runs))
	for _, r := range s.runs {
		stored = append(stored, r)
	}
	s.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.run.StartedAt.Equal(b.run.StartedAt) {
			return a.run.StartedAt.After(b.run.StartedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}
	result := make([]domain.RunSummary, len(stored))
	for i := range stored {
		result[i] = stored[i].run
	}
	return result, nil
}
