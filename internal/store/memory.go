package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scribehq.app/scribe/internal/model"
)

type memoryEntry struct {
	run     model.Run
	outcome *model.Outcome
}

// memoryStore is an in-memory RunStore for development and tests.
type memoryStore struct {
	mu   sync.RWMutex
	runs map[int64]memoryEntry
}

func NewMemoryStore() RunStore {
	return &memoryStore{runs: make(map[int64]memoryEntry)}
}

func (s *memoryStore) Create(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %d already exists", run.ID)
	}
	s.runs[run.ID] = memoryEntry{run: run}
	return nil
}

func (s *memoryStore) SaveOutcome(_ context.Context, run model.Run, outcome model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = memoryEntry{run: run, outcome: &outcome}
	return nil
}

func (s *memoryStore) GetOutcome(_ context.Context, runID int64) (model.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.runs[runID]
	if !ok || entry.outcome == nil {
		return model.Outcome{}, ErrNotFound
	}
	return *entry.outcome, nil
}

func (s *memoryStore) GetRun(_ context.Context, runID int64) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.runs[runID]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return entry.run, nil
}

func (s *memoryStore) ListRecent(_ context.Context, limit int32) ([]model.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var outcomes []model.Outcome
	for _, entry := range s.runs {
		if entry.outcome != nil {
			outcomes = append(outcomes, *entry.outcome)
		}
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].CreatedAt.After(outcomes[j].CreatedAt)
	})
	if int32(len(outcomes)) > limit {
		outcomes = outcomes[:limit]
	}
	return outcomes, nil
}
