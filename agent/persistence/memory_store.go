package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryJournal is an in-memory implementation of Journal.
// Suitable for development and testing. Data is lost on restart.
type MemoryJournal struct {
	runs     map[string]*RunRecord
	attempts map[string][]*AttemptRecord
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryJournal creates a new in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		runs:     make(map[string]*RunRecord),
		attempts: make(map[string][]*AttemptRecord),
	}
}

// Close closes the store
func (s *MemoryJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryJournal) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryJournal) StartRun(ctx context.Context, run *RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("%w: run %s already exists", ErrInvalidInput, run.ID)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryJournal) RecordAttempt(ctx context.Context, attempt *AttemptRecord) error {
	if err := validateAttempt(attempt); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.runs[attempt.RunID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.attempts[attempt.RunID] {
		if existing.Ordinal == attempt.Ordinal {
			return fmt.Errorf("%w: attempt %d already recorded", ErrInvalidInput, attempt.Ordinal)
		}
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	cp := *attempt
	cp.ID = uint(len(s.attempts[attempt.RunID]) + 1)
	s.attempts[attempt.RunID] = append(s.attempts[attempt.RunID], &cp)
	s.runs[attempt.RunID].Attempts = len(s.attempts[attempt.RunID])
	return nil
}

func (s *MemoryJournal) FinishRun(ctx context.Context, runID string, update RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	run, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	run.State = update.State
	run.Reason = update.Reason
	run.Attempts = update.Attempts
	run.FinishedAt = &now
	return nil
}

func (s *MemoryJournal) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryJournal) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.State != "" && run.State != filter.State {
			continue
		}
		cp := *run
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *MemoryJournal) ListAttempts(ctx context.Context, runID string) ([]*AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}

	result := make([]*AttemptRecord, 0, len(s.attempts[runID]))
	for _, a := range s.attempts[runID] {
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ordinal < result[j].Ordinal })
	return result, nil
}
