package memory

import (
	"context"
	"sync"

	"quiz-rankings-service/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore.
type ResultStore struct {
	mu     sync.RWMutex
	events map[string]*eventResults
}

type eventResults struct {
	attempts  []domain.AttemptRecord
	questions []domain.QuestionResultRecord
}

func NewResultStore() *ResultStore {
	return &ResultStore{events: make(map[string]*eventResults)}
}

// AddSubmission allocates the attempt number and appends the attempt with its
// rows under one write lock, so concurrent submissions never share a number.
func (s *ResultStore) AddSubmission(_ context.Context, eventID string, rec domain.AttemptRecord, rows []domain.QuestionResultRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.eventLocked(eventID)
	if rec.Attempt == 0 {
		rec.Attempt = ev.nextAttempt(rec.Team, rec.Catalog)
	}
	ev.attempts = append(ev.attempts, cloneAttempt(rec))
	for _, row := range rows {
		row.Attempt = rec.Attempt
		ev.questions = append(ev.questions, row)
	}
	return rec.Attempt, nil
}

func (ev *eventResults) nextAttempt(team, catalog string) int {
	highest := 0
	for _, rec := range ev.attempts {
		if rec.Team == team && rec.Catalog == catalog && rec.Attempt > highest {
			highest = rec.Attempt
		}
	}
	return highest + 1
}

// MarkPuzzle keeps an earlier solve time if the attempt already has one.
func (s *ResultStore) MarkPuzzle(_ context.Context, eventID, team, catalog string, solvedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	latest := -1
	for i, rec := range ev.attempts {
		if rec.Team != team || (catalog != "" && rec.Catalog != catalog) {
			continue
		}
		if latest < 0 || rec.Attempt >= ev.attempts[latest].Attempt {
			latest = i
		}
	}
	if latest < 0 {
		return domain.ErrAttemptNotFound
	}
	if ev.attempts[latest].PuzzleSolveTimestamp == nil {
		ts := solvedAt
		ev.attempts[latest].PuzzleSolveTimestamp = &ts
	}
	return nil
}

func (s *ResultStore) Attempts(_ context.Context, eventID string) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return []domain.AttemptRecord{}, nil
	}
	out := make([]domain.AttemptRecord, len(ev.attempts))
	for i, rec := range ev.attempts {
		out[i] = cloneAttempt(rec)
	}
	return out, nil
}

func (s *ResultStore) QuestionResults(_ context.Context, eventID string) ([]domain.QuestionResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return []domain.QuestionResultRecord{}, nil
	}
	out := make([]domain.QuestionResultRecord, len(ev.questions))
	copy(out, ev.questions)
	return out, nil
}

func (s *ResultStore) Clear(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	return nil
}

func (s *ResultStore) eventLocked(eventID string) *eventResults {
	ev, ok := s.events[eventID]
	if !ok {
		ev = &eventResults{}
		s.events[eventID] = ev
	}
	return ev
}

// cloneAttempt copies the optional timestamps so callers never share pointers
// with the store.
func cloneAttempt(rec domain.AttemptRecord) domain.AttemptRecord {
	rec.FinishTimestamp = cloneInt64(rec.FinishTimestamp)
	rec.DurationSeconds = cloneInt64(rec.DurationSeconds)
	rec.PuzzleSolveTimestamp = cloneInt64(rec.PuzzleSolveTimestamp)
	return rec
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
