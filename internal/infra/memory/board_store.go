package memory

import (
	"sync"

	"quiz-rankings-service/internal/app"
)

// BoardStore is an in-memory implementation of app.BoardRepository.
type BoardStore struct {
	mu     sync.RWMutex
	boards map[string]*app.Board
}

func NewBoardStore() *BoardStore {
	return &BoardStore{
		boards: make(map[string]*app.Board),
	}
}

func (s *BoardStore) Acquire(eventID string) *app.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[eventID]
	if !ok {
		board = app.NewBoard(eventID)
		s.boards[eventID] = board
	}
	board.Retain()
	return board
}

func (s *BoardStore) Get(eventID string) (*app.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[eventID]
	return board, ok
}

func (s *BoardStore) DeleteIfIdle(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[eventID]
	if !ok {
		return
	}
	if board.IsIdle() {
		delete(s.boards, eventID)
	}
}
