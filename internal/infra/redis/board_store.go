package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-rankings-service/internal/app"
)

// BoardStore is a Redis-aware implementation of app.BoardRepository.
// Boards and their subscribers stay in process; Redis carries a liveness key
// per watched event. The key is refreshed every ttl/2 while the board lives
// and deleted when its last subscriber leaves.
type BoardStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	boards map[string]*watchedBoard
}

type watchedBoard struct {
	board *app.Board
	stop  chan struct{}
}

func NewBoardStore(client *redis.Client, ttl time.Duration) *BoardStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BoardStore{
		client: client,
		ttl:    ttl,
		boards: make(map[string]*watchedBoard),
	}
}

func (s *BoardStore) Acquire(eventID string) *app.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.boards[eventID]
	if !ok {
		w = &watchedBoard{board: app.NewBoard(eventID), stop: make(chan struct{})}
		s.boards[eventID] = w
		// best-effort liveness marker
		_ = s.client.Set(context.Background(), s.key(eventID), "1", s.ttl).Err()
		go s.keepAlive(eventID, w.stop)
	}
	w.board.Retain()
	return w.board
}

func (s *BoardStore) Get(eventID string) (*app.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.boards[eventID]
	if !ok {
		return nil, false
	}
	return w.board, true
}

func (s *BoardStore) DeleteIfIdle(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.boards[eventID]
	if !ok || !w.board.IsIdle() {
		return
	}
	delete(s.boards, eventID)
	close(w.stop)
	_ = s.client.Del(context.Background(), s.key(eventID)).Err()
}

func (s *BoardStore) keepAlive(eventID string, stop <-chan struct{}) {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = s.client.Set(context.Background(), s.key(eventID), "1", s.ttl).Err()
		}
	}
}

func (s *BoardStore) key(eventID string) string {
	return "results:board:" + eventID
}
