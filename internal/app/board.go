package app

import (
	"sync"
	"sync/atomic"
	"time"

	"quiz-rankings-service/internal/domain"
)

// Board holds the latest committed standings of one event and fans them out
// to live subscribers.
//
// Every computation takes a sequence number before it starts fetching. A
// result is committed only if its sequence is newer than the committed one,
// so a slow computation never overwrites a fresher one.
type Board struct {
	id        string
	createdAt time.Time
	seq       atomic.Uint64

	mu          sync.RWMutex
	committed   uint64
	current     domain.Standings
	hasCurrent  bool
	holds       int
	subscribers map[chan domain.Standings]struct{}
}

// NewBoard is exported for infrastructure layers that keep boards.
func NewBoard(id string) *Board {
	return newBoardWithClock(id, time.Now)
}

func newBoardWithClock(id string, now func() time.Time) *Board {
	return &Board{
		id:          id,
		createdAt:   now(),
		subscribers: make(map[chan domain.Standings]struct{}),
	}
}

func (b *Board) nextSeq() uint64 {
	return b.seq.Add(1)
}

// commit stores standings computed under seq and broadcasts them. It reports
// false when a newer computation was already committed.
func (b *Board) commit(seq uint64, standings domain.Standings) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.committed {
		return false
	}
	b.committed = seq
	b.current = standings
	b.hasCurrent = true
	b.broadcastLocked(standings)
	return true
}

// Snapshot returns the committed standings, if any.
func (b *Board) Snapshot() (domain.Standings, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.hasCurrent
}

// IsIdle reports whether nobody is subscribed to or holding the board.
func (b *Board) IsIdle() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers) == 0 && b.holds == 0
}

// Retain keeps the board from counting as idle until Release. Board stores
// call it under their own lock when handing the board to a new subscriber.
func (b *Board) Retain() {
	b.mu.Lock()
	b.holds++
	b.mu.Unlock()
}

// Release undoes one Retain.
func (b *Board) Release() {
	b.mu.Lock()
	if b.holds > 0 {
		b.holds--
	}
	b.mu.Unlock()
}

func (b *Board) subscribe() (<-chan domain.Standings, func()) {
	ch := make(chan domain.Standings, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.hasCurrent {
		ch <- b.current
	}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Board) broadcastLocked(standings domain.Standings) {
	for ch := range b.subscribers {
		select {
		case ch <- standings:
		default:
			// Drop the oldest pending snapshot so slow readers never block a commit.
			select {
			case <-ch:
			default:
			}
			ch <- standings
		}
	}
}
