package app

import (
	"testing"
	"time"

	"quiz-rankings-service/internal/domain"
)

func TestBoardIgnoresOlderSequence(t *testing.T) {
	board := newBoardWithClock("event-1", func() time.Time { return time.Unix(0, 0) })

	older := board.nextSeq()
	newer := board.nextSeq()

	if !board.commit(newer, domain.Standings{EventID: "event-1", CatalogCount: 2}) {
		t.Fatalf("expected newer commit to succeed")
	}
	if board.commit(older, domain.Standings{EventID: "event-1", CatalogCount: 1}) {
		t.Fatalf("expected older commit to be rejected")
	}
	current, ok := board.Snapshot()
	if !ok || current.CatalogCount != 2 {
		t.Fatalf("expected newer snapshot kept, got %+v", current)
	}
}

func TestBoardDropsOldestForSlowSubscribers(t *testing.T) {
	board := NewBoard("event-1")
	ch, cancel := board.subscribe()
	defer cancel()

	for i := 1; i <= 20; i++ {
		board.commit(board.nextSeq(), domain.Standings{CatalogCount: i})
	}

	var last domain.Standings
	for len(ch) > 0 {
		last = <-ch
	}
	if last.CatalogCount != 20 {
		t.Fatalf("expected latest snapshot delivered, got %d", last.CatalogCount)
	}
}

func TestBoardSubscribeLifecycle(t *testing.T) {
	board := NewBoard("event-1")
	if !board.IsIdle() {
		t.Fatalf("expected new board idle")
	}
	board.commit(board.nextSeq(), domain.Standings{CatalogCount: 3})

	ch, cancel := board.subscribe()
	if board.IsIdle() {
		t.Fatalf("expected subscriber registered")
	}
	if initial := <-ch; initial.CatalogCount != 3 {
		t.Fatalf("expected initial snapshot, got %+v", initial)
	}

	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after cancel")
	}
	if !board.IsIdle() {
		t.Fatalf("expected board idle after cancel")
	}
}

func TestBoardRetainKeepsBoardBusy(t *testing.T) {
	board := NewBoard("event-1")
	board.Retain()
	if board.IsIdle() {
		t.Fatalf("expected retained board busy")
	}
	board.Release()
	board.Release()
	if !board.IsIdle() {
		t.Fatalf("expected board idle after release")
	}
}
