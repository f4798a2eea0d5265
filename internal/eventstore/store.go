// Package eventstore keeps the bounded in-memory buffer of recent events.
// Insertion order is preserved; when the cap is exceeded the oldest entries
// are trimmed from the front.
package eventstore

import (
	"sync"

	"github.com/tify-app/emitter/internal/domain/event"
)

const DefaultCap = 200

type Store struct {
	mu    sync.Mutex
	cap   int
	order []string
	byID  map[string]event.Event
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		cap:  capacity,
		byID: make(map[string]event.Event),
	}
}

// Upsert inserts or merges ev by id. An incoming event carrying eventAt
// replaces a stored one without it; an incoming event lacking eventAt never
// overwrites a stored one that has it; in every other case the newer write
// wins. Position in the buffer is kept on update.
func (s *Store) Upsert(ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[ev.ID]
	if !ok {
		s.order = append(s.order, ev.ID)
		s.byID[ev.ID] = ev
		s.trim()
		return
	}

	newHas := ev.EventAt != nil && *ev.EventAt != ""
	prevHas := prev.EventAt != nil && *prev.EventAt != ""
	if !newHas && prevHas {
		return
	}
	s.byID[ev.ID] = ev
}

// Snapshot returns the buffered events in insertion order.
func (s *Store) Snapshot() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.Event, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len reports the number of buffered events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) trim() {
	if len(s.order) <= s.cap {
		return
	}
	drop := s.order[:len(s.order)-s.cap]
	for _, id := range drop {
		delete(s.byID, id)
	}
	s.order = append([]string(nil), s.order[len(s.order)-s.cap:]...)
}
