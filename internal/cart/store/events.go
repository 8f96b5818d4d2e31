package store

import "sync"

type EventKind string

const (
	EventLoaded          EventKind = "loaded"
	EventDiscarded       EventKind = "discarded"
	EventItemAdded       EventKind = "item_added"
	EventItemRemoved     EventKind = "item_removed"
	EventQuantityUpdated EventKind = "quantity_updated"
	EventCleared         EventKind = "cleared"
	EventVisibility      EventKind = "visibility_changed"
)

// Event is emitted after a change has been applied. Subscribers read fresh
// aggregates from the store; the event only says what happened.
type Event struct {
	Kind       EventKind
	CustomerID string
	ProductID  string
	ItemCount  int
	// Warning is set when persisting the change failed.
	Warning error
}

type subscribers struct {
	mu   sync.RWMutex
	next uint64
	fns  map[uint64]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) emit(e Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
