package memory

import (
	"context"
	"sync"

	"mapin/internal/domain/event"
)

// EventStore keeps map events in memory.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]event.Event
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]event.Event)}
}

func (s *EventStore) CreateEvent(ctx context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (s *EventStore) EventByID(ctx context.Context, id string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, event.ErrNotFound
	}
	out := cloneEvent(ev)
	return &out, nil
}

func (s *EventStore) ListEvents(ctx context.Context) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]event.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, cloneEvent(ev))
	}
	return out, nil
}

func (s *EventStore) JoinEvent(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return event.ErrNotFound
	}
	for _, pid := range ev.ParticipantIDs {
		if pid == userID {
			return nil
		}
	}
	if ev.Capacity > 0 && len(ev.ParticipantIDs) >= ev.Capacity {
		return event.ErrFull
	}
	ev.ParticipantIDs = append(ev.ParticipantIDs, userID)
	s.events[id] = ev
	return nil
}

func (s *EventStore) LeaveEvent(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return event.ErrNotFound
	}
	ids := ev.ParticipantIDs[:0:0]
	for _, pid := range ev.ParticipantIDs {
		if pid != userID {
			ids = append(ids, pid)
		}
	}
	ev.ParticipantIDs = ids
	s.events[id] = ev
	return nil
}

func cloneEvent(ev event.Event) event.Event {
	ev.ParticipantIDs = append([]string(nil), ev.ParticipantIDs...)
	ev.Tags = append([]string(nil), ev.Tags...)
	ev.ImageURLs = append([]string(nil), ev.ImageURLs...)
	return ev
}

var _ event.Store = (*EventStore)(nil)
