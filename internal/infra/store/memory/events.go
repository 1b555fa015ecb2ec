package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bryanwahyu/judgeproxy/internal/domain/webhooks"
)

// EventStore implements webhooks.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]webhooks.Event
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]webhooks.Event)}
}

func (s *EventStore) Put(_ context.Context, e webhooks.Event) error {
	s.mu.Lock()
	s.events[e.ConversationID] = e
	s.mu.Unlock()
	return nil
}

func (s *EventStore) Get(_ context.Context, conversationID string) (webhooks.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[conversationID]
	return e, ok, nil
}

func (s *EventStore) List(_ context.Context) ([]webhooks.Event, error) {
	s.mu.RLock()
	out := make([]webhooks.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
