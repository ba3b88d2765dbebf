package memory

import (
	"context"
	"sync"

	"eventcheckin/internal/domain"
)

// EventRepository is an in-memory event lookup. Put seeds events.
type EventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
}

// NewEventRepository returns an empty EventRepository.
func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[string]*domain.Event)}
}

// Put stores a copy of ev, replacing any event with the same ID.
func (r *EventRepository) Put(ev *domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *ev
	r.events[ev.ID] = &c
}

func (r *EventRepository) GetByID(_ context.Context, id string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *ev
	return &c, nil
}
