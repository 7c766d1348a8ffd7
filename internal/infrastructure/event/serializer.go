package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/grievancenet/backend/internal/domain/shared"
)

// EventFactory returns a zero value of a concrete event, ready to decode into
type EventFactory func() shared.DomainEvent

// EventSerializer turns events into JSON for the relay and back. Decoding
// needs a factory per event type since the payload alone does not say which
// Go type to build.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]EventFactory
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: map[string]EventFactory{}}
}

// Register binds eventType to factory. A second registration replaces the first.
func (s *EventSerializer) Register(eventType string, factory EventFactory) {
	s.mu.Lock()
	s.factories[eventType] = factory
	s.mu.Unlock()
}

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize builds the event registered for eventType from data
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return event, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}
