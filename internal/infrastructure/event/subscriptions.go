package event

import (
	"slices"
	"sync"

	"github.com/grievancenet/backend/internal/domain/shared"
)

type subscription struct {
	handler shared.EventHandler
	types   []string // empty matches every event
}

func (s subscription) matches(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// subscriptions is the bus's handler table, kept in subscription order
type subscriptions struct {
	mu   sync.RWMutex
	list []subscription
}

func (s *subscriptions) add(handler shared.EventHandler, eventTypes []string) {
	s.mu.Lock()
	s.list = append(s.list, subscription{handler: handler, types: slices.Clone(eventTypes)})
	s.mu.Unlock()
}

// remove drops every subscription of handler
func (s *subscriptions) remove(handler shared.EventHandler) {
	s.mu.Lock()
	s.list = slices.DeleteFunc(s.list, func(sub subscription) bool { return sub.handler == handler })
	s.mu.Unlock()
}

func (s *subscriptions) matching(eventType string) []shared.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []shared.EventHandler
	for _, sub := range s.list {
		if sub.matches(eventType) {
			out = append(out, sub.handler)
		}
	}
	return out
}
