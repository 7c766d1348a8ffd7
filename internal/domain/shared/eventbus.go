package shared

import "context"

// EventHandler reacts to published events. A handler whose EventTypes is
// empty receives every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is the write side used by application services
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus fans published events out to subscribed handlers. Subscribe with
// no explicit types falls back to handler.EventTypes().
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
