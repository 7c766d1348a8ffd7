package shared

// BaseAggregateRoot adds an optimistic-lock version and a buffer of events
// raised since the aggregate was loaded. Repositories persist the aggregate
// first; the caller then publishes PullDomainEvents.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	events  []DomainEvent
}

// NewBaseAggregateRoot starts a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion bumps the version once per persisted change
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent buffers event until the aggregate is saved
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// DomainEvents returns the buffered events without clearing them
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents drops the buffered events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}

// PullDomainEvents returns the buffered events and clears the buffer
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}
