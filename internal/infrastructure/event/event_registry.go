package event

import (
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
)

// GrievanceEventTypes lists the events relayed between instances
var GrievanceEventTypes = []string{
	grievance.EventTypeGrievanceCreated,
	grievance.EventTypeGrievanceStatusChanged,
}

// RegisterGrievanceEvents teaches serializer how to decode GrievanceEventTypes
func RegisterGrievanceEvents(serializer *EventSerializer) {
	serializer.Register(grievance.EventTypeGrievanceCreated, func() shared.DomainEvent {
		return &grievance.GrievanceCreatedEvent{}
	})
	serializer.Register(grievance.EventTypeGrievanceStatusChanged, func() shared.DomainEvent {
		return &grievance.GrievanceStatusChangedEvent{}
	})
}
