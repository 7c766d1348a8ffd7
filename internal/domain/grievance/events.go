package grievance

import (
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/shared"
)

// AggregateTypeGrievance is the aggregate type name used in events
const AggregateTypeGrievance = "Grievance"

// Event type constants
const (
	EventTypeGrievanceCreated       = "GrievanceCreated"
	EventTypeGrievanceStatusChanged = "GrievanceStatusChanged"
)

// Snapshot is the public, serializable view of a grievance carried in events
// and pushed to live subscribers.
type Snapshot struct {
	ID               uuid.UUID    `json:"id"`
	UserID           uuid.UUID    `json:"user_id"`
	Problem          string       `json:"problem"`
	City             string       `json:"city"`
	MailBody         string       `json:"mail_body"`
	DetailedLocation string       `json:"detailed_location"`
	Latitude         string       `json:"latitude"`
	Longitude        string       `json:"longitude"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Status           Status       `json:"status"`
	Version          int          `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// SnapshotOf builds the public view of g
func SnapshotOf(g *Grievance) Snapshot {
	return Snapshot{
		ID:               g.ID,
		UserID:           g.UserID,
		Problem:          g.Problem,
		City:             g.City,
		MailBody:         g.MailBody,
		DetailedLocation: g.DetailedLocation,
		Latitude:         g.Coordinates.LatitudeString(),
		Longitude:        g.Coordinates.LongitudeString(),
		Attachments:      g.Attachments,
		Status:           g.Status,
		Version:          g.Version,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

// ChangeEvent is implemented by every grievance event that changes what
// live subscribers see.
type ChangeEvent interface {
	shared.DomainEvent
	OwnerID() uuid.UUID
	Current() Snapshot
}

// GrievanceCreatedEvent is published when a grievance becomes visible
type GrievanceCreatedEvent struct {
	shared.BaseDomainEvent
	Grievance Snapshot `json:"grievance"`
}

// NewGrievanceCreatedEvent creates a new GrievanceCreatedEvent
func NewGrievanceCreatedEvent(g *Grievance) *GrievanceCreatedEvent {
	return &GrievanceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGrievanceCreated, AggregateTypeGrievance, g.ID),
		Grievance:       SnapshotOf(g),
	}
}

// OwnerID returns the owner of the grievance
func (e *GrievanceCreatedEvent) OwnerID() uuid.UUID { return e.Grievance.UserID }

// Current returns the grievance as of the event
func (e *GrievanceCreatedEvent) Current() Snapshot { return e.Grievance }

// GrievanceStatusChangedEvent is published when an administrator changes the status
type GrievanceStatusChangedEvent struct {
	shared.BaseDomainEvent
	Grievance Snapshot  `json:"grievance"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	ChangedBy uuid.UUID `json:"changed_by"`
	Forced    bool      `json:"forced"`
}

// NewGrievanceStatusChangedEvent creates a new GrievanceStatusChangedEvent
func NewGrievanceStatusChangedEvent(g *Grievance, oldStatus, newStatus Status, changedBy uuid.UUID, forced bool) *GrievanceStatusChangedEvent {
	return &GrievanceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGrievanceStatusChanged, AggregateTypeGrievance, g.ID),
		Grievance:       SnapshotOf(g),
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
		ChangedBy:       changedBy,
		Forced:          forced,
	}
}

// OwnerID returns the owner of the grievance
func (e *GrievanceStatusChangedEvent) OwnerID() uuid.UUID { return e.Grievance.UserID }

// Current returns the grievance as of the event
func (e *GrievanceStatusChangedEvent) Current() Snapshot { return e.Grievance }

var (
	_ ChangeEvent = (*GrievanceCreatedEvent)(nil)
	_ ChangeEvent = (*GrievanceStatusChangedEvent)(nil)
)
