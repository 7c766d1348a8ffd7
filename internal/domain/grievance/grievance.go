package grievance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/shared"
)

// DefaultCity is used when the citizen leaves the city blank
const DefaultCity = "Vijayawada"

// Field limits
const (
	MaxProblemLength          = 2000
	MaxCityLength             = 100
	MaxMailBodyLength         = 20000
	MaxDetailedLocationLength = 500
	MaxRequestIDLength        = 64
)

// Attachment references a photo archived alongside the grievance
type Attachment struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Grievance is the aggregate root of the grievance context.
// Everything except Status is fixed at creation.
type Grievance struct {
	shared.BaseAggregateRoot
	UserID           uuid.UUID
	RequestID        string
	Problem          string
	City             string
	MailBody         string
	DetailedLocation string
	Coordinates      *Coordinates
	Attachments      []Attachment
	Delivery         DeliveryState
	DeliveryError    string
	DeliveredAt      *time.Time
	Status           Status
	StatusChangedBy  *uuid.UUID
	StatusChangedAt  *time.Time
}

// NewGrievanceInput carries the fields fixed at creation
type NewGrievanceInput struct {
	UserID           uuid.UUID
	RequestID        string
	Problem          string
	City             string
	MailBody         string
	DetailedLocation string
	Coordinates      *Coordinates
	Attachments      []Attachment
}

// NewGrievance creates a grievance reserved for delivery.
// It is not visible until MarkDelivered is called.
func NewGrievance(input NewGrievanceInput) (*Grievance, error) {
	if input.UserID == uuid.Nil {
		return nil, shared.NewValidationError("Owner cannot be empty")
	}

	problem := strings.TrimSpace(input.Problem)
	if problem == "" {
		return nil, shared.NewValidationError("Problem description cannot be empty")
	}
	if len(problem) > MaxProblemLength {
		return nil, shared.NewValidationError("Problem description is too long")
	}

	body := strings.TrimSpace(input.MailBody)
	if body == "" {
		return nil, shared.NewValidationError("Mail body missing")
	}
	if len(input.MailBody) > MaxMailBodyLength {
		return nil, shared.NewValidationError("Mail body is too long")
	}

	city := strings.TrimSpace(input.City)
	if city == "" {
		city = DefaultCity
	}
	if len(city) > MaxCityLength {
		return nil, shared.NewValidationError("City is too long")
	}

	location := strings.TrimSpace(input.DetailedLocation)
	if len(location) > MaxDetailedLocationLength {
		return nil, shared.NewValidationError("Detailed location is too long")
	}

	requestID := strings.TrimSpace(input.RequestID)
	if len(requestID) > MaxRequestIDLength {
		return nil, shared.NewValidationError("Request ID is too long")
	}

	g := &Grievance{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            input.UserID,
		RequestID:         requestID,
		Problem:           problem,
		City:              city,
		MailBody:          input.MailBody,
		DetailedLocation:  location,
		Coordinates:       input.Coordinates,
		Attachments:       input.Attachments,
		Delivery:          DeliveryPending,
		Status:            StatusPending,
	}
	return g, nil
}

// IsVisible reports whether the grievance may be shown to anyone
func (g *Grievance) IsVisible() bool {
	return g.Delivery == DeliverySent
}

// IsOwnedBy reports whether userID owns the grievance
func (g *Grievance) IsOwnedBy(userID uuid.UUID) bool {
	return g.UserID == userID
}

// MarkDelivered promotes a pending grievance after the relay succeeded
func (g *Grievance) MarkDelivered() error {
	if g.Delivery != DeliveryPending {
		return shared.NewDomainError(shared.CodeInvalidState,
			"Cannot mark delivered from delivery state: "+g.Delivery.String())
	}

	now := time.Now().UTC()
	g.Delivery = DeliverySent
	g.DeliveredAt = &now
	g.DeliveryError = ""
	g.UpdatedAt = now
	g.IncrementVersion()

	g.AddDomainEvent(NewGrievanceCreatedEvent(g))
	return nil
}

// MarkDeliveryFailed records a relay failure. The grievance stays invisible.
func (g *Grievance) MarkDeliveryFailed(reason string) error {
	if g.Delivery != DeliveryPending {
		return shared.NewDomainError(shared.CodeInvalidState,
			"Cannot mark delivery failed from delivery state: "+g.Delivery.String())
	}

	g.Delivery = DeliveryFailed
	g.DeliveryError = reason
	g.Touch()
	g.IncrementVersion()
	return nil
}

// ChangeStatus moves the grievance to target on behalf of actor.
// Without force the workflow table applies. Setting the current status
// again returns false and records nothing.
func (g *Grievance) ChangeStatus(target Status, actor uuid.UUID, force bool) (bool, error) {
	if !target.IsValid() {
		return false, shared.NewValidationError("Invalid status: " + string(target))
	}
	if !g.IsVisible() {
		return false, shared.NewDomainError(shared.CodeInvalidState,
			"Cannot change status of an undelivered grievance")
	}
	if g.Status == target {
		return false, nil
	}
	if !force && !g.Status.CanTransitionTo(target) {
		return false, shared.NewDomainError(CodeInvalidTransition,
			"Cannot change status from "+g.Status.String()+" to "+target.String())
	}

	old := g.Status
	now := time.Now().UTC()
	g.Status = target
	g.StatusChangedBy = &actor
	g.StatusChangedAt = &now
	g.UpdatedAt = now
	g.IncrementVersion()

	g.AddDomainEvent(NewGrievanceStatusChangedEvent(g, old, target, actor, force))
	return true, nil
}

// HasCoordinates reports whether a point was captured
func (g *Grievance) HasCoordinates() bool {
	return g.Coordinates != nil
}

// CodeInvalidTransition is returned when the workflow forbids a status change
const CodeInvalidTransition = "INVALID_TRANSITION"
