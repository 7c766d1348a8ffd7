package grievance

import (
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
)

// Application level failures
var (
	ErrDeliveryFailed = shared.NewDomainError(shared.CodeDeliveryFailed, "Mail failed")
	ErrUpdateFailed   = shared.NewDomainError(shared.CodeUpdateFailed, "Failed to update grievance status")
	ErrNotPrivileged  = shared.NewDomainError(shared.CodeForbidden, "Only administrators can do this")
	ErrNoAttachment   = shared.NewDomainError(shared.CodeNotFound, "Grievance has no archived attachment")
	ErrBodyMissing    = shared.NewValidationError("Mail body missing")

	ErrDuplicateSubmission = shared.NewDomainError(shared.CodeDuplicateSubmission,
		"This submission is already being processed")
)

// DeliveryError reports that the mail relay did not accept a grievance.
// It matches ErrDeliveryFailed under errors.Is and errors.As.
type DeliveryError struct {
	Cause error
	// State is the submission step the attempt ended in, empty outside a submission
	State grievance.SubmissionState
}

// NewDeliveryError wraps a transport failure
func NewDeliveryError(cause error) *DeliveryError {
	return &DeliveryError{Cause: cause}
}

func (e *DeliveryError) Error() string {
	if e.Cause == nil {
		return ErrDeliveryFailed.Message
	}
	return ErrDeliveryFailed.Message + ": " + e.Cause.Error()
}

// Unwrap returns the transport error
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Is matches ErrDeliveryFailed
func (e *DeliveryError) Is(target error) bool {
	return ErrDeliveryFailed.Is(target)
}

// As exposes the error as a *shared.DomainError for response mapping
func (e *DeliveryError) As(target any) bool {
	if t, ok := target.(**shared.DomainError); ok {
		*t = ErrDeliveryFailed
		return true
	}
	return false
}
