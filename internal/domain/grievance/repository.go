package grievance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize is the page size of an unqualified listing
const DefaultPageSize = 20

// ListFilter narrows and orders a listing. A zero PageSize disables paging.
// OrderBy and OrderDir are raw client input; repositories whitelist them.
type ListFilter struct {
	Status   *Status
	Search   string
	OrderBy  string
	OrderDir string
	Page     int
	PageSize int
}

// NewestFirst returns the first page of a listing ordered by creation time, newest first
func NewestFirst() ListFilter {
	return ListFilter{OrderBy: "created_at", OrderDir: "desc", Page: 1, PageSize: DefaultPageSize}
}

// Repository defines persistence operations for grievances.
// Finder methods other than FindByID and FindByRequestID only return
// delivered grievances.
type Repository interface {
	// Create inserts a new grievance
	Create(ctx context.Context, g *Grievance) error
	// Save persists delivery and status changes.
	// It fails with shared.ErrConcurrencyConflict if the stored version moved on.
	Save(ctx context.Context, g *Grievance) error
	// FindByID finds a grievance by ID regardless of delivery state
	FindByID(ctx context.Context, id uuid.UUID) (*Grievance, error)
	// FindByRequestID finds the grievance an owner submitted with a request ID
	FindByRequestID(ctx context.Context, userID uuid.UUID, requestID string) (*Grievance, error)
	// FindByOwner lists delivered grievances owned by userID
	FindByOwner(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Grievance, error)
	// CountByOwner counts delivered grievances owned by userID
	CountByOwner(ctx context.Context, userID uuid.UUID, filter ListFilter) (int64, error)
	// FindAll lists all delivered grievances, newest first by default
	FindAll(ctx context.Context, filter ListFilter) ([]Grievance, error)
	// CountAll counts all delivered grievances
	CountAll(ctx context.Context, filter ListFilter) (int64, error)
	// FindPendingBefore lists grievances still waiting on the relay created before cutoff
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Grievance, error)
}
