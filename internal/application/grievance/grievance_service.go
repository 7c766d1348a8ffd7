package grievance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// maxSaveAttempts bounds the reload-and-retry loop of an unversioned status update
const maxSaveAttempts = 3

// ErrVersionMismatch is returned when expected_version no longer matches
var ErrVersionMismatch = shared.NewDomainError(shared.CodeConcurrencyConflict,
	"Grievance was changed by someone else, reload and try again")

// GrievanceService handles grievance reads and the administrator workflow
type GrievanceService struct {
	repo      grievance.Repository
	store     AttachmentStore
	publisher shared.EventPublisher
	metrics   *telemetry.GrievanceMetrics
	logger    *zap.Logger
}

// GrievanceServiceOption configures optional collaborators
type GrievanceServiceOption func(*GrievanceService)

// WithStatusMetrics counts applied status changes
func WithStatusMetrics(m *telemetry.GrievanceMetrics) GrievanceServiceOption {
	return func(s *GrievanceService) { s.metrics = m }
}

// NewGrievanceService creates a new GrievanceService. store may be nil.
func NewGrievanceService(
	repo grievance.Repository,
	store AttachmentStore,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...GrievanceServiceOption,
) *GrievanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GrievanceService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMine returns the caller's own delivered grievances
func (s *GrievanceService) ListMine(ctx context.Context, userID uuid.UUID, q ListQuery) (*shared.Paginated[GrievanceResponse], error) {
	filter := q.toFilter()

	items, err := s.repo.FindByOwner(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list grievances: %w", err)
	}
	total, err := s.repo.CountByOwner(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("count grievances: %w", err)
	}

	page := shared.NewPaginated(ToGrievanceResponses(items), total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListAll returns every delivered grievance. Administrators only.
func (s *GrievanceService) ListAll(ctx context.Context, actor Actor, q ListQuery) (*shared.Paginated[GrievanceResponse], error) {
	if !actor.Admin {
		return nil, ErrNotPrivileged
	}
	filter := q.toFilter()

	items, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list grievances: %w", err)
	}
	total, err := s.repo.CountAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count grievances: %w", err)
	}

	page := shared.NewPaginated(ToGrievanceResponses(items), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Get returns one grievance. Citizens only see their own; a grievance
// someone else owns is reported as not found.
func (s *GrievanceService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*GrievanceResponse, error) {
	g, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resp := ToGrievanceResponse(g)
	return &resp, nil
}

// UpdateStatus changes a grievance's status. Administrators only.
//
// With ExpectedVersion set, a stale version fails with a conflict. Without
// it, a concurrent write is resolved by reloading and applying the change
// again, so the last writer wins.
func (s *GrievanceService) UpdateStatus(ctx context.Context, actor Actor, input UpdateStatusInput) (*GrievanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "grievance", "update_status",
		telemetry.SpanAttrGrievanceID, input.ID.String(),
		telemetry.SpanAttrStatus, input.Status,
		telemetry.SpanAttrForced, input.Force,
	)
	defer span.End()

	resp, err := s.updateStatus(ctx, actor, input)
	telemetry.RecordError(span, err)
	return resp, err
}

func (s *GrievanceService) updateStatus(ctx context.Context, actor Actor, input UpdateStatusInput) (*GrievanceResponse, error) {
	if !actor.Admin {
		return nil, ErrNotPrivileged
	}
	target, ok := grievance.ParseStatus(input.Status)
	if !ok {
		return nil, shared.NewValidationError("Invalid status: " + input.Status)
	}

	log := s.logger.With(
		zap.String("grievance_id", input.ID.String()),
		zap.String("actor_id", actor.UserID.String()),
		zap.String("target_status", target.String()),
	)

	for attempt := 1; ; attempt++ {
		g, err := s.repo.FindByID(ctx, input.ID)
		if err != nil {
			return nil, err
		}
		if !g.IsVisible() {
			return nil, shared.ErrNotFound
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != g.Version {
			return nil, ErrVersionMismatch
		}

		from := g.Status
		changed, err := g.ChangeStatus(target, actor.UserID, input.Force)
		if err != nil {
			return nil, err
		}
		if !changed {
			resp := ToGrievanceResponse(g)
			return &resp, nil
		}

		err = s.repo.Save(ctx, g)
		if err == nil {
			if input.Force && !from.CanTransitionTo(target) {
				log.Warn("Grievance status forced outside workflow", zap.String("from_status", from.String()))
			} else {
				log.Info("Grievance status updated", zap.String("from_status", from.String()))
			}
			s.metrics.RecordStatusChange(ctx, from.String(), target.String(), input.Force)
			publishEvents(ctx, s.publisher, g, log)
			resp := ToGrievanceResponse(g)
			return &resp, nil
		}

		if errors.Is(err, shared.ErrConcurrencyConflict) {
			if input.ExpectedVersion != nil {
				return nil, ErrVersionMismatch
			}
			if attempt < maxSaveAttempts {
				log.Debug("Concurrent status update, retrying", zap.Int("attempt", attempt))
				continue
			}
		}
		log.Error("Failed to update grievance status", zap.Error(err))
		return nil, ErrUpdateFailed
	}
}

// AttachmentLink returns a presigned download link for the index-th archived photo
func (s *GrievanceService) AttachmentLink(ctx context.Context, actor Actor, id uuid.UUID, index int) (*AttachmentLink, error) {
	g, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if s.store == nil || !s.store.Enabled() || index < 0 || index >= len(g.Attachments) {
		return nil, ErrNoAttachment
	}

	a := g.Attachments[index]
	url, expires, err := s.store.DownloadURL(ctx, a.Key)
	if err != nil {
		return nil, fmt.Errorf("presign attachment: %w", err)
	}
	return &AttachmentLink{URL: url, Name: a.Name, ExpiresAt: expires.UTC().Truncate(time.Second)}, nil
}

func (s *GrievanceService) load(ctx context.Context, actor Actor, id uuid.UUID) (*grievance.Grievance, error) {
	g, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.IsVisible() {
		return nil, shared.ErrNotFound
	}
	if !actor.Admin && !g.IsOwnedBy(actor.UserID) {
		return nil, shared.ErrNotFound
	}
	return g, nil
}
