package grievance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// ============================================================================
// Mocks
// ============================================================================

// MockMailRelay is a mock implementation of MailRelay
type MockMailRelay struct {
	mock.Mock
}

func (m *MockMailRelay) Relay(ctx context.Context, msg MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockDrafter is a mock implementation of Drafter
type MockDrafter struct {
	mock.Mock
}

func (m *MockDrafter) Draft(ctx context.Context, req DraftRequest) (*DraftContent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DraftContent), args.Error(1)
}

// MockAttachmentStore is a mock implementation of AttachmentStore
type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockAttachmentStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockAttachmentStore) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAttachmentStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockPromotionScheduler is a mock implementation of PromotionScheduler
type MockPromotionScheduler struct {
	mock.Mock
}

func (m *MockPromotionScheduler) SchedulePromotion(id uuid.UUID) {
	m.Called(id)
}

// ============================================================================
// Fakes
// ============================================================================

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// memIdempotency is an in-memory IdempotencyStore
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
	err  error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]struct{})}
}

func (s *memIdempotency) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *memIdempotency) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *memIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memIdempotency) Close() error { return nil }

// memRepo is an in-memory grievance.Repository with the same version guard
// and request id rules as the database implementation.
type memRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]grievance.Grievance
	saveErrs  []error
	saveCalls int
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]grievance.Grievance)}
}

// failNextSaves makes the next Save calls return errs in order
func (r *memRepo) failNextSaves(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErrs = append(r.saveErrs, errs...)
}

func (r *memRepo) get(id uuid.UUID) grievance.Grievance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memRepo) put(g *grievance.Grievance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	cp.ClearDomainEvents()
	r.rows[g.ID] = cp
}

func (r *memRepo) Create(_ context.Context, g *grievance.Grievance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if g.RequestID != "" {
		for _, row := range r.rows {
			if row.UserID == g.UserID && row.RequestID == g.RequestID && row.Delivery != grievance.DeliveryFailed {
				return shared.ErrAlreadyExists
			}
		}
	}
	cp := *g
	cp.ClearDomainEvents()
	r.rows[g.ID] = cp
	return nil
}

func (r *memRepo) Save(_ context.Context, g *grievance.Grievance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if len(r.saveErrs) > 0 {
		err := r.saveErrs[0]
		r.saveErrs = r.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	row, ok := r.rows[g.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if row.Version != g.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *g
	cp.ClearDomainEvents()
	r.rows[g.ID] = cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*grievance.Grievance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := row
	return &cp, nil
}

func (r *memRepo) FindByRequestID(_ context.Context, userID uuid.UUID, requestID string) (*grievance.Grievance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID && row.RequestID == requestID && row.Delivery != grievance.DeliveryFailed {
			cp := row
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRepo) FindByOwner(_ context.Context, userID uuid.UUID, filter grievance.ListFilter) ([]grievance.Grievance, error) {
	return r.list(func(g grievance.Grievance) bool { return g.UserID == userID }, filter, true), nil
}

func (r *memRepo) CountByOwner(_ context.Context, userID uuid.UUID, filter grievance.ListFilter) (int64, error) {
	return int64(len(r.list(func(g grievance.Grievance) bool { return g.UserID == userID }, filter, false))), nil
}

func (r *memRepo) FindAll(_ context.Context, filter grievance.ListFilter) ([]grievance.Grievance, error) {
	return r.list(func(grievance.Grievance) bool { return true }, filter, true), nil
}

func (r *memRepo) CountAll(_ context.Context, filter grievance.ListFilter) (int64, error) {
	return int64(len(r.list(func(grievance.Grievance) bool { return true }, filter, false))), nil
}

func (r *memRepo) FindPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]grievance.Grievance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []grievance.Grievance
	for _, row := range r.rows {
		if row.Delivery == grievance.DeliveryPending && row.CreatedAt.Before(cutoff) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) list(match func(grievance.Grievance) bool, filter grievance.ListFilter, paginate bool) []grievance.Grievance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []grievance.Grievance
	for _, row := range r.rows {
		if row.Delivery != grievance.DeliverySent || !match(row) {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		if s := strings.ToLower(filter.Search); s != "" &&
			!strings.Contains(strings.ToLower(row.Problem), s) && !strings.Contains(strings.ToLower(row.City), s) &&
			!strings.Contains(strings.ToLower(row.DetailedLocation), s) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if paginate && filter.PageSize > 0 {
		start := (filter.Page - 1) * filter.PageSize
		if start >= len(out) {
			return nil
		}
		end := start + filter.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out
}

var _ grievance.Repository = (*memRepo)(nil)
