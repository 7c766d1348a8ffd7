package grievance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SubmissionConfig holds the limits of the submission flow
type SubmissionConfig struct {
	IdempotencyTTL     time.Duration
	MaxAttachments     int
	MaxAttachmentBytes int64
}

// DefaultSubmissionConfig returns the default limits
func DefaultSubmissionConfig() SubmissionConfig {
	return SubmissionConfig{
		IdempotencyTTL:     24 * time.Hour,
		MaxAttachments:     3,
		MaxAttachmentBytes: 10 << 20,
	}
}

// PromotionScheduler retries the promotion of a relayed grievance whose
// record could not be updated
type PromotionScheduler interface {
	SchedulePromotion(id uuid.UUID)
}

// SubmissionService runs the server side of the submission flow: reserve,
// relay, then promote.
type SubmissionService struct {
	repo        grievance.Repository
	relay       MailRelay
	store       AttachmentStore
	idempotency shared.IdempotencyStore
	publisher   shared.EventPublisher
	promoter    PromotionScheduler
	metrics     *telemetry.GrievanceMetrics
	config      SubmissionConfig
	logger      *zap.Logger
}

// SubmissionOption configures optional collaborators
type SubmissionOption func(*SubmissionService)

// WithAttachmentStore archives attachments in store
func WithAttachmentStore(store AttachmentStore) SubmissionOption {
	return func(s *SubmissionService) { s.store = store }
}

// WithIdempotencyStore claims request ids in store before relaying
func WithIdempotencyStore(store shared.IdempotencyStore) SubmissionOption {
	return func(s *SubmissionService) { s.idempotency = store }
}

// WithPromotionScheduler hands failed promotions to p
func WithPromotionScheduler(p PromotionScheduler) SubmissionOption {
	return func(s *SubmissionService) { s.promoter = p }
}

// WithSubmissionMetrics records submission and relay metrics
func WithSubmissionMetrics(m *telemetry.GrievanceMetrics) SubmissionOption {
	return func(s *SubmissionService) { s.metrics = m }
}

// NewSubmissionService creates a SubmissionService
func NewSubmissionService(
	repo grievance.Repository,
	relay MailRelay,
	publisher shared.EventPublisher,
	config SubmissionConfig,
	logger *zap.Logger,
	opts ...SubmissionOption,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SubmissionService{
		repo:      repo,
		relay:     relay,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit mails a grievance and records it. The record only becomes visible
// once the relay succeeded. A repeated request id returns the first
// submission without sending another mail.
func (s *SubmissionService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "submission", "submit",
		telemetry.SpanAttrUserID, input.UserID.String(),
		telemetry.SpanAttrAttachments, len(input.Files),
	)
	defer span.End()

	res, err := s.submit(ctx, input)
	switch {
	case err != nil:
		telemetry.RecordError(span, err)
		outcome := telemetry.OutcomeRejected
		if errors.Is(err, ErrDeliveryFailed) {
			outcome = telemetry.OutcomeFailed
		}
		s.metrics.RecordSubmission(ctx, outcome)
	case res.Replayed:
		s.metrics.RecordSubmission(ctx, telemetry.OutcomeReplayed)
	case !res.Visible:
		s.metrics.RecordSubmission(ctx, telemetry.OutcomeDeferred)
	default:
		telemetry.SetAttributes(span, telemetry.SpanAttrGrievanceID, res.Grievance.ID.String())
		s.metrics.RecordSubmission(ctx, telemetry.OutcomeSent)
	}
	return res, err
}

func (s *SubmissionService) submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	flow := grievance.ResumeSubmission(grievance.SubmissionLocatingAndEditing)

	if input.UserID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	if strings.TrimSpace(input.Problem) == "" {
		return nil, ErrProblemRequired
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrBodyMissing
	}
	coords, err := grievance.ParseCoordinates(input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}
	if err := s.validateFiles(input.Files); err != nil {
		return nil, err
	}
	requestID := strings.TrimSpace(input.RequestID)
	if len(requestID) > grievance.MaxRequestIDLength {
		return nil, shared.NewValidationError("Request ID is too long")
	}
	if err := flow.Advance(grievance.SubmissionSubmitting); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("user_id", input.UserID.String()))
	if requestID != "" {
		log = log.With(zap.String("submission_request_id", requestID))
	}

	claimKey := ""
	if requestID != "" {
		if res, err := s.replay(ctx, input.UserID, requestID); res != nil || err != nil {
			return res, err
		}
		key := input.UserID.String() + ":" + requestID
		claimed, err := s.claim(ctx, key, log)
		if err != nil {
			return nil, err
		}
		if !claimed {
			if res, err := s.replay(ctx, input.UserID, requestID); res != nil || err != nil {
				return res, err
			}
			return nil, ErrDuplicateSubmission
		}
		if s.idempotency != nil {
			claimKey = key
		}
	}

	g, err := grievance.NewGrievance(grievance.NewGrievanceInput{
		UserID:           input.UserID,
		RequestID:        requestID,
		Problem:          input.Problem,
		City:             input.City,
		MailBody:         input.Body,
		DetailedLocation: input.DetailedLocation,
		Coordinates:      coords,
	})
	if err != nil {
		s.release(ctx, claimKey, log)
		return nil, err
	}
	log = log.With(zap.String("grievance_id", g.ID.String()))
	g.Attachments = s.archive(ctx, g, input.Files, log)

	if err := s.repo.Create(ctx, g); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) && requestID != "" {
			if res, rerr := s.replay(ctx, input.UserID, requestID); res != nil || rerr != nil {
				return res, rerr
			}
			return nil, ErrDuplicateSubmission
		}
		s.release(ctx, claimKey, log)
		s.discardArchive(ctx, g, log)
		return nil, fmt.Errorf("reserve grievance: %w", err)
	}

	// The outcome is recorded even if the client goes away mid-relay.
	persistCtx := context.WithoutCancel(ctx)

	started := time.Now()
	err = s.relay.Relay(ctx, mailMessage(input.Body, input.DetailedLocation, input.Latitude, input.Longitude, input.Files))
	s.metrics.RecordRelay(ctx, time.Since(started), err == nil)
	if err != nil {
		s.recordFailure(persistCtx, g, err, log)
		s.release(persistCtx, claimKey, log)
		return nil, failSubmission(flow, err, log)
	}

	if err := g.MarkDelivered(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(persistCtx, g); err != nil {
		g.ClearDomainEvents()
		log.Error("Grievance relayed but promotion failed, scheduling retry", zap.Error(err))
		if s.promoter != nil {
			s.promoter.SchedulePromotion(g.ID)
		}
		_ = flow.Advance(grievance.SubmissionSubmitted)
		return &SubmitResult{Grievance: ToGrievanceResponse(g), State: flow.State()}, nil
	}
	publishEvents(persistCtx, s.publisher, g, log)

	_ = flow.Advance(grievance.SubmissionSubmitted)
	log.Info("Grievance submitted", zap.Int("attachments", len(input.Files)))
	return &SubmitResult{
		Grievance: ToGrievanceResponse(g),
		State:     flow.State(),
		Visible:   true,
	}, nil
}

// SendMail relays a report without recording a grievance. It serves the
// unauthenticated compatibility route.
func (s *SubmissionService) SendMail(ctx context.Context, input RelayInput) error {
	if strings.TrimSpace(input.Body) == "" {
		return ErrBodyMissing
	}
	if err := s.validateFiles(input.Files); err != nil {
		return err
	}
	if err := s.relay.Relay(ctx, mailMessage(input.Body, input.DetailedLocation, input.Latitude, input.Longitude, input.Files)); err != nil {
		return asDeliveryError(err)
	}
	return nil
}

// replay returns the earlier result for a request id, ErrDuplicateSubmission
// while the first attempt is still in flight, or nil when there is none
func (s *SubmissionService) replay(ctx context.Context, userID uuid.UUID, requestID string) (*SubmitResult, error) {
	existing, err := s.repo.FindByRequestID(ctx, userID, requestID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.Delivery == grievance.DeliverySent {
		return &SubmitResult{
			Grievance: ToGrievanceResponse(existing),
			State:     grievance.SubmissionSubmitted,
			Replayed:  true,
			Visible:   true,
		}, nil
	}
	return nil, ErrDuplicateSubmission
}

// claim reserves key. Without a store, or when the store is unreachable,
// the unique index on (user_id, request_id) is the only guard.
func (s *SubmissionService) claim(ctx context.Context, key string, log *zap.Logger) (bool, error) {
	if s.idempotency == nil {
		return true, nil
	}
	claimed, err := s.idempotency.MarkProcessed(ctx, key, s.config.IdempotencyTTL)
	if err != nil {
		log.Warn("Idempotency store unavailable, relying on database constraint", zap.Error(err))
		return true, nil
	}
	return claimed, nil
}

func (s *SubmissionService) release(ctx context.Context, key string, log *zap.Logger) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		log.Warn("Failed to release submission claim", zap.Error(err))
	}
}

func (s *SubmissionService) recordFailure(ctx context.Context, g *grievance.Grievance, cause error, log *zap.Logger) {
	log.Error("Grievance mail relay failed", zap.Error(cause))
	if err := g.MarkDeliveryFailed(cause.Error()); err != nil {
		log.Error("Failed to mark delivery failed", zap.Error(err))
		return
	}
	if err := s.repo.Save(ctx, g); err != nil {
		// Left pending; the reconciler expires it.
		log.Error("Failed to record delivery failure", zap.Error(err))
	}
}

func (s *SubmissionService) validateFiles(files []UploadedFile) error {
	if s.config.MaxAttachments > 0 && len(files) > s.config.MaxAttachments {
		return shared.NewValidationError(fmt.Sprintf("At most %d attachments are allowed", s.config.MaxAttachments))
	}
	for _, f := range files {
		if s.config.MaxAttachmentBytes > 0 && int64(len(f.Data)) > s.config.MaxAttachmentBytes {
			return shared.NewValidationError(fmt.Sprintf("Attachment %s exceeds %d MB",
				f.FileName, s.config.MaxAttachmentBytes>>20))
		}
	}
	return nil
}

// archive stores files in the attachment store. Archiving is best effort:
// a failed upload is logged and the file is still mailed.
func (s *SubmissionService) archive(ctx context.Context, g *grievance.Grievance, files []UploadedFile, log *zap.Logger) []grievance.Attachment {
	if s.store == nil || !s.store.Enabled() || len(files) == 0 {
		return nil
	}
	out := make([]grievance.Attachment, 0, len(files))
	for i, f := range files {
		key := AttachmentKey(g.UserID, g.ID, i, f.FileName)
		if err := s.store.Put(ctx, key, f.ContentType, f.Data); err != nil {
			log.Warn("Failed to archive attachment", zap.String("file_name", f.FileName), zap.Error(err))
			continue
		}
		out = append(out, grievance.Attachment{
			Key:         key,
			Name:        f.FileName,
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
		})
	}
	return out
}

func (s *SubmissionService) discardArchive(ctx context.Context, g *grievance.Grievance, log *zap.Logger) {
	if s.store == nil {
		return
	}
	for _, a := range g.Attachments {
		if err := s.store.Delete(ctx, a.Key); err != nil {
			log.Warn("Failed to delete orphaned attachment", zap.String("key", a.Key), zap.Error(err))
		}
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AttachmentKey builds the object key for the index-th file of a grievance
func AttachmentKey(owner, id uuid.UUID, index int, fileName string) string {
	name := unsafeFileChars.ReplaceAllString(filepath.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "attachment"
	}
	return fmt.Sprintf("grievances/%s/%s/%d-%s", owner, id, index+1, name)
}

func mailMessage(body, location, lat, lng string, files []UploadedFile) MailMessage {
	msg := MailMessage{
		Body:             body,
		DetailedLocation: location,
		Latitude:         strings.TrimSpace(lat),
		Longitude:        strings.TrimSpace(lng),
	}
	for _, f := range files {
		msg.Attachments = append(msg.Attachments, MailAttachment{
			FileName:    f.FileName,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}
	return msg
}

// asDeliveryError keeps validation failures and wraps everything else
func asDeliveryError(err error) error {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == shared.CodeValidation {
		return err
	}
	return NewDeliveryError(err)
}

// failSubmission moves flow to Failed and returns the error the client gets.
// Delivery errors carry the failed state; the client retries from
// LocatingAndEditing.
func failSubmission(flow *grievance.Submission, cause error, log *zap.Logger) error {
	if err := flow.Fail(cause.Error()); err != nil {
		log.Error("Submission flow out of step", zap.Error(err))
	}
	log.Info("Submission failed",
		zap.String("state", flow.State().String()),
		zap.String("reason", flow.FailureReason()),
	)

	out := asDeliveryError(cause)
	var de *DeliveryError
	if !errors.As(out, &de) {
		return out
	}
	failed := *de
	failed.State = flow.State()
	return &failed
}

func publishEvents(ctx context.Context, publisher shared.EventPublisher, g *grievance.Grievance, log *zap.Logger) {
	events := g.PullDomainEvents()
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		log.Error("Failed to publish grievance events", zap.Error(err))
	}
}
