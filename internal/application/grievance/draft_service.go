package grievance

import (
	"context"
	"strings"

	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrProblemRequired is returned when the problem text is blank
var ErrProblemRequired = shared.NewValidationError("Please describe the problem")

// DraftService produces complaint letters. The AI drafter is optional; any
// failure of it falls back to the template drafter and is never surfaced.
type DraftService struct {
	ai       Drafter
	fallback Drafter
	mailTo   string
	metrics  *telemetry.GrievanceMetrics
	logger   *zap.Logger
}

// NewDraftService creates a DraftService. ai may be nil.
func NewDraftService(ai, fallback Drafter, mailTo string, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{
		ai:       ai,
		fallback: fallback,
		mailTo:   mailTo,
		logger:   logger,
	}
}

// SetMetrics counts drafts on m
func (s *DraftService) SetMetrics(m *telemetry.GrievanceMetrics) {
	s.metrics = m
}

// AIEnabled reports whether drafts are attempted with the AI provider
func (s *DraftService) AIEnabled() bool {
	return s.ai != nil
}

// Draft drafts a letter for problem in location
func (s *DraftService) Draft(ctx context.Context, problem, location string) (*Draft, error) {
	if strings.TrimSpace(problem) == "" {
		return nil, ErrProblemRequired
	}
	return s.compose(ctx, DraftRequest{Problem: problem, Location: location}, s.ai != nil)
}

// Compose drafts like Draft but accepts a blank problem. Blank input skips
// the AI provider and renders the template as is.
func (s *DraftService) Compose(ctx context.Context, problem, location string) (*Draft, error) {
	useAI := s.ai != nil && strings.TrimSpace(problem) != ""
	return s.compose(ctx, DraftRequest{Problem: problem, Location: location}, useAI)
}

func (s *DraftService) compose(ctx context.Context, req DraftRequest, useAI bool) (*Draft, error) {
	if useAI {
		content, err := s.ai.Draft(ctx, req)
		if err == nil {
			s.metrics.RecordDraft(ctx, true)
			return s.result(content, true), nil
		}
		s.logger.Warn("AI drafting failed, using template", zap.Error(err))
	}

	content, err := s.fallback.Draft(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDraft(ctx, false)
	return s.result(content, false), nil
}

func (s *DraftService) result(c *DraftContent, aiUsed bool) *Draft {
	return &Draft{
		DraftedMail: c.DraftedMail,
		Department:  c.Department,
		Summary:     c.Summary,
		Advice:      c.Advice,
		AIUsed:      aiUsed,
		MailTo:      s.mailTo,
	}
}
