package grievance

import "github.com/grievancenet/backend/internal/domain/shared"

// SubmissionState is a step of the citizen's submission flow
type SubmissionState string

const (
	SubmissionComposing          SubmissionState = "COMPOSING"
	SubmissionDrafting           SubmissionState = "DRAFTING"
	SubmissionDraftReady         SubmissionState = "DRAFT_READY"
	SubmissionLocatingAndEditing SubmissionState = "LOCATING_AND_EDITING"
	SubmissionSubmitting         SubmissionState = "SUBMITTING"
	SubmissionSubmitted          SubmissionState = "SUBMITTED"
	SubmissionFailed             SubmissionState = "FAILED"
)

var submissionTransitions = map[SubmissionState][]SubmissionState{
	SubmissionComposing:          {SubmissionDrafting},
	SubmissionDrafting:           {SubmissionDraftReady, SubmissionComposing},
	SubmissionDraftReady:         {SubmissionLocatingAndEditing},
	SubmissionLocatingAndEditing: {SubmissionSubmitting},
	SubmissionSubmitting:         {SubmissionSubmitted, SubmissionFailed},
	SubmissionFailed:             {SubmissionLocatingAndEditing},
	SubmissionSubmitted:          {},
}

// String returns the string representation of SubmissionState
func (s SubmissionState) String() string {
	return string(s)
}

// IsTerminal reports whether no further step follows
func (s SubmissionState) IsTerminal() bool {
	return s == SubmissionSubmitted
}

// CanTransitionTo checks if the flow allows moving to target
func (s SubmissionState) CanTransitionTo(target SubmissionState) bool {
	for _, next := range submissionTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Submission tracks one pass through the submission flow.
// The zero value is not usable; start with NewSubmission.
type Submission struct {
	state  SubmissionState
	reason string
}

// NewSubmission starts a flow in Composing
func NewSubmission() *Submission {
	return &Submission{state: SubmissionComposing}
}

// ResumeSubmission picks up a flow at the step the client has reached.
// The server only sees a submission once it is composed, so it resumes at
// LocatingAndEditing.
func ResumeSubmission(state SubmissionState) *Submission {
	return &Submission{state: state}
}

// State returns the current step
func (s *Submission) State() SubmissionState {
	return s.state
}

// FailureReason returns why the last submit attempt failed
func (s *Submission) FailureReason() string {
	return s.reason
}

// Advance moves to target or reports an INVALID_STATE error
func (s *Submission) Advance(target SubmissionState) error {
	if !s.state.CanTransitionTo(target) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"Cannot move submission from "+s.state.String()+" to "+target.String())
	}
	s.state = target
	if target != SubmissionFailed {
		s.reason = ""
	}
	return nil
}

// Fail moves Submitting to Failed with a reason
func (s *Submission) Fail(reason string) error {
	if err := s.Advance(SubmissionFailed); err != nil {
		return err
	}
	s.reason = reason
	return nil
}
