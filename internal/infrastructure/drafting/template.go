// Package drafting produces grievance letters, either from a fixed template
// or through an OpenAI-compatible chat-completions provider.
package drafting

import (
	"context"
	"fmt"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
)

const letterTemplate = `To,
The Concerned Authority

Subject: Civic Grievance

Respected Sir/Madam,

I would like to report that %s in %s.

Kindly take necessary action.

Thanking you.`

// Values reported alongside a template letter
const (
	TemplateDepartment = "General"
	TemplateSummary    = "AI parsing fallback used"
	TemplateAdvice     = "Please review and send manually"
)

// RenderLetter fills the letter template. Both values are inserted verbatim.
func RenderLetter(problem, location string) string {
	return fmt.Sprintf(letterTemplate, problem, location)
}

// TemplateDrafter never fails and needs no configuration
type TemplateDrafter struct{}

var _ grievanceapp.Drafter = TemplateDrafter{}

// NewTemplateDrafter returns the template drafter
func NewTemplateDrafter() TemplateDrafter {
	return TemplateDrafter{}
}

// Draft renders the template for req
func (TemplateDrafter) Draft(_ context.Context, req grievanceapp.DraftRequest) (*grievanceapp.DraftContent, error) {
	return &grievanceapp.DraftContent{
		DraftedMail: RenderLetter(req.Problem, req.Location),
		Department:  TemplateDepartment,
		Summary:     TemplateSummary,
		Advice:      TemplateAdvice,
	}, nil
}
