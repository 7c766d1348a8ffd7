package grievance

import (
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
)

// Actor is the authenticated caller of a service method
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

// Draft is the result of a draft request
type Draft struct {
	DraftedMail string `json:"draftedMail"`
	Department  string `json:"department"`
	Summary     string `json:"summary"`
	Advice      string `json:"advice"`
	AIUsed      bool   `json:"aiUsed"`
	MailTo      string `json:"mailTo"`
}

// UploadedFile is an attachment received from the client
type UploadedFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// SubmitInput carries one citizen submission
type SubmitInput struct {
	UserID           uuid.UUID
	RequestID        string
	Problem          string
	City             string
	Body             string
	DetailedLocation string
	Latitude         string
	Longitude        string
	Files            []UploadedFile
}

// SubmitResult is the outcome of a successful submission
type SubmitResult struct {
	Grievance GrievanceResponse         `json:"grievance"`
	State     grievance.SubmissionState `json:"state"`
	// Replayed is true when the request id matched an earlier submission
	Replayed bool `json:"replayed"`
	// Visible is false when the mail went out but the record could not be
	// promoted yet; the reconciler finishes it.
	Visible bool `json:"visible"`
}

// RelayInput is the unauthenticated mail-only request
type RelayInput struct {
	Body             string
	DetailedLocation string
	Latitude         string
	Longitude        string
	Files            []UploadedFile
}

// ListQuery narrows a grievance listing
type ListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,grievance_status"`
	Search   string `form:"search" binding:"omitempty,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=created_at updated_at status city"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// toFilter converts q to a repository filter, newest first by default
func (q ListQuery) toFilter() grievance.ListFilter {
	f := grievance.NewestFirst()
	if q.Page > 0 {
		f.Page = q.Page
	}
	if q.PageSize > 0 {
		f.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		f.OrderDir = q.OrderDir
	}
	f.Search = q.Search
	if status, ok := grievance.ParseStatus(q.Status); ok {
		f.Status = &status
	}
	return f
}

// UpdateStatusInput is an administrator's status change
type UpdateStatusInput struct {
	ID              uuid.UUID
	Status          string
	Force           bool
	ExpectedVersion *int
}

// AttachmentResponse describes an archived photo
type AttachmentResponse struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// GrievanceResponse is the public view of a grievance
type GrievanceResponse struct {
	ID               uuid.UUID            `json:"id"`
	UserID           uuid.UUID            `json:"user_id"`
	Problem          string               `json:"problem"`
	City             string               `json:"city"`
	MailBody         string               `json:"mail_body"`
	DetailedLocation string               `json:"detailed_location,omitempty"`
	Latitude         string               `json:"latitude,omitempty"`
	Longitude        string               `json:"longitude,omitempty"`
	MapsURL          string               `json:"maps_url,omitempty"`
	Attachments      []AttachmentResponse `json:"attachments"`
	Status           grievance.Status     `json:"status"`
	NextStatuses     []grievance.Status   `json:"next_statuses"`
	Version          int                  `json:"version"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ToGrievanceResponse converts a grievance to its public view
func ToGrievanceResponse(g *grievance.Grievance) GrievanceResponse {
	return FromSnapshot(grievance.SnapshotOf(g))
}

// ToGrievanceResponses converts a slice of grievances
func ToGrievanceResponses(items []grievance.Grievance) []GrievanceResponse {
	out := make([]GrievanceResponse, len(items))
	for i := range items {
		out[i] = ToGrievanceResponse(&items[i])
	}
	return out
}

// FromSnapshot converts an event snapshot to the public view
func FromSnapshot(s grievance.Snapshot) GrievanceResponse {
	attachments := make([]AttachmentResponse, len(s.Attachments))
	for i, a := range s.Attachments {
		attachments[i] = AttachmentResponse{Name: a.Name, ContentType: a.ContentType, Size: a.Size}
	}
	resp := GrievanceResponse{
		ID:               s.ID,
		UserID:           s.UserID,
		Problem:          s.Problem,
		City:             s.City,
		MailBody:         s.MailBody,
		DetailedLocation: s.DetailedLocation,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		Attachments:      attachments,
		Status:           s.Status,
		NextStatuses:     s.Status.NextStatuses(),
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.Latitude != "" && s.Longitude != "" {
		resp.MapsURL = "https://www.google.com/maps?q=" + s.Latitude + "," + s.Longitude
	}
	return resp
}

// AttachmentLink is a time-limited download link
type AttachmentLink struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}
