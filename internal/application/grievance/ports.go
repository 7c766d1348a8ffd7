package grievance

import (
	"context"
	"time"
)

// DraftRequest is what the citizen typed before asking for a letter
type DraftRequest struct {
	Problem  string
	Location string
}

// DraftContent is what a drafter produced
type DraftContent struct {
	DraftedMail string
	Department  string
	Summary     string
	Advice      string
}

// Drafter turns a problem description into a complaint letter.
// Implemented by the template and AI drafters in infrastructure/drafting.
type Drafter interface {
	Draft(ctx context.Context, req DraftRequest) (*DraftContent, error)
}

// MailAttachment is a file sent along with the grievance mail
type MailAttachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MailMessage is the input of a single relay call. Latitude and Longitude
// carry the caller's original text; blank means absent.
type MailMessage struct {
	Body             string
	DetailedLocation string
	Latitude         string
	Longitude        string
	Attachments      []MailAttachment
}

// MailRelay delivers a grievance mail to the authority recipient.
// It reports exactly one outcome per call.
type MailRelay interface {
	Relay(ctx context.Context, msg MailMessage) error
}

// AttachmentStore archives grievance photos in object storage
type AttachmentStore interface {
	// Enabled reports whether archiving is configured
	Enabled() bool
	// Put stores data under key
	Put(ctx context.Context, key, contentType string, data []byte) error
	// DownloadURL returns a presigned URL for key and when it expires
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
	// Delete removes key
	Delete(ctx context.Context, key string) error
}
