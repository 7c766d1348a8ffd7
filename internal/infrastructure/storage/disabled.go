package storage

import (
	"context"
	"errors"
	"time"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
)

// ErrStorageDisabled is returned when an attachment is requested while
// archiving is switched off
var ErrStorageDisabled = errors.New("attachment storage is disabled")

// DisabledAttachmentStore is used when storage.enabled is false. Attachments
// are still mailed, they are just not archived.
type DisabledAttachmentStore struct{}

var _ grievanceapp.AttachmentStore = DisabledAttachmentStore{}

// Enabled reports false
func (DisabledAttachmentStore) Enabled() bool { return false }

// Put discards data
func (DisabledAttachmentStore) Put(context.Context, string, string, []byte) error { return nil }

// DownloadURL always fails with ErrStorageDisabled
func (DisabledAttachmentStore) DownloadURL(context.Context, string) (string, time.Time, error) {
	return "", time.Time{}, ErrStorageDisabled
}

// Delete is a no-op
func (DisabledAttachmentStore) Delete(context.Context, string) error { return nil }
