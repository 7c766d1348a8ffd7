package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/storage"
)

// fileField is the multipart field carrying photos, repeatable
const fileField = "image"

// UploadLimits bounds the files read from one request
type UploadLimits struct {
	MaxFiles     int
	MaxFileBytes int64
	// ImagesOnly rejects files whose sniffed type is not image/*
	ImagesOnly bool
}

// readUploads reads the files of field from a multipart request. A request
// that is not multipart has no files.
func readUploads(c *gin.Context, field string, limits UploadLimits) ([]grievanceapp.UploadedFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, shared.NewValidationError("Invalid multipart form")
	}

	headers := form.File[field]
	if limits.MaxFiles > 0 && len(headers) > limits.MaxFiles {
		return nil, shared.NewValidationError(fmt.Sprintf("At most %d attachments are allowed", limits.MaxFiles))
	}

	files := make([]grievanceapp.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh, limits)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readUpload(fh *multipart.FileHeader, limits UploadLimits) (grievanceapp.UploadedFile, error) {
	if limits.MaxFileBytes > 0 && fh.Size > limits.MaxFileBytes {
		return grievanceapp.UploadedFile{}, tooLarge(fh.Filename, limits.MaxFileBytes)
	}

	src, err := fh.Open()
	if err != nil {
		return grievanceapp.UploadedFile{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	var r io.Reader = src
	if limits.MaxFileBytes > 0 {
		r = io.LimitReader(src, limits.MaxFileBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return grievanceapp.UploadedFile{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if limits.MaxFileBytes > 0 && int64(len(data)) > limits.MaxFileBytes {
		return grievanceapp.UploadedFile{}, tooLarge(fh.Filename, limits.MaxFileBytes)
	}

	if limits.ImagesOnly && !isImage(data) {
		return grievanceapp.UploadedFile{}, shared.NewValidationError(fmt.Sprintf("Attachment %s is not an image", fh.Filename))
	}

	return grievanceapp.UploadedFile{
		FileName:    fh.Filename,
		ContentType: storage.ResolveContentType(fh.Header.Get("Content-Type"), data),
		Data:        data,
	}, nil
}

// isImage trusts the bytes, not the declared type
func isImage(data []byte) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if strings.HasPrefix(mt.String(), "image/") {
			return true
		}
	}
	return false
}

func tooLarge(name string, limit int64) error {
	return shared.NewValidationError(fmt.Sprintf("Attachment %s exceeds %d MB", name, limit>>20))
}
