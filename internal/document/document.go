// Package document manages uploaded files and their extracted text.
//
// Uploads are stored per project. Plain-text formats are extracted
// in-process; binary formats (PDF, images) arrive with text already
// extracted by the upload pipeline's external collaborators, or are
// recorded without text.
package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Validation limits.
const (
	MaxFilenameLength = 255
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a document does not exist or its
	// project is not owned by the caller.
	ErrNotFound = errors.New("document not found")

	// ErrFilenameRequired is returned for uploads without a filename.
	ErrFilenameRequired = errors.New("filename required")

	// ErrFilenameTooLong is returned when a filename exceeds
	// MaxFilenameLength.
	ErrFilenameTooLong = errors.New("filename too long")

	// ErrEmptyUpload is returned when the uploaded file has no content.
	ErrEmptyUpload = errors.New("uploaded file is empty")
)

// Document is an uploaded file attached to a project. Content holds the
// raw bytes; ExtractedText the text fed into the knowledge base.
type Document struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"projectId"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"contentType"`
	SizeBytes     int64     `json:"sizeBytes"`
	Content       []byte    `json:"-"`
	ExtractedText string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ValidateFilename checks upload filename constraints.
func ValidateFilename(name string) error {
	if name == "" {
		return ErrFilenameRequired
	}
	if len(name) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	return nil
}
