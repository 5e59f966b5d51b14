// Package project manages per-user projects and their knowledge-base text.
package project

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Validation limits for project fields.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a project does not exist or is not
	// owned by the caller. The two cases are deliberately
	// indistinguishable so ownership cannot be probed.
	ErrNotFound = errors.New("project not found")

	// ErrNameRequired is returned when creating a project without a name.
	ErrNameRequired = errors.New("project name required")

	// ErrNameTooLong is returned when the name exceeds MaxNameLength.
	ErrNameTooLong = errors.New("project name too long")

	// ErrDescriptionTooLong is returned when the description exceeds
	// MaxDescriptionLength.
	ErrDescriptionTooLong = errors.New("project description too long")
)

// Project is a user-owned workspace with an accumulated knowledge base.
type Project struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ExtractedText string    `json:"-"` // knowledge base, not exposed in listings
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ValidateName checks create/update name constraints.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// ValidateDescription checks the description length constraint.
func ValidateDescription(desc string) error {
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
