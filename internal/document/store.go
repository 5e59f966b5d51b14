package document

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Querier defines the database operations the store needs. Ownership is
// enforced by joining through the project's user_id.
type Querier interface {
	InsertDocument(ctx context.Context, userID uuid.UUID, d Document) (Document, error)
	GetDocument(ctx context.Context, userID, projectID, documentID uuid.UUID) (Document, error)
	ListDocuments(ctx context.Context, userID, projectID uuid.UUID) ([]Document, error)
	DeleteDocument(ctx context.Context, userID, projectID, documentID uuid.UUID) (int64, error)
}

// Store manages document persistence.
//
// Store is safe for concurrent use.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a Store.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// Save stores an uploaded document. The document's ExtractedText should
// already be populated (ExtractText or an external extractor).
func (s *Store) Save(ctx context.Context, userID uuid.UUID, d Document) (*Document, error) {
	if err := ValidateFilename(d.Filename); err != nil {
		return nil, err
	}
	if len(d.Content) == 0 {
		return nil, ErrEmptyUpload
	}

	d.SizeBytes = int64(len(d.Content))
	saved, err := s.querier.InsertDocument(ctx, userID, d)
	if err != nil {
		return nil, fmt.Errorf("save document %q: %w", d.Filename, err)
	}

	s.logger.Debug("saved document",
		"id", saved.ID,
		"project_id", d.ProjectID,
		"filename", d.Filename,
		"size", d.SizeBytes)
	return &saved, nil
}

// Get retrieves a document, including content, for an owned project.
func (s *Store) Get(ctx context.Context, userID, projectID, documentID uuid.UUID) (*Document, error) {
	d, err := s.querier.GetDocument(ctx, userID, projectID, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return &d, nil
}

// List returns a project's documents, newest first, without content.
func (s *Store) List(ctx context.Context, userID, projectID uuid.UUID) ([]Document, error) {
	docs, err := s.querier.ListDocuments(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document from an owned project.
func (s *Store) Delete(ctx context.Context, userID, projectID, documentID uuid.UUID) error {
	affected, err := s.querier.DeleteDocument(ctx, userID, projectID, documentID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted document", "id", documentID, "project_id", projectID)
	return nil
}
