package project

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Querier defines the database operations the store needs. The interface
// lives with its consumer; internal/postgres provides the production
// implementation.
type Querier interface {
	CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (Project, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Project, error)
	UpdateProject(ctx context.Context, userID, projectID uuid.UUID, name, description string) (Project, error)
	DeleteProject(ctx context.Context, userID, projectID uuid.UUID) (int64, error)
	AppendExtractedText(ctx context.Context, userID, projectID uuid.UUID, text string) error
}

// Store manages project persistence. Every operation is scoped to the
// owner; a project belonging to another user behaves as if it does not
// exist.
//
// Store is safe for concurrent use.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// Create creates a project for the given owner.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, name, description string) (*Project, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}

	p, err := s.querier.CreateProject(ctx, userID, name, description)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Debug("created project", "id", p.ID, "user_id", userID)
	return &p, nil
}

// Get retrieves an owned project, including its knowledge-base text.
func (s *Store) Get(ctx context.Context, userID, projectID uuid.UUID) (*Project, error) {
	p, err := s.querier.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return &p, nil
}

// List returns the owner's projects ordered by updated_at descending.
func (s *Store) List(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Project, error) {
	projects, err := s.querier.ListProjects(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Update changes the name and/or description of an owned project. Empty
// name keeps the current one.
func (s *Store) Update(ctx context.Context, userID, projectID uuid.UUID, name, description string) (*Project, error) {
	if name != "" {
		if err := ValidateName(name); err != nil {
			return nil, err
		}
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}

	p, err := s.querier.UpdateProject(ctx, userID, projectID, name, description)
	if err != nil {
		return nil, fmt.Errorf("update project %s: %w", projectID, err)
	}

	s.logger.Debug("updated project", "id", projectID)
	return &p, nil
}

// Delete removes an owned project. Documents, conversations and knowledge
// chunks go with it (ON DELETE CASCADE).
func (s *Store) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	affected, err := s.querier.DeleteProject(ctx, userID, projectID)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted project", "id", projectID)
	return nil
}

// AppendExtractedText appends document text to the project's knowledge
// base. A separator newline is inserted between documents.
func (s *Store) AppendExtractedText(ctx context.Context, userID, projectID uuid.UUID, text string) error {
	if text == "" {
		return nil
	}
	if err := s.querier.AppendExtractedText(ctx, userID, projectID, text); err != nil {
		return fmt.Errorf("append extracted text to project %s: %w", projectID, err)
	}
	return nil
}
