package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillchat/quill/internal/project"
)

// CreateProject inserts a project for the owner.
func (q *Queries) CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (project.Project, error) {
	const sql = `
		INSERT INTO projects (user_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, description, extracted_text, created_at, updated_at`

	return scanProject(q.db.QueryRow(ctx, sql, userID, name, description))
}

// GetProject fetches an owned project including its knowledge-base text.
func (q *Queries) GetProject(ctx context.Context, userID, projectID uuid.UUID) (project.Project, error) {
	const sql = `
		SELECT id, user_id, name, description, extracted_text, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2`

	p, err := scanProject(q.db.QueryRow(ctx, sql, projectID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}
	return p, nil
}

// ListProjects lists the owner's projects, updated_at descending. The
// extracted_text column is skipped; listings do not need the full
// knowledge base.
func (q *Queries) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]project.Project, error) {
	const sql = `
		SELECT id, user_id, name, description, '', created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := q.db.Query(ctx, sql, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// UpdateProject updates name and/or description of an owned project.
// Empty strings keep the current values.
func (q *Queries) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, name, description string) (project.Project, error) {
	const sql = `
		UPDATE projects
		SET name = COALESCE(NULLIF($3, ''), name),
		    description = CASE WHEN $4 = '' THEN description ELSE $4 END,
		    updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, description, extracted_text, created_at, updated_at`

	p, err := scanProject(q.db.QueryRow(ctx, sql, projectID, userID, name, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}
	return p, nil
}

// DeleteProject removes an owned project, returning affected rows.
func (q *Queries) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) (int64, error) {
	const sql = `DELETE FROM projects WHERE id = $1 AND user_id = $2`

	tag, err := q.db.Exec(ctx, sql, projectID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete project: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendExtractedText concatenates document text onto the project's
// knowledge base.
func (q *Queries) AppendExtractedText(ctx context.Context, userID, projectID uuid.UUID, text string) error {
	const sql = `
		UPDATE projects
		SET extracted_text = CASE
		        WHEN extracted_text = '' THEN $3
		        ELSE extracted_text || E'\n\n' || $3
		    END,
		    updated_at = now()
		WHERE id = $1 AND user_id = $2`

	tag, err := q.db.Exec(ctx, sql, projectID, userID, text)
	if err != nil {
		return fmt.Errorf("append extracted text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (project.Project, error) {
	var p project.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.ExtractedText, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, err
		}
		return project.Project{}, fmt.Errorf("scan project: %w", err)
	}
	return p, nil
}
