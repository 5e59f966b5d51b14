package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillchat/quill/internal/document"
)

// InsertDocument stores an upload after verifying project ownership.
func (q *Queries) InsertDocument(ctx context.Context, userID uuid.UUID, d document.Document) (document.Document, error) {
	const sql = `
		INSERT INTO documents (project_id, filename, content_type, size_bytes, content, extracted_text)
		SELECT p.id, $3, $4, $5, $6, $7
		FROM projects p
		WHERE p.id = $1 AND p.user_id = $2
		RETURNING id, created_at`

	err := q.db.QueryRow(ctx, sql,
		d.ProjectID, userID, d.Filename, d.ContentType, d.SizeBytes, d.Content, d.ExtractedText,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

// GetDocument fetches a document with content for an owned project.
func (q *Queries) GetDocument(ctx context.Context, userID, projectID, documentID uuid.UUID) (document.Document, error) {
	const sql = `
		SELECT d.id, d.project_id, d.filename, d.content_type, d.size_bytes, d.content, d.extracted_text, d.created_at
		FROM documents d
		JOIN projects p ON p.id = d.project_id
		WHERE d.id = $1 AND d.project_id = $2 AND p.user_id = $3`

	var d document.Document
	err := q.db.QueryRow(ctx, sql, documentID, projectID, userID).Scan(
		&d.ID, &d.ProjectID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.Content, &d.ExtractedText, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListDocuments lists a project's documents without content, newest first.
func (q *Queries) ListDocuments(ctx context.Context, userID, projectID uuid.UUID) ([]document.Document, error) {
	const sql = `
		SELECT d.id, d.project_id, d.filename, d.content_type, d.size_bytes, d.created_at
		FROM documents d
		JOIN projects p ON p.id = d.project_id
		WHERE d.project_id = $1 AND p.user_id = $2
		ORDER BY d.created_at DESC`

	rows, err := q.db.Query(ctx, sql, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var d document.Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document from an owned project, returning
// affected rows.
func (q *Queries) DeleteDocument(ctx context.Context, userID, projectID, documentID uuid.UUID) (int64, error) {
	const sql = `
		DELETE FROM documents d
		USING projects p
		WHERE d.id = $1 AND d.project_id = $2 AND p.id = d.project_id AND p.user_id = $3`

	tag, err := q.db.Exec(ctx, sql, documentID, projectID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected(), nil
}
