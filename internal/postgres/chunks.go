package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/quillchat/quill/internal/knowledge"
)

// InsertChunk stores one embedded chunk.
func (q *Queries) InsertChunk(ctx context.Context, c knowledge.Chunk, embedding pgvector.Vector) error {
	const sql = `
		INSERT INTO knowledge_chunks (id, project_id, document_id, content, chunk_index, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := q.db.Exec(ctx, sql, c.ID, c.ProjectID, c.DocumentID, c.Content, c.ChunkIndex, embedding); err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// SearchChunks returns the topK chunks of an owned project by cosine
// similarity. 1 - (embedding <=> query) maps pgvector's cosine distance
// to a similarity in [0, 1] for normalized vectors.
func (q *Queries) SearchChunks(ctx context.Context, userID, projectID uuid.UUID, query pgvector.Vector, topK int32) ([]knowledge.Result, error) {
	const sql = `
		SELECT k.id, k.project_id, k.document_id, k.content, k.chunk_index, k.created_at,
		       1 - (k.embedding <=> $3) AS similarity
		FROM knowledge_chunks k
		JOIN projects p ON p.id = k.project_id
		WHERE k.project_id = $1 AND p.user_id = $2
		ORDER BY k.embedding <=> $3
		LIMIT $4`

	rows, err := q.db.Query(ctx, sql, projectID, userID, query, topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []knowledge.Result
	for rows.Next() {
		var r knowledge.Result
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.DocumentID, &r.Content, &r.ChunkIndex, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return results, nil
}

// DeleteChunksByDocument removes a document's chunks.
func (q *Queries) DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) error {
	const sql = `DELETE FROM knowledge_chunks WHERE document_id = $1`

	if _, err := q.db.Exec(ctx, sql, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// CountChunks counts a project's indexed chunks.
func (q *Queries) CountChunks(ctx context.Context, projectID uuid.UUID) (int64, error) {
	const sql = `SELECT COUNT(*) FROM knowledge_chunks WHERE project_id = $1`

	var n int64
	if err := q.db.QueryRow(ctx, sql, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
