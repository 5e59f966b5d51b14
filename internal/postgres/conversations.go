package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillchat/quill/internal/conversation"
)

// CreateConversation inserts a conversation after verifying the project
// belongs to the owner. The ownership subquery makes a foreign project
// indistinguishable from a missing one.
func (q *Queries) CreateConversation(ctx context.Context, userID, projectID uuid.UUID, title string) (conversation.Conversation, error) {
	const sql = `
		INSERT INTO conversations (project_id, user_id, title)
		SELECT p.id, p.user_id, $3
		FROM projects p
		WHERE p.id = $1 AND p.user_id = $2
		RETURNING id, project_id, user_id, title, message_count, created_at, updated_at`

	c, err := scanConversation(q.db.QueryRow(ctx, sql, projectID, userID, title))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conversation.Conversation{}, conversation.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

// GetConversation fetches an owned conversation.
func (q *Queries) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (conversation.Conversation, error) {
	const sql = `
		SELECT id, project_id, user_id, title, message_count, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`

	c, err := scanConversation(q.db.QueryRow(ctx, sql, conversationID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conversation.Conversation{}, conversation.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

// ListConversations lists a project's conversations, updated_at descending.
func (q *Queries) ListConversations(ctx context.Context, userID, projectID uuid.UUID, limit, offset int32) ([]conversation.Conversation, error) {
	const sql = `
		SELECT id, project_id, user_id, title, message_count, created_at, updated_at
		FROM conversations
		WHERE user_id = $1 AND project_id = $2
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := q.db.Query(ctx, sql, userID, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var cs []conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return cs, nil
}

// DeleteConversation removes an owned conversation, returning affected rows.
func (q *Queries) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	const sql = `DELETE FROM conversations WHERE id = $1 AND user_id = $2`

	tag, err := q.db.Exec(ctx, sql, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateConversationTitle replaces an owned conversation's title.
func (q *Queries) UpdateConversationTitle(ctx context.Context, userID, conversationID uuid.UUID, title string) error {
	const sql = `
		UPDATE conversations SET title = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2`

	tag, err := q.db.Exec(ctx, sql, conversationID, userID, title)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

// LockConversation takes a row lock so concurrent appends serialize on
// the sequence counter.
func (q *Queries) LockConversation(ctx context.Context, conversationID uuid.UUID) error {
	const sql = `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`

	var id uuid.UUID
	if err := q.db.QueryRow(ctx, sql, conversationID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conversation.ErrNotFound
		}
		return fmt.Errorf("lock conversation: %w", err)
	}
	return nil
}

// MaxSequenceNumber returns the highest sequence number in use, 0 for an
// empty conversation.
func (q *Queries) MaxSequenceNumber(ctx context.Context, conversationID uuid.UUID) (int32, error) {
	const sql = `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM conversation_messages
		WHERE conversation_id = $1`

	var maxSeq int32
	if err := q.db.QueryRow(ctx, sql, conversationID).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("max sequence number: %w", err)
	}
	return maxSeq, nil
}

// InsertMessage appends one message row.
func (q *Queries) InsertMessage(ctx context.Context, conversationID uuid.UUID, role, content string, seq int32) error {
	const sql = `
		INSERT INTO conversation_messages (conversation_id, role, content, sequence_number)
		VALUES ($1, $2, $3, $4)`

	if _, err := q.db.Exec(ctx, sql, conversationID, role, content, seq); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// TouchConversation bumps updated_at and the message counter.
func (q *Queries) TouchConversation(ctx context.Context, conversationID uuid.UUID, messageCount int32) error {
	const sql = `
		UPDATE conversations SET message_count = $2, updated_at = now()
		WHERE id = $1`

	if _, err := q.db.Exec(ctx, sql, conversationID, messageCount); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ListMessages returns messages ordered by sequence ascending.
func (q *Queries) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int32) ([]conversation.Message, error) {
	const sql = `
		SELECT id, conversation_id, role, content, sequence_number, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY sequence_number ASC
		LIMIT $2 OFFSET $3`

	rows, err := q.db.Query(ctx, sql, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func scanConversation(row pgx.Row) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conversation.Conversation{}, err
		}
		return conversation.Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	return c, nil
}
