package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier defines the database operations the store needs. The production
// implementation lives in internal/postgres; tests supply mocks.
type Querier interface {
	CreateConversation(ctx context.Context, userID, projectID uuid.UUID, title string) (Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (Conversation, error)
	ListConversations(ctx context.Context, userID, projectID uuid.UUID, limit, offset int32) ([]Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) (int64, error)
	UpdateConversationTitle(ctx context.Context, userID, conversationID uuid.UUID, title string) error

	// Message operations. Lock + max-sequence + insert run inside one
	// transaction; WithTx rebinds the querier to it.
	LockConversation(ctx context.Context, conversationID uuid.UUID) error
	MaxSequenceNumber(ctx context.Context, conversationID uuid.UUID) (int32, error)
	InsertMessage(ctx context.Context, conversationID uuid.UUID, role, content string, seq int32) error
	TouchConversation(ctx context.Context, conversationID uuid.UUID, messageCount int32) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int32) ([]Message, error)

	WithTx(tx Tx) Querier
}

// Tx is the subset of pgx.Tx the store drives. Defined here so unit tests
// can fake transactions without a live database.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner starts transactions. *pgxpool.Pool satisfies it via the
// poolBeginner adapter below.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Store manages conversation persistence. All reads and deletes are
// scoped to the owner.
//
// Store is safe for concurrent use.
type Store struct {
	querier Querier
	txs     TxBeginner
	logger  *slog.Logger
}

// New creates a Store. txs may be nil in unit tests, in which case
// AppendMessages runs without a transaction.
func New(querier Querier, txs TxBeginner, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, txs: txs, logger: logger}
}

// NewPoolBeginner adapts a pgx pool to the TxBeginner interface.
func NewPoolBeginner(pool *pgxpool.Pool) TxBeginner {
	return poolBeginner{pool: pool}
}

type poolBeginner struct {
	pool *pgxpool.Pool
}

func (p poolBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// Create starts a conversation inside an owned project.
func (s *Store) Create(ctx context.Context, userID, projectID uuid.UUID, title string) (*Conversation, error) {
	if len(title) > MaxTitleLength {
		return nil, ErrTitleTooLong
	}
	if title == "" {
		title = "New conversation"
	}

	c, err := s.querier.CreateConversation(ctx, userID, projectID, title)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "project_id", projectID)
	return &c, nil
}

// Get retrieves an owned conversation.
func (s *Store) Get(ctx context.Context, userID, conversationID uuid.UUID) (*Conversation, error) {
	c, err := s.querier.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	return &c, nil
}

// List returns a project's conversations, updated_at descending.
func (s *Store) List(ctx context.Context, userID, projectID uuid.UUID, limit, offset int32) ([]Conversation, error) {
	cs, err := s.querier.ListConversations(ctx, userID, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return cs, nil
}

// Delete removes an owned conversation and its messages (CASCADE).
func (s *Store) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	affected, err := s.querier.DeleteConversation(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted conversation", "id", conversationID)
	return nil
}

// SetTitle replaces the title of an owned conversation.
func (s *Store) SetTitle(ctx context.Context, userID, conversationID uuid.UUID, title string) error {
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if err := s.querier.UpdateConversationTitle(ctx, userID, conversationID, title); err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	return nil
}

// AppendMessages appends messages with sequential sequence numbers. The
// caller must have checked ownership of the conversation beforehand
// (Get); this method operates on the conversation ID alone so it can run
// inside the relay hot path.
//
// The conversation row is locked (SELECT ... FOR UPDATE) so concurrent
// appends cannot produce duplicate sequence numbers.
func (s *Store) AppendMessages(ctx context.Context, conversationID uuid.UUID, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	for i, m := range messages {
		if !ValidRole(m.Role) {
			return fmt.Errorf("message %d: %w: %q", i, ErrInvalidRole, m.Role)
		}
		if len(m.Content) > MaxContentLength {
			return fmt.Errorf("message %d: %w", i, ErrContentTooLong)
		}
	}

	if s.txs == nil {
		return s.appendLocked(ctx, s.querier, conversationID, messages)
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("transaction rollback (may be already committed)", "error", err)
		}
	}()

	q := s.querier.WithTx(tx)
	if err := q.LockConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}
	if err := s.appendLocked(ctx, q, conversationID, messages); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("appended messages", "conversation_id", conversationID, "count", len(messages))
	return nil
}

func (s *Store) appendLocked(ctx context.Context, q Querier, conversationID uuid.UUID, messages []Message) error {
	maxSeq, err := q.MaxSequenceNumber(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("max sequence number: %w", err)
	}

	for i, m := range messages {
		seq := maxSeq + int32(i) + 1 // #nosec G115 -- i bounded by slice length
		if err := q.InsertMessage(ctx, conversationID, m.Role, m.Content, seq); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	newCount := maxSeq + int32(len(messages)) // #nosec G115 -- bounded by practical message limits
	if err := q.TouchConversation(ctx, conversationID, newCount); err != nil {
		return fmt.Errorf("update conversation metadata: %w", err)
	}

	return nil
}

// Messages retrieves a conversation's messages ordered by sequence number
// ascending, after verifying ownership.
func (s *Store) Messages(ctx context.Context, userID, conversationID uuid.UUID, limit, offset int32) ([]Message, error) {
	if _, err := s.querier.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}

	msgs, err := s.querier.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}
