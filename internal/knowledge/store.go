package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// searchTimeout bounds vector searches so a slow index cannot stall the
// relay hot path.
const searchTimeout = 10 * time.Second

// embedConcurrency limits parallel embedding calls during indexing.
const embedConcurrency = 4

// Querier defines the database operations the store needs.
type Querier interface {
	InsertChunk(ctx context.Context, c Chunk, embedding pgvector.Vector) error
	SearchChunks(ctx context.Context, userID, projectID uuid.UUID, query pgvector.Vector, topK int32) ([]Result, error)
	DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) error
	CountChunks(ctx context.Context, projectID uuid.UUID) (int64, error)
}

// Store indexes document chunks and answers similarity queries.
//
// Store is safe for concurrent use.
type Store struct {
	querier  Querier
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(querier Querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, embedder: embedder, logger: logger}
}

// IndexDocument splits the document text, embeds every chunk, and stores
// the vectors. Chunks are embedded concurrently; the first failure aborts
// the whole indexing run.
func (s *Store) IndexDocument(ctx context.Context, projectID, documentID uuid.UUID, text string) (int, error) {
	parts := SplitText(text)
	if len(parts) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, part := range parts {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, part)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}

			chunk := Chunk{
				ID:         uuid.New(),
				ProjectID:  projectID,
				DocumentID: documentID,
				Content:    part,
				ChunkIndex: i,
			}
			if err := s.querier.InsertChunk(gctx, chunk, pgvector.NewVector(vec)); err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("index document %s: %w", documentID, err)
	}

	s.logger.Debug("indexed document", "document_id", documentID, "chunks", len(parts))
	return len(parts), nil
}

// Search returns the topK chunks most similar to the query within an
// owned project, ordered by similarity descending.
func (s *Store) Search(ctx context.Context, userID, projectID uuid.UUID, query string, topK int32) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrQueryRequired
	}
	if topK <= 0 {
		topK = 5
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.querier.SearchChunks(queryCtx, userID, projectID, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return results, nil
}

// DeleteByDocument removes a document's chunks after the document itself
// is deleted.
func (s *Store) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	if err := s.querier.DeleteChunksByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of chunks indexed for a project.
func (s *Store) Count(ctx context.Context, projectID uuid.UUID) (int64, error) {
	n, err := s.querier.CountChunks(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
