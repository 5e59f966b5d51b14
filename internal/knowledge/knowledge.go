// Package knowledge stores and searches embedded document chunks.
//
// Each uploaded document is split into chunks, embedded, and written to a
// pgvector column. When a project's concatenated knowledge base exceeds
// the prompt budget, the relay retrieves only the chunks relevant to the
// user's question instead of injecting everything.
package knowledge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding width of the knowledge_chunks schema.
// The embedder truncates its output to this size.
const VectorDimension = 768

// Chunking parameters, in characters. Chunks break on paragraph
// boundaries where possible.
const (
	ChunkSize    = 1800
	ChunkOverlap = 200
)

// Sentinel errors.
var (
	// ErrEmptyEmbedding is returned when the embedder produces no vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")

	// ErrQueryRequired is returned for blank search queries.
	ErrQueryRequired = errors.New("search query required")
)

// Chunk is one embedded slice of a document.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"projectId"`
	DocumentID uuid.UUID `json:"documentId"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunkIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Result is a chunk with its similarity to the query (cosine, 1.0 = identical).
type Result struct {
	Chunk
	Similarity float64 `json:"similarity"`
}
