package rag

import (
	"context"
	"errors"
	"time"

	"github.com/recallhq/recall/internal/knowledge"
)

var (
	// ErrEmptyQuery indicates a query with no non-whitespace content.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrEmptyText indicates note text with no non-whitespace content.
	ErrEmptyText = errors.New("note text is empty")

	// ErrNoChunks indicates chunking produced nothing to ingest.
	ErrNoChunks = errors.New("no chunks produced from note text")
)

// ChunkStore is the persistence contract the retrieval core depends on.
// knowledge.Store is the production implementation; tests substitute mocks.
type ChunkStore interface {
	UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, texts []string, metadatas []map[string]string) error
	Query(ctx context.Context, vector []float32, n int, filter map[string]string) ([]knowledge.Result, error)
	GetByIDs(ctx context.Context, ids []string) ([]knowledge.Chunk, error)
	GetByNoteID(ctx context.Context, noteID string) ([]knowledge.Chunk, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, limit int32) ([]knowledge.Chunk, error)
	Count(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

// ExpansionInfo records which neighbors were merged into an expanded result.
type ExpansionInfo struct {
	HasPrevious     bool   `json:"has_previous"`
	HasNext         bool   `json:"has_next"`
	PreviousChunkID string `json:"previous_chunk_id,omitempty"`
	NextChunkID     string `json:"next_chunk_id,omitempty"`
}

// SearchResult is a single query answer.
// When context expansion succeeds, Text holds the merged context and
// OriginalText preserves the bare matched chunk.
type SearchResult struct {
	ID              string            `json:"id"`
	Text            string            `json:"text"`
	Metadata        map[string]string `json:"metadata"`
	Distance        float64           `json:"distance"`
	RerankScore     float64           `json:"rerank_score,omitempty"`
	Reranked        bool              `json:"reranked"`
	ContextExpanded bool              `json:"context_expanded"`
	OriginalText    string            `json:"original_text,omitempty"`
	Expansion       *ExpansionInfo    `json:"expansion_info,omitempty"`
}

// IngestResult reports the outcome of a note ingestion.
// Partial failure is a normal outcome: failed batches are counted, not
// raised, as long as at least one batch succeeds.
type IngestResult struct {
	NoteID             string  `json:"note_id"`
	ChunksCreated      int     `json:"chunks_created"`
	ChunksFailed       int     `json:"chunks_failed"`
	TotalChunks        int     `json:"total_chunks"`
	TotalCharacters    int     `json:"total_characters"`
	EmbeddingDimension int     `json:"embedding_dimension"`
	SuccessRate        float64 `json:"success_rate"`
}

// DeleteResult reports the outcome of a note deletion.
type DeleteResult struct {
	NoteID        string `json:"note_id"`
	ChunksDeleted int64  `json:"chunks_deleted"`
	Found         bool   `json:"found"`
}

// NoteSummary is one entry of a note listing: the note id plus its
// user-supplied metadata, with chunk bookkeeping keys stripped.
type NoteSummary struct {
	NoteID    string            `json:"note_id"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// Stats describes the stored collection.
type Stats struct {
	CollectionName     string `json:"collection_name"`
	TotalChunks        int64  `json:"total_chunks"`
	EmbeddingDimension int    `json:"embedding_dimension"`
}
