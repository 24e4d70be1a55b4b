// Package knowledge provides persistent chunk storage with vector search
// over PostgreSQL + pgvector.
//
// The store holds pre-embedded chunks; embedding generation belongs to the
// caller. This keeps the storage layer free of provider concerns and makes
// batch ingestion (embed many, then write many) a natural fit.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/recallhq/recall/internal/sqlc"
)

// searchTimeout bounds a single vector search query so a slow KNN scan
// cannot block callers indefinitely.
const searchTimeout = 10 * time.Second

// Querier defines the interface for database operations on chunks.
// Following Go best practices: interfaces are defined by the consumer, not
// the provider (similar to http.RoundTripper, sql.Driver, io.Reader).
//
// This lets Store depend on an abstraction rather than the concrete sqlc
// implementation, improving testability.
type Querier interface {
	// UpsertChunk inserts or updates a chunk
	UpsertChunk(ctx context.Context, arg sqlc.UpsertChunkParams) error

	// SearchChunks performs filtered vector search
	SearchChunks(ctx context.Context, arg sqlc.SearchChunksParams) ([]sqlc.SearchChunksRow, error)

	// SearchChunksAll performs unfiltered vector search
	SearchChunksAll(ctx context.Context, arg sqlc.SearchChunksAllParams) ([]sqlc.SearchChunksAllRow, error)

	// GetChunksByIDs fetches chunks by id; absent ids are silently missing
	GetChunksByIDs(ctx context.Context, ids []string) ([]sqlc.GetChunksByIDsRow, error)

	// GetChunksByNoteID fetches all chunks of a note in chunk order
	GetChunksByNoteID(ctx context.Context, noteID string) ([]sqlc.GetChunksByNoteIDRow, error)

	// DeleteChunksByIDs deletes chunks by id and reports the count
	DeleteChunksByIDs(ctx context.Context, ids []string) (int64, error)

	// ListChunks lists chunks newest first
	ListChunks(ctx context.Context, resultLimit int32) ([]sqlc.ListChunksRow, error)

	// CountChunks counts all chunks
	CountChunks(ctx context.Context) (int64, error)

	// TruncateChunks removes every chunk
	TruncateChunks(ctx context.Context) error
}

// Store manages note chunks with vector search capabilities.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries Querier
	logger  *slog.Logger
}

// New creates a new Store instance.
//
// Example (production):
//
//	store := knowledge.New(sqlc.New(dbPool), logger)
//
// Example (testing with mock):
//
//	store := knowledge.New(mockQuerier, log.NewNop())
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		queries: querier,
		logger:  logger,
	}
}

// UpsertBatch writes a batch of pre-embedded chunks.
// All slices must have equal length; element i of each slice describes the
// same chunk. Existing ids are overwritten (idempotent re-ingest).
func (s *Store) UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, texts []string, metadatas []map[string]string) error {
	if len(ids) != len(vectors) || len(ids) != len(texts) || len(ids) != len(metadatas) {
		return fmt.Errorf("mismatched batch lengths: ids=%d vectors=%d texts=%d metadatas=%d",
			len(ids), len(vectors), len(texts), len(metadatas))
	}

	for i, id := range ids {
		metadataJSON, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for chunk %q: %w", id, err)
		}

		embedding := pgvector.NewVector(vectors[i])

		if err := s.queries.UpsertChunk(ctx, sqlc.UpsertChunkParams{
			ID:        id,
			Content:   texts[i],
			Embedding: &embedding,
			Metadata:  metadataJSON,
		}); err != nil {
			return fmt.Errorf("failed to upsert chunk %q: %w", id, err)
		}
	}

	s.logger.Debug("upserted chunk batch", "count", len(ids))
	return nil
}

// Query performs cosine KNN search over the stored chunks.
// Results are ordered by distance ascending. A non-empty filter restricts
// candidates to chunks whose metadata contains every key/value pair (AND
// semantics via the JSONB @> operator).
func (s *Store) Query(ctx context.Context, vector []float32, n int, filter map[string]string) ([]Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("result limit must be positive, got %d", n)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	queryEmbedding := pgvector.NewVector(vector)

	// SECURITY NOTE (SQL injection prevention):
	// - filterJSON is ALWAYS generated by json.Marshal (never raw user input)
	// - sqlc uses parameterized queries, and JSONB @> is safe with parameters
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", marshalErr)
		}
		rows, searchErr := s.queries.SearchChunks(queryCtx, sqlc.SearchChunksParams{
			QueryEmbedding: &queryEmbedding,
			FilterMetadata: filterJSON,
			ResultLimit:    int32(n),
		})
		if searchErr != nil {
			if errors.Is(searchErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("search query timeout: %w", searchErr)
			}
			return nil, fmt.Errorf("search failed: %w", searchErr)
		}
		return s.filteredRowsToResults(rows), nil
	}

	rows, err := s.queries.SearchChunksAll(queryCtx, sqlc.SearchChunksAllParams{
		QueryEmbedding: &queryEmbedding,
		ResultLimit:    int32(n),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return s.allRowsToResults(rows), nil
}

// GetByIDs fetches chunks by id in one round trip.
// Ids that do not exist are silently absent from the result; the caller is
// responsible for noticing missing neighbors.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.queries.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks by ids: %w", err)
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, s.toChunk(row.ID, row.Content, row.Metadata, row.CreatedAt))
	}
	return chunks, nil
}

// GetByNoteID fetches all chunks belonging to a note, in chunk order.
func (s *Store) GetByNoteID(ctx context.Context, noteID string) ([]Chunk, error) {
	rows, err := s.queries.GetChunksByNoteID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks for note %q: %w", noteID, err)
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, s.toChunk(row.ID, row.Content, row.Metadata, row.CreatedAt))
	}
	return chunks, nil
}

// DeleteByIDs removes chunks by id and returns the number actually deleted.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := s.queries.DeleteChunksByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}

	s.logger.Debug("deleted chunks", "requested", len(ids), "deleted", deleted)
	return deleted, nil
}

// List returns stored chunks newest first, up to limit.
func (s *Store) List(ctx context.Context, limit int32) ([]Chunk, error) {
	const maxListLimit = 10000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}

	rows, err := s.queries.ListChunks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, s.toChunk(row.ID, row.Content, row.Metadata, row.CreatedAt))
	}
	return chunks, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// Reset removes every stored chunk. Destructive and not undoable.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.queries.TruncateChunks(ctx); err != nil {
		return fmt.Errorf("failed to reset chunk store: %w", err)
	}

	s.logger.Info("chunk store reset")
	return nil
}

// toChunk converts raw row columns to the business model.
// Unparseable metadata is logged and replaced with an empty map rather than
// failing the whole read.
func (s *Store) toChunk(id, content string, metadataJSON []byte, createdAt pgtype.Timestamptz) Chunk {
	var metadata map[string]string
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		s.logger.Warn("failed to parse chunk metadata", "chunk_id", id, "error", err)
		metadata = make(map[string]string)
	}

	var created time.Time
	if createdAt.Valid {
		created = createdAt.Time
	}

	return Chunk{
		ID:        id,
		Text:      content,
		Metadata:  metadata,
		CreatedAt: created,
	}
}

func (s *Store) filteredRowsToResults(rows []sqlc.SearchChunksRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Chunk:    s.toChunk(row.ID, row.Content, row.Metadata, row.CreatedAt),
			Distance: row.Distance,
		})
	}
	return results
}

func (s *Store) allRowsToResults(rows []sqlc.SearchChunksAllRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Chunk:    s.toChunk(row.ID, row.Content, row.Metadata, row.CreatedAt),
			Distance: row.Distance,
		})
	}
	return results
}
