package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/recallhq/recall/internal/chunk"
	"github.com/recallhq/recall/internal/embed"
)

// DefaultListLimit is used when a listing caller passes no limit.
const DefaultListLimit = 20

// listOverFetchFactor compensates for deduplication: listing fetches this
// many chunks per requested note, since a note may own many chunks.
const listOverFetchFactor = 10

// ServiceConfig tunes the note lifecycle pipeline.
// Zero values fall back to the package defaults.
type ServiceConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Collection   string
}

// Service implements the note lifecycle: ingest, query, delete, list, stats
// and reset. It composes the chunker, the embedding port, the chunk store
// and the retriever.
//
// Service is safe for concurrent use. Concurrent ingests are not guarded
// against each other: every ingest mints a fresh note id, so their chunk id
// ranges are disjoint by construction.
type Service struct {
	store     ChunkStore
	embedder  embed.Embedder
	retriever *Retriever
	cfg       ServiceConfig
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewService creates the note lifecycle service.
func NewService(store ChunkStore, embedder embed.Embedder, retriever *Retriever, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Collection == "" {
		cfg.Collection = "notes"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:     store,
		embedder:  embedder,
		retriever: retriever,
		cfg:       cfg,
		// Voluntary backpressure between embedding batches, roughly one
		// batch per 500ms, so a large note cannot saturate the provider.
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		logger:  logger,
	}
}

// Ingest chunks, embeds and stores a note. It returns the generated note id
// and per-chunk accounting.
//
// Chunks are processed in batches; a failing batch is counted and skipped,
// and ingestion continues with the next one. Partial failure is a normal
// result. Only when every batch fails does Ingest return an error.
func (s *Service) Ingest(ctx context.Context, text string, metadata map[string]string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	chunks := chunk.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	noteID := uuid.NewString()
	total := len(chunks)

	s.logger.Info("ingesting note",
		"note_id", noteID, "chunks", total, "characters", len(text))

	var created, failed int
	var lastErr error

	for start := 0; start < total; start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, total)
		batch := chunks[start:end]

		// Pace batches after the first.
		if start > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("ingest canceled between batches: %w", err)
			}
		}

		ids := make([]string, len(batch))
		metadatas := make([]map[string]string, len(batch))
		for i := range batch {
			idx := start + i
			ids[i] = ChunkID(noteID, idx)

			meta := make(map[string]string, len(metadata)+3)
			for k, v := range metadata {
				meta[k] = v
			}
			meta[MetaNoteID] = noteID
			meta[MetaChunkIndex] = strconv.Itoa(idx)
			meta[MetaTotalChunks] = strconv.Itoa(total)
			metadatas[i] = meta
		}

		vectors, err := s.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			s.logger.Warn("embedding batch failed, skipping",
				"note_id", noteID, "batch_start", start, "batch_size", len(batch), "error", err)
			failed += len(batch)
			lastErr = err
			continue
		}

		if err := s.store.UpsertBatch(ctx, ids, vectors, batch, metadatas); err != nil {
			s.logger.Warn("storing batch failed, skipping",
				"note_id", noteID, "batch_start", start, "batch_size", len(batch), "error", err)
			failed += len(batch)
			lastErr = err
			continue
		}

		created += len(batch)
	}

	if created == 0 {
		return nil, fmt.Errorf("all %d chunks failed to ingest for note %s: %w", total, noteID, lastErr)
	}

	result := &IngestResult{
		NoteID:             noteID,
		ChunksCreated:      created,
		ChunksFailed:       failed,
		TotalChunks:        total,
		TotalCharacters:    len(text),
		EmbeddingDimension: s.embedder.Dimension(),
		SuccessRate:        float64(created) / float64(total) * 100,
	}

	s.logger.Info("note ingested",
		"note_id", noteID, "created", created, "failed", failed)
	return result, nil
}

// Query searches the stored notes. See Retriever.Retrieve for semantics.
func (s *Service) Query(ctx context.Context, text string, k int, filter map[string]string) ([]SearchResult, error) {
	return s.retriever.Retrieve(ctx, text, k, filter)
}

// Delete removes every chunk of a note. A note id with no stored chunks is
// reported via Found=false, not an error.
func (s *Service) Delete(ctx context.Context, noteID string) (*DeleteResult, error) {
	chunks, err := s.store.GetByNoteID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up note %s: %w", noteID, err)
	}

	if len(chunks) == 0 {
		return &DeleteResult{NoteID: noteID, Found: false}, nil
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	deleted, err := s.store.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete note %s: %w", noteID, err)
	}

	s.logger.Info("note deleted", "note_id", noteID, "chunks_deleted", deleted)
	return &DeleteResult{NoteID: noteID, ChunksDeleted: deleted, Found: true}, nil
}

// List returns up to limit distinct notes, newest chunk first.
// Chunk bookkeeping keys are stripped from the returned metadata.
func (s *Service) List(ctx context.Context, limit int) ([]NoteSummary, error) {
	if limit < 1 {
		limit = DefaultListLimit
	}

	// Over-fetch chunks, then deduplicate to notes.
	chunks, err := s.store.List(ctx, int32(limit*listOverFetchFactor))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	summaries := make([]NoteSummary, 0, limit)
	seen := make(map[string]struct{})

	for _, c := range chunks {
		noteID := c.Metadata[MetaNoteID]
		if noteID == "" {
			continue
		}
		if _, dup := seen[noteID]; dup {
			continue
		}
		seen[noteID] = struct{}{}

		meta := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			if k == MetaNoteID || k == MetaChunkIndex || k == MetaTotalChunks {
				continue
			}
			meta[k] = v
		}

		summaries = append(summaries, NoteSummary{
			NoteID:    noteID,
			Metadata:  meta,
			CreatedAt: c.CreatedAt,
		})
		if len(summaries) == limit {
			break
		}
	}

	return summaries, nil
}

// Stats reports collection-level figures.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	return &Stats{
		CollectionName:     s.cfg.Collection,
		TotalChunks:        count,
		EmbeddingDimension: s.embedder.Dimension(),
	}, nil
}

// Reset removes every stored chunk. Destructive and not undoable.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset note store: %w", err)
	}

	s.logger.Warn("note store reset, all chunks removed")
	return nil
}
