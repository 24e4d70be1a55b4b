package rag

import "fmt"

// Chunking and ingestion defaults for the main note pipeline.
const (
	// DefaultChunkSize is the maximum chunk length in bytes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the shared span between consecutive chunks.
	DefaultChunkOverlap = 200

	// DefaultBatchSize is the number of chunks embedded and written per
	// ingest batch.
	DefaultBatchSize = 50
)

// Retrieval tuning.
const (
	// CandidatePoolSize is the fixed number of candidates fetched for
	// reranking, independent of the requested k.
	CandidatePoolSize = 50

	// MaxTopK caps the number of results a single query may request.
	MaxTopK = 50
)

// Metadata bookkeeping keys written to every stored chunk.
// They position a chunk within its note and are stripped from listing
// output.
const (
	MetaNoteID      = "note_id"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
)

// ChunkID returns the deterministic id of a note's chunk.
// The format is a stable contract: neighbor lookup during context expansion
// reconstructs adjacent ids from it.
func ChunkID(noteID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", noteID, index)
}
