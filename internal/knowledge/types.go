package knowledge

import "time"

// Chunk represents a stored note chunk.
// Metadata is map[string]string: note metadata plus the bookkeeping keys
// note_id, chunk_index and total_chunks written at ingest time.
type Chunk struct {
	ID        string            // "{note_id}_chunk_{index}"
	Text      string            // Chunk text content
	Metadata  map[string]string // Note metadata + chunk bookkeeping
	CreatedAt time.Time         // Insertion timestamp
}

// Result represents a single vector search result.
type Result struct {
	Chunk
	Distance float64 // Cosine distance (0 = identical direction)
}
