// Package embed defines the embedding port used by ingestion and retrieval.
//
// Callers depend on the Embedder interface; the genkit-backed adapter in
// genkit.go is the production implementation. Failures are classified into
// two sentinel errors so callers can distinguish a slow provider from an
// absent one with errors.Is.
package embed

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable indicates the embedding provider could not be reached
	// or returned a transport-level failure.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrTimeout indicates a single embedding call exceeded its deadline.
	ErrTimeout = errors.New("embedding request timed out")
)

// Embedder produces dense vectors for text.
//
// Implementations must be safe for concurrent use: EmbedBatch issues one
// concurrent EmbedOne-equivalent call per input.
type Embedder interface {
	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds every text concurrently, preserving input order.
	// Any single failure fails the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the embedding dimension for the configured model,
	// or 0 if it is not yet known.
	Dimension() int
}
