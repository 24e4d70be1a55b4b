package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"
)

// knownDimensions maps embedder model names to their output dimensions.
// Models not listed here report dimension 0 until the first successful call.
var knownDimensions = map[string]int{
	// Ollama
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
	// Google
	"text-embedding-004":   768,
	"gemini-embedding-001": 3072,
	// OpenAI
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder port.
// Each call gets its own deadline so one stuck provider request cannot hold
// an ingest batch open indefinitely.
type GenkitEmbedder struct {
	embedder ai.Embedder
	model    string
	timeout  time.Duration
	dim      atomic.Int64
	logger   *slog.Logger
}

// NewGenkitEmbedder creates the production embedder adapter.
// model is the bare model name (e.g. "nomic-embed-text") and is used only
// for dimension lookup and logging.
func NewGenkitEmbedder(embedder ai.Embedder, model string, timeout time.Duration, logger *slog.Logger) *GenkitEmbedder {
	if logger == nil {
		logger = slog.Default()
	}

	e := &GenkitEmbedder{
		embedder: embedder,
		model:    model,
		timeout:  timeout,
		logger:   logger,
	}
	if dim, ok := knownDimensions[model]; ok {
		e.dim.Store(int64(dim))
	}
	return e
}

// EmbedOne embeds a single text with a per-call deadline.
func (e *GenkitEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.embedder.Embed(callCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: model %s after %s: %v", ErrTimeout, e.model, e.timeout, err)
		}
		return nil, fmt.Errorf("%w: model %s: %v", ErrUnavailable, e.model, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: model %s returned an empty embedding", ErrUnavailable, e.model)
	}

	vec := resp.Embeddings[0].Embedding

	// Cache the dimension from the first successful call for models missing
	// from the known-dimensions table.
	if e.dim.CompareAndSwap(0, int64(len(vec))) {
		e.logger.Debug("discovered embedding dimension", "model", e.model, "dimension", len(vec))
	}

	return vec, nil
}

// EmbedBatch embeds every text concurrently and preserves input order.
// Any single failure cancels the remaining calls and fails the batch.
func (e *GenkitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.EmbedOne(gctx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimension reports the embedding dimension, or 0 if not yet known.
func (e *GenkitEmbedder) Dimension() int {
	return int(e.dim.Load())
}
