package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/recallhq/recall/internal/embed"
)

// Retriever runs the retrieve-then-rerank search pipeline.
//
// A fixed candidate pool is fetched by vector distance; when a reranker is
// configured the whole pool is rescored against the raw query before the top
// k winners are cut. Rerank failures silently fall back to distance ordering
// so the optional capability can never break search.
type Retriever struct {
	store    ChunkStore
	embedder embed.Embedder
	reranker Reranker // nil when reranking is disabled
	expander *Expander
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. reranker may be nil to disable
// reranking.
func NewRetriever(store ChunkStore, embedder embed.Embedder, reranker Reranker, expander *Expander, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}

	return &Retriever{
		store:    store,
		embedder: embedder,
		reranker: reranker,
		expander: expander,
		logger:   logger,
	}
}

// Retrieve returns the top k context-expanded results for query.
// k is clamped to [1, MaxTopK]. An empty query is ErrEmptyQuery; embedding
// and candidate retrieval failures propagate.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	k = clampTopK(k)

	vec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := r.store.Query(ctx, vec, CandidatePoolSize, filter)
	if err != nil {
		return nil, fmt.Errorf("candidate retrieval failed: %w", err)
	}
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = SearchResult{
			ID:       c.ID,
			Text:     c.Text,
			Metadata: c.Metadata,
			Distance: c.Distance,
		}
	}

	winners := r.rankAndCut(ctx, query, results, k)

	return r.expander.Expand(ctx, winners), nil
}

// rankAndCut orders the candidate pool and returns the top k.
// With a healthy reranker the order is rerank score descending (stable, so
// distance breaks ties); otherwise the store's distance-ascending order is
// kept.
func (r *Retriever) rankAndCut(ctx context.Context, query string, results []SearchResult, k int) []SearchResult {
	if r.reranker != nil {
		texts := make([]string, len(results))
		for i := range results {
			texts[i] = results[i].Text
		}

		scores, err := r.reranker.Rerank(ctx, query, texts)
		switch {
		case err != nil:
			r.logger.Warn("rerank failed, falling back to vector distance", "error", err)
		case len(scores) != len(results):
			r.logger.Warn("rerank returned mismatched score count, falling back to vector distance",
				"scores", len(scores), "candidates", len(results))
		default:
			for i := range results {
				results[i].RerankScore = scores[i]
				results[i].Reranked = true
			}
			sort.SliceStable(results, func(i, j int) bool {
				return results[i].RerankScore > results[j].RerankScore
			})
			return results[:min(k, len(results))]
		}
	}

	return results[:min(k, len(results))]
}

func clampTopK(k int) int {
	if k < 1 {
		return 1
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}
