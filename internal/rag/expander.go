package rag

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/recallhq/recall/internal/knowledge"
)

// NeighborFetcher is the slice of the chunk store the expander needs.
type NeighborFetcher interface {
	GetByIDs(ctx context.Context, ids []string) ([]knowledge.Chunk, error)
}

// Expander merges each search result with its neighboring chunks so the
// caller sees surrounding context instead of an isolated fragment.
//
// Expansion never fails a query: a neighbor fetch error returns the inputs
// unmodified with a warning logged.
type Expander struct {
	store  NeighborFetcher
	logger *slog.Logger
}

// NewExpander creates an Expander over the given store.
func NewExpander(store NeighborFetcher, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}

	return &Expander{
		store:  store,
		logger: logger,
	}
}

// neighborRequest holds the neighbor ids computed for one result.
// ok is false when the result's metadata lacks the chunk bookkeeping keys.
type neighborRequest struct {
	prevID string
	nextID string
	ok     bool
}

// Expand rewrites each result's Text to a merged context block and records
// expansion bookkeeping on it.
//
// All neighbor ids across all results are deduplicated and fetched in a
// single store round trip. A result without positional metadata is passed
// through untouched (ContextExpanded stays false); a missing neighbor is not
// an error. Single-chunk notes still expand, producing only the main block.
func (e *Expander) Expand(ctx context.Context, results []SearchResult) []SearchResult {
	if len(results) == 0 {
		return results
	}

	requests := make([]neighborRequest, len(results))
	var neighborIDs []string
	seen := make(map[string]struct{})

	for i, res := range results {
		noteID := res.Metadata[MetaNoteID]
		idxStr := res.Metadata[MetaChunkIndex]
		totalStr := res.Metadata[MetaTotalChunks]
		if noteID == "" || idxStr == "" || totalStr == "" {
			continue
		}

		idx, idxErr := strconv.Atoi(idxStr)
		total, totalErr := strconv.Atoi(totalStr)
		if idxErr != nil || totalErr != nil {
			e.logger.Warn("unparseable chunk position metadata",
				"chunk_id", res.ID, "chunk_index", idxStr, "total_chunks", totalStr)
			continue
		}

		req := neighborRequest{ok: true}
		if idx > 0 {
			req.prevID = ChunkID(noteID, idx-1)
		}
		if idx < total-1 {
			req.nextID = ChunkID(noteID, idx+1)
		}
		requests[i] = req

		for _, id := range []string{req.prevID, req.nextID} {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				neighborIDs = append(neighborIDs, id)
			}
		}
	}

	// One round trip for every neighbor of every result.
	neighborText := make(map[string]string)
	if len(neighborIDs) > 0 {
		chunks, err := e.store.GetByIDs(ctx, neighborIDs)
		if err != nil {
			e.logger.Warn("neighbor fetch failed, returning results unexpanded",
				"error", err, "neighbor_count", len(neighborIDs))
			return results
		}
		for _, c := range chunks {
			neighborText[c.ID] = c.Text
		}
	}

	expanded := make([]SearchResult, len(results))
	copy(expanded, results)

	for i := range expanded {
		req := requests[i]
		if !req.ok {
			continue
		}

		res := &expanded[i]
		info := &ExpansionInfo{}
		parts := make([]string, 0, 3)

		if text, found := neighborText[req.prevID]; req.prevID != "" && found {
			parts = append(parts, "[Previous Context]\n"+text)
			info.HasPrevious = true
			info.PreviousChunkID = req.prevID
		}

		parts = append(parts, "[Main Match]\n"+res.Text)

		if text, found := neighborText[req.nextID]; req.nextID != "" && found {
			parts = append(parts, "[Next Context]\n"+text)
			info.HasNext = true
			info.NextChunkID = req.nextID
		}

		res.OriginalText = res.Text
		res.Text = strings.Join(parts, "\n\n")
		res.ContextExpanded = true
		res.Expansion = info
	}

	return expanded
}
