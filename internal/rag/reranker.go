package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Reranker rescores candidate texts against a query with a cross-encoder.
// Scores are returned aligned with the input texts; higher is more relevant.
//
// Reranking is a best-effort capability: the retriever treats any error as a
// signal to fall back to vector distance ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// HTTPReranker talks to a local rerank server speaking the common
// POST /rerank JSON protocol (TEI-compatible):
//
//	request:  {"query": "...", "texts": ["...", ...], "model": "..."}
//	response: [{"index": 0, "score": 0.93}, ...]
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPReranker creates a rerank client for the server at baseURL.
func NewHTTPReranker(baseURL, model string, logger *slog.Logger) *HTTPReranker {
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPReranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores texts against query. Texts the server does not mention keep
// score 0.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Query: query,
		Texts: texts,
		Model: r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Warn("failed to close rerank response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		// Read a bounded slice of the body for the error message
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank server returned %d: %s", resp.StatusCode, snippet)
	}

	var entries []rerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make([]float64, len(texts))
	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(texts) {
			return nil, fmt.Errorf("rerank response index %d out of range [0,%d)", e.Index, len(texts))
		}
		scores[e.Index] = e.Score
	}
	return scores, nil
}
