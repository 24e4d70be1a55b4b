package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/recallhq/recall/internal/knowledge"
	"github.com/recallhq/recall/internal/log"
)

func candidate(id, text string, distance float64) knowledge.Result {
	return knowledge.Result{
		Chunk:    knowledge.Chunk{ID: id, Text: text, Metadata: map[string]string{}},
		Distance: distance,
	}
}

func newTestRetriever(store *mockStore, reranker Reranker) *Retriever {
	logger := log.NewNop()
	return NewRetriever(store, &mockEmbedder{}, reranker, NewExpander(store, logger), logger)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := newTestRetriever(&mockStore{}, nil)

	for _, query := range []string{"", "   ", "\n\t"} {
		if _, err := r.Retrieve(context.Background(), query, 5, nil); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Retrieve(%q) err = %v, want ErrEmptyQuery", query, err)
		}
	}
}

func TestRetrieveEmbedFailurePropagates(t *testing.T) {
	store := &mockStore{}
	logger := log.NewNop()
	embedder := &mockEmbedder{oneErr: errors.New("provider down")}
	r := NewRetriever(store, embedder, nil, NewExpander(store, logger), logger)

	if _, err := r.Retrieve(context.Background(), "question", 5, nil); err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if store.queryCalls != 0 {
		t.Errorf("store queried %d times despite embed failure", store.queryCalls)
	}
}

func TestRetrieveStoreFailurePropagates(t *testing.T) {
	store := &mockStore{queryErr: errors.New("db down")}
	r := newTestRetriever(store, nil)

	if _, err := r.Retrieve(context.Background(), "question", 5, nil); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestRetrieveNoCandidates(t *testing.T) {
	store := &mockStore{}
	r := newTestRetriever(store, nil)

	results, err := r.Retrieve(context.Background(), "question", 5, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestRetrieveFetchesFixedCandidatePool(t *testing.T) {
	store := &mockStore{
		queryResults: []knowledge.Result{candidate("a", "alpha", 0.1)},
	}
	r := newTestRetriever(store, nil)

	filter := map[string]string{"subject": "go"}
	if _, err := r.Retrieve(context.Background(), "question", 3, filter); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// The pool size is fixed regardless of k.
	if store.lastQueryN != CandidatePoolSize {
		t.Errorf("candidate pool = %d, want %d", store.lastQueryN, CandidatePoolSize)
	}
	if store.lastFilter["subject"] != "go" {
		t.Errorf("filter not passed through: %v", store.lastFilter)
	}
}

func TestRetrieveDistanceOrderWithoutReranker(t *testing.T) {
	store := &mockStore{
		queryResults: []knowledge.Result{
			candidate("a", "alpha", 0.1),
			candidate("b", "beta", 0.2),
			candidate("c", "gamma", 0.3),
		},
	}
	r := newTestRetriever(store, nil)

	results, err := r.Retrieve(context.Background(), "question", 2, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s; want a, b", results[0].ID, results[1].ID)
	}
	for _, res := range results {
		if res.Reranked {
			t.Errorf("result %s marked reranked without a reranker", res.ID)
		}
	}
}

func TestRetrieveRerankedOrder(t *testing.T) {
	store := &mockStore{
		queryResults: []knowledge.Result{
			candidate("a", "alpha", 0.1),
			candidate("b", "beta", 0.2),
			candidate("c", "gamma", 0.3),
		},
	}
	reranker := &mockReranker{scores: map[string]float64{
		"alpha": 0.1,
		"beta":  0.9,
		"gamma": 0.5,
	}}
	r := newTestRetriever(store, reranker)

	results, err := r.Retrieve(context.Background(), "question", 2, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// Reranker sees the whole pool and the raw query.
	if reranker.calls != 1 {
		t.Fatalf("reranker calls = %d, want 1", reranker.calls)
	}
	if reranker.lastQuery != "question" {
		t.Errorf("reranker query = %q, want raw query", reranker.lastQuery)
	}
	if len(reranker.lastTexts) != 3 {
		t.Errorf("reranker saw %d texts, want 3", len(reranker.lastTexts))
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "b" || results[1].ID != "c" {
		t.Errorf("order = %s, %s; want b, c", results[0].ID, results[1].ID)
	}
	if !results[0].Reranked || results[0].RerankScore != 0.9 {
		t.Errorf("winner = %+v, want reranked with score 0.9", results[0])
	}
	// Vector distance survives on reranked results
	if results[0].Distance != 0.2 {
		t.Errorf("winner distance = %v, want 0.2", results[0].Distance)
	}
}

func TestRetrieveRerankFailureFallsBack(t *testing.T) {
	store := &mockStore{
		queryResults: []knowledge.Result{
			candidate("a", "alpha", 0.1),
			candidate("b", "beta", 0.2),
		},
	}
	reranker := &mockReranker{err: errors.New("rerank server down")}
	r := newTestRetriever(store, reranker)

	results, err := r.Retrieve(context.Background(), "question", 2, nil)
	if err != nil {
		t.Fatalf("Retrieve should absorb rerank failure, got: %v", err)
	}

	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("fallback order = %s, %s; want a, b", results[0].ID, results[1].ID)
	}
	for _, res := range results {
		if res.Reranked {
			t.Errorf("result %s marked reranked after rerank failure", res.ID)
		}
	}
}

func TestRetrieveClampsK(t *testing.T) {
	var pool []knowledge.Result
	for i := 0; i < 60; i++ {
		pool = append(pool, candidate(string(rune('a'+i%26))+strings.Repeat("x", i), "text", float64(i)/100))
	}
	store := &mockStore{queryResults: pool[:50]}
	r := newTestRetriever(store, nil)

	results, err := r.Retrieve(context.Background(), "question", 0, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("k=0 clamped to %d results, want 1", len(results))
	}

	results, err = r.Retrieve(context.Background(), "question", 500, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != MaxTopK {
		t.Errorf("k=500 clamped to %d results, want %d", len(results), MaxTopK)
	}
}

func TestRetrieveExpandsWinners(t *testing.T) {
	noteID := "note-1"
	meta := func(idx string) map[string]string {
		return map[string]string{
			MetaNoteID:      noteID,
			MetaChunkIndex:  idx,
			MetaTotalChunks: "3",
		}
	}
	store := &mockStore{
		queryResults: []knowledge.Result{
			{Chunk: knowledge.Chunk{ID: ChunkID(noteID, 1), Text: "middle", Metadata: meta("1")}, Distance: 0.1},
		},
		chunksByID: map[string]knowledge.Chunk{
			ChunkID(noteID, 0): {ID: ChunkID(noteID, 0), Text: "start"},
			ChunkID(noteID, 2): {ID: ChunkID(noteID, 2), Text: "end"},
		},
	}
	r := newTestRetriever(store, nil)

	results, err := r.Retrieve(context.Background(), "question", 1, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if !res.ContextExpanded {
		t.Fatal("winner was not context expanded")
	}
	if !strings.Contains(res.Text, "[Previous Context]\nstart") ||
		!strings.Contains(res.Text, "[Main Match]\nmiddle") ||
		!strings.Contains(res.Text, "[Next Context]\nend") {
		t.Errorf("expanded text missing blocks:\n%s", res.Text)
	}
	if res.OriginalText != "middle" {
		t.Errorf("original text = %q, want middle", res.OriginalText)
	}
}
