package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/recallhq/recall/internal/chunk"
	"github.com/recallhq/recall/internal/knowledge"
	"github.com/recallhq/recall/internal/log"
)

func newTestService(store ChunkStore, embedder *mockEmbedder, cfg ServiceConfig) *Service {
	logger := log.NewNop()
	retriever := NewRetriever(store, embedder, nil, NewExpander(store, logger), logger)
	return NewService(store, embedder, retriever, cfg, logger)
}

func TestIngestEmptyText(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockEmbedder{}, ServiceConfig{})

	for _, text := range []string{"", "   ", "\n\n"} {
		if _, err := svc.Ingest(context.Background(), text, nil); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Ingest(%q) err = %v, want ErrEmptyText", text, err)
		}
	}
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	// size 5 / overlap 3 turns this into 5 word-pair chunks, so batch
	// size 2 yields 3 batches.
	const text = "aa bb cc dd ee ff"
	cfg := ServiceConfig{ChunkSize: 5, ChunkOverlap: 3, BatchSize: 2}

	t.Run("happy path", func(t *testing.T) {
		store := &mockStore{}
		embedder := &mockEmbedder{}
		svc := newTestService(store, embedder, cfg)

		metadata := map[string]string{"subject": "testing"}
		result, err := svc.Ingest(ctx, text, metadata)
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}

		if result.NoteID == "" {
			t.Error("note id is empty")
		}
		if result.TotalChunks != 5 || result.ChunksCreated != 5 || result.ChunksFailed != 0 {
			t.Errorf("accounting = %+v, want 5 created of 5", result)
		}
		if result.TotalCharacters != len(text) {
			t.Errorf("total characters = %d, want %d", result.TotalCharacters, len(text))
		}
		if result.SuccessRate != 100 {
			t.Errorf("success rate = %v, want 100", result.SuccessRate)
		}
		if result.EmbeddingDimension != embedder.Dimension() {
			t.Errorf("dimension = %d, want %d", result.EmbeddingDimension, embedder.Dimension())
		}

		if embedder.batchCalls != 3 {
			t.Errorf("embed batches = %d, want 3", embedder.batchCalls)
		}
		if len(store.upsertedIDs) != 5 {
			t.Fatalf("upserted %d chunks, want 5", len(store.upsertedIDs))
		}

		// Deterministic chunk ids in document order
		for i, id := range store.upsertedIDs {
			if want := ChunkID(result.NoteID, i); id != want {
				t.Errorf("chunk %d id = %q, want %q", i, id, want)
			}
		}

		// Bookkeeping metadata on every chunk, user metadata preserved
		first := store.upsertedMetas[0]
		if first[MetaNoteID] != result.NoteID || first[MetaChunkIndex] != "0" || first[MetaTotalChunks] != "5" {
			t.Errorf("first chunk metadata = %v", first)
		}
		if first["subject"] != "testing" {
			t.Errorf("user metadata lost: %v", first)
		}

		// Caller's map is never mutated
		if len(metadata) != 1 {
			t.Errorf("caller metadata mutated: %v", metadata)
		}
	})

	t.Run("partial failure is a normal result", func(t *testing.T) {
		store := &mockStore{}
		embedder := &mockEmbedder{failBatches: map[int]bool{2: true}}
		svc := newTestService(store, embedder, cfg)

		result, err := svc.Ingest(ctx, text, nil)
		if err != nil {
			t.Fatalf("Ingest should tolerate a failed batch, got: %v", err)
		}

		if result.ChunksCreated != 3 || result.ChunksFailed != 2 {
			t.Errorf("accounting = created %d failed %d, want 3/2", result.ChunksCreated, result.ChunksFailed)
		}
		if result.SuccessRate != 60 {
			t.Errorf("success rate = %v, want 60", result.SuccessRate)
		}
		// The failed batch's chunks were never written
		if len(store.upsertedIDs) != 3 {
			t.Errorf("upserted %d chunks, want 3", len(store.upsertedIDs))
		}
	})

	t.Run("all batches failed is a hard error", func(t *testing.T) {
		store := &mockStore{}
		embedder := &mockEmbedder{failBatches: map[int]bool{1: true, 2: true, 3: true}}
		svc := newTestService(store, embedder, cfg)

		if _, err := svc.Ingest(ctx, text, nil); err == nil {
			t.Fatal("expected hard error when every batch fails")
		}
	})

	t.Run("store failure counts as batch failure", func(t *testing.T) {
		store := &mockStore{upsertErr: errors.New("disk full")}
		embedder := &mockEmbedder{}
		svc := newTestService(store, embedder, cfg)

		if _, err := svc.Ingest(ctx, text, nil); err == nil {
			t.Fatal("expected hard error when every upsert fails")
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("existing note", func(t *testing.T) {
		store := &mockStore{
			byNote: []knowledge.Chunk{
				{ID: "n1_chunk_0"},
				{ID: "n1_chunk_1"},
			},
		}
		svc := newTestService(store, &mockEmbedder{}, ServiceConfig{})

		result, err := svc.Delete(ctx, "n1")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if !result.Found || result.ChunksDeleted != 2 {
			t.Errorf("result = %+v, want found with 2 deleted", result)
		}
		if len(store.deletedIDs) != 2 {
			t.Errorf("deleted ids = %v, want 2", store.deletedIDs)
		}
	})

	t.Run("unknown note", func(t *testing.T) {
		store := &mockStore{}
		svc := newTestService(store, &mockEmbedder{}, ServiceConfig{})

		result, err := svc.Delete(ctx, "missing")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if result.Found {
			t.Error("unknown note reported as found")
		}
		if len(store.deletedIDs) != 0 {
			t.Errorf("delete issued for unknown note: %v", store.deletedIDs)
		}
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		store := &mockStore{byNoteErr: errors.New("db down")}
		svc := newTestService(store, &mockEmbedder{}, ServiceConfig{})

		if _, err := svc.Delete(ctx, "n1"); err == nil {
			t.Fatal("expected error from failing lookup")
		}
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	chunkOf := func(noteID, idx string, extra map[string]string) knowledge.Chunk {
		meta := map[string]string{
			MetaNoteID:      noteID,
			MetaChunkIndex:  idx,
			MetaTotalChunks: "2",
		}
		for k, v := range extra {
			meta[k] = v
		}
		return knowledge.Chunk{ID: noteID + "_chunk_" + idx, Metadata: meta}
	}

	store := &mockStore{
		listChunks: []knowledge.Chunk{
			chunkOf("n1", "0", map[string]string{"subject": "go"}),
			chunkOf("n1", "1", map[string]string{"subject": "go"}),
			chunkOf("n2", "0", map[string]string{"subject": "sql"}),
			{ID: "stray", Metadata: map[string]string{}}, // no note id
		},
	}
	svc := newTestService(store, &mockEmbedder{}, ServiceConfig{})

	notes, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	// Over-fetch to compensate for per-note chunk counts
	if store.lastListLimit != 100 {
		t.Errorf("store list limit = %d, want 100", store.lastListLimit)
	}

	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2 (deduplicated)", len(notes))
	}
	if notes[0].NoteID != "n1" || notes[1].NoteID != "n2" {
		t.Errorf("note order = %s, %s", notes[0].NoteID, notes[1].NoteID)
	}

	// Bookkeeping keys stripped, user metadata kept
	for _, n := range notes {
		if _, ok := n.Metadata[MetaNoteID]; ok {
			t.Errorf("note %s metadata still has %s", n.NoteID, MetaNoteID)
		}
		if _, ok := n.Metadata[MetaChunkIndex]; ok {
			t.Errorf("note %s metadata still has %s", n.NoteID, MetaChunkIndex)
		}
		if _, ok := n.Metadata[MetaTotalChunks]; ok {
			t.Errorf("note %s metadata still has %s", n.NoteID, MetaTotalChunks)
		}
		if n.Metadata["subject"] == "" {
			t.Errorf("note %s lost user metadata", n.NoteID)
		}
	}
}

func TestListCapsAtLimit(t *testing.T) {
	var chunks []knowledge.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, knowledge.Chunk{
			ID:       ChunkID(string(rune('a'+i)), 0),
			Metadata: map[string]string{MetaNoteID: string(rune('a' + i))},
		})
	}
	store := &mockStore{listChunks: chunks}
	svc := newTestService(store, &mockEmbedder{}, ServiceConfig{})

	notes, err := svc.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(notes) != 3 {
		t.Errorf("got %d notes, want 3", len(notes))
	}
}

func TestStats(t *testing.T) {
	store := &mockStore{count: 42}
	embedder := &mockEmbedder{dim: 768}
	svc := newTestService(store, embedder, ServiceConfig{Collection: "notes"})

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.CollectionName != "notes" || stats.TotalChunks != 42 || stats.EmbeddingDimension != 768 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReset(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockEmbedder{}, ServiceConfig{})

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if store.resetCalls != 1 {
		t.Errorf("reset calls = %d, want 1", store.resetCalls)
	}

	store.resetErr = errors.New("truncate failed")
	if err := svc.Reset(context.Background()); err == nil {
		t.Fatal("expected error from failing reset")
	}
}

// TestPipelineEndToEnd runs ingest and query through the real chunker,
// a deterministic embedder and an in-memory store with actual cosine
// ordering.
func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()

	var sb strings.Builder
	for i := 0; sb.Len() < 2500; i++ {
		sb.WriteString("Sentence number ")
		sb.WriteString(strings.Repeat("x", i%7+1))
		sb.WriteString(" talks about a different topic entirely. ")
	}
	text := sb.String()

	cfg := ServiceConfig{ChunkSize: 1000, ChunkOverlap: 200, BatchSize: 50, Collection: "notes"}
	store := newMemStore()
	embedder := &mockEmbedder{}
	svc := newTestService(store, embedder, cfg)

	result, err := svc.Ingest(ctx, text, map[string]string{"subject": "e2e"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.TotalChunks < 3 {
		t.Fatalf("got %d chunks, want at least 3 for a %d-char note", result.TotalChunks, len(text))
	}
	if result.ChunksFailed != 0 {
		t.Fatalf("unexpected failures: %+v", result)
	}

	// Query with the exact text of the second chunk: distance 0 makes it
	// the undisputed winner.
	chunks := chunk.Split(text, cfg.ChunkSize, cfg.ChunkOverlap)
	target := chunks[1]

	results, err := svc.Query(ctx, target, 1, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	res := results[0]
	if want := ChunkID(result.NoteID, 1); res.ID != want {
		t.Fatalf("winner = %s, want %s", res.ID, want)
	}
	if !res.ContextExpanded {
		t.Fatal("winner not context expanded")
	}
	if !strings.Contains(res.Text, "[Previous Context]\n") ||
		!strings.Contains(res.Text, "[Main Match]\n") ||
		!strings.Contains(res.Text, "[Next Context]\n") {
		t.Errorf("expanded text missing context blocks:\n%.200s", res.Text)
	}
	if res.OriginalText != target {
		t.Error("original text does not match the stored chunk")
	}

	// Metadata filter narrows the candidate pool
	filtered, err := svc.Query(ctx, target, 5, map[string]string{"subject": "nonexistent"})
	if err != nil {
		t.Fatalf("filtered Query failed: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("got %d results for a non-matching filter, want 0", len(filtered))
	}

	// Delete removes every chunk of the note
	del, err := svc.Delete(ctx, result.NoteID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !del.Found || del.ChunksDeleted != int64(result.TotalChunks) {
		t.Errorf("delete result = %+v, want %d chunks", del, result.TotalChunks)
	}

	count, err := store.Count(ctx)
	if err != nil || count != 0 {
		t.Errorf("store count after delete = %d (%v), want 0", count, err)
	}
}
