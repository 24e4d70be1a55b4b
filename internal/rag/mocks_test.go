package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/recallhq/recall/internal/knowledge"
)

// mockStore implements ChunkStore with injectable behavior and call tracking.
type mockStore struct {
	// Injected behavior
	queryResults []knowledge.Result
	queryErr     error
	chunksByID   map[string]knowledge.Chunk
	getByIDsErr  error
	byNote       []knowledge.Chunk
	byNoteErr    error
	deleteCount  int64
	deleteErr    error
	listChunks   []knowledge.Chunk
	listErr      error
	count        int64
	countErr     error
	resetErr     error
	upsertErr    error

	// Call tracking
	upsertCalls   int
	upsertedIDs   []string
	upsertedTexts []string
	upsertedMetas []map[string]string
	queryCalls    int
	lastQueryN    int
	lastFilter    map[string]string
	getByIDsCalls int
	lastGetIDs    []string
	deletedIDs    []string
	lastListLimit int32
	resetCalls    int
}

func (m *mockStore) UpsertBatch(_ context.Context, ids []string, _ [][]float32, texts []string, metadatas []map[string]string) error {
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertedIDs = append(m.upsertedIDs, ids...)
	m.upsertedTexts = append(m.upsertedTexts, texts...)
	m.upsertedMetas = append(m.upsertedMetas, metadatas...)
	return nil
}

func (m *mockStore) Query(_ context.Context, _ []float32, n int, filter map[string]string) ([]knowledge.Result, error) {
	m.queryCalls++
	m.lastQueryN = n
	m.lastFilter = filter
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryResults, nil
}

func (m *mockStore) GetByIDs(_ context.Context, ids []string) ([]knowledge.Chunk, error) {
	m.getByIDsCalls++
	m.lastGetIDs = ids
	if m.getByIDsErr != nil {
		return nil, m.getByIDsErr
	}
	var chunks []knowledge.Chunk
	for _, id := range ids {
		if c, ok := m.chunksByID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (m *mockStore) GetByNoteID(_ context.Context, _ string) ([]knowledge.Chunk, error) {
	if m.byNoteErr != nil {
		return nil, m.byNoteErr
	}
	return m.byNote, nil
}

func (m *mockStore) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deletedIDs = append(m.deletedIDs, ids...)
	if m.deleteCount > 0 {
		return m.deleteCount, nil
	}
	return int64(len(ids)), nil
}

func (m *mockStore) List(_ context.Context, limit int32) ([]knowledge.Chunk, error) {
	m.lastListLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listChunks, nil
}

func (m *mockStore) Count(_ context.Context) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.count, nil
}

func (m *mockStore) Reset(_ context.Context) error {
	m.resetCalls++
	return m.resetErr
}

// mockEmbedder implements embed.Embedder with deterministic hash vectors.
// failBatches marks EmbedBatch invocations (1-based) that should fail.
type mockEmbedder struct {
	mu          sync.Mutex
	dim         int
	oneErr      error
	failBatches map[int]bool
	oneCalls    int
	batchCalls  int
}

func (m *mockEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.oneCalls++
	m.mu.Unlock()
	if m.oneErr != nil {
		return nil, m.oneErr
	}
	return hashVector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	call := m.batchCalls
	m.mu.Unlock()

	if m.failBatches[call] {
		return nil, errors.New("embedding backend unavailable")
	}

	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = hashVector(t)
	}
	return vectors, nil
}

func (m *mockEmbedder) Dimension() int {
	if m.dim > 0 {
		return m.dim
	}
	return 8
}

// hashVector derives a deterministic unit vector from text.
// Identical texts map to identical vectors, so querying with a stored
// chunk's exact text yields distance 0 against that chunk.
func hashVector(text string) []float32 {
	const dims = 8
	vec := make([]float32, dims)
	var norm float64
	for i := range dims {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		v := float32(h.Sum32()%1000)/500 - 1 // [-1, 1)
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// mockReranker implements Reranker scoring by a text lookup table.
type mockReranker struct {
	scores    map[string]float64
	err       error
	calls     int
	lastQuery string
	lastTexts []string
}

func (m *mockReranker) Rerank(_ context.Context, query string, texts []string) ([]float64, error) {
	m.calls++
	m.lastQuery = query
	m.lastTexts = texts
	if m.err != nil {
		return nil, m.err
	}
	scores := make([]float64, len(texts))
	for i, t := range texts {
		scores[i] = m.scores[t]
	}
	return scores, nil
}

// memStore is an in-memory ChunkStore with real cosine KNN, used for
// end-to-end pipeline tests without a database.
type memStore struct {
	mu      sync.Mutex
	vectors map[string][]float32
	chunks  map[string]knowledge.Chunk
}

func newMemStore() *memStore {
	return &memStore{
		vectors: make(map[string][]float32),
		chunks:  make(map[string]knowledge.Chunk),
	}
}

func (m *memStore) UpsertBatch(_ context.Context, ids []string, vectors [][]float32, texts []string, metadatas []map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		m.vectors[id] = vectors[i]
		m.chunks[id] = knowledge.Chunk{ID: id, Text: texts[i], Metadata: metadatas[i]}
	}
	return nil
}

func (m *memStore) Query(_ context.Context, vector []float32, n int, filter map[string]string) ([]knowledge.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []knowledge.Result
	for id, vec := range m.vectors {
		c := m.chunks[id]
		if !matchesFilter(c.Metadata, filter) {
			continue
		}
		results = append(results, knowledge.Result{
			Chunk:    c,
			Distance: cosineDistance(vector, vec),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []string) ([]knowledge.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []knowledge.Chunk
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (m *memStore) GetByNoteID(_ context.Context, noteID string) ([]knowledge.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []knowledge.Chunk
	for _, c := range m.chunks {
		if c.Metadata[MetaNoteID] == noteID {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (m *memStore) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := m.chunks[id]; ok {
			delete(m.chunks, id)
			delete(m.vectors, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) List(_ context.Context, limit int32) ([]knowledge.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []knowledge.Chunk
	for _, c := range m.chunks {
		chunks = append(chunks, c)
	}
	if int32(len(chunks)) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (m *memStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.chunks)), nil
}

func (m *memStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = make(map[string][]float32)
	m.chunks = make(map[string]knowledge.Chunk)
	return nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
