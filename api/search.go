package api

import (
	"encoding/json"
	"net/http"

	"github.com/recallhq/recall/internal/log"
	"github.com/recallhq/recall/internal/rag"
)

// SearchHandler handles the semantic search endpoint.
type SearchHandler struct {
	service NoteService
	logger  log.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service NoteService, logger log.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: logger}
}

// RegisterRoutes registers search routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
}

// SearchRequest is the request body for a semantic search.
// TopK defaults to 5 when omitted; Filter keys must all match a
// chunk's metadata for it to qualify.
type SearchRequest struct {
	Query  string            `json:"query"`
	TopK   int               `json:"top_k"`
	Filter map[string]string `json:"filter"`
}

// SearchResponse is the response body for a semantic search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []rag.SearchResult `json:"results"`
	Total   int                `json:"total"`
}

// search embeds the query and returns the top matching chunks with
// surrounding context.
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.TopK == 0 {
		req.TopK = 5
	}

	results, err := h.service.Query(r.Context(), req.Query, req.TopK, req.Filter)
	if err != nil {
		status := serviceErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("search failed", "error", err)
		}
		writeError(w, status, "search failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   req.Query,
		Results: results,
		Total:   len(results),
	})
}
