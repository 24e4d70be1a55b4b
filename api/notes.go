package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/recallhq/recall/internal/embed"
	"github.com/recallhq/recall/internal/log"
	"github.com/recallhq/recall/internal/rag"
)

// Request validation constants.
const (
	// MaxIngestBytes bounds the ingest request body. Notes larger than
	// this should be split by the caller.
	MaxIngestBytes = 10 << 20 // 10 MiB

	DefaultNoteListLimit = 20
	MaxNoteListLimit     = 1000
)

// NoteService is the note lifecycle consumed by the HTTP handlers.
// *rag.Service satisfies it.
type NoteService interface {
	Ingest(ctx context.Context, text string, metadata map[string]string) (*rag.IngestResult, error)
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]rag.SearchResult, error)
	Delete(ctx context.Context, noteID string) (*rag.DeleteResult, error)
	List(ctx context.Context, limit int) ([]rag.NoteSummary, error)
	Stats(ctx context.Context) (*rag.Stats, error)
	Reset(ctx context.Context) error
}

// NotesHandler handles note lifecycle HTTP endpoints.
type NotesHandler struct {
	service NoteService
	logger  log.Logger
}

// NewNotesHandler creates a new notes handler.
func NewNotesHandler(service NoteService, logger log.Logger) *NotesHandler {
	return &NotesHandler{service: service, logger: logger}
}

// RegisterRoutes registers note routes on the given mux.
func (h *NotesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/notes", h.ingest)
	mux.HandleFunc("GET /api/notes", h.list)
	mux.HandleFunc("DELETE /api/notes/{id}", h.delete)
	mux.HandleFunc("GET /api/stats", h.stats)
	mux.HandleFunc("POST /api/reset", h.reset)
}

// IngestRequest is the request body for ingesting a note.
type IngestRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// ingest chunks, embeds and stores a note.
func (h *NotesHandler) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxIngestBytes)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.service.Ingest(r.Context(), req.Text, req.Metadata)
	if err != nil {
		h.writeServiceError(w, "ingest failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// list returns stored notes, newest first.
// Query parameters:
//   - limit: Maximum number of notes to return (default: 20, max: 1000)
func (h *NotesHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultNoteListLimit, 1, MaxNoteListLimit)

	notes, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list notes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notes", "")
		return
	}

	resp := map[string]any{
		"notes": notes,
		"total": len(notes),
		"limit": limit,
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete removes every chunk of a note.
func (h *NotesHandler) delete(w http.ResponseWriter, r *http.Request) {
	noteID := r.PathValue("id")
	if noteID == "" {
		writeError(w, http.StatusBadRequest, "missing note id", "")
		return
	}

	result, err := h.service.Delete(r.Context(), noteID)
	if err != nil {
		h.writeServiceError(w, "delete failed", err)
		return
	}

	if !result.Found {
		writeError(w, http.StatusNotFound, "note not found", noteID)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// stats reports collection-level figures.
func (h *NotesHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to collect stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to collect stats", "")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// reset wipes the whole collection.
func (h *NotesHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.writeServiceError(w, "reset failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeServiceError maps service errors to HTTP status codes.
func (h *NotesHandler) writeServiceError(w http.ResponseWriter, action string, err error) {
	status := serviceErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(action, "error", err)
	}
	writeError(w, status, action, err.Error())
}

// serviceErrorStatus maps note lifecycle errors to HTTP status codes.
// Validation failures are the client's fault, embedding backend trouble
// maps to the gateway statuses.
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyText),
		errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, rag.ErrNoChunks):
		return http.StatusBadRequest
	case errors.Is(err, embed.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, embed.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
