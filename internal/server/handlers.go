package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/quire/internal/index"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Handler holds API route handlers.
type Handler struct {
	idx index.PageIndex
}

// NewHandler creates a new Handler.
func NewHandler(idx index.PageIndex) *Handler {
	return &Handler{idx: idx}
}

// ListChapters handles GET /api/chapters.
func (h *Handler) ListChapters(w http.ResponseWriter, _ *http.Request) {
	rows, err := h.idx.ListChapters()
	if err != nil {
		slog.Error("list chapters failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []index.PageRow{}
	}
	writeJSON(w, http.StatusOK, ChapterListResponse{Chapters: rows, Total: len(rows)})
}

// Search handles GET /api/search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter q is required"))
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(n, maxSearchLimit)
	}

	results, err := h.idx.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results, Total: len(results)})
}

// Live handles GET /health/live.
func Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /health/ready. The server is ready once the index answers.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.idx.ListChapters(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
