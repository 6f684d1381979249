package handlers

import (
	"net/http"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/contextutil"
	"sheetsearch/internal/session"
	"sheetsearch/internal/storage"
)

// SearchHandler answers keyword queries.
type SearchHandler struct {
	session *session.Controller
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(s *session.Controller) *SearchHandler {
	return &SearchHandler{session: s}
}

// SearchResponse is the JSON body for a query.
type SearchResponse struct {
	Query     string              `json:"query"`
	Rows      []storage.RowRecord `json:"rows"`
	Count     int                 `json:"count"`
	ElapsedMs int64               `json:"elapsedMs"`
}

// ServeHTTP handles GET /api/search?q=.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	query := r.URL.Query().Get("q")

	result, err := h.session.SearchNow(ctx, query)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "code", apperrors.CodeOf(err), "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		Rows:      result.Rows,
		Count:     len(result.Rows),
		ElapsedMs: result.ElapsedMs,
	})
}
