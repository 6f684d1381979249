package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/contextutil"
	"sheetsearch/internal/session"
	"sheetsearch/internal/storage"
)

// SourcesHandler lists, inspects, and deletes imported sources.
type SourcesHandler struct {
	session *session.Controller
	store   storage.RecordStore
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(s *session.Controller, store storage.RecordStore) *SourcesHandler {
	return &SourcesHandler{session: s, store: store}
}

// SourcesResponse is the JSON body for the source list.
type SourcesResponse struct {
	Sources []storage.SourceInfo `json:"sources"`
}

// RowsResponse is the JSON body for a source's row listing.
type RowsResponse struct {
	SourceID string              `json:"sourceId"`
	Headers  []string            `json:"headers"`
	Rows     []storage.RowRecord `json:"rows"`
}

// List handles GET /api/sources.
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RefreshSources(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SourcesResponse{Sources: h.session.Sources()})
}

// Delete handles DELETE /api/sources/{sourceID}. Deleting an unknown source
// is a no-op and still answers 204.
func (h *SourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	sourceID, err := sourceIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.session.Delete(ctx, sourceID); err != nil {
		logger.ErrorContext(ctx, "delete failed", "source_id", sourceID, "error", err)
		writeError(w, err)
		return
	}

	logger.InfoContext(ctx, "source deleted", "source_id", sourceID)
	w.WriteHeader(http.StatusNoContent)
}

// Rows handles GET /api/sources/{sourceID}/rows?limit=&offset=.
func (h *SourcesHandler) Rows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sourceID, err := sourceIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := intQueryParam(r, "limit", 100)
	offset := intQueryParam(r, "offset", 0)

	rows, err := h.store.RowsBySource(ctx, sourceID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	var info storage.SourceInfo
	for _, src := range h.session.Sources() {
		if src.SourceID == sourceID {
			info = src
			break
		}
	}

	writeJSON(w, http.StatusOK, RowsResponse{
		SourceID: sourceID,
		Headers:  session.DisplayHeaders(info, rows),
		Rows:     rows,
	})
}

// sourceIDParam extracts and unescapes the sourceID path parameter.
func sourceIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "sourceID")
	sourceID, err := url.PathUnescape(raw)
	if err != nil || sourceID == "" {
		return "", apperrors.Wrap(err, apperrors.ErrFileRejected, "Invalid source identifier.")
	}
	return sourceID, nil
}

// intQueryParam reads an integer query parameter with a default.
func intQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
