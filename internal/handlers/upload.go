package handlers

import (
	"net/http"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/contextutil"
	"sheetsearch/internal/session"
)

// UploadHandler accepts spreadsheet uploads and runs them through the import
// pipeline. The overwrite query parameter answers the conflict confirmation:
// without it, importing an already-known source returns 409.
type UploadHandler struct {
	session *session.Controller
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(s *session.Controller) *UploadHandler {
	return &UploadHandler{session: s}
}

// ServeHTTP handles POST /api/sources multipart uploads.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "upload without file part", "error", err)
		writeError(w, apperrors.Wrap(err, apperrors.ErrFileRejected, "Request must carry a multipart 'file' part."))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	overwrite := r.URL.Query().Get("overwrite") == "true"

	result, err := h.session.Upload(ctx, header.Filename, header.Size, file, overwrite)
	if err != nil {
		logger.WarnContext(ctx, "upload failed",
			"file", header.Filename, "code", apperrors.CodeOf(err), "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
