package handlers

import (
	"net/http"
	"time"

	"sheetsearch/internal/session"
)

// HealthHandler reports readiness of the backing store.
type HealthHandler struct {
	session *session.Controller
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(s *session.Controller) *HealthHandler {
	return &HealthHandler{session: s}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// ServeHTTP handles GET /api/healthz. Returns 200 while the store is ready
// or still probing, 503 once the session has degraded.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state, stateErr := h.session.State()

	resp := HealthResponse{
		Status:    "ok",
		Store:     state.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if state == session.StoreFailed {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
		if stateErr != nil {
			resp.Error = stateErr.Error()
		}
	}

	writeJSON(w, status, resp)
}
