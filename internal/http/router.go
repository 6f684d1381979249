package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sheetsearch/internal/handlers"
	"sheetsearch/internal/session"
	"sheetsearch/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Session *session.Controller
	Store   storage.RecordStore
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	uploadHandler := handlers.NewUploadHandler(deps.Session)
	searchHandler := handlers.NewSearchHandler(deps.Session)
	sourcesHandler := handlers.NewSourcesHandler(deps.Session, deps.Store)
	healthHandler := handlers.NewHealthHandler(deps.Session)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/healthz", healthHandler)
		r.Method(http.MethodGet, "/search", searchHandler)
		r.Get("/sources", sourcesHandler.List)
		r.Method(http.MethodPost, "/sources", uploadHandler)
		r.Delete("/sources/{sourceID}", sourcesHandler.Delete)
		r.Get("/sources/{sourceID}/rows", sourcesHandler.Rows)
	})

	return r
}
