package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/tagger"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes *noteservice.Service, gen *tagger.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes, gen)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Ad-hoc generation from raw text.
	r.Post("/tags", h.SuggestTags)
	r.Post("/properties", h.SuggestProperties)

	// Vault note annotation.
	r.Post("/notes/*", h.AnnotateNote)

	// Provider connectivity and cache administration.
	r.Get("/check", h.Check)
	r.Delete("/cache", h.InvalidateCache)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
