package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/tagger"
)

// Handler holds API route handlers.
type Handler struct {
	notes *noteservice.Service
	gen   *tagger.Service
}

// NewHandler creates a new Handler.
func NewHandler(notes *noteservice.Service, gen *tagger.Service) *Handler {
	return &Handler{notes: notes, gen: gen}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// providerStatus maps a provider failure to an HTTP status code.
func providerStatus(err error) int {
	var perr *apperr.ProviderError
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError
	}
	switch perr.Kind {
	case apperr.RateLimited:
		return http.StatusServiceUnavailable
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeGenerationError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperr.ErrEmptyInput) {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	if errors.Is(err, apperr.ErrUnparsable) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	var perr *apperr.ProviderError
	if errors.As(err, &perr) {
		writeJSON(w, providerStatus(err), errorBody(perr.Error()))
		return
	}
	slog.Error("generation failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// SuggestTags handles POST /api/tags.
//
//	@Summary		Generate tag suggestions for raw text
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TagsRequest	true	"Text to analyze"
//	@Success		200		{object}	TagsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [post]
func (h *Handler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	tags, err := h.gen.FetchTags(r.Context(), req.Text)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	if req.Count > 0 && len(tags) > req.Count {
		tags = tags[:req.Count]
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// SuggestProperties handles POST /api/properties.
//
//	@Summary		Generate frontmatter properties for raw text
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PropertiesRequest	true	"Text to analyze"
//	@Success		200		{object}	models.Properties
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/properties [post]
func (h *Handler) SuggestProperties(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req PropertiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	props, err := h.gen.FetchProperties(r.Context(), req.Text)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// AnnotateNote handles POST /api/notes/*.
//
//	@Summary		Annotate a vault note with generated metadata
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Param			force	query		bool	false	"Override the tag cap"
//	@Success		200		{object}	AnnotateResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [post]
func (h *Handler) AnnotateNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	force := r.URL.Query().Get("force") == "true"

	res, err := h.notes.ProcessNote(r.Context(), path, force)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnotateResponse{Path: path, Updated: res.Updated, Message: res.Message})
}

// InvalidateCache handles DELETE /api/cache. Dropping cached generations
// forces fresh provider calls, used after prompt or model changes that the
// provider fingerprint does not capture.
//
//	@Summary		Drop all cached generations
//	@Tags			generation
//	@Success		204
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cache [delete]
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.gen.InvalidateCache(); err != nil {
		slog.Error("cache invalidation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Check handles GET /api/check.
//
//	@Summary		Verify provider connectivity
//	@Tags			generation
//	@Produce		json
//	@Success		200	{object}	CheckResponse
//	@Security		BearerAuth
//	@Router			/check [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gen.TestConnection(r.Context()))
}
