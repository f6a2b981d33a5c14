// Package api exposes the pipeline over HTTP: a search endpoint and an SSE
// progress stream. The handlers stay thin; all behavior lives in the
// pipeline.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/jobs"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/internal/pipeline"
	apperrors "github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/errors"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/logger"
)

const minQueryLength = 3

// SearchService is the pipeline capability the API consumes.
type SearchService interface {
	RunSearch(ctx context.Context, callerID string, queryText string) (*jobs.CategorizedResult, error)
	Notifier() *pipeline.Notifier
	CacheStats() pipeline.Stats
	InvalidateCache(ctx context.Context) (int64, error)
}

// ProfileStore reads and writes caller profiles.
type ProfileStore interface {
	Fetch(ctx context.Context, callerID string) (*jobs.Profile, error)
	Save(ctx context.Context, callerID string, profile jobs.Profile) error
}

// Handler serves the search API.
type Handler struct {
	pipeline SearchService
	profiles ProfileStore
	logger   *slog.Logger
}

// NewHandler creates a Handler over the pipeline and profile store.
func NewHandler(p SearchService, profiles ProfileStore) *Handler {
	return &Handler{
		pipeline: p,
		profiles: profiles,
		logger:   slog.Default().With("component", "api"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/search/jobs", h.Search())
	mux.Handle("GET /api/v1/search/events", h.Events())
	mux.HandleFunc("GET /api/v1/profile", h.GetProfile)
	mux.HandleFunc("PUT /api/v1/profile", h.PutProfile)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search returns the search endpoint handler so callers can wrap it with
// route-specific middleware.
func (h *Handler) Search() http.Handler {
	return http.HandlerFunc(h.handleSearch)
}

// Events returns the SSE stream handler. It must not sit behind a request
// timeout; the stream lives until the client disconnects.
func (h *Handler) Events() http.Handler {
	return http.HandlerFunc(h.handleEvents)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Total  int                    `json:"total"`
	Result jobs.CategorizedResult `json:"result"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Caller-ID")
	if callerID == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing X-Caller-ID header"))
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed request body"))
		return
	}
	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLength {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "query must be at least %d characters", minQueryLength))
		return
	}

	result, err := h.pipeline.RunSearch(r.Context(), callerID, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, searchResponse{Total: result.Total(), Result: *result})
}

// handleEvents streams pipeline stage events for the caller as server-sent
// events until the client disconnects.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Caller-ID")
	if callerID == "" {
		callerID = r.URL.Query().Get("caller_id")
	}
	if callerID == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing caller id"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "streaming unsupported"))
		return
	}

	events := h.pipeline.Notifier().Subscribe(callerID)
	defer h.pipeline.Notifier().Unsubscribe(callerID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Stage, payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// GetProfile returns the caller's stored profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Caller-ID")
	if callerID == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing X-Caller-ID header"))
		return
	}
	profile, err := h.profiles.Fetch(r.Context(), callerID)
	if err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "profile lookup failed"))
		return
	}
	if profile == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusNotFound, "profile not found"))
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// PutProfile upserts the caller's profile.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-Caller-ID")
	if callerID == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing X-Caller-ID header"))
		return
	}
	var profile jobs.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed request body"))
		return
	}
	if err := h.profiles.Save(r.Context(), callerID, profile); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "saving profile failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

// CacheStats reports result-cache hit/miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.pipeline.CacheStats())
}

// CacheInvalidate drops all cached search results.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.pipeline.InvalidateCache(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	logger.FromContext(r.Context()).Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
