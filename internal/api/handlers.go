// Package api serves read-only status of the feed store and the published feed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/metrics"
	"github.com/zpcg-gtfs/poller/internal/publish"
)

// FeedRepository defines the store operations the API reads
type FeedRepository interface {
	Ping(ctx context.Context) error
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	ListUnresolved(ctx context.Context) ([]db.UnresolvedStop, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// FeedHandler handles HTTP requests for feed status
type FeedHandler struct {
	repo      FeedRepository
	outputDir string
	feedName  string
	collector *metrics.Collector
}

// NewFeedHandler creates a handler over repo and the publish output directory
func NewFeedHandler(repo FeedRepository, outputDir, feedName string, collector *metrics.Collector) *FeedHandler {
	return &FeedHandler{repo: repo, outputDir: outputDir, feedName: feedName, collector: collector}
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RunsResponse is the JSON response for GET /api/runs
type RunsResponse struct {
	Runs  []db.Run `json:"runs"`
	Count int      `json:"count"`
}

// UnresolvedResponse is the JSON response for GET /api/unresolved
type UnresolvedResponse struct {
	Stops []db.UnresolvedStop `json:"stops"`
	Count int                 `json:"count"`
}

// FeedResponse is the JSON response for GET /api/feed
type FeedResponse struct {
	Counts    map[string]int    `json:"counts"`
	Published *publish.Manifest `json:"published,omitempty"`
}

// NewRouter mounts every endpoint with CORS for origins
func NewRouter(h *FeedHandler, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Get("/api/runs", h.GetRuns)
	r.Get("/api/unresolved", h.GetUnresolved)
	r.Get("/api/feed", h.GetFeed)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/feed.zip", h.serveFile(h.feedName, "application/zip"))
	r.Get("/cancellations.pb", h.serveFile(publish.CancellationsName, "application/x-protobuf"))
	if h.collector != nil {
		r.Handle("/metrics", h.collector.Handler())
	}

	return r
}

// Health handles GET /health with a database connectivity test
func (h *FeedHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

// GetRuns handles GET /api/runs, optionally limited by ?limit=
func (h *FeedHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "limit must be a positive integer",
				Details: map[string]interface{}{"limit": v},
			})
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, "Failed to retrieve runs", err)
		return
	}

	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// GetUnresolved handles GET /api/unresolved
func (h *FeedHandler) GetUnresolved(w http.ResponseWriter, r *http.Request) {
	stops, err := h.repo.ListUnresolved(r.Context())
	if err != nil {
		writeError(w, "Failed to retrieve unresolved stops", err)
		return
	}

	writeJSON(w, http.StatusOK, UnresolvedResponse{Stops: stops, Count: len(stops)})
}

// GetFeed handles GET /api/feed: store row counts plus the last manifest
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.Counts(r.Context())
	if err != nil {
		writeError(w, "Failed to count feed rows", err)
		return
	}
	if h.collector != nil {
		h.collector.SetFeedRows(counts)
	}

	resp := FeedResponse{Counts: counts}
	if m, err := publish.ReadManifest(filepath.Join(h.outputDir, publish.ManifestName)); err == nil {
		resp.Published = m
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, resp)
}

// serveFile serves a published artifact from the output directory
func (h *FeedHandler) serveFile(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(h.outputDir, name)
		if _, err := os.Stat(path); err != nil {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not published yet"})
			return
		}
		w.Header().Set("Content-Type", contentType)
		http.ServeFile(w, r, path)
	}
}

func writeError(w http.ResponseWriter, msg string, err error) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: msg,
		Details: map[string]interface{}{
			"internal": err.Error(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
