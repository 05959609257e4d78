// Package handler exposes the query executor over HTTP.
//
// Routes:
//
//	GET  /api/v1/players/{id}               one player, 404 when unknown
//	GET  /api/v1/players?prefix=            name prefix search
//	GET  /api/v1/tags?tag=a&tag=b           players carrying every tag
//	GET  /api/v1/users/{id}/ratings         a user's top-rated players
//	GET  /api/v1/positions/{position}/top   best players for a position (?n=)
//	GET  /api/v1/query?q=                   any console command line
//	GET  /api/v1/stats                      catalog diagnostics
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/invalidate
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/cache"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/executor"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/parser"
	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
)

type QueryExecutor interface {
	Execute(ctx context.Context, q *parser.Query) (*executor.Result, error)
}

type Handler struct {
	executor QueryExecutor
	cache    *cache.QueryCache
	logger   *slog.Logger
}

// New returns a Handler. queryCache may be nil when caching is disabled.
func New(exec QueryExecutor, queryCache *cache.QueryCache) *Handler {
	return &Handler{
		executor: exec,
		cache:    queryCache,
		logger:   slog.Default().With("component", "query-handler"),
	}
}

// Register adds every query route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/players/{id}", h.Player)
	mux.HandleFunc("GET /api/v1/players", h.SearchPlayers)
	mux.HandleFunc("GET /api/v1/tags", h.SearchTags)
	mux.HandleFunc("GET /api/v1/users/{id}/ratings", h.UserRatings)
	mux.HandleFunc("GET /api/v1/positions/{position}/top", h.TopForPosition)
	mux.HandleFunc("GET /api/v1/query", h.Query)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Player(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	result, err := h.run(r, &parser.Query{Kind: parser.KindID, ID: id})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if len(result.Players) == 0 {
		h.writeErr(w, r, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "player %d not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, result.Players[0])
}

func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, &parser.Query{Kind: parser.KindPlayer, Prefix: r.URL.Query().Get("prefix")})
}

func (h *Handler) SearchTags(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query()["tag"]
	if len(tags) == 0 {
		h.writeError(w, http.StatusBadRequest, "query parameter 'tag' is required")
		return
	}
	h.respond(w, r, &parser.Query{Kind: parser.KindTags, Tags: tags})
}

func (h *Handler) UserRatings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.respond(w, r, &parser.Query{Kind: parser.KindUser, ID: id})
}

func (h *Handler) TopForPosition(w http.ResponseWriter, r *http.Request) {
	q := &parser.Query{Kind: parser.KindTop, Position: strings.ToUpper(r.PathValue("position"))}
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		q.N = n
	}
	h.respond(w, r, q)
}

// Query accepts the same command lines as the console.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	line := r.URL.Query().Get("q")
	if line == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	q, err := parser.Parse(line)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.respond(w, r, q)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.run(r, &parser.Query{Kind: parser.KindStats})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result.Stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) run(r *http.Request, q *parser.Query) (*executor.Result, error) {
	if q.Raw == "" {
		q.Raw = q.String()
	}
	return h.executor.Execute(r.Context(), q)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, q *parser.Query) {
	result, err := h.run(r, q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func pathID(r *http.Request) (uint32, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperrors.Invalid("id %q is not a valid unsigned integer", raw)
	}
	return uint32(id), nil
}

// writeErr maps err to a status code. Server-side failures are logged and
// reported without detail.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("query failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, apperrors.PublicMessage(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
