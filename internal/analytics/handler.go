package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler serves the aggregate over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats writes the aggregate. ?top=N sets the length of the query rankings,
// capped at 100.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	n := defaultTopQueries
	if raw := r.URL.Query().Get("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
			return
		}
		n = min(v, maxTopQueries)
	}
	h.write(w, http.StatusOK, h.aggregator.StatsTop(n))
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
