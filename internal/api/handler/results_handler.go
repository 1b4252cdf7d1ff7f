package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/ledger"
)

// ResultsHandler serves read-only views of the delivery ledger.
type ResultsHandler struct {
	store  ledger.TrackingStore
	logger *zap.Logger
}

func NewResultsHandler(store ledger.TrackingStore, logger *zap.Logger) *ResultsHandler {
	return &ResultsHandler{store: store, logger: logger}
}

// List handles GET /api/v1/results?limit=N
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.store.RecentResults(r.Context(), limit)
	if err != nil {
		h.logger.Error("list results", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// Summary handles GET /api/v1/results/summary
//
// Aggregates the most recent ledger window into sent/failed counts, the
// same shape the CLI prints at the end of a run.
func (h *ResultsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.RecentResults(r.Context(), 1000)
	if err != nil {
		h.logger.Error("summarize results", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, domain.Summarize(results))
}
