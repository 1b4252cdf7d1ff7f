package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/api/handler"
	apimw "github.com/dragonsend/dispatch-engine/internal/api/middleware"
	"github.com/dragonsend/dispatch-engine/internal/ledger"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route of the tracking server. It is the single source of truth for
// the HTTP surface area.
func NewRouter(
	store ledger.TrackingStore,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 16)) // read-only API, small bodies only
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	th := handler.NewTrackingHandler(store, logger)
	rh := handler.NewResultsHandler(store, logger)
	hh := handler.NewHealthHandler()

	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Open-tracking pixel. Mail clients fetch this when the recipient opens
	// a message carrying the embedded image tag.
	r.Get("/track/{id}", th.Open)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/results", rh.List)
		r.Get("/results/summary", rh.Summary)
	})

	return r
}
