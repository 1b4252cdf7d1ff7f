package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/ledger"
)

// pixelGIF is a 1x1 fully transparent GIF, served to mail clients that fetch
// the open-tracking image.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandler records open events and serves the tracking pixel.
type TrackingHandler struct {
	store  ledger.TrackingStore
	logger *zap.Logger
}

func NewTrackingHandler(store ledger.TrackingStore, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{store: store, logger: logger}
}

// Open handles GET /track/{id}
//
// The pixel is returned regardless of whether the event could be recorded:
// a broken database must not surface as a broken image in someone's inbox.
func (h *TrackingHandler) Open(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusNotFound, "missing tracking id")
		return
	}

	if err := h.store.AppendTrackingEvent(r.Context(), id, "open"); err != nil {
		h.logger.Error("record open event",
			zap.String("tracking_id", id),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixelGIF)
}
