// Package ledger persists the engine's per-recipient delivery records and
// the read-tracking events reported by the tracking server.
package ledger

import (
	"context"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// Ledger is the engine's append-only output sink. One record is appended per
// completed unit, as it is produced, so a partially completed run is never
// silently lost.
type Ledger interface {
	AppendResult(ctx context.Context, res domain.DeliveryResult) error
	Close() error
}

// TrackingEvent is one observation for a tracked message (e.g. "open").
type TrackingEvent struct {
	TrackingID string `json:"tracking_id"`
	Event      string `json:"event"`
}

// TrackingStore extends Ledger with the reads and writes the tracking server
// needs.
type TrackingStore interface {
	Ledger
	AppendTrackingEvent(ctx context.Context, trackingID, event string) error
	RecentResults(ctx context.Context, limit int) ([]domain.DeliveryResult, error)
}
