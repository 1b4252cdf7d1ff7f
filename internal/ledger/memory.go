package ledger

import (
	"context"
	"sync"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// MemLedger is a hand-written in-memory TrackingStore for unit tests.
type MemLedger struct {
	mu      sync.Mutex
	results []domain.DeliveryResult
	events  []TrackingEvent

	// Optional error override for failure-path tests.
	AppendErr error
}

func NewMemLedger() *MemLedger { return &MemLedger{} }

func (m *MemLedger) AppendResult(_ context.Context, res domain.DeliveryResult) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *MemLedger) AppendTrackingEvent(_ context.Context, trackingID, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, TrackingEvent{TrackingID: trackingID, Event: event})
	return nil
}

func (m *MemLedger) RecentResults(_ context.Context, limit int) ([]domain.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.results) {
		limit = len(m.results)
	}
	out := make([]domain.DeliveryResult, limit)
	copy(out, m.results[len(m.results)-limit:])
	return out, nil
}

// Results returns a copy of everything appended so far, in append order.
func (m *MemLedger) Results() []domain.DeliveryResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DeliveryResult, len(m.results))
	copy(out, m.results)
	return out
}

// Events returns a copy of the tracking events recorded so far.
func (m *MemLedger) Events() []TrackingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackingEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemLedger) Close() error { return nil }
