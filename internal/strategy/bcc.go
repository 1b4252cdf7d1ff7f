package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/provider"
)

// BCCBatch sends one message per fixed-size batch, with the batch blind
// carbon-copied and the sender as the visible To. Content is personalized to
// the first recipient of each batch: a deliberate throughput over
// personalization tradeoff callers opt into.
type BCCBatch struct {
	Template    domain.MessageTemplate
	Policy      domain.DispatchPolicy
	Render      RenderFunc
	TrackingURL string
}

func (s *BCCBatch) Partition(recipients []domain.Recipient) [][]domain.Recipient {
	size := s.Policy.BatchSize
	if size <= 0 {
		size = domain.DefaultBatchSize
	}
	var units [][]domain.Recipient
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		units = append(units, recipients[start:end])
	}
	return units
}

func (s *BCCBatch) SendUnit(ctx context.Context, conn provider.Conn, prov domain.ProviderConfig, unit []domain.Recipient) []domain.DeliveryResult {
	trackingID := ""
	if s.Policy.EnableTracking {
		trackingID = uuid.New().String()
	}

	// Personalization target is the first recipient of the batch.
	bm := buildEmail(s.Template, s.Policy, s.Render, prov, unit[0].Address, trackingID, s.TrackingURL)
	bm.To = prov.Sender
	bm.Bcc = make([]string, len(unit))
	for i, r := range unit {
		bm.Bcc[i] = r.Address
	}

	ts := time.Now()
	results := make([]domain.DeliveryResult, len(unit))

	if _, err := conn.Send(ctx, bm); err != nil {
		for i, r := range unit {
			res := failResult(r, prov.Name, err)
			res.Timestamp = ts
			results[i] = res
		}
		return results
	}

	detail := fmt.Sprintf("sent in bcc batch of %d", len(unit))
	for i, r := range unit {
		results[i] = domain.DeliveryResult{
			Recipient:  r.Address,
			Success:    true,
			Detail:     detail,
			TrackingID: trackingID,
			Provider:   prov.Name,
			Timestamp:  ts,
		}
	}
	return results
}
