// Package strategy implements the three send modes: direct per-recipient
// email, BCC-batched email, and carrier-gateway SMS, plus the cloud SMS API
// variant. A strategy partitions recipients into units of work and builds
// provider-native messages; the live connection does the wire transfer.
package strategy

import (
	"context"
	"time"

	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/pattern"
	"github.com/dragonsend/dispatch-engine/internal/provider"
)

// RenderFunc expands pattern tokens in message text for one recipient.
type RenderFunc func(text, recipient string) string

// Strategy turns recipients into units of work and delivers one unit at a
// time. SendUnit never returns an error: per-unit failures are converted into
// failed DeliveryResults so the run can continue; the engine inspects result
// kinds to detect run-fatal conditions.
type Strategy interface {
	Partition(recipients []domain.Recipient) [][]domain.Recipient
	SendUnit(ctx context.Context, conn provider.Conn, prov domain.ProviderConfig, unit []domain.Recipient) []domain.DeliveryResult
}

// ForRun selects the strategy for a run from the provider kind and the
// policy mode. All providers in a rotation list share a kind, so the first
// provider decides.
func ForRun(kind domain.ProviderKind, tmpl domain.MessageTemplate, policy domain.DispatchPolicy, trackingURL string) Strategy {
	policy = policy.WithDefaults()

	render := RenderFunc(func(text, _ string) string { return text })
	if policy.EnablePatterns {
		render = pattern.Expand
	}

	switch {
	case kind == domain.ProviderCloudSMSAPI:
		return &CloudSMS{Template: tmpl, Policy: policy, Render: render}
	case kind == domain.ProviderSMSGateway || policy.Mode == domain.ModeGateway:
		return &GatewaySMS{Template: tmpl, Policy: policy, Render: render}
	case policy.Mode == domain.ModeBCCBatch:
		return &BCCBatch{Template: tmpl, Policy: policy, Render: render, TrackingURL: trackingURL}
	default:
		return &Direct{Template: tmpl, Policy: policy, Render: render, TrackingURL: trackingURL}
	}
}

// perRecipient is the partition shared by every non-batched strategy.
func perRecipient(recipients []domain.Recipient) [][]domain.Recipient {
	units := make([][]domain.Recipient, len(recipients))
	for i, r := range recipients {
		units[i] = []domain.Recipient{r}
	}
	return units
}

func failResult(r domain.Recipient, prov string, err error) domain.DeliveryResult {
	return domain.DeliveryResult{
		Recipient: r.Address,
		Success:   false,
		Detail:    err.Error(),
		Kind:      domain.KindOf(err),
		Provider:  prov,
		Timestamp: time.Now(),
	}
}

// rfc5322Date formats a Date header value.
func rfc5322Date(t time.Time) string {
	return t.Format(time.RFC1123Z)
}
