package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dragonsend/dispatch-engine/internal/carrier"
	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/provider"
)

// GatewaySMS delivers SMS by emailing the recipient's carrier gateway:
// {last-10-digits}@{carrier-domain}, plain text, no subject. Carrier "auto"
// walks the major-carrier domains in order until one send succeeds.
type GatewaySMS struct {
	Template domain.MessageTemplate
	Policy   domain.DispatchPolicy
	Render   RenderFunc
}

func (s *GatewaySMS) Partition(recipients []domain.Recipient) [][]domain.Recipient {
	return perRecipient(recipients)
}

func (s *GatewaySMS) SendUnit(ctx context.Context, conn provider.Conn, prov domain.ProviderConfig, unit []domain.Recipient) []domain.DeliveryResult {
	r := unit[0]

	digits := domain.LastTenDigits(r.Address)
	if digits == "" {
		return []domain.DeliveryResult{failResult(r, prov.Name,
			domain.Errorf(domain.FailRecipient, "invalid phone number %q", r.Address))}
	}

	domains, err := s.candidateDomains(r.Carrier)
	if err != nil {
		return []domain.DeliveryResult{failResult(r, prov.Name, err)}
	}

	trackingID := ""
	body := s.Render(s.Template.TextBody, r.Address)
	if s.Policy.EnableTracking {
		trackingID = strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		body = body + "\n[ID:" + trackingID + "]"
	}

	var lastErr error
	for _, gw := range domains {
		dest := digits + "@" + gw
		bm := &domain.BuiltMessage{
			From:     prov.Sender,
			To:       dest,
			TextBody: body,
			Headers:  s.headers(prov),
		}

		if _, err := conn.Send(ctx, bm); err != nil {
			lastErr = err
			// Auth failures abort the run; do not burn the remaining
			// gateways on a dead connection.
			if domain.IsRunFatal(err) {
				return []domain.DeliveryResult{failResult(r, prov.Name, err)}
			}
			continue
		}

		return []domain.DeliveryResult{{
			Recipient:  r.Address,
			Success:    true,
			Detail:     "sent to " + dest,
			TrackingID: trackingID,
			Provider:   prov.Name,
			Timestamp:  time.Now(),
		}}
	}

	if len(domains) > 1 {
		return []domain.DeliveryResult{failResult(r, prov.Name,
			domain.Errorf(domain.FailProviderExhausted, "all gateways failed (tried %s): %v",
				strings.Join(domains, ", "), lastErr))}
	}
	return []domain.DeliveryResult{failResult(r, prov.Name, lastErr)}
}

func (s *GatewaySMS) candidateDomains(name string) ([]string, error) {
	if name == "" || carrier.IsAuto(name) {
		return carrier.AutoOrder, nil
	}
	d, ok := carrier.Domain(name)
	if !ok {
		return nil, domain.Errorf(domain.FailRecipient, "%v: %q", domain.ErrUnknownCarrier, name)
	}
	return []string{d}, nil
}

func (s *GatewaySMS) headers(prov domain.ProviderConfig) map[string]string {
	h := map[string]string{
		"Date":       rfc5322Date(time.Now()),
		"Message-ID": provider.MessageID(prov.Sender, strings.ReplaceAll(uuid.New().String(), "-", "")),
	}
	if s.Policy.EnableTracking {
		// Ask the gateway for a delivery receipt; most honour at least one
		// of the two header spellings.
		h["Disposition-Notification-To"] = prov.Sender
		h["Return-Receipt-To"] = prov.Sender
	}
	return h
}
