package strategy

import (
	"context"
	"time"

	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/provider"
)

// CloudSMS sends one API call per recipient through a cloud SMS provider.
// The connection handles E.164 normalization and auth.
type CloudSMS struct {
	Template domain.MessageTemplate
	Policy   domain.DispatchPolicy
	Render   RenderFunc
}

func (s *CloudSMS) Partition(recipients []domain.Recipient) [][]domain.Recipient {
	return perRecipient(recipients)
}

func (s *CloudSMS) SendUnit(ctx context.Context, conn provider.Conn, prov domain.ProviderConfig, unit []domain.Recipient) []domain.DeliveryResult {
	r := unit[0]

	if domain.LastTenDigits(r.Address) == "" {
		return []domain.DeliveryResult{failResult(r, prov.Name,
			domain.Errorf(domain.FailRecipient, "invalid phone number %q", r.Address))}
	}

	bm := &domain.BuiltMessage{
		From:     prov.Sender,
		To:       r.Address,
		TextBody: s.Render(s.Template.TextBody, r.Address),
	}

	msgID, err := conn.Send(ctx, bm)
	if err != nil {
		return []domain.DeliveryResult{failResult(r, prov.Name, err)}
	}

	detail := "sent via api"
	if msgID != "" {
		detail = "sent via api, message id " + msgID
	}
	return []domain.DeliveryResult{{
		Recipient:  r.Address,
		Success:    true,
		Detail:     detail,
		TrackingID: msgID,
		Provider:   prov.Name,
		Timestamp:  time.Now(),
	}}
}
