package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dragonsend/dispatch-engine/internal/domain"
	"github.com/dragonsend/dispatch-engine/internal/provider"
)

// Direct sends one fully personalized email per recipient.
type Direct struct {
	Template    domain.MessageTemplate
	Policy      domain.DispatchPolicy
	Render      RenderFunc
	TrackingURL string
}

func (s *Direct) Partition(recipients []domain.Recipient) [][]domain.Recipient {
	return perRecipient(recipients)
}

func (s *Direct) SendUnit(ctx context.Context, conn provider.Conn, prov domain.ProviderConfig, unit []domain.Recipient) []domain.DeliveryResult {
	r := unit[0]

	trackingID := ""
	if s.Policy.EnableTracking {
		trackingID = uuid.New().String()
	}

	bm := buildEmail(s.Template, s.Policy, s.Render, prov, r.Address, trackingID, s.TrackingURL)

	if _, err := conn.Send(ctx, bm); err != nil {
		return []domain.DeliveryResult{failResult(r, prov.Name, err)}
	}

	return []domain.DeliveryResult{{
		Recipient:  r.Address,
		Success:    true,
		Detail:     "sent successfully",
		TrackingID: trackingID,
		Provider:   prov.Name,
		Timestamp:  time.Now(),
	}}
}

// buildEmail assembles a personalized email with the deliverability headers
// every receiving MTA expects. The tracking header is only attached when a
// tracking id exists; an empty X-Tracking-ID looks suspicious to filters.
func buildEmail(tmpl domain.MessageTemplate, policy domain.DispatchPolicy, render RenderFunc, prov domain.ProviderConfig, recipient, trackingID, trackingURL string) *domain.BuiltMessage {
	headers := map[string]string{
		"Date":       rfc5322Date(time.Now()),
		"Message-ID": provider.MessageID(prov.Sender, strings.ReplaceAll(uuid.New().String(), "-", "")),
		"Reply-To":   prov.Sender,
	}
	if trackingID != "" {
		headers["X-Tracking-ID"] = trackingID
	}

	html := tmpl.HTMLBody
	if html != "" {
		html = render(html, recipient)
		if trackingID != "" {
			html = injectTrackingPixel(html, trackingID, trackingURL)
		}
	}

	return &domain.BuiltMessage{
		From:        prov.Sender,
		FromName:    tmpl.SenderName,
		To:          recipient,
		Subject:     render(tmpl.Subject, recipient),
		TextBody:    render(tmpl.TextBody, recipient),
		HTMLBody:    html,
		Headers:     headers,
		Attachments: tmpl.Attachments,
	}
}

var closingBodyTag = regexp.MustCompile(`(?i)</body>`)

// injectTrackingPixel places a zero-size tracking marker immediately before
// the closing body tag (matched case-insensitively), or appends it when no
// closing tag exists. Without a tracking server the marker degrades to an
// HTML comment.
func injectTrackingPixel(html, trackingID, trackingURL string) string {
	var pixel string
	if trackingURL != "" {
		pixel = fmt.Sprintf(`<img src="%s/track/%s" width="1" height="1" style="display:none" alt="" />`,
			strings.TrimRight(trackingURL, "/"), trackingID)
	} else {
		pixel = fmt.Sprintf("<!-- tracking-id: %s -->", trackingID)
	}

	if loc := closingBodyTag.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + pixel + html[loc[0]:]
	}
	return html + pixel
}
