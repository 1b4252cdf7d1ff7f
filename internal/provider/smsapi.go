package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// smsRequest is the JSON body posted to the cloud SMS API.
type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Content string `json:"content"`
}

// smsResponse maps the API's 202 Accepted response body.
type smsResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// apiConn delivers SMS by POSTing JSON to a cloud SMS API endpoint. HTTP is
// stateless, so "connection" here is just a configured client; Close is a
// no-op kept for the Conn contract.
type apiConn struct {
	cfg        domain.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func newAPIConn(cfg domain.ProviderConfig, timeout time.Duration, logger *zap.Logger) *apiConn {
	return &apiConn{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("provider", cfg.Name)),
	}
}

func (c *apiConn) Send(ctx context.Context, bm *domain.BuiltMessage) (string, error) {
	body, err := json.Marshal(smsRequest{
		To:      e164(bm.To),
		From:    c.cfg.Sender,
		Content: bm.TextBody,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.Errorf(domain.FailTransient, "post sms: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", domain.Errorf(domain.FailAuth, "api rejected credentials: status %d", resp.StatusCode)
	default:
		return "", domain.Errorf(domain.FailSend, "unexpected api status: %d", resp.StatusCode)
	}

	var sr smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return sr.MessageID, nil
}

func (c *apiConn) Close() error { return nil }

var _ Conn = (*apiConn)(nil)

// e164 normalizes a bare US number to E.164. Numbers that already carry a
// plus prefix pass through untouched.
func e164(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	if d := domain.LastTenDigits(phone); d != "" {
		return "+1" + d
	}
	return phone
}
