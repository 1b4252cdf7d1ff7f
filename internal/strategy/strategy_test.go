package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// fakeConn records every built message and fails sends according to failFor.
type fakeConn struct {
	sent    []*domain.BuiltMessage
	failFor func(bm *domain.BuiltMessage) error
	msgID   string
	closed  bool
}

func (f *fakeConn) Send(_ context.Context, bm *domain.BuiltMessage) (string, error) {
	if f.failFor != nil {
		if err := f.failFor(bm); err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, bm)
	return f.msgID, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

var (
	emailProv = domain.ProviderConfig{
		Name:     "primary",
		Kind:     domain.ProviderSMTPEmail,
		Host:     "smtp.example.com",
		Port:     587,
		TLS:      domain.TLSStartTLS,
		Username: "ops@example.com",
		Password: "secret",
		Sender:   "ops@example.com",
	}
	emailTmpl = domain.MessageTemplate{
		Subject:  "Subject line",
		TextBody: "Hello there",
		HTMLBody: "<html><body><p>Hello</p></body></html>",
	}
)

func recipients(addrs ...string) []domain.Recipient {
	rs := make([]domain.Recipient, len(addrs))
	for i, a := range addrs {
		rs[i] = domain.Recipient{Address: a}
	}
	return rs
}

func TestDirect_SendUnit(t *testing.T) {
	s := ForRun(domain.ProviderSMTPEmail, emailTmpl, domain.DispatchPolicy{}, "")
	conn := &fakeConn{}

	results := s.SendUnit(context.Background(), conn, emailProv, recipients("a@x.com"))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Success || r.Recipient != "a@x.com" || r.Provider != "primary" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.TrackingID != "" {
		t.Fatal("tracking disabled: tracking id must be empty")
	}

	bm := conn.sent[0]
	if bm.To != "a@x.com" || bm.From != "ops@example.com" {
		t.Fatalf("unexpected addressing: %+v", bm)
	}
	if bm.Headers["Message-ID"] == "" || bm.Headers["Reply-To"] != "ops@example.com" || bm.Headers["Date"] == "" {
		t.Fatalf("missing deliverability headers: %v", bm.Headers)
	}
	if _, ok := bm.Headers["X-Tracking-ID"]; ok {
		t.Fatal("X-Tracking-ID must not be set when tracking is off")
	}
}

func TestDirect_TrackingEnabled(t *testing.T) {
	s := ForRun(domain.ProviderSMTPEmail, emailTmpl, domain.DispatchPolicy{EnableTracking: true}, "https://track.example.com")
	conn := &fakeConn{}

	results := s.SendUnit(context.Background(), conn, emailProv, recipients("a@x.com"))
	if results[0].TrackingID == "" {
		t.Fatal("expected a tracking id")
	}

	bm := conn.sent[0]
	if bm.Headers["X-Tracking-ID"] != results[0].TrackingID {
		t.Fatal("header and result tracking id must match")
	}
	pixel := "https://track.example.com/track/" + results[0].TrackingID
	if !strings.Contains(bm.HTMLBody, pixel) {
		t.Fatalf("expected pixel url in html body:\n%s", bm.HTMLBody)
	}
	if !strings.Contains(bm.HTMLBody, `style="display:none"`) {
		t.Fatal("expected zero-size pixel markup")
	}
	// Pixel sits before the closing body tag.
	if strings.Index(bm.HTMLBody, pixel) > strings.Index(bm.HTMLBody, "</body>") {
		t.Fatal("pixel must be injected before </body>")
	}
}

func TestInjectTrackingPixel(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"lowercase close", "<body>x</body>"},
		{"uppercase close", "<BODY>x</BODY>"},
		{"no close tag", "<p>bare fragment</p>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := injectTrackingPixel(tc.html, "tid", "")
			if !strings.Contains(out, "<!-- tracking-id: tid -->") {
				t.Fatalf("marker missing from %q", out)
			}
			if loc := closingBodyTag.FindStringIndex(tc.html); loc != nil {
				if strings.Index(out, "tracking-id") > strings.Index(strings.ToLower(out), "</body>") {
					t.Fatalf("marker must precede closing tag: %q", out)
				}
			} else if !strings.HasSuffix(out, "<!-- tracking-id: tid -->") {
				t.Fatalf("marker must be appended when no closing tag: %q", out)
			}
		})
	}
}

func TestDirect_FailureBecomesResult(t *testing.T) {
	s := ForRun(domain.ProviderSMTPEmail, emailTmpl, domain.DispatchPolicy{}, "")
	conn := &fakeConn{failFor: func(*domain.BuiltMessage) error {
		return domain.Errorf(domain.FailSend, "mailbox unavailable")
	}}

	results := s.SendUnit(context.Background(), conn, emailProv, recipients("a@x.com"))
	r := results[0]
	if r.Success || r.Kind != domain.FailSend {
		t.Fatalf("expected FailSend failure, got %+v", r)
	}
}

func TestBCCBatch_Partition(t *testing.T) {
	s := &BCCBatch{Policy: domain.DispatchPolicy{BatchSize: 50}}

	rs := make([]domain.Recipient, 125)
	for i := range rs {
		rs[i] = domain.Recipient{Address: fmt.Sprintf("user%d@x.com", i)}
	}

	units := s.Partition(rs)
	wantSizes := []int{50, 50, 25}
	if len(units) != len(wantSizes) {
		t.Fatalf("expected %d batches, got %d", len(wantSizes), len(units))
	}
	for i, want := range wantSizes {
		if len(units[i]) != want {
			t.Fatalf("batch %d: expected %d recipients, got %d", i, want, len(units[i]))
		}
	}
}

func TestBCCBatch_SendUnit(t *testing.T) {
	s := ForRun(domain.ProviderSMTPEmail, emailTmpl,
		domain.DispatchPolicy{Mode: domain.ModeBCCBatch, BatchSize: 3}, "")
	conn := &fakeConn{}

	unit := recipients("a@x.com", "b@x.com", "c@x.com")
	results := s.SendUnit(context.Background(), conn, emailProv, unit)

	if len(results) != 3 {
		t.Fatalf("expected one result per recipient, got %d", len(results))
	}
	ts := results[0].Timestamp
	for _, r := range results {
		if !r.Success {
			t.Fatalf("expected success, got %+v", r)
		}
		if !r.Timestamp.Equal(ts) {
			t.Fatal("all recipients in a batch must share the batch send time")
		}
	}

	if len(conn.sent) != 1 {
		t.Fatalf("expected exactly one wire message for the batch, got %d", len(conn.sent))
	}
	bm := conn.sent[0]
	if bm.To != emailProv.Sender {
		t.Fatalf("visible To must be the sender, got %q", bm.To)
	}
	if len(bm.Bcc) != 3 {
		t.Fatalf("expected 3 bcc recipients, got %d", len(bm.Bcc))
	}
}

func TestBCCBatch_FailureFailsWholeBatch(t *testing.T) {
	s := ForRun(domain.ProviderSMTPEmail, emailTmpl,
		domain.DispatchPolicy{Mode: domain.ModeBCCBatch}, "")
	conn := &fakeConn{failFor: func(*domain.BuiltMessage) error {
		return errors.New("relay denied")
	}}

	results := s.SendUnit(context.Background(), conn, emailProv, recipients("a@x.com", "b@x.com"))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Success {
			t.Fatalf("expected failure, got %+v", r)
		}
	}
}

func TestGatewaySMS_AutoFallback(t *testing.T) {
	s := ForRun(domain.ProviderSMSGateway, domain.MessageTemplate{TextBody: "ping"},
		domain.DispatchPolicy{}, "")

	// First two auto gateways refuse; the third accepts.
	conn := &fakeConn{failFor: func(bm *domain.BuiltMessage) error {
		if strings.HasSuffix(bm.To, "@vtext.com") || strings.HasSuffix(bm.To, "@tmomail.net") {
			return domain.Errorf(domain.FailSend, "gateway refused")
		}
		return nil
	}}

	unit := []domain.Recipient{{Address: "(321) 367-5667", Carrier: "auto"}}
	results := s.SendUnit(context.Background(), conn, emailProv, unit)

	if len(results) != 1 {
		t.Fatalf("failed attempts must not produce extra records; got %d", len(results))
	}
	r := results[0]
	if !r.Success {
		t.Fatalf("expected success via third gateway, got %+v", r)
	}
	if !strings.Contains(r.Detail, "3213675667@txt.att.net") {
		t.Fatalf("expected detail naming the working gateway, got %q", r.Detail)
	}
}

func TestGatewaySMS_AllGatewaysExhausted(t *testing.T) {
	s := ForRun(domain.ProviderSMSGateway, domain.MessageTemplate{TextBody: "ping"},
		domain.DispatchPolicy{}, "")
	conn := &fakeConn{failFor: func(*domain.BuiltMessage) error {
		return domain.Errorf(domain.FailSend, "blocked")
	}}

	unit := []domain.Recipient{{Address: "3213675667", Carrier: "auto"}}
	results := s.SendUnit(context.Background(), conn, emailProv, unit)

	r := results[0]
	if r.Success || r.Kind != domain.FailProviderExhausted {
		t.Fatalf("expected provider_exhausted, got %+v", r)
	}
	for _, gw := range []string{"vtext.com", "tmomail.net", "txt.att.net", "messaging.sprintpcs.com"} {
		if !strings.Contains(r.Detail, gw) {
			t.Fatalf("detail must list tried gateway %s: %q", gw, r.Detail)
		}
	}
}

func TestGatewaySMS_KnownCarrier(t *testing.T) {
	s := ForRun(domain.ProviderSMSGateway, domain.MessageTemplate{TextBody: "ping"},
		domain.DispatchPolicy{}, "")
	conn := &fakeConn{}

	unit := []domain.Recipient{{Address: "321-367-5667", Carrier: "T-Mobile"}}
	results := s.SendUnit(context.Background(), conn, emailProv, unit)

	if !results[0].Success || !strings.Contains(results[0].Detail, "3213675667@tmomail.net") {
		t.Fatalf("expected send to tmomail.net, got %+v", results[0])
	}
	if conn.sent[0].Subject != "" {
		t.Fatal("gateway sms must have no subject")
	}
}

func TestGatewaySMS_BadRecipients(t *testing.T) {
	s := ForRun(domain.ProviderSMSGateway, domain.MessageTemplate{TextBody: "ping"},
		domain.DispatchPolicy{}, "")

	t.Run("short number", func(t *testing.T) {
		results := s.SendUnit(context.Background(), &fakeConn{}, emailProv,
			[]domain.Recipient{{Address: "12345", Carrier: "verizon"}})
		if results[0].Kind != domain.FailRecipient {
			t.Fatalf("expected recipient failure, got %+v", results[0])
		}
	})

	t.Run("unknown carrier", func(t *testing.T) {
		results := s.SendUnit(context.Background(), &fakeConn{}, emailProv,
			[]domain.Recipient{{Address: "3213675667", Carrier: "smoke signals"}})
		if results[0].Kind != domain.FailRecipient {
			t.Fatalf("expected recipient failure, got %+v", results[0])
		}
	})
}

func TestGatewaySMS_TrackingSuffix(t *testing.T) {
	s := ForRun(domain.ProviderSMSGateway, domain.MessageTemplate{TextBody: "ping"},
		domain.DispatchPolicy{EnableTracking: true}, "")
	conn := &fakeConn{}

	results := s.SendUnit(context.Background(), conn, emailProv,
		[]domain.Recipient{{Address: "3213675667", Carrier: "verizon"}})

	tid := results[0].TrackingID
	if len(tid) != 8 {
		t.Fatalf("expected 8-char tracking id, got %q", tid)
	}
	if !strings.HasSuffix(conn.sent[0].TextBody, "[ID:"+tid+"]") {
		t.Fatalf("expected tracking suffix in body: %q", conn.sent[0].TextBody)
	}
	if conn.sent[0].Headers["Disposition-Notification-To"] != emailProv.Sender {
		t.Fatal("expected delivery receipt header when tracking")
	}
}

func TestCloudSMS_SendUnit(t *testing.T) {
	s := ForRun(domain.ProviderCloudSMSAPI, domain.MessageTemplate{TextBody: "ping"},
		domain.DispatchPolicy{}, "")
	conn := &fakeConn{msgID: "api-7"}

	prov := domain.ProviderConfig{Name: "sms-api", Kind: domain.ProviderCloudSMSAPI, Sender: "+15550001111", APIBaseURL: "https://api.example.com/sms"}
	results := s.SendUnit(context.Background(), conn, prov, recipients("3213675667"))

	r := results[0]
	if !r.Success || r.TrackingID != "api-7" || !strings.Contains(r.Detail, "api-7") {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestForRun_Selection(t *testing.T) {
	tmpl := domain.MessageTemplate{TextBody: "x"}
	tests := []struct {
		name string
		kind domain.ProviderKind
		mode domain.Mode
		want string
	}{
		{"default direct", domain.ProviderSMTPEmail, "", "*strategy.Direct"},
		{"bcc mode", domain.ProviderSMTPEmail, domain.ModeBCCBatch, "*strategy.BCCBatch"},
		{"gateway kind", domain.ProviderSMSGateway, "", "*strategy.GatewaySMS"},
		{"gateway mode", domain.ProviderSMTPEmail, domain.ModeGateway, "*strategy.GatewaySMS"},
		{"cloud kind", domain.ProviderCloudSMSAPI, "", "*strategy.CloudSMS"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := ForRun(tc.kind, tmpl, domain.DispatchPolicy{Mode: tc.mode}, "")
			if got := typeName(s); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *Direct:
		return "*strategy.Direct"
	case *BCCBatch:
		return "*strategy.BCCBatch"
	case *GatewaySMS:
		return "*strategy.GatewaySMS"
	case *CloudSMS:
		return "*strategy.CloudSMS"
	}
	return "unknown"
}
