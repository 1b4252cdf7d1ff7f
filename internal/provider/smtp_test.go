package provider

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/textproto"
	"strings"
	"testing"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

func renderMessage(t *testing.T, bm *domain.BuiltMessage) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := buildMailMessage(bm).WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	return buf.String()
}

func TestBuildMailMessage_Headers(t *testing.T) {
	out := renderMessage(t, &domain.BuiltMessage{
		From:     "sender@example.com",
		FromName: "Ops Team",
		To:       "rcpt@example.com",
		Subject:  "Hello",
		TextBody: "plain body",
		Headers: map[string]string{
			"Reply-To":      "sender@example.com",
			"X-Tracking-ID": "abc123",
		},
	})

	for _, want := range []string{
		"Ops Team",
		"<sender@example.com>",
		"To: rcpt@example.com",
		"Subject: Hello",
		"Reply-To: sender@example.com",
		"X-Tracking-ID: abc123",
		"plain body",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered message missing %q:\n%s", want, out)
		}
	}
}

func TestBuildMailMessage_AlternativeBodies(t *testing.T) {
	out := renderMessage(t, &domain.BuiltMessage{
		From:     "s@x.com",
		To:       "r@x.com",
		TextBody: "text version",
		HTMLBody: "<p>html version</p>",
	})

	if !strings.Contains(out, "multipart/alternative") {
		t.Fatalf("expected multipart/alternative, got:\n%s", out)
	}
	if !strings.Contains(out, "text version") || !strings.Contains(out, "html version") {
		t.Fatal("expected both body parts present")
	}
}

func TestBuildMailMessage_Attachment(t *testing.T) {
	out := renderMessage(t, &domain.BuiltMessage{
		From:     "s@x.com",
		To:       "r@x.com",
		TextBody: "see attached",
		Attachments: []domain.Attachment{
			{Name: "report.txt", Data: []byte("attachment payload")},
		},
	})

	if !strings.Contains(out, "report.txt") {
		t.Fatalf("expected attachment filename in output:\n%s", out)
	}
}

func TestBuildMailMessage_BccBatch(t *testing.T) {
	bm := &domain.BuiltMessage{
		From:     "s@x.com",
		To:       "s@x.com",
		Bcc:      []string{"a@x.com", "b@x.com"},
		TextBody: "batch body",
	}
	msg := buildMailMessage(bm)

	// gomail derives envelope recipients from To+Bcc, so one wire message
	// reaches sender plus the whole batch.
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !strings.Contains(buf.String(), "To: s@x.com") {
		t.Fatal("expected visible To header addressed to sender")
	}
}

// fakeSendCloser counts wire sends and fails according to sendErrs, consumed
// one entry per call.
type fakeSendCloser struct {
	sendErrs []error
	sends    int
	closed   bool
}

func (f *fakeSendCloser) Send(from string, to []string, msg io.WriterTo) error {
	var err error
	if f.sends < len(f.sendErrs) {
		err = f.sendErrs[f.sends]
	}
	f.sends++
	return err
}

func (f *fakeSendCloser) Close() error {
	f.closed = true
	return nil
}

type dialRecord struct {
	port int
	mode domain.TLSMode
}

// scriptedDial returns a dialFunc that records every attempt and fails with
// errs in order; attempts past the script succeed with a fresh fakeSendCloser.
func scriptedDial(calls *[]dialRecord, errs ...error) dialFunc {
	attempt := 0
	return func(_ domain.ProviderConfig, port int, mode domain.TLSMode) (mail.SendCloser, error) {
		*calls = append(*calls, dialRecord{port: port, mode: mode})
		var err error
		if attempt < len(errs) {
			err = errs[attempt]
		}
		attempt++
		if err != nil {
			return nil, err
		}
		return &fakeSendCloser{}, nil
	}
}

func dualPortCfg() domain.ProviderConfig {
	return domain.ProviderConfig{
		Name:     "primary",
		Kind:     domain.ProviderSMTPEmail,
		Host:     "smtp.gmail.com",
		Port:     587,
		TLS:      domain.TLSStartTLS,
		Username: "u",
		Password: "p",
		Sender:   "u@gmail.com",
	}
}

func TestOpen_DualPortFallback(t *testing.T) {
	authErr := &textproto.Error{Code: 535, Msg: "authentication failed"}
	dnsErr := &net.DNSError{Err: "no such host", Name: "smtp.gmail.com"}

	tests := []struct {
		name      string
		mutate    func(*domain.ProviderConfig)
		dialErrs  []error
		wantCalls []dialRecord
		wantKind  domain.FailKind
	}{
		{
			name:     "timeout on dual-port host retries once on 465",
			dialErrs: []error{timeoutErr{}},
			wantCalls: []dialRecord{
				{port: 587, mode: domain.TLSStartTLS},
				{port: 465, mode: domain.TLSImplicit},
			},
		},
		{
			name:      "auth failure never falls back",
			dialErrs:  []error{authErr},
			wantCalls: []dialRecord{{port: 587, mode: domain.TLSStartTLS}},
			wantKind:  domain.FailAuth,
		},
		{
			name:      "dns failure never falls back",
			dialErrs:  []error{dnsErr},
			wantCalls: []dialRecord{{port: 587, mode: domain.TLSStartTLS}},
			wantKind:  domain.FailTransient,
		},
		{
			name:      "unknown host never falls back",
			mutate:    func(c *domain.ProviderConfig) { c.Host = "mail.internal.example.com" },
			dialErrs:  []error{timeoutErr{}},
			wantCalls: []dialRecord{{port: 587, mode: domain.TLSStartTLS}},
			wantKind:  domain.FailTransient,
		},
		{
			name:      "non-submission port never falls back",
			mutate:    func(c *domain.ProviderConfig) { c.Port = 2525 },
			dialErrs:  []error{timeoutErr{}},
			wantCalls: []dialRecord{{port: 2525, mode: domain.TLSStartTLS}},
			wantKind:  domain.FailTransient,
		},
		{
			name:     "auth failure on the fallback port is still auth",
			dialErrs: []error{timeoutErr{}, authErr},
			wantCalls: []dialRecord{
				{port: 587, mode: domain.TLSStartTLS},
				{port: 465, mode: domain.TLSImplicit},
			},
			wantKind: domain.FailAuth,
		},
		{
			name:     "fallback failure stays transient with no third attempt",
			dialErrs: []error{timeoutErr{}, timeoutErr{}},
			wantCalls: []dialRecord{
				{port: 587, mode: domain.TLSStartTLS},
				{port: 465, mode: domain.TLSImplicit},
			},
			wantKind: domain.FailTransient,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := dualPortCfg()
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}

			var calls []dialRecord
			m := &Manager{logger: zap.NewNop(), dial: scriptedDial(&calls, tc.dialErrs...)}

			sc, err := m.open(context.Background(), cfg)

			if len(calls) != len(tc.wantCalls) {
				t.Fatalf("expected %d dial attempts, got %d: %+v", len(tc.wantCalls), len(calls), calls)
			}
			for i, want := range tc.wantCalls {
				if calls[i] != want {
					t.Fatalf("attempt %d: got %+v, want %+v", i, calls[i], want)
				}
			}

			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if sc == nil {
					t.Fatal("expected a live send closer")
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.KindOf(err); got != tc.wantKind {
				t.Fatalf("expected %s, got %s (%v)", tc.wantKind, got, err)
			}
		})
	}
}

func testMessage() *domain.BuiltMessage {
	return &domain.BuiltMessage{
		From:     "u@gmail.com",
		To:       "r@example.com",
		Subject:  "hi",
		TextBody: "body",
	}
}

func TestSMTPConnSend_ReconnectsOnceOnDrop(t *testing.T) {
	first := &fakeSendCloser{sendErrs: []error{io.EOF}}
	second := &fakeSendCloser{}

	var calls []dialRecord
	m := &Manager{logger: zap.NewNop(), dial: func(_ domain.ProviderConfig, port int, mode domain.TLSMode) (mail.SendCloser, error) {
		calls = append(calls, dialRecord{port: port, mode: mode})
		return second, nil
	}}
	conn := &smtpConn{mgr: m, cfg: dualPortCfg(), sc: first, logger: zap.NewNop()}

	if _, err := conn.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("expected resend to succeed, got %v", err)
	}
	if !first.closed {
		t.Fatal("dropped connection must be closed before reconnecting")
	}
	if len(calls) != 1 {
		t.Fatalf("expected exactly one reconnect dial, got %d", len(calls))
	}
	if first.sends != 1 || second.sends != 1 {
		t.Fatalf("expected one send per connection, got %d/%d", first.sends, second.sends)
	}
}

func TestSMTPConnSend_SecondDropFailsUnit(t *testing.T) {
	first := &fakeSendCloser{sendErrs: []error{io.EOF}}
	second := &fakeSendCloser{sendErrs: []error{io.EOF}}

	m := &Manager{logger: zap.NewNop(), dial: func(domain.ProviderConfig, int, domain.TLSMode) (mail.SendCloser, error) {
		return second, nil
	}}
	conn := &smtpConn{mgr: m, cfg: dualPortCfg(), sc: first, logger: zap.NewNop()}

	_, err := conn.Send(context.Background(), testMessage())
	if domain.KindOf(err) != domain.FailTransient {
		t.Fatalf("expected FailTransient, got %v (%v)", domain.KindOf(err), err)
	}
	// One resend, never a second reconnect.
	if second.sends != 1 {
		t.Fatalf("expected exactly one resend attempt, got %d", second.sends)
	}
}

func TestSMTPConnSend_RejectionDoesNotReconnect(t *testing.T) {
	first := &fakeSendCloser{sendErrs: []error{&textproto.Error{Code: 550, Msg: "no such user"}}}

	dials := 0
	m := &Manager{logger: zap.NewNop(), dial: func(domain.ProviderConfig, int, domain.TLSMode) (mail.SendCloser, error) {
		dials++
		return &fakeSendCloser{}, nil
	}}
	conn := &smtpConn{mgr: m, cfg: dualPortCfg(), sc: first, logger: zap.NewNop()}

	_, err := conn.Send(context.Background(), testMessage())
	if domain.KindOf(err) != domain.FailSend {
		t.Fatalf("expected FailSend, got %v (%v)", domain.KindOf(err), err)
	}
	if dials != 0 {
		t.Fatalf("rejection must not trigger a reconnect, got %d dials", dials)
	}
	if first.closed {
		t.Fatal("connection must stay open after a per-message rejection")
	}
}

func TestSMTPConnSend_ReconnectFailureFailsUnit(t *testing.T) {
	first := &fakeSendCloser{sendErrs: []error{io.EOF}}

	cfg := dualPortCfg()
	cfg.Host = "mail.internal.example.com" // off the dual-port list
	m := &Manager{logger: zap.NewNop(), dial: func(domain.ProviderConfig, int, domain.TLSMode) (mail.SendCloser, error) {
		return nil, timeoutErr{}
	}}
	conn := &smtpConn{mgr: m, cfg: cfg, sc: first, logger: zap.NewNop()}

	_, err := conn.Send(context.Background(), testMessage())
	if domain.KindOf(err) != domain.FailTransient {
		t.Fatalf("expected FailTransient, got %v (%v)", domain.KindOf(err), err)
	}
}

func TestMessageID(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		unique string
		want   string
	}{
		{"normal sender", "ops@example.com", "u1", "<u1@example.com>"},
		{"no at sign", "not-an-address", "u2", "<u2@localhost>"},
		{"trailing at", "broken@", "u3", "<u3@localhost>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MessageID(tc.sender, tc.unique); got != tc.want {
				t.Fatalf("MessageID(%q) = %q, want %q", tc.sender, got, tc.want)
			}
		})
	}
}
