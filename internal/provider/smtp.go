package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// Conventional SMTP ports. Some networks block the submission port while
// still allowing the implicit-TLS port, so a transient dial failure on 587
// against a host known to answer on 465 gets one fallback attempt.
const (
	submissionPort  = 587
	implicitTLSPort = 465
)

// Hosts known to accept both STARTTLS on 587 and implicit TLS on 465.
// The fallback is provider-specific, never universal: applying it blindly
// would mask genuine outages behind a second confusing error.
var dualPortHosts = map[string]struct{}{
	"smtp.gmail.com":           {},
	"smtp.mail.yahoo.com":      {},
	"smtp.zoho.com":            {},
	"smtp.fastmail.com":        {},
	"smtp.sendgrid.net":        {},
	"smtp.mailgun.org":         {},
	"smtpout.secureserver.net": {},
	"smtp-relay.brevo.com":     {},
}

// dialFunc performs one dial-and-authenticate attempt against host:port with
// the given transport mode.
type dialFunc func(cfg domain.ProviderConfig, port int, mode domain.TLSMode) (mail.SendCloser, error)

type smtpConn struct {
	mgr    *Manager
	cfg    domain.ProviderConfig
	sc     mail.SendCloser
	logger *zap.Logger
}

func (m *Manager) dialSMTP(ctx context.Context, cfg domain.ProviderConfig) (Conn, error) {
	sc, err := m.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &smtpConn{
		mgr:    m,
		cfg:    cfg,
		sc:     sc,
		logger: m.logger.With(zap.String("provider", cfg.Name), zap.String("host", cfg.Host)),
	}, nil
}

// open dials and authenticates, applying the 465 fallback when warranted.
func (m *Manager) open(ctx context.Context, cfg domain.ProviderConfig) (mail.SendCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.FailTransient, err)
	}

	sc, err := m.dial(cfg, cfg.Port, cfg.TLS)
	if err == nil {
		return sc, nil
	}

	if isAuthErr(err) {
		return nil, domain.Errorf(domain.FailAuth, "authentication failed for %s: %v", cfg.Host, err)
	}

	if isTransientDial(err) && cfg.Port == submissionPort {
		if _, known := dualPortHosts[cfg.Host]; known {
			m.logger.Warn("dial failed on submission port, retrying with implicit TLS",
				zap.String("host", cfg.Host),
				zap.Int("fallback_port", implicitTLSPort),
				zap.Error(err),
			)
			sc, ferr := m.dial(cfg, implicitTLSPort, domain.TLSImplicit)
			if ferr == nil {
				return sc, nil
			}
			if isAuthErr(ferr) {
				return nil, domain.Errorf(domain.FailAuth, "authentication failed for %s: %v", cfg.Host, ferr)
			}
			err = ferr
		}
	}

	return nil, domain.Errorf(domain.FailTransient, "connect %s:%d: %v", cfg.Host, cfg.Port, err)
}

// gomailDial is the production dialFunc.
func (m *Manager) gomailDial(cfg domain.ProviderConfig, port int, mode domain.TLSMode) (mail.SendCloser, error) {
	return m.dialerFor(cfg, port, mode).Dial()
}

func (m *Manager) dialerFor(cfg domain.ProviderConfig, port int, mode domain.TLSMode) *mail.Dialer {
	d := &mail.Dialer{
		Host:    cfg.Host,
		Port:    port,
		Timeout: m.dialTimeout,
	}
	// gomail skips AUTH entirely when no username is set, which is exactly
	// what Direct Send style relays require.
	if !cfg.NoAuth {
		d.Username = cfg.Username
		d.Password = cfg.Password
	}
	switch mode {
	case domain.TLSImplicit:
		d.SSL = true
	case domain.TLSStartTLS:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	default:
		d.StartTLSPolicy = mail.NoStartTLS
	}
	return d
}

// Send delivers one message, transparently reconnecting once if the server
// dropped the connection between units. A second consecutive failure is
// returned to the caller and fails that unit only.
func (c *smtpConn) Send(ctx context.Context, bm *domain.BuiltMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewError(domain.FailTransient, err)
	}

	msg := buildMailMessage(bm)
	err := mail.Send(c.sc, msg)
	if err == nil {
		return "", nil
	}
	if !isConnDropped(err) {
		return "", domain.Errorf(domain.FailSend, "send via %s: %v", c.cfg.Host, err)
	}

	c.logger.Warn("connection dropped mid-run, reconnecting", zap.Error(err))
	_ = c.sc.Close()

	sc, rerr := c.mgr.open(ctx, c.cfg)
	if rerr != nil {
		return "", domain.Errorf(domain.FailTransient, "reconnect %s: %v", c.cfg.Host, rerr)
	}
	c.sc = sc

	if err := mail.Send(c.sc, msg); err != nil {
		return "", domain.Errorf(domain.FailTransient, "resend via %s: %v", c.cfg.Host, err)
	}
	return "", nil
}

func (c *smtpConn) Close() error {
	if c.sc == nil {
		return nil
	}
	err := c.sc.Close()
	c.sc = nil
	return err
}

// buildMailMessage converts the strategy's provider-neutral message into a
// gomail message. Envelope recipients are derived from the To and Bcc
// headers, so bcc-batch mode sends one wire message to sender+batch.
func buildMailMessage(bm *domain.BuiltMessage) *mail.Message {
	msg := mail.NewMessage()

	if bm.FromName != "" {
		msg.SetAddressHeader("From", bm.From, bm.FromName)
	} else {
		msg.SetHeader("From", bm.From)
	}
	msg.SetHeader("To", bm.To)
	if len(bm.Bcc) > 0 {
		msg.SetHeader("Bcc", bm.Bcc...)
	}
	if bm.Subject != "" {
		msg.SetHeader("Subject", bm.Subject)
	}
	for k, v := range bm.Headers {
		msg.SetHeader(k, v)
	}

	switch {
	case bm.TextBody != "" && bm.HTMLBody != "":
		msg.SetBody("text/plain", bm.TextBody)
		msg.AddAlternative("text/html", bm.HTMLBody)
	case bm.HTMLBody != "":
		msg.SetBody("text/html", bm.HTMLBody)
	default:
		msg.SetBody("text/plain", bm.TextBody)
	}

	for _, a := range bm.Attachments {
		a := a
		msg.AttachReader(a.Name, bytes.NewReader(a.Data))
	}

	return msg
}

var _ Conn = (*smtpConn)(nil)

// MessageID builds an RFC 5322 message id with the domain taken from the
// sender address, matching what well-behaved MTAs expect.
func MessageID(sender, unique string) string {
	domainPart := "localhost"
	if i := strings.LastIndexByte(sender, '@'); i >= 0 && i+1 < len(sender) {
		domainPart = sender[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", unique, domainPart)
}
