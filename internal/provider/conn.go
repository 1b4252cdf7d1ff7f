// Package provider manages live connections to messaging providers: SMTP
// servers (plain, STARTTLS, or implicit TLS) and HTTP SMS APIs.
package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// Conn is an open, authenticated connection to one provider. A connection is
// reused across all units of work routed to its provider until it is rotated
// out or the run ends, and must be closed on every exit path.
type Conn interface {
	// Send delivers one built message. The returned id is the provider's
	// message id when the provider reports one (cloud SMS API), else "".
	Send(ctx context.Context, msg *domain.BuiltMessage) (string, error)
	Close() error
}

// Manager opens connections according to a provider's kind and transport
// security mode.
type Manager struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	apiTimeout  time.Duration

	// Injected for tests; defaults to the gomail dialer.
	dial dialFunc
}

func NewManager(logger *zap.Logger, dialTimeout, apiTimeout time.Duration) *Manager {
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}
	if apiTimeout <= 0 {
		apiTimeout = 10 * time.Second
	}
	m := &Manager{logger: logger, dialTimeout: dialTimeout, apiTimeout: apiTimeout}
	m.dial = m.gomailDial
	return m
}

// Connect validates cfg, opens the connection, and authenticates.
// Authentication failure is returned as FailAuth and is fatal for the whole
// run; network-level failures are FailTransient.
func (m *Manager) Connect(ctx context.Context, cfg domain.ProviderConfig) (Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewError(domain.FailConfig, err)
	}

	if cfg.Kind == domain.ProviderCloudSMSAPI {
		return newAPIConn(cfg, m.apiTimeout, m.logger), nil
	}
	return m.dialSMTP(ctx, cfg)
}
