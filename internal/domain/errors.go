package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the engine.
// Callers compare with errors.Is; messages are for humans only.
var (
	ErrNoProviders    = errors.New("not configured: no providers")
	ErrNoRecipients   = errors.New("not configured: empty recipient list")
	ErrInvalidPort    = errors.New("port must be between 1 and 65535")
	ErrInvalidKind    = errors.New("provider kind must be smtp-email, smtp-sms-gateway, or cloud-sms-api")
	ErrInvalidTLSMode = errors.New("tls mode must be plain, starttls, or implicit-tls")
	ErrEmptyBody      = errors.New("template must have a plain or HTML body")
	ErrUnknownCarrier = errors.New("unknown carrier")
	ErrInvalidMode    = errors.New("dispatch mode must be direct, bcc-batch, or gateway")
)

// FailKind classifies a delivery failure so callers can distinguish
// retryable from fatal conditions without matching message strings.
type FailKind string

const (
	FailConfig            FailKind = "config"             // bad or missing configuration, fails before any send
	FailAuth              FailKind = "auth"               // credentials rejected at connect, fatal for the run
	FailTransient         FailKind = "transient"          // network timeout/reset on one send, run continues
	FailRecipient         FailKind = "recipient"          // malformed address or unknown carrier, run continues
	FailProviderExhausted FailKind = "provider_exhausted" // every candidate gateway domain failed for one number
	FailSend              FailKind = "send"               // provider rejected the message for any other reason
)

// DispatchError tags an underlying error with a FailKind.
type DispatchError struct {
	Kind FailKind
	Err  error
}

func (e *DispatchError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *DispatchError) Unwrap() error { return e.Err }

// NewError wraps err with the given kind.
func NewError(kind FailKind, err error) *DispatchError {
	return &DispatchError{Kind: kind, Err: err}
}

// Errorf is NewError with fmt.Errorf formatting.
func Errorf(kind FailKind, format string, args ...any) *DispatchError {
	return &DispatchError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the FailKind from an error chain.
// Unclassified errors default to FailSend.
func KindOf(err error) FailKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return FailSend
}

// IsRunFatal reports whether the error aborts the remainder of a run
// rather than failing a single unit of work.
func IsRunFatal(err error) bool {
	switch KindOf(err) {
	case FailAuth, FailConfig:
		return true
	}
	return false
}
