package provider

import (
	"errors"
	"io"
	"net"
	"net/textproto"
	"strings"
	"syscall"
)

// isAuthErr reports whether the SMTP server rejected the credentials.
// 530/534/535 are the reply codes servers use for authentication problems;
// they must never trigger the port fallback or a reconnect retry.
func isAuthErr(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return true
		}
	}
	return false
}

// isTransientDial reports whether a dial failure looks like a blocked or
// flaky network path (timeout or refusal) rather than a protocol-level
// rejection. DNS resolution failures are excluded: retrying another port
// cannot fix a name that does not resolve.
func isTransientDial(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isConnDropped reports whether an in-flight send failed because the server
// closed the connection (idle timeout, rate-limit disconnect, 421 shutdown).
// mail.Send flattens the cause into its message, so the error chain is
// consulted first and the message text second.
func isConnDropped(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == 421 {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{"EOF", "connection reset", "broken pipe", "421 "} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
