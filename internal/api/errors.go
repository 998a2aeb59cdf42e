package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Error is returned by Send for every failed call. The accompanying Outcome
// carries the same Kind.
type Error struct {
	Kind     Kind
	Status   int
	Code     string
	Message  string
	Method   string
	Endpoint string
	// Reason names the transport failure class for NetworkFailure.
	Reason string
	// Terminal is set on AuthRequired errors that will not be retried.
	Terminal bool
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Kind == KindNetworkFailure && e.Reason != "" {
		return fmt.Sprintf("%s %s: %s (%s)", e.Method, e.Endpoint, msg, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Endpoint, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// KindOf returns the Kind of err, or KindNone.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNone
}

// IsTerminalAuth reports an auth failure that survived refresh and replay.
func IsTerminalAuth(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuthRequired && apiErr.Terminal
}

// ErrorMessage extracts the human message from err without the method and endpoint prefix.
func ErrorMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Err != nil {
			return apiErr.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// classifyTransportError names the transport failure class.
func classifyTransportError(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns"
	case isTimeout(err):
		return "timeout"
	case errors.Is(err, ErrUnexpectedShape), strings.Contains(err.Error(), "malformed response body"):
		return "malformed body"
	case isRefused(err.Error()):
		return "connection"
	default:
		return "transport"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRefused(errStr string) bool {
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"EOF",
	} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
