package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ProviderError is a failed provider call. Transient marks failures a retry
// could fix.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func newStatusError(statusCode int, message string) *ProviderError {
	return &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func newTransportError(statusCode int, cause error) *ProviderError {
	return &ProviderError{
		StatusCode: statusCode,
		Message:    "provider request failed",
		Transient:  transientCause(cause),
		Cause:      cause,
	}
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := "docuseal"
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s status %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a failed call could succeed on a later attempt.
// It drives both the retry condition and the classification logged with each
// failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}
	return transientCause(err)
}

// transientCause classifies a transport error: timeouts, refused or reset
// connections and truncated responses are worth another attempt, caller
// cancellation is not.
func transientCause(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
