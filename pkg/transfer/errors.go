package transfer

import (
	"errors"
	"fmt"
)

// ErrLoopStopped is returned when the event loop refuses new work.
var ErrLoopStopped = errors.New("event loop stopped")

// TransportError wraps a DNS, connect, TLS, timeout or body read failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError reports a response status outside [200,299].
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP code %d", e.StatusCode)
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
