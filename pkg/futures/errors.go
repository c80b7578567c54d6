package futures

import (
	"errors"
	"fmt"
)

// Common error variables returned by the subscription client.
var (
	// ErrConnectionStale is reported when the watchdog force-closes a
	// connection that stopped receiving frames within the receive limit.
	ErrConnectionStale = errors.New("connection stale: no frames within receive limit")

	// ErrConnectionClosed is returned when an operation is attempted on a
	// connection that has already been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMissingListenKey is returned when a user-data subscription is
	// requested without a listen key.
	ErrMissingListenKey = errors.New("listen key is required for the user data stream")
)

// ValidationError reports an invalid or missing caller argument. It is
// returned synchronously from Subscribe calls, before any connection attempt.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConnectionError reports a handshake or transport failure on one
// connection. It is delivered through the subscription's error callback;
// when auto-reconnect is enabled the connection retries on its own.
type ConnectionError struct {
	Channel string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error on %s: %v", e.Channel, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ParseError reports a malformed or unexpected payload. It is delivered
// through the error callback; the connection stays open.
type ParseError struct {
	Channel string
	Payload []byte
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on %s: %v", e.Channel, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CallbackError wraps a panic recovered from a caller-supplied handler so it
// can be routed to the error callback instead of terminating the receive
// loop.
type CallbackError struct {
	Channel string
	Value   interface{}
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("handler panic on %s: %v", e.Channel, e.Value)
}
