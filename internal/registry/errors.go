package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies registry failures for user-facing handling.
type ErrorKind int

const (
	// ErrNetwork means the registry could not be reached at all.
	ErrNetwork ErrorKind = iota
	// ErrServer means the registry answered with a failure status.
	ErrServer
	// ErrTimeout means the request exceeded its deadline.
	ErrTimeout
)

// String returns a short identifier for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrServer:
		return "server"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// UserMessage returns the user-facing fallback for kinds that carry no
// server-provided message.
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrServer:
		return "the registry reported an error"
	case ErrTimeout:
		return "the registry took too long to answer"
	default:
		return "the registry could not be reached"
	}
}

// Error is the failure type returned by every Client implementation.
// For ErrServer, Status carries the HTTP status code and Message the
// server's own message when it sent one.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("registry %s error: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("registry %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("registry %s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err, or wraps err as an ErrNetwork
// when it is something else entirely.
func AsError(err error) *Error {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr
	}
	return &Error{Kind: ErrNetwork, Err: err}
}

// classifyTransport maps a transport-level failure to Error.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	return &Error{Kind: ErrNetwork, Err: err}
}
