package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed exam API call.
type ErrorKind string

const (
	// KindNetwork: the server could not be reached at all.
	KindNetwork ErrorKind = "network_failure"
	// KindInvalidSession: the server rejected the caller's credentials.
	KindInvalidSession ErrorKind = "invalid_session"
	// KindServerRejected: the server answered with a non-2xx and a message.
	KindServerRejected ErrorKind = "server_rejected"
)

// Error is the only error type the HTTP client returns.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("exam api: %s: %s: %s", e.Op, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("exam api: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("exam api: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) (ErrorKind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return "", false
}

// IsNetworkFailure reports whether err represents an unreachable server.
func IsNetworkFailure(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNetwork
}

// IsInvalidSession reports whether err represents rejected credentials.
func IsInvalidSession(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInvalidSession
}

// IsServerRejected reports whether err is a non-2xx response with a message.
func IsServerRejected(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindServerRejected
}
