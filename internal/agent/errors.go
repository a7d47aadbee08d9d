package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error is returned by every Client method. Either StatusCode/Body (the agent
// answered with a non-2xx status) or Err (the call never completed, or its
// payload could not be encoded or decoded) is set. Malformed marks payload
// failures; the agent may already have acted on such a call.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
	Malformed  bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("agent %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call hit the client deadline.
func (e *Error) Timeout() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Retryable reports whether repeating the same call may succeed. Transport
// failures, timeouts, 5xx, 429 and the 4xx answers the agent gives while a
// connection is still completing are retryable. Malformed payloads never are.
func (e *Error) Retryable() bool {
	if e.Malformed {
		return false
	}
	if e.Err != nil {
		return !errors.Is(e.Err, context.Canceled)
	}
	switch {
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusBadRequest:
		return true
	}
	return false
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is an agent error worth retrying.
func IsRetryable(err error) bool {
	agentErr, ok := AsError(err)
	return ok && agentErr.Retryable()
}
