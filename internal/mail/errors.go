package mail

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a message, attachment, or folder that the
// upstream server does not have. HTTP maps it to 404.
var ErrNotFound = errors.New("not found")

// AuthError reports rejected credentials on the upstream server. It is
// distinct from UpstreamError so the HTTP layer can answer 401 instead
// of 502.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// UpstreamError wraps a failure talking to the IMAP or SMTP server:
// dial, TLS, protocol. The client credentials were not at fault.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
