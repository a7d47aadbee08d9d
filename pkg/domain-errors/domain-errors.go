// Package domainerrors carries a stable failure code from the workflow
// engine and stores up to the HTTP surface.
package domainerrors

import "errors"

// Code names what went wrong in issuance terms. Transports map it to their
// own status codes.
type Code string

const (
	CodeNotFound   Code = "not_found"
	CodeBadRequest Code = "bad_request"
	CodeValidation Code = "validation_failed"
	CodeConflict   Code = "conflict"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal_error"

	CodeAlreadyAccepted    Code = "already_accepted"     // latest offer of the request was accepted
	CodeAlreadyRevoked     Code = "already_revoked"      // terminal
	CodeConnectionNotReady Code = "connection_not_ready" // agent refused the offer on this connection
	CodeAgent              Code = "agent_error"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, whatever the message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches msg to err. A code already carried by err wins over code, so
// the first layer to classify a failure decides its code.
func Wrap(err error, code Code, msg string) error {
	if existing, ok := CodeOf(err); ok {
		code = existing
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

func HasCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
