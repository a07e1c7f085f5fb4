package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers of the gateway.
type ErrorKind int

const (
	KindDefault ErrorKind = iota
	KindInvalidRequest
	KindTimeout
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServerError
	KindNetwork
)

var kindNames = map[ErrorKind]string{
	KindDefault:        "default_error",
	KindInvalidRequest: "invalid_request",
	KindTimeout:        "timeout",
	KindUnauthorized:   "unauthorized",
	KindForbidden:      "forbidden",
	KindNotFound:       "not_found",
	KindServerError:    "server_error",
	KindNetwork:        "network_error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the gateway's error type. Message is safe to show to a user;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout)
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrTimeout        = &Error{Kind: KindTimeout}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrServerError    = &Error{Kind: KindServerError}
	ErrDefault        = &Error{Kind: KindDefault}
	ErrNetwork        = &Error{Kind: KindNetwork}
)

// NewError builds an Error. status is the HTTP status, 0 when there was no
// response.
func NewError(kind ErrorKind, status int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  status,
		Err:     cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindDefault.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDefault
}
