package bskykit

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the client reports.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindUnauthorized
	KindInvalidURL
	KindNetwork
	KindEmptyBody
	KindDecode
	KindInvalidResponse
	// KindStatus is a non-2xx answer that is not a 401.
	KindStatus
	// KindInvalidInput is an argument rejected before any request is built.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidURL:
		return "invalid url"
	case KindNetwork:
		return "network"
	case KindEmptyBody:
		return "empty body"
	case KindDecode:
		return "decode"
	case KindInvalidResponse:
		return "invalid response"
	case KindStatus:
		return "status"
	case KindInvalidInput:
		return "invalid input"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every operation in this package.
//
// Use errors.Is against the Err* sentinels to branch on the kind, and errors.As
// to get at the status code or the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode is set when the failure came from an HTTP response.
	StatusCode int
	// XRPCError is the "error" field of an XRPC error body, if one was sent.
	XRPCError string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with a
// message only matches when the messages agree too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

var (
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrInvalidURL      = &Error{Kind: KindInvalidURL}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrEmptyBody       = &Error{Kind: KindEmptyBody}
	ErrDecode          = &Error{Kind: KindDecode}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
	ErrStatus          = &Error{Kind: KindStatus}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or 0 if err did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
