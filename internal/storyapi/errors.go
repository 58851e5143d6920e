package storyapi

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth means no usable token could be obtained. Fatal to a run.
	KindAuth
	// KindTransport means the request never produced an HTTP response.
	KindTransport
	// KindDecode means the response body did not have the expected shape.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every storyapi operation that fails.
type Error struct {
	Kind   Kind
	Op     string
	Status int    // HTTP status when a response was received
	Msg    string // service "msg" field when present
	Err    error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrAuth      = &Error{Kind: KindAuth}
	ErrTransport = &Error{Kind: KindTransport}
	ErrDecode    = &Error{Kind: KindDecode}
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Msg != "" {
		msg += fmt.Sprintf(": %q", e.Msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrAuth) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
