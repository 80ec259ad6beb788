package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure. The set is closed: every error returned by
// Client carries exactly one Kind.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthorized means the credential was missing, invalid or expired.
	KindUnauthorized
	// KindNotFound means the target entity does not exist server-side.
	KindNotFound
	// KindInvalidCredentials means login rejected the username/password pair.
	KindInvalidCredentials
	// KindConflict means signup collided with an existing username or email.
	KindConflict
	// KindUnavailable means no response was received.
	KindUnavailable
	// KindServerError means a 5xx or an unreadable success body.
	KindServerError
	// KindRejected covers every other 4xx and requests that could not be built.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindServerError:
		return "server error"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnavailable        = &Error{Kind: KindUnavailable}
	ErrServerError        = &Error{Kind: KindServerError}
	ErrRejected           = &Error{Kind: KindRejected}
)

// Error is a gateway failure. StatusCode is zero when no response arrived.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.StatusCode != 0 && e.Message != "":
		msg = fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		msg = fmt.Sprintf("HTTP %d", e.StatusCode)
	case e.Message != "":
		msg = e.Message
	default:
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works
// for every not-found failure regardless of operation or status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsStatus returns true if err (or any wrapped error) is an Error with the given status code.
func IsStatus(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}

// classify maps a response status to a Kind. Login and signup reinterpret
// some statuses, see the operation-specific overrides in client.go.
func classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindRejected
	default:
		return KindUnknown
	}
}
