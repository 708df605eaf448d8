package etims

import (
	"errors"
	"fmt"
)

// Kind tags an Error with its place in the failure taxonomy
type Kind string

// Error kinds
const (
	KindAuthentication      Kind = "AUTHENTICATION"
	KindConnectivityCeiling Kind = "CONNECTIVITY_CEILING"
	KindServiceUnavailable  Kind = "SERVICE_UNAVAILABLE"
	KindAmbiguousState      Kind = "AMBIGUOUS_STATE"
	KindHTTPStatus          Kind = "HTTP_STATUS"
	KindValidation          Kind = "VALIDATION"
	KindDecode              Kind = "DECODE"
	KindClientClosed        Kind = "CLIENT_CLOSED"
)

const (
	msgConnectivityCeiling = "KRA connectivity timeout: VSCU offline ceiling breached (HTTP 503). " +
		"TIaaS cannot sign invoices until connectivity to KRA GavaConnect is restored."
	msgServiceUnavailable = "TIaaS Service Unavailable: The Railway instance is unreachable."
	msgAmbiguousState     = "TIaaS Ambiguous State: Request sent but connection was dropped before response. " +
		"Submit again with the same idempotency key."
)

// Error is the single error type returned by the client. Kind decides how
// the caller should react; Cause holds the transport or decoding error, if any.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Body       string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrAmbiguousState) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrAuthentication      = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrConnectivityCeiling = &Error{Kind: KindConnectivityCeiling, Message: msgConnectivityCeiling}
	ErrServiceUnavailable  = &Error{Kind: KindServiceUnavailable, Message: msgServiceUnavailable}
	ErrAmbiguousState      = &Error{Kind: KindAmbiguousState, Message: msgAmbiguousState}
	ErrHTTPStatus          = &Error{Kind: KindHTTPStatus, Message: "unexpected HTTP status"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "invalid document"}
	ErrDecode              = &Error{Kind: KindDecode, Message: "invalid response body"}
)

// ErrClientClosed is returned by every call made after Close
var ErrClientClosed = &Error{Kind: KindClientClosed, Message: "etims: client is closed"}

// NewError creates a new client error
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func newAuthStatusError(status int, body string) *Error {
	return &Error{
		Kind:       KindAuthentication,
		Message:    "TIaaS Authentication failed: " + body,
		StatusCode: status,
		Body:       body,
	}
}

func newAuthTransportError(cause error) *Error {
	return NewError(KindAuthentication, "TIaaS Authentication unreachable", cause)
}

func newConnectivityCeilingError(body string) *Error {
	return &Error{
		Kind:       KindConnectivityCeiling,
		Message:    msgConnectivityCeiling,
		StatusCode: 503,
		Body:       body,
	}
}

func newServiceUnavailableError(cause error) *Error {
	return NewError(KindServiceUnavailable, msgServiceUnavailable, cause)
}

func newAmbiguousStateError(cause error) *Error {
	return NewError(KindAmbiguousState, msgAmbiguousState, cause)
}

func newHTTPStatusError(status int, body string) *Error {
	return &Error{
		Kind:       KindHTTPStatus,
		Message:    fmt.Sprintf("TIaaS returned HTTP %d: %s", status, body),
		StatusCode: status,
		Body:       body,
	}
}

func newValidationError(document string, cause error) *Error {
	return NewError(KindValidation, "invalid "+document, cause)
}

func newDecodeError(message string, cause error) *Error {
	return NewError(KindDecode, message, cause)
}

// KindOf returns the kind of err, or "" when err is not a client error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether resubmitting is safe without further thought:
// the request either never reached the server or was refused before any side effect.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindServiceUnavailable, KindConnectivityCeiling:
		return true
	}
	return false
}

// RequiresSameIdempotencyKey reports whether a retry must reuse the original
// idempotency key because the server may already have applied the request.
func RequiresSameIdempotencyKey(err error) bool {
	return KindOf(err) == KindAmbiguousState
}
