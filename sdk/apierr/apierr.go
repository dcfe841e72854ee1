// Package apierr defines the closed error taxonomy for the Foundry SDK.
//
// Every failure surfaced by the SDK is an *Error carrying a Kind, a
// human-readable (already sanitized) message, and an optional cause.
// Callers branch on Kind; the cause chain stays walkable through
// errors.Is, errors.As, and errors.Unwrap, so the root failure is never
// flattened away.
package apierr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure category. The set is closed: the SDK never
// surfaces an error outside it.
type Kind int

const (
	// KindConfiguration is an invalid policy or endpoint detected at
	// construction time. Always fatal, never retried.
	KindConfiguration Kind = iota + 1

	// KindAuth means credential resolution failed.
	KindAuth

	// KindHTTP is a transport-level failure, or a non-2xx response whose
	// body carried no structured error.
	KindHTTP

	// KindAPI is a structured error returned by the service, with a
	// machine code and message.
	KindAPI

	// KindStream is a failure while framing or decoding a streaming
	// response.
	KindStream

	// KindDependency wraps a failure from an underlying library.
	KindDependency
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuth:
		return "auth"
	case KindHTTP:
		return "http"
	case KindAPI:
		return "api"
	case KindStream:
		return "stream"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Error is the structured SDK error.
type Error struct {
	// Kind is the failure category.
	Kind Kind

	// Status is the HTTP status code, when one was observed.
	Status int

	// Code is the machine-readable error code from an API error body.
	Code string

	// Message is a human-readable, sanitized description.
	Message string

	// Cause is the wrapped underlying error, nil when there is none.
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfiguration:
		return "configuration error: " + e.Message
	case KindAuth:
		return "authentication failed: " + e.Message
	case KindHTTP:
		if e.Status > 0 {
			return fmt.Sprintf("HTTP error: %d - %s", e.Status, e.Message)
		}
		return "HTTP error: " + e.Message
	case KindAPI:
		return fmt.Sprintf("API error (%s): %s", e.Code, e.Message)
	case KindStream:
		return "stream error: " + e.Message
	case KindDependency:
		return "dependency error: " + e.Message
	default:
		return e.Message
	}
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Configuration creates a construction-time error. It never carries a
// cause; the message alone identifies the misconfiguration.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Auth creates a credential-resolution error. cause may be nil.
func Auth(message string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: message, Cause: cause}
}

// HTTP creates a transport or unstructured-response error. status is 0
// when the failure happened before any status was observed.
func HTTP(status int, message string, cause error) *Error {
	return &Error{Kind: KindHTTP, Status: status, Message: message, Cause: cause}
}

// API creates an error from a structured service error body.
func API(status int, code, message string) *Error {
	return &Error{Kind: KindAPI, Status: status, Code: code, Message: message}
}

// Stream creates a streaming-protocol error. cause may be nil.
func Stream(message string, cause error) *Error {
	return &Error{Kind: KindStream, Message: message, Cause: cause}
}

// Dependency wraps a failure from an underlying library, preserving it as
// the queryable cause.
func Dependency(message string, cause error) *Error {
	return &Error{Kind: KindDependency, Message: message, Cause: cause}
}

// KindOf walks err's chain and returns the Kind of the outermost *Error,
// or 0 when the chain contains none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
