package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for API surfacing. Every error that crosses
// the engine boundary carries a Kind, which the HTTP layer maps to a
// status code and a machine-readable error code string.
type Kind string

const (
	// KindInvalidRequest covers malformed names, missing fields, and
	// unknown services named by the caller.
	KindInvalidRequest Kind = "invalid_request"

	// KindConflict indicates the branch already exists.
	KindConflict Kind = "conflict"

	// KindCredentialInvalid indicates the AI provider rejected the key.
	KindCredentialInvalid Kind = "credential_invalid"

	// KindCredentialTransient indicates the provider was unreachable or
	// errored; the caller may retry later.
	KindCredentialTransient Kind = "credential_transient"

	// KindVCSFailed indicates a version-control operation failed.
	KindVCSFailed Kind = "vcs_failed"

	// KindTemplateError indicates workspace rendering failed: missing
	// template file, unreadable spec, or an empty service set.
	KindTemplateError Kind = "template_error"

	// KindBuildFailed indicates a container image build error.
	KindBuildFailed Kind = "build_failed"

	// KindStartFailed indicates the container group could not be started.
	KindStartFailed Kind = "start_failed"

	// KindStopFailed indicates the container group could not be stopped.
	KindStopFailed Kind = "stop_failed"

	// KindTimeout indicates a container-engine invocation exceeded its
	// configured bound.
	KindTimeout Kind = "timeout"

	// KindNotFound indicates the named branch is not registered.
	KindNotFound Kind = "not_found"

	// KindPortExhausted indicates no host port is free in the
	// configured range.
	KindPortExhausted Kind = "port_exhausted"

	// KindInternal covers everything else.
	KindInternal Kind = "internal"
)

// HTTPStatus maps an error kind to the HTTP status code the control API
// responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindCredentialInvalid:
		return http.StatusUnauthorized
	case KindCredentialTransient, KindPortExhausted:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type: a kind for classification, a message
// for humans, and an optional wrapped cause.
type Error struct {
	// Kind classifies the error for HTTP mapping and logging.
	Kind Kind

	// Message is the human-readable description surfaced to callers.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given kind and message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef creates a new Error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapE creates a new Error that wraps an existing error.
func WrapE(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Errors that do not carry
// a *Error anywhere in the chain report KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
