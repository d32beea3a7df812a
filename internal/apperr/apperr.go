// Package apperr classifies failures so handlers can map them to HTTP
// statuses without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an Error.
type Kind int

const (
	// KindUnknown is the zero value for errors that carry no Kind.
	KindUnknown Kind = iota
	// KindInvalidInput marks a malformed or missing request field.
	KindInvalidInput
	// KindValidation marks a schema or business-rule violation.
	KindValidation
	// KindUnauthorized marks a missing identity on a privileged path.
	KindUnauthorized
	// KindNotFound marks a lookup that matched no record.
	KindNotFound
	// KindConfiguration marks a required credential or setting that is absent.
	KindConfiguration
	// KindParse marks an extraction response that could not be interpreted.
	KindParse
	// KindStorage marks a persistence-layer failure.
	KindStorage
	// KindExternal marks a failure propagated from a hosted service.
	KindExternal
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindParse:
		return "parse"
	case KindStorage:
		return "storage"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Details carries per-field validation
// messages; StatusCode carries an upstream HTTP status when one exists.
type Error struct {
	Kind       Kind
	Message    string
	Details    []string
	StatusCode int
	wrapped    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// InvalidInput reports a malformed request field.
func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message)
}

// Validation reports rule violations with per-field detail.
func Validation(message string, details []string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// Unauthorized reports a missing identity.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// NotFound reports a lookup that matched nothing.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Configuration reports an absent credential or setting.
func Configuration(message string) *Error {
	return New(KindConfiguration, message)
}

// Parse reports an uninterpretable extraction response.
func Parse(message string) *Error {
	return New(KindParse, message)
}

// Storage reports a persistence failure.
func Storage(message string, err error) *Error {
	return Wrap(KindStorage, message, err)
}

// External reports a hosted-service failure, keeping its status code.
func External(message string, statusCode int, err error) *Error {
	return &Error{Kind: KindExternal, Message: message, StatusCode: statusCode, wrapped: err}
}

// KindOf extracts the Kind from err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf extracts the client-safe message from err. Unclassified
// errors collapse to a generic message so internals never reach clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// DetailsOf extracts per-field messages from err, if any.
func DetailsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
