// Package errors defines the gateway error taxonomy used throughout StoreGate.
//
// Every error that crosses a package boundary is a *GatewayError carrying a
// machine-readable code and the HTTP status it maps to. StatusOf is the single
// place where domain errors become boundary statuses; handlers never branch on
// error codes themselves.
package errors

import (
	stderrors "errors"
	"fmt"
)

// GatewayError is a gateway error with a machine-readable code, a
// human-readable message, the HTTP status it maps to, and an optional
// wrapped cause.
type GatewayError struct {
	// Code identifies the error kind (e.g., "NotFound", "PartUploadError").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return.
	HTTPStatus int
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause so callers can use errors.Is/As.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Pre-defined gateway errors for boundary conditions.
var (
	// ErrNotFound is returned when the object is absent, or present but
	// access is denied for a non-public read. The two collapse to the same
	// outcome so the caller cannot probe for existence.
	ErrNotFound = &GatewayError{
		Code:       "NotFound",
		Message:    "Not found",
		HTTPStatus: 404,
	}

	// ErrUnauthorized is returned for a mutating request without valid
	// credentials.
	ErrUnauthorized = &GatewayError{
		Code:       "Unauthorized",
		Message:    "Unauthorized",
		HTTPStatus: 401,
	}

	// ErrMethodNotAllowed is returned when the HTTP method is not one of
	// GET, PUT, PATCH, DELETE.
	ErrMethodNotAllowed = &GatewayError{
		Code:       "MethodNotAllowed",
		Message:    "Method not allowed",
		HTTPStatus: 405,
	}

	// ErrInternal is returned for unexpected internal failures.
	ErrInternal = &GatewayError{
		Code:       "InternalError",
		Message:    "Internal server error",
		HTTPStatus: 500,
	}
)

// Initiation wraps a storage backend refusal to start a multipart session.
// No cleanup is owed when this is returned; there is no session yet.
func Initiation(err error) *GatewayError {
	return &GatewayError{
		Code:       "InitiationError",
		Message:    "failed to initiate multipart upload",
		HTTPStatus: 500,
		Err:        err,
	}
}

// PartUpload wraps a failure to upload one part after the session was
// created. The coordinator aborts the session before returning this.
func PartUpload(err error) *GatewayError {
	return &GatewayError{
		Code:       "PartUploadError",
		Message:    "failed to upload part",
		HTTPStatus: 500,
		Err:        err,
	}
}

// Completion wraps a failure of the complete-multipart call. The coordinator
// aborts the session before returning this.
func Completion(err error) *GatewayError {
	return &GatewayError{
		Code:       "CompletionError",
		Message:    "failed to complete multipart upload",
		HTTPStatus: 500,
		Err:        err,
	}
}

// Abort wraps a failure of the abort-multipart cleanup call itself. It is
// logged and counted but never replaces the error that triggered the abort.
func Abort(err error) *GatewayError {
	return &GatewayError{
		Code:       "AbortError",
		Message:    "failed to abort multipart upload",
		HTTPStatus: 500,
		Err:        err,
	}
}

// StatusOf maps a domain error to its HTTP status code. Unmapped errors
// become 500. This is the only error-to-status translation in the gateway.
func StatusOf(err error) int {
	if err == nil {
		return 200
	}
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge.HTTPStatus
	}
	return 500
}

// MessageOf returns the response body text for a domain error. Unmapped
// errors get a generic message so internal details never leak to clients.
func MessageOf(err error) string {
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge.Message
	}
	return ErrInternal.Message
}
