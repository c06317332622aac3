// Package errors provides the closed error taxonomy for the monitoring engine.
//
// Operational failures are always one of the kinds below; unclassified errors
// are wrapped as KindUnknown. Programming bugs may panic, operational errors
// never do.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for store lookups.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
)

// Kind is the machine-readable classification of an adapter or pipeline error.
// The set is closed; PollLog.adapter_error_type is always one of these.
type Kind string

const (
	KindAuthFailed     Kind = "AUTH_FAILED"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindNetworkTimeout Kind = "NETWORK_TIMEOUT"
	KindInvalidData    Kind = "INVALID_DATA"
	KindPlantNotFound  Kind = "PLANT_NOT_FOUND"
	KindLockSkipped    Kind = "LOCK_SKIPPED"
	KindUnknown        Kind = "UNKNOWN"
)

// AdapterError is a structured error carrying the taxonomy kind plus optional
// transport metadata.
type AdapterError struct {
	// Kind is the machine-readable error kind.
	Kind Kind

	// Message is a human-readable description. Never contains credentials
	// or raw vendor payloads.
	Message string

	// RetryAfter is the vendor-requested backoff for RATE_LIMITED errors.
	// Zero means no explicit request.
	RetryAfter time.Duration

	// HTTPStatus is the upstream HTTP status, when one exists. Optional
	// metadata only; absence never means failure.
	HTTPStatus int

	// Err is the wrapped underlying error.
	Err error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// New creates an AdapterError of the given kind.
func New(kind Kind, message string) *AdapterError {
	return &AdapterError{Kind: kind, Message: message}
}

// Wrap wraps an existing error into an AdapterError.
func Wrap(err error, kind Kind, message string) *AdapterError {
	return &AdapterError{Kind: kind, Message: message, Err: err}
}

// WithHTTPStatus attaches the upstream HTTP status.
func (e *AdapterError) WithHTTPStatus(status int) *AdapterError {
	if e == nil {
		return nil
	}
	e.HTTPStatus = status
	return e
}

// Kind-specific constructors.

// AuthFailed creates a terminal authentication error.
func AuthFailed(message string) *AdapterError {
	return New(KindAuthFailed, message)
}

// RateLimited creates a rate-limit error with the vendor-requested backoff.
func RateLimited(message string, retryAfter time.Duration) *AdapterError {
	return &AdapterError{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// NetworkTimeout creates a timeout/5xx error.
func NetworkTimeout(message string) *AdapterError {
	return New(KindNetworkTimeout, message)
}

// InvalidData creates a normalization contract violation error.
func InvalidData(message string) *AdapterError {
	return New(KindInvalidData, message)
}

// PlantNotFound creates an upstream 404 error for a plant ref.
func PlantNotFound(message string) *AdapterError {
	return New(KindPlantNotFound, message)
}

// Unknown wraps an unclassified error.
func Unknown(err error, message string) *AdapterError {
	return Wrap(err, KindUnknown, message)
}

// AsAdapterError checks if err is (or wraps) an AdapterError.
func AsAdapterError(err error) (*AdapterError, bool) {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf classifies an arbitrary error. Unclassified errors map to KindUnknown.
func KindOf(err error) Kind {
	if ae, ok := AsAdapterError(err); ok {
		return ae.Kind
	}
	return KindUnknown
}

// Retryable reports whether the queue may retry a ticket that failed with
// this kind. AUTH_FAILED quarantines the plant, INVALID_DATA is a bad vendor
// payload that will not improve, PLANT_NOT_FOUND needs operator attention,
// LOCK_SKIPPED is not a failure at all.
func Retryable(kind Kind) bool {
	switch kind {
	case KindRateLimited, KindNetworkTimeout, KindUnknown:
		return true
	default:
		return false
	}
}
