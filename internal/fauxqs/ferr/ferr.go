// Package ferr defines the error-kind taxonomy shared by the queue, topic
// and bucket stores. Each kind wraps a sender-facing message; the
// transport layer (internal/api) maps a kind to the wire error shape of
// whichever protocol is answering the request.
package ferr

import "errors"

// NotFoundError reports an unknown queue, topic, subscription, bucket,
// key or upload.
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFound builds a NotFoundError for the given resource kind.
func NewNotFound(resource, message string) error {
	return &NotFoundError{Resource: resource, Message: message}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// InvalidParameterError reports out-of-range or malformed input.
// SenderFault is always true for this kind.
type InvalidParameterError struct {
	Code    string
	Message string
}

func (e *InvalidParameterError) Error() string { return e.Message }

func NewInvalidParameter(code, message string) error {
	return &InvalidParameterError{Code: code, Message: message}
}

func IsInvalidParameter(err error) bool {
	var e *InvalidParameterError
	return errors.As(err, &e)
}

// ConflictError reports an idempotency mismatch (queue/topic/subscription
// re-created with different attributes), a non-empty bucket delete, or a
// bucket delete with an active multipart upload. Completing a missing or
// already-completed upload is a NotFoundError for resource "upload".
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflict(code, message string) error {
	return &ConflictError{Code: code, Message: message}
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// PreconditionFailedError reports a conditional GET/HEAD that failed
// If-Match or If-Unmodified-Since (412).
type PreconditionFailedError struct {
	Message string
}

func (e *PreconditionFailedError) Error() string { return e.Message }

func NewPreconditionFailed(message string) error {
	return &PreconditionFailedError{Message: message}
}

func IsPreconditionFailed(err error) bool {
	var e *PreconditionFailedError
	return errors.As(err, &e)
}

// NotModifiedError reports a conditional GET/HEAD that failed
// If-None-Match or If-Modified-Since (304 — no body).
type NotModifiedError struct{}

func (e *NotModifiedError) Error() string { return "not modified" }

func NewNotModified() error { return &NotModifiedError{} }

func IsNotModified(err error) bool {
	var e *NotModifiedError
	return errors.As(err, &e)
}

// RangeNotSatisfiableError reports a Range header outside the object's
// bounds (416).
type RangeNotSatisfiableError struct {
	Message string
	Size    int64
}

func (e *RangeNotSatisfiableError) Error() string { return e.Message }

func NewRangeNotSatisfiable(message string, size int64) error {
	return &RangeNotSatisfiableError{Message: message, Size: size}
}

func IsRangeNotSatisfiable(err error) bool {
	var e *RangeNotSatisfiableError
	return errors.As(err, &e)
}

// BatchEntryError is recorded per-entry in a batch operation's Failed
// list; it never fails the call as a whole.
type BatchEntryError struct {
	ID          string
	Code        string
	Message     string
	SenderFault bool
}

func (e *BatchEntryError) Error() string { return e.Message }

// BatchLevelError fails an entire batch call (duplicate/invalid entry
// ids, aggregate oversize).
type BatchLevelError struct {
	Code    string
	Message string
}

func (e *BatchLevelError) Error() string { return e.Message }

func NewBatchLevel(code, message string) error {
	return &BatchLevelError{Code: code, Message: message}
}

func IsBatchLevel(err error) bool {
	var e *BatchLevelError
	return errors.As(err, &e)
}

// InternalError indicates a bug; it maps to a 500 at the transport layer.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string { return e.Message }
func (e *InternalError) Unwrap() error { return e.Cause }

func NewInternal(message string, cause error) error {
	return &InternalError{Message: message, Cause: cause}
}
