// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an ingestion attempt failed.
type ErrorKind string

// Ingestion failure kinds. The retry policy treats all of them the same way.
const (
	KindInvalidSource      ErrorKind = "invalid_source"
	KindFetchTimeout       ErrorKind = "fetch_timeout"
	KindFetchHTTPError     ErrorKind = "fetch_http_error"
	KindPayloadTooLarge    ErrorKind = "payload_too_large"
	KindInvalidImage       ErrorKind = "invalid_image"
	KindOptimizationError  ErrorKind = "optimization_error"
	KindStorageError       ErrorKind = "storage_error"
	KindProfileUpdateError ErrorKind = "profile_update_error"
	KindInternal           ErrorKind = "internal"
)

// Sentinels for errors.Is matching against an IngestError's kind.
var (
	ErrInvalidSource      = errors.New(string(KindInvalidSource))
	ErrFetchTimeout       = errors.New(string(KindFetchTimeout))
	ErrFetchHTTPError     = errors.New(string(KindFetchHTTPError))
	ErrPayloadTooLarge    = errors.New(string(KindPayloadTooLarge))
	ErrInvalidImage       = errors.New(string(KindInvalidImage))
	ErrOptimizationError  = errors.New(string(KindOptimizationError))
	ErrStorageError       = errors.New(string(KindStorageError))
	ErrProfileUpdateError = errors.New(string(KindProfileUpdateError))
	ErrInternal           = errors.New(string(KindInternal))
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidSource:      ErrInvalidSource,
	KindFetchTimeout:       ErrFetchTimeout,
	KindFetchHTTPError:     ErrFetchHTTPError,
	KindPayloadTooLarge:    ErrPayloadTooLarge,
	KindInvalidImage:       ErrInvalidImage,
	KindOptimizationError:  ErrOptimizationError,
	KindStorageError:       ErrStorageError,
	KindProfileUpdateError: ErrProfileUpdateError,
	KindInternal:           ErrInternal,
}

// IngestError is a failure at one step of the avatar ingestion pipeline.
type IngestError struct {
	Kind    ErrorKind // The failing step's classification
	Message string    // Human readable detail, safe to record on the task
	Err     error     // Underlying cause, may be nil
}

// NewIngestError creates an IngestError of the given kind.
func NewIngestError(kind ErrorKind, message string, err error) *IngestError {
	return &IngestError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *IngestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *IngestError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of the first IngestError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr.Kind
	}
	return KindInternal
}
