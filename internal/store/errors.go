package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every store implementation.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicate     = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")
	ErrUploadFailed  = errors.New("upload failed")
)

// StoreError records which entity and operation failed. It wraps a sentinel
// (or driver error) so callers can still use errors.Is.
type StoreError struct {
	Entity    string // "profile", "avatar"
	Operation string // "upsert", "get", "upload"
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	msg := e.Entity + " " + e.Operation + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
