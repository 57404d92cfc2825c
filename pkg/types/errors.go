package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by a TableWriter matches exactly one of
// these with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrReference  = errors.New("invalid reference")
	ErrNotFound   = errors.New("entity not found")
	ErrStorage    = errors.New("storage failure")
)

// Lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
	ErrWriterClosed    = errors.New("table writer is closed")
)

// ValidationError reports malformed input: a missing required field, a bad
// order sequence, an illegal frequency entry.
type ValidationError struct {
	Table   string
	Field   string
	Value   any
	Message string
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(table, field string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Table: table, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a key uniqueness violation or a restricted delete.
// For restricted deletes Count holds the number of blocking rows in
// Referencing.
type ConflictError struct {
	Table       string
	Field       string
	Value       string
	Count       int
	Referencing string
	Message     string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ReferenceError lists every value of Table.Field that was found in none of
// the Candidates tables.
type ReferenceError struct {
	Table      string
	Field      string
	Values     []string
	Candidates []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s entities must contain valid %s references to %s (invalid references: %s)",
		e.Table, e.Field, strings.Join(e.Candidates, "/"), strings.Join(e.Values, ", "))
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

// NotFoundError reports an update or delete that matched no row.
type NotFoundError struct {
	Table string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s entity with id %d not found", e.Table, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
