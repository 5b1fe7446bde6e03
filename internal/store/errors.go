package store

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// NotFoundError names the entity kind that was looked up. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string { return e.Entity + " not found" }

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// InvalidStageError rejects a stage that is unknown or not active.
type InvalidStageError struct {
	Code   string
	Name   string
	Reason string
}

func (e InvalidStageError) Error() string { return e.Reason }

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Field   string
	Message string
}

func (e ConflictError) Error() string { return e.Message }

func notFound(entity, id string) error {
	return NotFoundError{Entity: entity, ID: id}
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
