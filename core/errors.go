package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced resource does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// CapacityExceededError is returned when an allocation would push a resource's used count above its total.
type CapacityExceededError struct {
	Resource string
	Total    int
}

func NewCapacityExceededError(resource string, total int) *CapacityExceededError {
	return &CapacityExceededError{Resource: resource, Total: total}
}

func (err CapacityExceededError) Error() string {
	return fmt.Sprintf("%s capacity exceeded (total: %d)", err.Resource, err.Total)
}

// InvalidStateError is returned when an operation is not allowed in the current state of a resource.
type InvalidStateError struct {
	Resource string
	Message  string
}

func NewInvalidStateError(resource, msg string) *InvalidStateError {
	return &InvalidStateError{Resource: resource, Message: msg}
}

func (err InvalidStateError) Error() string {
	return err.Resource + ": " + err.Message
}

// DuplicateIdentifierError is returned when a uniqueness constraint is violated at the storage layer.
type DuplicateIdentifierError struct {
	Field string
}

func NewDuplicateIdentifierError(field string) *DuplicateIdentifierError {
	return &DuplicateIdentifierError{Field: field}
}

func (err DuplicateIdentifierError) Error() string {
	return "duplicate " + err.Field
}

// ErrConflict is returned by optimistic updates when the record changed since it was read.
var ErrConflict = NewInvalidStateError("record", "modified concurrently, try again")

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// IsDuplicate reports whether err is (or wraps) a DuplicateIdentifierError.
func IsDuplicate(err error) bool {
	_, ok := errors.Cause(err).(*DuplicateIdentifierError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
