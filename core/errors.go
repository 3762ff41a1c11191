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

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a requested resource does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError is returned when a write would break a uniqueness rule.
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) error {
	return &ConflictError{Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

// AlreadyProcessedError is returned when deciding on a record that already left PEND_EVAL.
type AlreadyProcessedError struct {
	Resource string
}

func NewAlreadyProcessedError(resource string) error {
	return &AlreadyProcessedError{Resource: resource}
}

func (err AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s has already been processed", err.Resource)
}

// AlreadyClosedError is returned when mutating a record in a terminal closed state.
type AlreadyClosedError struct {
	Resource string
}

func NewAlreadyClosedError(resource string) error {
	return &AlreadyClosedError{Resource: resource}
}

func (err AlreadyClosedError) Error() string {
	return fmt.Sprintf("%s is already closed", err.Resource)
}

// IsNotFound reports whether the cause of err is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
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
