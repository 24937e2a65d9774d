package core

import "github.com/pkg/errors"

// ErrPermissionDenied is returned whenever the caller lacks a capability or does not own a resource.
var ErrPermissionDenied = NewAuthorizationError("permission denied")

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

// NotFoundError reports a referenced resource that does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError reports a request that contradicts the current state of a resource.
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) error {
	return &ConflictError{Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

type AuthorizationError struct {
	Message string
}

func NewAuthorizationError(msg string) error {
	return &AuthorizationError{Message: msg}
}

func (err AuthorizationError) Error() string {
	return err.Message
}

// DependencyError reports the failure of an external collaborator (mail, file store, broker).
type DependencyError struct {
	Dependency string
	Err        error
}

func NewDependencyError(dep string, err error) error {
	return &DependencyError{Dependency: dep, Err: err}
}

func (err DependencyError) Error() string {
	if err.Err == nil {
		return err.Dependency + " failed"
	}
	return err.Dependency + ": " + err.Err.Error()
}

func (err DependencyError) Unwrap() error { return err.Err }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
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
