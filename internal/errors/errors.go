// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrResetCodeInvalid   = errors.New("reset code does not match")
	ErrResetCodeExpired   = errors.New("reset code expired")
	ErrInvalidState       = errors.New("action not valid in current navigation state")
	ErrStorageCorrupt     = errors.New("stored data is corrupt")
	ErrMissingAPIKey      = errors.New("missing API key")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrInputValidation    = errors.New("input validation failed")
	ErrReviewInProgress   = errors.New("a review is already running")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StorageError represents a failure reading or writing a storage key.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [%s] %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError.
func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// SecurityError represents a security-related error.
type SecurityError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *SecurityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("security error [%s]: %s: %v", e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("security error [%s]: %s", e.Operation, e.Reason)
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// NewSecurityError creates a new SecurityError.
func NewSecurityError(operation, reason string, err error) *SecurityError {
	return &SecurityError{
		Operation: operation,
		Reason:    reason,
		Err:       err,
	}
}

// NarrativeKind classifies narrative-generation failures.
type NarrativeKind string

const (
	NarrativeMissingCredential NarrativeKind = "missing_credential"
	NarrativeNotFound          NarrativeKind = "not_found"
	NarrativeMalformedRequest  NarrativeKind = "malformed_request"
	NarrativeUnauthorized      NarrativeKind = "unauthorized"
	NarrativeNetwork           NarrativeKind = "network"
	NarrativeUnknown           NarrativeKind = "unknown"
)

// NarrativeError represents a failed performance review request.
type NarrativeError struct {
	Kind NarrativeKind
	Err  error
}

func (e *NarrativeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("narrative error [%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("narrative error [%s]", e.Kind)
}

func (e *NarrativeError) Unwrap() error {
	return e.Err
}

// NewNarrativeError creates a new NarrativeError.
func NewNarrativeError(kind NarrativeKind, err error) *NarrativeError {
	return &NarrativeError{
		Kind: kind,
		Err:  err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
