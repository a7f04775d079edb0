// Package errors provides standardized error types and helpers for the save converter.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a file or directory was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized indicates an operation that needs explicit permission
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupported indicates an unsupported operation or file kind
	ErrUnsupported = errors.New("unsupported")
	// ErrUnrecognizedFormat indicates the header matches no known save layout
	ErrUnrecognizedFormat = errors.New("input is not a recognized save file")
	// ErrMisaligned indicates a buffer whose length is not a whole number of words
	ErrMisaligned = errors.New("length is not a multiple of 4")
	// ErrPlatformMismatch indicates save files from both consoles in one input
	ErrPlatformMismatch = errors.New("mixed platform save files")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "save slot", "option.sav")
	ID       string // Identifier of the resource, usually a path
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// PermissionError is returned when an operation would destroy data
// without the caller having allowed it.
type PermissionError struct {
	Operation string // Operation that was attempted
	Resource  string // Resource being accessed
	Reason    string // Why permission was denied
	Err       error  // Underlying error, if any
}

func (e *PermissionError) Error() string {
	if e.Operation != "" && e.Resource != "" {
		return fmt.Sprintf("permission denied: cannot %s %s: %s", e.Operation, e.Resource, e.Reason)
	}
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

func (e *PermissionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnauthorized
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// FormatError is returned when a buffer does not carry a known save header.
type FormatError struct {
	Path   string  // File path, if known
	Header [4]byte // First bytes of the buffer (zero padded)
	Size   int     // Buffer length
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %v (header % x)", e.Path, ErrUnrecognizedFormat, e.Header)
	}
	return fmt.Sprintf("%v (header % x)", ErrUnrecognizedFormat, e.Header)
}

func (e *FormatError) Unwrap() error {
	return ErrUnrecognizedFormat
}

// UnsupportedError represents an unsupported feature or file kind
type UnsupportedError struct {
	Feature string // Feature or file kind that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// PlatformMismatchError is returned when one save directory holds files
// written by different consoles.
type PlatformMismatchError struct {
	Path     string // Offending file
	Expected string // Platform of the first file seen
	Got      string // Platform of the offending file
}

func (e *PlatformMismatchError) Error() string {
	return fmt.Sprintf("%v: %s is a %s save, expected %s", ErrPlatformMismatch, e.Path, e.Got, e.Expected)
}

func (e *PlatformMismatchError) Unwrap() error {
	return ErrPlatformMismatch
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewPermission creates a PermissionError
func NewPermission(operation, resource, reason string) *PermissionError {
	return &PermissionError{
		Operation: operation,
		Resource:  resource,
		Reason:    reason,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewFormat creates a FormatError from the leading bytes of data.
func NewFormat(path string, data []byte) *FormatError {
	e := &FormatError{Path: path, Size: len(data)}
	copy(e.Header[:], data)
	return e
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// New wraps errors.New for packages that define their own sentinels.
func New(text string) error {
	return errors.New(text)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
