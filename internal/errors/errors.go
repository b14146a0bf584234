// Package errors provides sentinel errors and detailed error formatting for envctl.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for known conditions.
var (
	// ErrNotFound indicates an unknown environment, component, skeleton version or task.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a create on a name that is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTag indicates an empty or otherwise unusable image tag.
	ErrInvalidTag = errors.New("invalid image tag")

	// ErrMalformedImageReference indicates an image reference without a tag separator.
	ErrMalformedImageReference = errors.New("malformed image reference")

	// ErrMalformedSpecification indicates a component file that cannot be decoded.
	ErrMalformedSpecification = errors.New("malformed specification")

	// ErrNotWorkload indicates an image operation on an infrastructure component.
	ErrNotWorkload = errors.New("not a workload component")

	// ErrExternalCommand indicates a collaborator exited non-zero or its API call failed.
	ErrExternalCommand = errors.New("external command failed")

	// ErrValidation indicates invalid configuration or arguments.
	ErrValidation = errors.New("validation error")

	// ErrConnectivity indicates a collaborator could not be reached.
	ErrConnectivity = errors.New("connectivity error")
)

// DetailError captures structured error information for terminal display.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the file path the error refers to (optional).
	Location string

	// Field is the field name for configuration errors (optional).
	Field string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}
	if e.Field != "" {
		b.WriteString("  Field: ")
		b.WriteString(e.Field)
		b.WriteString("\n")
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Context[k])
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, field, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Field:    field,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// NewAlreadyExistsError creates an already-exists error with details.
func NewAlreadyExistsError(message, location, hint string) error {
	return &DetailError{
		Type:     "already exists",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrAlreadyExists,
	}
}

// Wrap wraps a sentinel error with a message.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}

// Wrapf wraps a sentinel error with a formatted message.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
