package cmd

import (
	"errors"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int

	// Printed is set when the command already reported the error.
	Printed bool
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// ExitCodeFromError determines the appropriate exit code for an error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, oerrors.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, oerrors.ErrValidation),
		errors.Is(err, oerrors.ErrAlreadyExists),
		errors.Is(err, oerrors.ErrInvalidTag),
		errors.Is(err, oerrors.ErrMalformedImageReference),
		errors.Is(err, oerrors.ErrMalformedSpecification),
		errors.Is(err, oerrors.ErrNotWorkload):
		return ExitValidationError
	case errors.Is(err, oerrors.ErrConnectivity):
		return ExitConnectivityError
	case errors.Is(err, oerrors.ErrExternalCommand):
		return ExitExternalError
	default:
		return ExitGeneralError
	}
}

// reportError logs err and returns it as an already printed ExitError.
func reportError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Printed {
		return err
	}

	var detail *oerrors.DetailError
	if errors.As(err, &detail) {
		keyvals := []any{"type", detail.Type}
		if detail.Location != "" {
			keyvals = append(keyvals, "location", detail.Location)
		}
		if detail.Field != "" {
			keyvals = append(keyvals, "field", detail.Field)
		}
		output.Error(detail.Message, keyvals...)
		if detail.Hint != "" {
			output.Info(detail.Hint)
		}
	} else {
		output.Error(err.Error())
	}
	return &ExitError{Err: err, Code: ExitCodeFromError(err), Printed: true}
}
