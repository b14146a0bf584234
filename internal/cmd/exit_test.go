package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/runner"
)

func TestExitCodeFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "nil error returns success", err: nil, wantCode: ExitSuccess},
		{name: "not found", err: oerrors.ErrNotFound, wantCode: ExitNotFound},
		{name: "wrapped not found", err: oerrors.Wrapf(oerrors.ErrNotFound, "environment %q", "qa"), wantCode: ExitNotFound},
		{name: "validation", err: oerrors.NewValidationError("bad", "", "tag", ""), wantCode: ExitValidationError},
		{name: "already exists", err: oerrors.ErrAlreadyExists, wantCode: ExitValidationError},
		{name: "invalid tag", err: oerrors.ErrInvalidTag, wantCode: ExitValidationError},
		{name: "malformed image reference", err: oerrors.ErrMalformedImageReference, wantCode: ExitValidationError},
		{name: "malformed specification", err: fmt.Errorf("api.yaml: %w", oerrors.ErrMalformedSpecification), wantCode: ExitValidationError},
		{name: "not a workload", err: oerrors.ErrNotWorkload, wantCode: ExitValidationError},
		{name: "connectivity", err: oerrors.ErrConnectivity, wantCode: ExitConnectivityError},
		{name: "external command", err: &runner.CommandError{Command: "terraform apply", ExitCode: 1}, wantCode: ExitExternalError},
		{name: "explicit exit error", err: NewExitError(errors.New("boom"), 42), wantCode: 42},
		{name: "unknown error returns general error", err: errors.New("unknown error"), wantCode: ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ExitCodeFromError(tt.err))
		})
	}
}

func TestExitCodeName(t *testing.T) {
	assert.Equal(t, "Success", ExitCodeName(ExitSuccess))
	assert.Equal(t, "Not Found", ExitCodeName(ExitNotFound))
	assert.Equal(t, "External Error", ExitCodeName(ExitExternalError))
	assert.Equal(t, "Unknown", ExitCodeName(99))
}

func TestReportError(t *testing.T) {
	assert.NoError(t, reportError(nil))

	err := reportError(oerrors.Wrap(oerrors.ErrNotFound, "environment \"qa\""))
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.True(t, exitErr.Printed)
	assert.Equal(t, ExitNotFound, exitErr.Code)
	assert.True(t, errors.Is(err, oerrors.ErrNotFound))

	again := reportError(err)
	assert.Same(t, err, again)
}
