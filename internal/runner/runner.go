// Package runner executes external binaries.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// CommandError is returned when an external command fails. It matches
// errors.ErrExternalCommand.
type CommandError struct {
	// Command is the shell-quoted command line.
	Command string

	// ExitCode is the process exit status, or -1 when it never ran.
	ExitCode int

	// Stderr is the trimmed standard error of the process.
	Stderr string

	// Err is the underlying error when the process could not be started.
	Err error
}

func (e *CommandError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Command)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&sb, " failed with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Stderr != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Stderr)
	}
	return sb.String()
}

// Is matches errors.ErrExternalCommand.
func (e *CommandError) Is(target error) bool {
	return target == oerrors.ErrExternalCommand
}

// Unwrap returns the start error, if any.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner runs one binary.
type Runner struct {
	// Path is the binary name or path.
	Path string

	// Env is appended to the process environment.
	Env []string

	// Stdout receives streamed output. If nil, os.Stdout is used.
	Stdout io.Writer

	// Stderr receives streamed errors. If nil, os.Stderr is used.
	Stderr io.Writer
}

// New returns a Runner for path.
func New(path string) *Runner {
	return &Runner{Path: path}
}

// Run executes the binary in dir and streams its output.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) error {
	var stderr bytes.Buffer
	cmd := r.command(ctx, dir, args)
	cmd.Stdout = r.stdout()
	cmd.Stderr = io.MultiWriter(r.stderr(), &stderr)
	return r.wrap(cmd.Run(), args, &stderr)
}

// Output executes the binary in dir and returns its standard output.
func (r *Runner) Output(ctx context.Context, dir string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := r.command(ctx, dir, args)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := r.wrap(cmd.Run(), args, &stderr); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// CommandLine returns the shell-quoted command line for args.
func (r *Runner) CommandLine(args ...string) string {
	return shellquote.Join(append([]string{r.Path}, args...)...)
}

func (r *Runner) command(ctx context.Context, dir string, args []string) *exec.Cmd {
	output.Debug("running command", "cmd", r.CommandLine(args...), "dir", dir)
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	return cmd
}

func (r *Runner) wrap(err error, args []string, stderr *bytes.Buffer) error {
	if err == nil {
		return nil
	}
	cmdErr := &CommandError{
		Command:  r.CommandLine(args...),
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	} else {
		cmdErr.Err = err
	}
	return cmdErr
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}
