package output

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"golang.org/x/term"
)

// IsTTY reports whether stdout is attached to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SpinnerOption configures RunWithSpinner.
type SpinnerOption func(*spinnerConfig)

type spinnerConfig struct {
	title string
	scope string
}

// WithTitle sets the spinner title.
func WithTitle(title string) SpinnerOption {
	return func(c *spinnerConfig) {
		c.title = title
	}
}

// WithScope prefixes the title with a dim scope, usually a task ID.
func WithScope(scope string) SpinnerOption {
	return func(c *spinnerConfig) {
		c.scope = scope
	}
}

// RunWithSpinner runs action while a spinner is shown. Without a terminal
// the action runs directly. Cancelling ctx stops the spinner; the action is
// expected to observe the same context.
func RunWithSpinner(ctx context.Context, action func() error, opts ...SpinnerOption) error {
	cfg := &spinnerConfig{title: "Working..."}
	for _, opt := range opts {
		opt(cfg)
	}

	if !IsTTY() {
		return action()
	}

	title := StyleAction.Render(cfg.title)
	if cfg.scope != "" {
		title = StyleDim.Render(cfg.scope) + " " + title
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- action()
	}()

	var actionErr error
	finished := false
	spinnerErr := spinner.New().
		Title(title).
		Action(func() {
			select {
			case actionErr = <-errCh:
				finished = true
			case <-ctx.Done():
			}
		}).
		Run()

	if finished {
		return actionErr
	}
	if spinnerErr != nil && ctx.Err() == nil {
		return fmt.Errorf("spinner: %w", spinnerErr)
	}
	return <-errCh
}
