// Package command is the static registry of operator operations shared by
// the CLI and the HTTP API.
package command

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/orchestrator"
	"github.com/envctl/envctl/internal/output"
)

// Param describes one named argument of an operation.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// Args holds the string-keyed arguments of an invocation.
type Args map[string]string

// Get returns the named argument or "".
func (a Args) Get(name string) string { return a[name] }

// Int64 parses the named argument as an integer.
func (a Args) Int64(name string) (int64, error) {
	v := a[name]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, oerrors.NewValidationError(
			fmt.Sprintf("argument %q must be an integer, got %q", name, v), "", name, "")
	}
	return n, nil
}

// Handler runs an operation against the orchestrator. A handler that starts
// background work returns the *task.Handle.
type Handler func(ctx context.Context, o *orchestrator.Orchestrator, args Args) (any, error)

// Operation is one entry of the registry.
type Operation struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Run         Handler `json:"-"`
}

// Usage returns the parameter synopsis, e.g. "<env> <component> [tail]".
func (op Operation) Usage() string {
	parts := make([]string, 0, len(op.Params))
	for _, p := range op.Params {
		if p.Required {
			parts = append(parts, "<"+p.Name+">")
		} else {
			parts = append(parts, "["+p.Name+"]")
		}
	}
	return strings.Join(parts, " ")
}

// Bind validates args against the operation's parameters and fills in
// defaults. Unknown and missing required arguments are validation errors.
func (op Operation) Bind(args Args) (Args, error) {
	known := make(map[string]bool, len(op.Params))
	bound := make(Args, len(op.Params))
	var missing []string
	for _, p := range op.Params {
		known[p.Name] = true
		v, ok := args[p.Name]
		switch {
		case ok && v != "":
			bound[p.Name] = v
		case p.Required:
			missing = append(missing, p.Name)
		default:
			bound[p.Name] = p.Default
		}
	}

	var unknown []string
	for name := range args {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	if len(missing) > 0 {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("%s: missing required argument(s): %s", op.Name, strings.Join(missing, ", ")),
			"", missing[0], "usage: "+op.Name+" "+op.Usage())
	}
	if len(unknown) > 0 {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("%s: unknown argument(s): %s", op.Name, strings.Join(unknown, ", ")),
			"", unknown[0], "usage: "+op.Name+" "+op.Usage())
	}
	return bound, nil
}

// Lookup returns the named operation.
func Lookup(name string) (Operation, bool) {
	for _, op := range registry {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// List returns every operation in registration order.
func List() Operations {
	out := make(Operations, len(registry))
	copy(out, registry)
	return out
}

// Invoke binds args and runs the named operation.
func Invoke(ctx context.Context, o *orchestrator.Orchestrator, name string, args Args) (any, error) {
	op, ok := Lookup(name)
	if !ok {
		return nil, oerrors.Wrapf(oerrors.ErrNotFound, "operation %q", name)
	}
	bound, err := op.Bind(args)
	if err != nil {
		return nil, err
	}
	output.Debug("invoking operation", "op", name, "args", bound)
	return op.Run(ctx, o, bound)
}

// Operations is a listing of the registry.
type Operations []Operation

// Table implements output.Tabular.
func (ops Operations) Table() *output.Table {
	t := output.NewTable("OPERATION", "PARAMETERS", "DESCRIPTION")
	for _, op := range ops {
		t.Row(output.StyleAction.Render(op.Name), op.Usage(), op.Description)
	}
	return t
}
