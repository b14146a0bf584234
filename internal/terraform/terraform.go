// Package terraform drives the terraform binary for infrastructure components.
package terraform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/envctl/envctl/internal/runner"
)

// DefaultBinary is the terraform executable looked up on PATH.
const DefaultBinary = "terraform"

// EndpointsOutput is the terraform output holding DNS endpoint targets.
const EndpointsOutput = "endpoints"

// Options configures a Terraform.
type Options struct {
	// Binary is the terraform executable. Empty means DefaultBinary.
	Binary string

	// Env holds credentials and variables exported to every run.
	Env map[string]string

	// ApplyArgs are extra arguments for apply, in shell syntax.
	ApplyArgs string

	// DestroyArgs are extra arguments for destroy, in shell syntax.
	DestroyArgs string

	// Stdout and Stderr receive terraform's streamed output. Nil means the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Terraform runs terraform inside environment directories.
type Terraform struct {
	runner      *runner.Runner
	applyArgs   []string
	destroyArgs []string
}

// New builds a Terraform from opts.
func New(opts Options) (*Terraform, error) {
	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	applyArgs, err := shellquote.Split(opts.ApplyArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing terraform apply arguments: %w", err)
	}
	destroyArgs, err := shellquote.Split(opts.DestroyArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing terraform destroy arguments: %w", err)
	}

	r := runner.New(binary)
	r.Env = environ(opts.Env)
	r.Stdout = opts.Stdout
	r.Stderr = opts.Stderr

	return &Terraform{runner: r, applyArgs: applyArgs, destroyArgs: destroyArgs}, nil
}

// environ renders env as KEY=value pairs. Keys are upper-cased because the
// config loader lowercases map keys.
func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, strings.ToUpper(k)+"="+v)
	}
	sort.Strings(out)
	return out
}

// Apply initializes dir and applies its configuration.
func (t *Terraform) Apply(ctx context.Context, dir string) error {
	if err := t.runner.Run(ctx, dir, "init", "-input=false"); err != nil {
		return err
	}
	args := append([]string{"apply", "-input=false", "-auto-approve"}, t.applyArgs...)
	return t.runner.Run(ctx, dir, args...)
}

// Destroy tears down the infrastructure managed from dir.
func (t *Terraform) Destroy(ctx context.Context, dir string) error {
	args := append([]string{"destroy", "-input=false", "-auto-approve"}, t.destroyArgs...)
	return t.runner.Run(ctx, dir, args...)
}

// Run passes args through to terraform in dir.
func (t *Terraform) Run(ctx context.Context, dir string, args ...string) error {
	return t.runner.Run(ctx, dir, args...)
}

type outputValue struct {
	Value json.RawMessage `json:"value"`
}

// Endpoints returns the name → target map of the EndpointsOutput output.
func (t *Terraform) Endpoints(ctx context.Context, dir string) (map[string]string, error) {
	data, err := t.runner.Output(ctx, dir, "output", "-json")
	if err != nil {
		return nil, err
	}
	return parseEndpoints(data)
}

func decodeOutputs(data []byte) (map[string]outputValue, error) {
	outputs := map[string]outputValue{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return outputs, nil
	}
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("decoding terraform outputs: %w", err)
	}
	return outputs, nil
}

func parseEndpoints(data []byte) (map[string]string, error) {
	outputs, err := decodeOutputs(data)
	if err != nil {
		return nil, err
	}
	out, ok := outputs[EndpointsOutput]
	if !ok {
		return map[string]string{}, nil
	}
	endpoints := map[string]string{}
	if err := json.Unmarshal(out.Value, &endpoints); err != nil {
		return nil, fmt.Errorf("terraform output %q must be a map of strings: %w", EndpointsOutput, err)
	}
	return endpoints, nil
}
