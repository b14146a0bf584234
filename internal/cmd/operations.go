package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/envctl/envctl/internal/command"
	"github.com/envctl/envctl/internal/orchestrator"
	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/task"
)

const operationsGroup = "operations"

// restParam is collected from all remaining positional arguments.
const restParam = "args"

// NewOperationCmds creates one subcommand per registered operation.
// Required parameters are positional; optional ones are flags.
func NewOperationCmds() []*cobra.Command {
	ops := command.List()
	cmds := make([]*cobra.Command, 0, len(ops))
	for _, op := range ops {
		cmds = append(cmds, newOperationCmd(op))
	}
	return cmds
}

func newOperationCmd(op command.Operation) *cobra.Command {
	var positional []command.Param
	var usage []string
	for _, p := range op.Params {
		if !p.Required {
			continue
		}
		positional = append(positional, p)
		if p.Name == restParam {
			usage = append(usage, "<"+p.Name+">...")
		} else {
			usage = append(usage, "<"+p.Name+">")
		}
	}
	variadic := len(positional) > 0 && positional[len(positional)-1].Name == restParam

	flags := make(map[string]*string)

	c := &cobra.Command{
		Use:     strings.TrimSpace(op.Name + " " + strings.Join(usage, " ")),
		Short:   op.Description,
		GroupID: operationsGroup,
		Args:    cobra.ExactArgs(len(positional)),
		RunE: func(c *cobra.Command, args []string) error {
			in := command.Args{}
			for i, p := range positional {
				if variadic && i == len(positional)-1 {
					in[p.Name] = shellquote.Join(args[i:]...)
					break
				}
				in[p.Name] = args[i]
			}
			for name, v := range flags {
				if c.Flags().Changed(name) {
					in[name] = *v
				}
			}
			return runOperation(c, op.Name, in)
		},
	}
	if variadic {
		c.Args = cobra.MinimumNArgs(len(positional))
		c.Example = fmt.Sprintf("  envctl %s staging -- plan -var replicas=2", op.Name)
	}

	for _, p := range op.Params {
		if p.Required {
			continue
		}
		v := new(string)
		flags[p.Name] = v
		c.Flags().StringVar(v, p.Name, p.Default, p.Description)
	}

	return c
}

// runOperation invokes a registered operation and renders its result.
// Tasks started by the operation are waited for before returning, so a
// short-lived CLI process never abandons a rollout.
func runOperation(c *cobra.Command, name string, args command.Args) error {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	o, err := newOrchestrator(ctx)
	if err != nil {
		return reportError(err)
	}

	result, err := command.Invoke(ctx, o, name, args)
	if err != nil {
		return reportError(err)
	}

	if h, ok := result.(*task.Handle); ok {
		return waitTask(ctx, c, h)
	}

	if err := output.Render(c.OutOrStdout(), GetOutputFormat(), result); err != nil {
		return reportError(err)
	}
	return waitTasks(ctx, c, o)
}

func waitTask(ctx context.Context, c *cobra.Command, h *task.Handle) error {
	output.Debug("waiting for task", "task", h.ID(), "name", h.Name())
	err := output.RunWithSpinner(ctx, func() error {
		_, err := h.Wait(ctx)
		return err
	}, output.WithTitle(h.Name()), output.WithScope(h.ID()))

	if renderErr := output.Render(c.OutOrStdout(), GetOutputFormat(), h.Info()); renderErr != nil {
		return reportError(renderErr)
	}
	return reportError(err)
}

// waitTasks waits for tasks an operation submitted without returning a
// handle, such as the per-component updates of a bulk update.
func waitTasks(ctx context.Context, c *cobra.Command, o *orchestrator.Orchestrator) error {
	tasks := o.Tasks()
	if len(tasks.List()) == 0 {
		return nil
	}

	err := output.RunWithSpinner(ctx, func() error {
		return tasks.Wait(ctx)
	}, output.WithTitle("Waiting for background tasks"))
	if err != nil {
		return reportError(err)
	}

	infos := tasks.List()
	if err := output.Render(c.OutOrStdout(), GetOutputFormat(), infos); err != nil {
		return reportError(err)
	}

	var failed int
	for _, info := range infos {
		if info.Status == task.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return reportError(fmt.Errorf("%d of %d background task(s) failed", failed, len(infos)))
	}
	return nil
}

// NewOpsCmd creates the ops command, listing every registered operation.
func NewOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List available operations",
		Long: `List every operation envctl can run, with its parameters.

The same operations are served over HTTP by 'envctl serve'.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return output.Render(c.OutOrStdout(), GetOutputFormat(), command.List())
		},
	}
}
