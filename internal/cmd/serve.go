package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/server"
)

var serveAddrFlag string

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve operations over HTTP",
		Long: `Serve the envctl operations as a JSON API.

Routes:
  GET  /health
  GET  /api/v1/operations
  POST /api/v1/operations/{name}
  GET  /api/v1/environments
  GET  /api/v1/environments/{env}
  GET  /api/v1/environments/{env}/components/{component}/image
  GET  /api/v1/tasks
  GET  /api/v1/tasks/{id}
  GET  /update/{env}/{component}/{tag}

The address is resolved as --addr > server.addr config > 127.0.0.1:8080.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := GetConfig()
	if err != nil {
		return reportError(err)
	}

	addr := serveAddrFlag
	if addr == "" {
		addr = cfg.Server.Addr
	}

	o, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return reportError(err)
	}

	output.Debug("starting server", "addr", addr, "environments", cfg.EnvironmentsPath())
	if err := server.ListenAndServe(ctx, addr, server.NewHandler(o).Routes()); err != nil {
		return reportError(err)
	}
	return nil
}
