package cmd

import (
	"github.com/spf13/cobra"

	"github.com/envctl/envctl/internal/config"
	"github.com/envctl/envctl/internal/output"
)

// NewConfigShowCmd creates the config show command.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show resolved settings and where they came from",
		Long: `Show the global settings after resolution, with the source of each
value and any lower-precedence values it shadows.

Examples:
  envctl config show
  ENVCTL_CONTEXT=kind-dev envctl config show -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			values := config.ResolvedValues{}
			if resolvedConfig != nil {
				values = resolvedConfig.Values()
			}
			return output.Render(c.OutOrStdout(), GetOutputFormat(), values)
		},
	}
}
