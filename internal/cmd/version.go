package cmd

import (
	"github.com/spf13/cobra"

	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show envctl version information.

Displays the version, commit, build date, Go version and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return output.Render(cmd.OutOrStdout(), GetOutputFormat(), version.Get())
		},
	}
}
