package cmd

import (
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage envctl configuration",
		Long: `Manage the envctl configuration file.

Settings are resolved with precedence flag > environment > config file >
default. Environment variables use the ENVCTL_ prefix with dots replaced by
underscores, e.g. ENVCTL_DNS_ZONE for dns.zone.`,
	}

	cmd.AddCommand(NewConfigInitCmd())
	cmd.AddCommand(NewConfigVetCmd())
	cmd.AddCommand(NewConfigShowCmd())

	return cmd
}
