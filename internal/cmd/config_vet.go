package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/envctl/envctl/internal/config"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vet",
		Short: "Validate configuration",
		Long: `Validate the envctl configuration file.

Checks performed:
  1. Config file exists at resolved path
  2. Config file is valid YAML
  3. Values satisfy the configuration schema
  4. Init manifests exist and DNS settings are complete
  5. Environment directory names are valid RFC 1123 labels

Examples:
  # Validate default configuration
  envctl config vet

  # Validate custom config path
  envctl config vet --config /path/to/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runConfigVet,
	}
}

func runConfigVet(cmd *cobra.Command, args []string) error {
	configPath := GetConfigPath()
	if expanded, err := config.ExpandPath(configPath); err == nil {
		configPath = expanded
	}

	output.Debug("validating config", "path", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &oerrors.DetailError{
			Type:     "not found",
			Message:  "configuration file not found",
			Location: configPath,
			Hint:     "Run 'envctl config init' to create default configuration",
			Cause:    oerrors.ErrNotFound,
		}
	}

	validator, err := config.NewValidator()
	if err != nil {
		return err
	}

	if err := validator.ValidateFile(configPath); err != nil {
		return &oerrors.DetailError{
			Type:     "validation failed",
			Message:  err.Error(),
			Location: configPath,
			Cause:    fmt.Errorf("%w: %w", oerrors.ErrValidation, err),
		}
	}

	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateEnvironmentNames(cfg.EnvironmentsPath()); err != nil {
		return &oerrors.DetailError{
			Type:     "validation failed",
			Message:  err.Error(),
			Location: cfg.EnvironmentsPath(),
			Hint:     "Environment names must be lowercase alphanumeric with hyphens.",
			Cause:    err,
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid: "+configPath)
	return nil
}
