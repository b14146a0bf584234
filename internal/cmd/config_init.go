package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/envctl/envctl/internal/config"
	oerrors "github.com/envctl/envctl/internal/errors"
)

var configInitForce bool

const configHeader = `# envctl configuration.
# Every key can be overridden with an ENVCTL_ environment variable, e.g.
# dns.token as ENVCTL_DNS_TOKEN.
`

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration",
		Long: `Write the default envctl configuration.

The file is written to the resolved config path:
  --config flag > ENVCTL_CONFIG env > ~/.envctl/config.yaml

Examples:
  # Initialize configuration
  envctl config init

  # Overwrite existing configuration
  envctl config init --force`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	cmd.Flags().BoolVarP(&configInitForce, "force", "f", false,
		"Overwrite existing configuration")

	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := GetConfigPath()
	if path == "" {
		var err error
		path, err = config.GetConfigFile()
		if err != nil {
			return oerrors.Wrap(oerrors.ErrNotFound, "could not determine home directory")
		}
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not determine home directory")
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return &oerrors.DetailError{
			Type:     "validation failed",
			Message:  "configuration already exists",
			Location: path,
			Hint:     "Use --force to overwrite existing configuration.",
			Cause:    oerrors.ErrValidation,
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.DefaultConfig()); err != nil {
		return fmt.Errorf("encoding default configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding default configuration: %w", err)
	}

	// The file may hold DNS tokens, so keep it private.
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to "+path)
	fmt.Fprintln(cmd.OutOrStdout(), "Validate with: envctl config vet")

	return nil
}
