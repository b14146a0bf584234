package cmd

import (
	"github.com/spf13/cobra"

	"github.com/envctl/envctl/internal/config"
	"github.com/envctl/envctl/internal/output"
)

var (
	// Global flags
	configFlag       string
	kubeconfigFlag   string
	contextFlag      string
	workdirFlag      string
	outputFormatFlag string
	verboseFlag      bool
	timestampsFlag   bool

	// Loaded during PersistentPreRunE
	envctlConfig   *config.Config
	configErr      error
	resolvedConfig *config.ResolvedConfig
)

// NewRootCmd creates the root command for envctl.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "envctl",
		Short: "Manage isolated application environments",
		Long: `envctl creates environments from versioned skeletons, provisions them onto a
Kubernetes cluster and terraform-managed infrastructure, and rolls image
updates through their workloads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: ENVCTL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&kubeconfigFlag, "kubeconfig", "", "Path to kubeconfig file (env: ENVCTL_KUBECONFIG)")
	rootCmd.PersistentFlags().StringVar(&contextFlag, "context", "", "Kubernetes context to use (env: ENVCTL_CONTEXT)")
	rootCmd.PersistentFlags().StringVar(&workdirFlag, "workdir", "", "Directory holding environments and skeletons (env: ENVCTL_WORKDIR)")
	rootCmd.PersistentFlags().StringVarP(&outputFormatFlag, "output", "o", "", "Output format: table, yaml, json (env: ENVCTL_OUTPUT)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&timestampsFlag, "timestamps", true, "Show timestamps in log output")

	rootCmd.AddGroup(&cobra.Group{ID: operationsGroup, Title: "Operations:"})
	for _, c := range NewOperationCmds() {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(NewOpsCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeGlobals loads configuration, resolves global values and sets up logging.
func initializeGlobals(cmd *cobra.Command) error {
	// Resolve the config path on its own first; the other values depend on
	// what the file contains.
	pathValue := config.Resolve(config.ResolveOptions{
		Key:       "config",
		FlagValue: configFlag,
		EnvVar:    config.ConfigEnvVar,
	})

	envctlConfig, configErr = config.NewLoader().Load(pathValue.Value)
	if configErr != nil {
		// Commands that don't need config still work; the others report configErr.
		output.Debug("config load error", "error", configErr)
	}

	resolved, err := config.ResolveAll(config.ResolveAllOptions{
		ConfigFlag:     configFlag,
		KubeconfigFlag: kubeconfigFlag,
		ContextFlag:    contextFlag,
		WorkdirFlag:    workdirFlag,
		OutputFlag:     outputFormatFlag,
		Config:         envctlConfig,
	})
	if err != nil {
		return err
	}
	resolvedConfig = resolved

	logCfg := output.LogConfig{
		Verbose: verboseFlag,
	}

	// flag (if explicitly set) > config > default
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(timestampsFlag)
	} else if envctlConfig != nil && envctlConfig.Log.Timestamps != nil {
		logCfg.Timestamps = envctlConfig.Log.Timestamps
	}

	output.SetupLogging(logCfg)

	if verboseFlag {
		config.LogResolvedValues(resolvedConfig.Values())
	}

	return nil
}

// GetConfig returns the loaded configuration with resolved values applied.
func GetConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg := config.DefaultConfig()
	if envctlConfig != nil {
		copied := *envctlConfig
		cfg = &copied
	}
	if resolvedConfig != nil {
		cfg.Workdir = resolvedConfig.Workdir.Value
		cfg.Kubernetes.Kubeconfig = resolvedConfig.Kubeconfig.Value
		cfg.Kubernetes.Context = resolvedConfig.Context.Value
	}
	return cfg, nil
}

// GetConfigPath returns the resolved config path value.
func GetConfigPath() string {
	if resolvedConfig != nil {
		return resolvedConfig.ConfigPath.Value
	}
	return configFlag
}

// GetOutputFormat returns the resolved output format.
func GetOutputFormat() output.OutputFormat {
	if resolvedConfig != nil {
		return output.ParseOutputFormat(resolvedConfig.Output.Value)
	}
	return output.ParseOutputFormat(outputFormatFlag)
}
