package config

import (
	"os"
	"strings"

	"github.com/envctl/envctl/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// Environment variables consulted by the resolver.
const (
	KubeconfigEnvVar = "ENVCTL_KUBECONFIG"
	ContextEnvVar    = "ENVCTL_CONTEXT"
	WorkdirEnvVar    = "ENVCTL_WORKDIR"
	OutputEnvVar     = "ENVCTL_OUTPUT"
)

// ResolvedValue is a configuration value together with where it came from.
type ResolvedValue struct {
	Key    string       `json:"key"`
	Value  string       `json:"value"`
	Source ConfigSource `json:"source"`
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string `json:"shadowed,omitempty"`
}

// ResolvedValues is a list of resolved values.
type ResolvedValues []ResolvedValue

// Table implements output.Tabular.
func (vs ResolvedValues) Table() *output.Table {
	t := output.NewTable("KEY", "VALUE", "SOURCE", "SHADOWED")
	for _, v := range vs {
		var shadowed []string
		for _, src := range []ConfigSource{SourceEnv, SourceConfig, SourceDefault} {
			if val, ok := v.Shadowed[src]; ok {
				shadowed = append(shadowed, string(src)+"="+val)
			}
		}
		t.Row(v.Key, v.Value, string(v.Source), strings.Join(shadowed, " "))
	}
	return t
}

// ResolveOptions holds the candidate values for one key.
type ResolveOptions struct {
	Key         string
	FlagValue   string
	EnvVar      string
	ConfigValue string
	Default     string
}

// Resolve picks a value using precedence flag > env > config > default.
// The loader already folds environment variables into the config, so a
// config value equal to the env value is not reported as shadowed.
func Resolve(opts ResolveOptions) ResolvedValue {
	result := ResolvedValue{
		Key:      opts.Key,
		Shadowed: make(map[ConfigSource]string),
	}

	var envValue string
	if opts.EnvVar != "" {
		envValue = os.Getenv(opts.EnvVar)
	}
	configValue := opts.ConfigValue
	if configValue == envValue {
		configValue = ""
	}

	candidates := []struct {
		source ConfigSource
		value  string
	}{
		{SourceFlag, opts.FlagValue},
		{SourceEnv, envValue},
		{SourceConfig, configValue},
		{SourceDefault, opts.Default},
	}

	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		if result.Source == "" {
			result.Value = c.value
			result.Source = c.source
			continue
		}
		if c.source != SourceDefault {
			result.Shadowed[c.source] = c.value
		}
	}

	if result.Source == "" {
		result.Source = SourceDefault
	}
	return result
}

// ResolveAllOptions holds flag values and the loaded config.
type ResolveAllOptions struct {
	ConfigFlag     string
	KubeconfigFlag string
	ContextFlag    string
	WorkdirFlag    string
	OutputFlag     string

	// Config may be nil when loading failed.
	Config *Config
}

// ResolvedConfig holds every value resolved for the CLI.
type ResolvedConfig struct {
	ConfigPath ResolvedValue
	Kubeconfig ResolvedValue
	Context    ResolvedValue
	Workdir    ResolvedValue
	Output     ResolvedValue
}

// Values returns the resolved values in display order.
func (r *ResolvedConfig) Values() ResolvedValues {
	return ResolvedValues{r.ConfigPath, r.Kubeconfig, r.Context, r.Workdir, r.Output}
}

// ResolveAll resolves the global CLI settings.
func ResolveAll(opts ResolveAllOptions) (*ResolvedConfig, error) {
	paths, err := DefaultPaths()
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = &Config{}
	}

	return &ResolvedConfig{
		ConfigPath: Resolve(ResolveOptions{
			Key:       "config",
			FlagValue: opts.ConfigFlag,
			EnvVar:    ConfigEnvVar,
			Default:   paths.ConfigFile,
		}),
		Kubeconfig: Resolve(ResolveOptions{
			Key:         "kubernetes.kubeconfig",
			FlagValue:   opts.KubeconfigFlag,
			EnvVar:      KubeconfigEnvVar,
			ConfigValue: cfg.Kubernetes.Kubeconfig,
		}),
		Context: Resolve(ResolveOptions{
			Key:         "kubernetes.context",
			FlagValue:   opts.ContextFlag,
			EnvVar:      ContextEnvVar,
			ConfigValue: cfg.Kubernetes.Context,
		}),
		Workdir: Resolve(ResolveOptions{
			Key:         "workdir",
			FlagValue:   opts.WorkdirFlag,
			EnvVar:      WorkdirEnvVar,
			ConfigValue: cfg.Workdir,
			Default:     DefaultWorkdir,
		}),
		Output: Resolve(ResolveOptions{
			Key:       "output",
			FlagValue: opts.OutputFlag,
			EnvVar:    OutputEnvVar,
			Default:   string(output.FormatTable),
		}),
	}, nil
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for source, shadowed := range v.Shadowed {
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}
