package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for envctl configuration. Nested keys join
// with underscores: dns.token is ENVCTL_DNS_TOKEN.
const envPrefix = "ENVCTL"

// Loader handles loading and merging configuration from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only reaches keys viper knows about, so every key gets a
	// default even when it is empty.
	def := DefaultConfig()
	v.SetDefault("workdir", def.Workdir)
	v.SetDefault("environmentsDir", def.EnvironmentsDir)
	v.SetDefault("placeholder", def.Placeholder)
	v.SetDefault("skeletons.dir", def.Skeletons.Dir)
	v.SetDefault("skeletons.repository", "")
	v.SetDefault("skeletons.branch", "")
	v.SetDefault("skeletons.sync", false)
	v.SetDefault("kubernetes.kubeconfig", "")
	v.SetDefault("kubernetes.context", "")
	v.SetDefault("kubernetes.init", []string{})
	v.SetDefault("kubernetes.rolloutTimeout", def.Kubernetes.RolloutTimeout)
	v.SetDefault("kubernetes.apiWarnings", def.Kubernetes.APIWarnings)
	v.SetDefault("terraform.binary", def.Terraform.Binary)
	v.SetDefault("terraform.applyArgs", "")
	v.SetDefault("terraform.destroyArgs", "")
	v.SetDefault("dns.provider", "")
	v.SetDefault("dns.zone", "")
	v.SetDefault("dns.token", "")
	v.SetDefault("dns.ttl", def.DNS.TTL)
	v.SetDefault("notify.webhookURL", "")
	v.SetDefault("server.addr", def.Server.Addr)

	return &Loader{v: v}
}

// Load loads configuration from the given file path.
// If configFile is empty, it uses the default config file path.
// Environment variables take precedence over file values. A missing file
// yields defaults plus environment.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		var err error
		configFile, err = GetConfigFile()
		if err != nil {
			return nil, fmt.Errorf("getting config file path: %w", err)
		}
	}

	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	l.v.SetConfigFile(expandedPath)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the file the last Load read from.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}
