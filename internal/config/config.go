// Package config provides configuration loading and management.
package config

import (
	"path/filepath"
	"time"
)

// Defaults applied when neither the config file nor the environment set a key.
const (
	DefaultWorkdir         = "."
	DefaultEnvironmentsDir = "environments"
	DefaultSkeletonsDir    = "skeletons"
	DefaultPlaceholder     = "ENV_NAME"
	DefaultTerraformBinary = "terraform"
	DefaultRolloutTimeout  = "2m"
	DefaultAPIWarnings     = "warn"
	DefaultDNSTTL          = 300
	DefaultServerAddr      = "127.0.0.1:8080"
)

// Config is the envctl configuration.
type Config struct {
	// Workdir anchors relative directories below.
	Workdir string `mapstructure:"workdir" yaml:"workdir" json:"workdir"`

	// EnvironmentsDir holds one directory per environment.
	EnvironmentsDir string `mapstructure:"environmentsDir" yaml:"environmentsDir" json:"environmentsDir"`

	// Placeholder is the token replaced by the environment name in skeleton files.
	Placeholder string `mapstructure:"placeholder" yaml:"placeholder" json:"placeholder"`

	Skeletons  SkeletonsConfig  `mapstructure:"skeletons" yaml:"skeletons" json:"skeletons"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes" yaml:"kubernetes" json:"kubernetes"`
	Terraform  TerraformConfig  `mapstructure:"terraform" yaml:"terraform" json:"terraform"`
	DNS        DNSConfig        `mapstructure:"dns" yaml:"dns" json:"dns"`
	Notify     NotifyConfig     `mapstructure:"notify" yaml:"notify" json:"notify"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log" json:"log"`
}

// SkeletonsConfig locates skeleton versions.
type SkeletonsConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Repository string `mapstructure:"repository" yaml:"repository,omitempty" json:"repository,omitempty"`
	Branch     string `mapstructure:"branch" yaml:"branch,omitempty" json:"branch,omitempty"`

	// Sync pulls Repository before skeletons are read.
	Sync bool `mapstructure:"sync" yaml:"sync" json:"sync"`
}

// KubernetesConfig holds control plane settings.
type KubernetesConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig,omitempty" json:"kubeconfig,omitempty"`
	Context    string `mapstructure:"context" yaml:"context,omitempty" json:"context,omitempty"`

	// Init lists manifest files applied to every new environment namespace.
	Init []string `mapstructure:"init" yaml:"init,omitempty" json:"init,omitempty"`

	// RolloutTimeout bounds the wait for each replacement pod during an update.
	RolloutTimeout string `mapstructure:"rolloutTimeout" yaml:"rolloutTimeout,omitempty" json:"rolloutTimeout,omitempty"`

	// APIWarnings is how API server warnings are logged: warn, debug or suppress.
	APIWarnings string `mapstructure:"apiWarnings" yaml:"apiWarnings,omitempty" json:"apiWarnings,omitempty"`
}

// TerraformConfig holds infrastructure tool settings.
type TerraformConfig struct {
	Binary      string            `mapstructure:"binary" yaml:"binary" json:"binary"`
	Env         map[string]string `mapstructure:"env" yaml:"env,omitempty" json:"env,omitempty"`
	ApplyArgs   string            `mapstructure:"applyArgs" yaml:"applyArgs,omitempty" json:"applyArgs,omitempty"`
	DestroyArgs string            `mapstructure:"destroyArgs" yaml:"destroyArgs,omitempty" json:"destroyArgs,omitempty"`
}

// DNSConfig selects the zone endpoints are published in. An empty Zone
// disables DNS; a set Zone requires a Provider.
type DNSConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider,omitempty" json:"provider,omitempty"`
	Zone     string `mapstructure:"zone" yaml:"zone,omitempty" json:"zone,omitempty"`
	Token    string `mapstructure:"token" yaml:"token,omitempty" json:"token,omitempty"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// NotifyConfig holds the chat webhook.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhookURL" yaml:"webhookURL,omitempty" json:"webhookURL,omitempty"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Timestamps shows timestamps in log output. Nil means the default (on).
	Timestamps *bool `mapstructure:"timestamps" yaml:"timestamps,omitempty" json:"timestamps,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Workdir:         DefaultWorkdir,
		EnvironmentsDir: DefaultEnvironmentsDir,
		Placeholder:     DefaultPlaceholder,
		Skeletons: SkeletonsConfig{
			Dir: DefaultSkeletonsDir,
		},
		Kubernetes: KubernetesConfig{
			RolloutTimeout: DefaultRolloutTimeout,
			APIWarnings:    DefaultAPIWarnings,
		},
		Terraform: TerraformConfig{
			Binary: DefaultTerraformBinary,
		},
		DNS: DNSConfig{
			TTL: DefaultDNSTTL,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// EnvironmentsPath returns EnvironmentsDir anchored at Workdir.
func (c *Config) EnvironmentsPath() string {
	return c.anchor(c.EnvironmentsDir)
}

// SkeletonsPath returns Skeletons.Dir anchored at Workdir.
func (c *Config) SkeletonsPath() string {
	return c.anchor(c.Skeletons.Dir)
}

// InitManifests returns Kubernetes.Init anchored at Workdir.
func (c *Config) InitManifests() []string {
	if len(c.Kubernetes.Init) == 0 {
		return nil
	}
	paths := make([]string, len(c.Kubernetes.Init))
	for i, p := range c.Kubernetes.Init {
		paths[i] = c.anchor(p)
	}
	return paths
}

// RolloutTimeoutDuration parses Kubernetes.RolloutTimeout. Empty means zero.
func (c *Config) RolloutTimeoutDuration() (time.Duration, error) {
	if c.Kubernetes.RolloutTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Kubernetes.RolloutTimeout)
}

func (c *Config) anchor(path string) string {
	expanded, err := ExpandPath(path)
	if err == nil {
		path = expanded
	}
	if filepath.IsAbs(path) {
		return path
	}
	workdir := c.Workdir
	if workdir == "" {
		workdir = DefaultWorkdir
	}
	if expanded, err := ExpandPath(workdir); err == nil {
		workdir = expanded
	}
	return filepath.Join(workdir, path)
}
