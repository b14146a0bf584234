package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/envctl/envctl/internal/config"
	"github.com/envctl/envctl/internal/dns"
	"github.com/envctl/envctl/internal/environment"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/kubernetes"
	"github.com/envctl/envctl/internal/notify"
	"github.com/envctl/envctl/internal/orchestrator"
	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/skeleton"
	"github.com/envctl/envctl/internal/task"
	"github.com/envctl/envctl/internal/terraform"
)

// newOrchestrator builds the orchestrator from the loaded configuration.
// Background tasks run on ctx.
func newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, &oerrors.DetailError{
			Type:     "validation failed",
			Message:  "could not load configuration",
			Location: GetConfigPath(),
			Hint:     "Run 'envctl config vet' for details.",
			Cause:    fmt.Errorf("%w: %w", oerrors.ErrValidation, err),
		}
	}
	return buildOrchestrator(ctx, cfg)
}

func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	registry, err := environment.NewRegistry(cfg.EnvironmentsPath())
	if err != nil {
		return nil, err
	}

	materializer := &environment.Materializer{
		SkeletonsDir:    cfg.SkeletonsPath(),
		EnvironmentsDir: cfg.EnvironmentsPath(),
		Placeholder:     cfg.Placeholder,
	}

	skeletons := &skeleton.Source{
		Dir:        cfg.SkeletonsPath(),
		Repository: cfg.Skeletons.Repository,
		Branch:     cfg.Skeletons.Branch,
	}

	infra, err := terraform.New(terraform.Options{
		Binary:      cfg.Terraform.Binary,
		Env:         cfg.Terraform.Env,
		ApplyArgs:   cfg.Terraform.ApplyArgs,
		DestroyArgs: cfg.Terraform.DestroyArgs,
		Stdout:      terraformStdout(),
	})
	if err != nil {
		return nil, oerrors.NewValidationError(err.Error(), GetConfigPath(), "terraform", "")
	}

	var zone dns.Zone
	if cfg.DNS.Zone != "" {
		zone, err = dns.New(dns.Options{
			Provider: cfg.DNS.Provider,
			Zone:     cfg.DNS.Zone,
			Token:    cfg.DNS.Token,
			TTL:      cfg.DNS.TTL,
		})
		if err != nil {
			return nil, err
		}
	}

	rolloutTimeout, err := cfg.RolloutTimeoutDuration()
	if err != nil {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("invalid rollout timeout %q", cfg.Kubernetes.RolloutTimeout),
			GetConfigPath(), "kubernetes.rolloutTimeout", "use a duration such as 90s or 2m")
	}

	clientOpts := kubernetes.ClientOptions{
		Kubeconfig:  cfg.Kubernetes.Kubeconfig,
		Context:     cfg.Kubernetes.Context,
		APIWarnings: cfg.Kubernetes.APIWarnings,
	}
	connect := func() (orchestrator.ControlPlane, error) {
		client, err := kubernetes.NewClient(clientOpts)
		if err != nil {
			return nil, err
		}
		output.Debug("connected to cluster", "host", client.RestConfig.Host)
		return client, nil
	}

	return orchestrator.New(orchestrator.Options{
		Registry:       registry,
		Materializer:   materializer,
		Skeletons:      skeletons,
		SyncSkeletons:  cfg.Skeletons.Sync,
		ControlPlane:   connect,
		Infrastructure: infra,
		Zone:           zone,
		Notifier:       notify.New(cfg.Notify.WebhookURL),
		Tasks:          task.NewQueue(ctx),
		InitManifests:  cfg.InitManifests(),
		Rollout:        kubernetes.RolloutOptions{ReadyTimeout: rolloutTimeout},
	}), nil
}

// terraformStdout keeps terraform's progress off stdout when the result is
// rendered as yaml or json, so the rendered document stays parseable.
func terraformStdout() io.Writer {
	if GetOutputFormat() == output.FormatTable {
		return nil
	}
	return os.Stderr
}
